// Package service реализует сценарий оформления заявки и подтверждения оплаты.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/eorimag/internal/model"
	"github.com/mmeshcher/eorimag/internal/notify"
	"github.com/mmeshcher/eorimag/internal/storage"
	"github.com/mmeshcher/eorimag/internal/validation"
)

// ErrStorage возвращается, если не удалось сохранить документы или записать заявку.
var ErrStorage = errors.New("could not store order")

// Store описывает хранилище загруженных файлов.
type Store interface {
	Save(ctx context.Context, originalName string, data []byte) (string, error)
	Load(ctx context.Context, name string) ([]byte, error)
}

// OrderLog описывает журнал заявок, который только дополняется.
type OrderLog interface {
	Append(ctx context.Context, rec model.OrderRecord) error
}

// fileLocator реализуется хранилищами, файлы которых доступны по пути
// в локальной файловой системе.
type fileLocator interface {
	Locate(name string) (string, error)
}

// Ledger описывает необязательный реестр заявок и оплат.
type Ledger interface {
	OrderLog
	RecordPayment(ctx context.Context, rec model.PaymentRecord) (bool, error)
}

// Notifier отправляет уведомления.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) error
}

// Gateway описывает платёжный шлюз.
type Gateway interface {
	CheckPrice(serviceKey string) error
	CreateSession(ctx context.Context, serviceKey, email string, metadata map[string]string) (string, error)
}

// Catalog возвращает описание услуги по ключу.
type Catalog interface {
	Lookup(key string) (model.ServiceEntry, bool)
}

// Options задаёт поведение уведомлений.
type Options struct {
	SendEmailOnSubmit bool
	SendEmailOnPaid   bool
	ReplyToApplicant  bool
}

// Service содержит бизнес-логику оформления заявок.
type Service struct {
	store    Store
	orderLog OrderLog
	ledger   Ledger
	notifier Notifier
	gateway  Gateway
	catalog  Catalog
	opts     Options
	logger   *zap.Logger
}

// NewService создаёт сервис. ledger может быть nil.
func NewService(store Store, orderLog OrderLog, ledger Ledger, notifier Notifier, gateway Gateway,
	catalog Catalog, opts Options, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		orderLog: orderLog,
		ledger:   ledger,
		notifier: notifier,
		gateway:  gateway,
		catalog:  catalog,
		opts:     opts,
		logger:   logger,
	}
}

// Submit сохраняет документы и подпись, записывает заявку в журнал, при необходимости
// отправляет уведомление и создаёт платёжную сессию. Возвращает URL страницы оплаты.
// Заявка должна быть предварительно проверена validation.ValidateSubmission.
func (s *Service) Submit(ctx context.Context, sub *model.Submission) (string, error) {
	if err := s.gateway.CheckPrice(sub.ServiceKey); err != nil {
		return "", err
	}

	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now()
	}

	uploads, err := s.storeFiles(ctx, sub)
	if err != nil {
		return "", err
	}

	files := make([]string, 0, len(uploads))
	for _, u := range uploads {
		files = append(files, u.Name)
	}

	rec := model.OrderRecord{
		Timestamp:  sub.SubmittedAt,
		ServiceKey: sub.ServiceKey,
		FullName:   sub.FullName,
		Company:    sub.Company,
		Email:      sub.Email,
		Phone:      sub.Phone,
		NationalID: sub.NationalID,
		Notes:      sub.Notes,
		Files:      files,
	}

	if err := s.orderLog.Append(ctx, rec); err != nil {
		s.logger.Error("append order log error", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if s.ledger != nil {
		if err := s.ledger.Append(ctx, rec); err != nil {
			s.logger.Warn("ledger append error", zap.Error(err))
		}
	}

	if s.opts.SendEmailOnSubmit {
		attachments := make([]model.Attachment, 0, len(uploads))
		for _, u := range uploads {
			attachments = append(attachments, model.InlineBlob(u.Name, u.Data))
		}
		msg := notify.Message{
			Subject:     fmt.Sprintf("Comandă nouă (neplătită) – %s – %s", s.serviceLabel(rec.ServiceKey), rec.FullName),
			Text:        submissionText(s.serviceLabel(rec.ServiceKey), rec),
			Attachments: attachments,
			ReplyTo:     s.replyTo(rec.Email),
		}
		if err := s.notifier.Notify(ctx, msg); err != nil {
			s.logger.Warn("submission notification failed", zap.Error(err), zap.String("email", rec.Email))
		}
	}

	return s.gateway.CreateSession(ctx, sub.ServiceKey, sub.Email, buildMetadata(rec))
}

func (s *Service) storeFiles(ctx context.Context, sub *model.Submission) ([]model.StoredUpload, error) {
	var uploads []model.StoredUpload

	for _, f := range []*model.UploadedFile{sub.IDFront, sub.IDBack, sub.ExtraDoc} {
		if f == nil || len(f.Data) == 0 {
			continue
		}

		name, err := s.store.Save(ctx, f.Filename, f.Data)
		if err != nil {
			if errors.Is(err, storage.ErrUnsupportedType) {
				s.logger.Warn("upload skipped", zap.String("filename", f.Filename))
				continue
			}
			s.logger.Error("save upload error", zap.Error(err), zap.String("filename", f.Filename))
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}

		uploads = append(uploads, model.StoredUpload{Name: name, OriginalName: f.Filename, Data: f.Data})
	}

	sig, err := validation.DecodeSignature(sub.SignatureData)
	if err != nil {
		s.logger.Warn("signature not stored", zap.Error(err))
		return uploads, nil
	}

	name, err := s.store.Save(ctx, "signature.png", sig)
	if err != nil {
		s.logger.Warn("save signature error", zap.Error(err))
		return uploads, nil
	}

	return append(uploads, model.StoredUpload{Name: name, OriginalName: "signature.png", Data: sig}), nil
}

// ConfirmPayment обрабатывает проверенное событие провайдера. Действие выполняется только
// для завершённой оплаты: фиксация в реестре и уведомление с документами заявки.
// Ошибка уведомления возвращается вызывающему и не отменяет факта оплаты.
func (s *Service) ConfirmPayment(ctx context.Context, ev *model.PaymentEvent) error {
	if ev.Type != model.EventCheckoutCompleted {
		return nil
	}

	if s.ledger != nil {
		first, err := s.ledger.RecordPayment(ctx, model.PaymentRecord{
			SessionID:   ev.SessionID,
			ServiceKey:  ev.Metadata[model.MetaServiceKey],
			Email:       ev.Email,
			AmountMinor: ev.AmountMinor,
			Currency:    ev.Currency,
			Metadata:    ev.Metadata,
			PaidAt:      ev.CreatedAt,
		})
		switch {
		case err != nil:
			s.logger.Warn("record payment error", zap.Error(err), zap.String("session", ev.SessionID))
		case !first:
			s.logger.Info("duplicate payment event ignored", zap.String("session", ev.SessionID))
			return nil
		}
	}

	if !s.opts.SendEmailOnPaid {
		return nil
	}

	attachments := s.storedAttachments(ctx, splitFiles(ev.Metadata[model.MetaFiles]))

	rec := recordFromMetadata(ev.Metadata)
	if rec.Email == "" {
		rec.Email = ev.Email
	}
	label := s.serviceLabel(rec.ServiceKey)

	msg := notify.Message{
		Subject:     fmt.Sprintf("Plată confirmată – %s – %s", label, rec.FullName),
		Text:        paymentText(label, rec, ev),
		Attachments: attachments,
		ReplyTo:     s.replyTo(rec.Email),
	}

	if err := s.notifier.Notify(ctx, msg); err != nil {
		return fmt.Errorf("paid notification: %w", err)
	}

	return nil
}

// storedAttachments ссылается на файлы по пути, если хранилище это позволяет,
// иначе загружает их содержимое. Недоступные файлы пропускаются.
func (s *Service) storedAttachments(ctx context.Context, names []string) []model.Attachment {
	locator, byPath := s.store.(fileLocator)

	var attachments []model.Attachment
	for _, name := range names {
		if byPath {
			path, err := locator.Locate(name)
			if err != nil {
				s.logger.Warn("stored file not attached", zap.Error(err), zap.String("file", name))
				continue
			}
			attachments = append(attachments, model.FileReference(path))
			continue
		}

		data, err := s.store.Load(ctx, name)
		if err != nil {
			s.logger.Warn("stored file not attached", zap.Error(err), zap.String("file", name))
			continue
		}
		attachments = append(attachments, model.InlineBlob(name, data))
	}
	return attachments
}

func (s *Service) serviceLabel(key string) string {
	if e, ok := s.catalog.Lookup(key); ok && e.Label != "" {
		return e.Label
	}
	return key
}

func (s *Service) replyTo(email string) string {
	if s.opts.ReplyToApplicant {
		return email
	}
	return ""
}

func buildMetadata(rec model.OrderRecord) map[string]string {
	return map[string]string{
		model.MetaServiceKey: rec.ServiceKey,
		model.MetaFullName:   rec.FullName,
		model.MetaCompany:    rec.Company,
		model.MetaEmail:      rec.Email,
		model.MetaPhone:      rec.Phone,
		model.MetaNationalID: rec.NationalID,
		model.MetaNotes:      rec.Notes,
		model.MetaFiles:      strings.Join(rec.Files, ","),
	}
}

func recordFromMetadata(meta map[string]string) model.OrderRecord {
	return model.OrderRecord{
		ServiceKey: meta[model.MetaServiceKey],
		FullName:   meta[model.MetaFullName],
		Company:    meta[model.MetaCompany],
		Email:      meta[model.MetaEmail],
		Phone:      meta[model.MetaPhone],
		NationalID: meta[model.MetaNationalID],
		Notes:      meta[model.MetaNotes],
		Files:      splitFiles(meta[model.MetaFiles]),
	}
}

func splitFiles(s string) []string {
	var res []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			res = append(res, name)
		}
	}
	return res
}
