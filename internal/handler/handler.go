// Package handler содержит HTTP-обработчики сервиса оформления заявок.
package handler

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/eorimag/internal/model"
	"github.com/mmeshcher/eorimag/internal/payment"
	"github.com/mmeshcher/eorimag/internal/service"
	"github.com/mmeshcher/eorimag/internal/validation"
)

const (
	maxWebhookBody  = 64 << 10
	multipartMemory = 8 << 20
	confirmTimeout  = time.Minute
)

//go:embed templates/*.html
var templatesFS embed.FS

var pages = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Submit(ctx context.Context, sub *model.Submission) (string, error)
	ConfirmPayment(ctx context.Context, ev *model.PaymentEvent) error
}

// WebhookParser проверяет подпись и разбирает события платёжного провайдера.
type WebhookParser interface {
	ParseWebhook(payload []byte, signatureHeader string) (*model.PaymentEvent, error)
}

// Catalog предоставляет список услуг для страницы формы.
type Catalog interface {
	Entries() []model.ServiceEntry
}

// Handler реализует HTTP-обработчики сервиса.
type Handler struct {
	service        Service
	webhooks       WebhookParser
	catalog        Catalog
	logger         *zap.Logger
	maxUploadBytes int64

	// background учитывает подтверждения оплат, выполняемые после ответа на вебхук.
	background sync.WaitGroup
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, webhooks WebhookParser, catalog Catalog, logger *zap.Logger, maxUploadBytes int64) *Handler {
	return &Handler{
		service:        s,
		webhooks:       webhooks,
		catalog:        catalog,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

type errorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// CreateCheckout принимает заявку из multipart-формы и возвращает URL страницы оплаты.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid form"})
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	sub := &model.Submission{
		ServiceKey:    formValue(r, "service_key"),
		FullName:      formValue(r, "full_name"),
		Company:       formValue(r, "company"),
		Email:         formValue(r, "email"),
		Phone:         formValue(r, "phone"),
		NationalID:    formValue(r, "cnp_cui"),
		Notes:         formValue(r, "notes"),
		AcceptedTerms: validation.IsTruthy(r.FormValue("accept_terms")),
		SignatureData: formValue(r, "signature_data"),
		SubmittedAt:   time.Now(),
	}

	var err error
	for _, f := range []struct {
		field string
		dst   **model.UploadedFile
	}{
		{"id_front", &sub.IDFront},
		{"id_back", &sub.IDBack},
		{"extra_doc", &sub.ExtraDoc},
	} {
		if *f.dst, err = readFormFile(r, f.field); err != nil {
			h.logger.Warn("read upload error", zap.Error(err), zap.String("field", f.field))
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid upload: " + f.field})
			return
		}
	}

	if err := validation.ValidateSubmission(sub); err != nil {
		var mfe *validation.MissingFieldsError
		if errors.As(err, &mfe) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: mfe.Error(), Missing: mfe.Fields})
			return
		}
		h.logger.Error("validate submission error", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid form"})
		return
	}

	url, err := h.service.Submit(r.Context(), sub)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrServiceUnavailable):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: payment.ErrServiceUnavailable.Error()})
		case errors.Is(err, service.ErrStorage):
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: service.ErrStorage.Error()})
		default:
			h.logger.Error("create checkout error", zap.Error(err), zap.String("service", sub.ServiceKey))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: payment.ErrPaymentFailed.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{CheckoutURL: url})
}

// Webhook принимает подписанное событие платёжного провайдера и сразу отвечает 200.
// Подтверждение оплаты и отправка уведомления выполняются в фоне и не зависят
// от соединения с провайдером.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ev, err := h.webhooks.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook rejected", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)

	ctx := context.WithoutCancel(r.Context())
	h.background.Go(func() {
		ctx, cancel := context.WithTimeout(ctx, confirmTimeout)
		defer cancel()

		if err := h.service.ConfirmPayment(ctx, ev); err != nil {
			h.logger.Error("payment confirmation side effect failed", zap.Error(err),
				zap.String("event", ev.ID), zap.String("session", ev.SessionID))
		}
	})
}

// Wait дожидается завершения фоновых подтверждений оплат. Вызывается после
// остановки HTTP-сервера, когда новые вебхуки уже не принимаются.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.background.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Healthz сообщает, что процесс жив.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type indexPage struct {
	Services []model.ServiceEntry
	Default  string
}

// Index отображает форму заявки.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	data := indexPage{}
	for _, e := range h.catalog.Entries() {
		if !e.Available() {
			continue
		}
		data.Services = append(data.Services, e)
	}
	if len(data.Services) > 0 {
		data.Default = data.Services[0].Key
	}
	h.render(w, "index.html", data)
}

// Success отображает страницу после успешной оплаты.
func (h *Handler) Success(w http.ResponseWriter, r *http.Request) {
	h.render(w, "success.html", nil)
}

// Cancel отображает страницу отменённой оплаты.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.render(w, "cancel.html", nil)
}

// Terms отображает условия предоставления услуги.
func (h *Handler) Terms(w http.ResponseWriter, r *http.Request) {
	h.render(w, "terms.html", nil)
}

func (h *Handler) render(w http.ResponseWriter, name string, data any) {
	var buf strings.Builder
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("render page error", zap.Error(err), zap.String("page", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, buf.String())
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}

// readFormFile возвращает nil, если файл не был выбран.
func readFormFile(r *http.Request, field string) (*model.UploadedFile, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	return readUpload(file, header)
}

func readUpload(file multipart.File, header *multipart.FileHeader) (*model.UploadedFile, error) {
	if header.Filename == "" {
		return nil, nil
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	return &model.UploadedFile{Filename: header.Filename, Data: data}, nil
}
