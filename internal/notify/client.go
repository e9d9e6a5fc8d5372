// Package notify отправляет уведомления о заявках через API транзакционной почты Resend.
package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"

	"github.com/mmeshcher/eorimag/internal/model"
)

const (
	defaultSenderName    = "EORIMAG"
	defaultSenderAddress = "no-reply@eorieu.app"
	defaultBaseURL       = "https://api.resend.com"
)

var (
	// ErrNotConfigured возвращается, если не задан ключ API почтового провайдера.
	ErrNotConfigured = errors.New("email provider is not configured")
	// ErrNoRecipients возвращается, если не задан ни один адрес получателя.
	ErrNoRecipients = errors.New("no notification recipients configured")
	// ErrRejected возвращается, если провайдер не принял письмо.
	ErrRejected = errors.New("email rejected by provider")
)

// Config содержит параметры подключения к почтовому провайдеру.
type Config struct {
	APIKey  string
	BaseURL string
	From    string
	To      []string
	CC      []string
}

// Message описывает уведомление.
type Message struct {
	Subject     string
	Text        string
	Attachments []model.Attachment
	ReplyTo     string
	CC          []string
}

// Client инкапсулирует HTTP-взаимодействие с почтовым провайдером.
type Client struct {
	cfg        Config
	from       string
	httpClient *http.Client
	logger     *zap.Logger
}

type emailAttachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type emailRequest struct {
	From        string            `json:"from"`
	To          []string          `json:"to"`
	CC          []string          `json:"cc,omitempty"`
	ReplyTo     string            `json:"reply_to,omitempty"`
	Subject     string            `json:"subject"`
	Text        string            `json:"text"`
	Attachments []emailAttachment `json:"attachments,omitempty"`
}

// NewClient создаёт клиент почтового провайдера.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = 30 * time.Second

	return &Client{
		cfg:        cfg,
		from:       NormalizeSender(cfg.From),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Notify отправляет письмо на адреса из конфигурации. Нечитаемые вложения пропускаются
// с предупреждением. Ошибка возвращается, если письмо не было принято провайдером.
func (c *Client) Notify(ctx context.Context, msg Message) error {
	if len(c.cfg.To) == 0 {
		return ErrNoRecipients
	}
	if c.cfg.APIKey == "" {
		return ErrNotConfigured
	}

	req := emailRequest{
		From:    c.from,
		To:      c.cfg.To,
		CC:      mergeCC(c.cfg.CC, msg.CC),
		Subject: msg.Subject,
		Text:    msg.Text,
	}

	if msg.ReplyTo != "" {
		if addr, err := mail.ParseAddress(msg.ReplyTo); err == nil {
			req.ReplyTo = addr.Address
		}
	}

	for _, att := range msg.Attachments {
		name, data, err := ResolveAttachment(att)
		if err != nil {
			c.logger.Warn("attachment skipped", zap.Error(err))
			continue
		}
		req.Attachments = append(req.Attachments, emailAttachment{
			Filename: name,
			Content:  base64.StdEncoding.EncodeToString(data),
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return nil
}

// NormalizeSender приводит адрес отправителя к виду "Имя <адрес>", экранируя имя
// по RFC 5322. Некорректный адрес заменяется адресом по умолчанию.
func NormalizeSender(from string) string {
	fallback := (&mail.Address{Name: defaultSenderName, Address: defaultSenderAddress}).String()

	from = strings.TrimSpace(from)
	if from == "" {
		return fallback
	}

	addr, err := mail.ParseAddress(from)
	if err != nil {
		return fallback
	}

	name := strings.TrimSpace(addr.Name)
	if name == "" {
		name = defaultSenderName
	}

	return (&mail.Address{Name: name, Address: addr.Address}).String()
}

func mergeCC(base, extra []string) []string {
	if len(extra) == 0 {
		return base
	}

	seen := make(map[string]struct{}, len(base)+len(extra))
	res := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, a := range list {
			key := strings.ToLower(a)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			res = append(res, a)
		}
	}
	return res
}
