// Package payment создаёт платёжные сессии Stripe Checkout и проверяет вебхуки провайдера.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/mmeshcher/eorimag/internal/model"
)

const maxMetadataValue = 500

var (
	// ErrServiceUnavailable возвращается, если для услуги не настроена цена у провайдера.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrPaymentFailed возвращается при любой ошибке создания платёжной сессии.
	ErrPaymentFailed = errors.New("could not create payment")
	// ErrInvalidSignature возвращается, если подпись вебхука отсутствует или неверна.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent возвращается, если подписанное событие не удалось разобрать.
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// PriceResolver возвращает ссылку на цену провайдера по ключу услуги.
type PriceResolver interface {
	PriceRef(key string) string
}

// SessionCreator создаёт платёжную сессию у провайдера.
type SessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Config содержит параметры платёжного шлюза.
type Config struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// Gateway реализует создание платёжных сессий и разбор событий вебхука.
type Gateway struct {
	sessions      SessionCreator
	prices        PriceResolver
	webhookSecret string
	successURL    string
	cancelURL     string
	logger        *zap.Logger
}

// NewStripeGateway создаёт шлюз с клиентом Stripe. Без секретного ключа
// сессии не создаются.
func NewStripeGateway(cfg Config, prices PriceResolver, logger *zap.Logger) *Gateway {
	var sessions SessionCreator
	if cfg.SecretKey != "" {
		sessions = &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.SecretKey}
	}
	return NewGateway(sessions, cfg, prices, logger)
}

// NewGateway создаёт шлюз с указанным клиентом сессий.
func NewGateway(sessions SessionCreator, cfg Config, prices PriceResolver, logger *zap.Logger) *Gateway {
	return &Gateway{
		sessions:      sessions,
		prices:        prices,
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		logger:        logger,
	}
}

// CheckPrice проверяет, что для услуги настроена цена, не обращаясь к провайдеру.
func (g *Gateway) CheckPrice(serviceKey string) error {
	if g.prices.PriceRef(serviceKey) == "" {
		return ErrServiceUnavailable
	}
	return nil
}

// CreateSession создаёт сессию оплаты одной позиции в количестве одной штуки
// и возвращает URL для перенаправления покупателя.
func (g *Gateway) CreateSession(ctx context.Context, serviceKey, email string, metadata map[string]string) (string, error) {
	priceRef := g.prices.PriceRef(serviceKey)
	if priceRef == "" {
		return "", ErrServiceUnavailable
	}

	if g.sessions == nil {
		g.logger.Error("payment provider is not configured", zap.String("service", serviceKey))
		return "", ErrPaymentFailed
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceRef),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
	}
	params.Context = ctx

	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}

	for k, v := range metadata {
		if len(v) > maxMetadataValue {
			g.logger.Warn("metadata value truncated", zap.String("key", k),
				zap.Int("length", len(v)), zap.Int("limit", maxMetadataValue))
			v = truncate(v, maxMetadataValue)
		}
		params.AddMetadata(k, v)
	}

	s, err := g.sessions.New(params)
	if err != nil {
		g.logger.Error("create checkout session error", zap.Error(err), zap.String("service", serviceKey))
		return "", ErrPaymentFailed
	}

	if s == nil || s.URL == "" {
		g.logger.Error("checkout session without redirect url", zap.String("service", serviceKey))
		return "", ErrPaymentFailed
	}

	return s.URL, nil
}

// ParseWebhook проверяет подпись события и возвращает типизированное событие.
// Данные сессии заполняются только для события завершения оплаты.
func (g *Gateway) ParseWebhook(payload []byte, signatureHeader string) (*model.PaymentEvent, error) {
	if signatureHeader == "" {
		return nil, fmt.Errorf("%w: missing header", ErrInvalidSignature)
	}
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret is not configured", ErrInvalidSignature)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	res := &model.PaymentEvent{
		ID:        event.ID,
		Type:      model.EventType(event.Type),
		CreatedAt: time.Unix(event.Created, 0).UTC(),
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return res, nil
	}

	if event.Data == nil {
		return nil, fmt.Errorf("%w: no data", ErrMalformedEvent)
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	res.SessionID = cs.ID
	res.Metadata = cs.Metadata
	res.AmountMinor = cs.AmountTotal
	res.Currency = string(cs.Currency)
	res.Email = cs.CustomerEmail
	if cs.CustomerDetails != nil && cs.CustomerDetails.Email != "" {
		res.Email = cs.CustomerDetails.Email
	}

	return res, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
