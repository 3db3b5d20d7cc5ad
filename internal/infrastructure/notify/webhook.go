package notify

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"tg_wallet/internal/domain/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WebhookSink posts notifications as JSON to an HTTP endpoint.
type WebhookSink struct {
	client  *fasthttp.Client
	url     string
	timeout time.Duration
	logger  *zap.Logger
}

// NewWebhookSink creates a WebhookSink for url.
func NewWebhookSink(url string, timeout time.Duration, logger *zap.Logger) *WebhookSink {
	return &WebhookSink{
		client:  &fasthttp.Client{},
		url:     url,
		timeout: timeout,
		logger:  logger.Named("WebhookSink"),
	}
}

// Notify implements port.Notifier. Delivery failures are logged.
func (s *WebhookSink) Notify(ctx context.Context, n entity.Notification) {
	if err := s.post(ctx, n); err != nil {
		s.logger.Error("Failed to deliver notification", zap.String("url", s.url), zap.String("title", n.Title), zap.Error(err))
	}
}

func (s *WebhookSink) post(ctx context.Context, n entity.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(s.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentTypeBytes([]byte("application/json"))
	req.SetBodyRaw(body)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("failed to execute request to %s: %w", s.url, err)
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return fmt.Errorf("webhook %s responded with status %d: %s", s.url, code, string(resp.Body()))
	}
	s.logger.Debug("Notification delivered", zap.String("url", s.url), zap.String("title", n.Title))
	return nil
}
