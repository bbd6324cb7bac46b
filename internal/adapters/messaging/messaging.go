// Package messaging delivers roster announcements. Delivery is best
// effort; a sink failure is logged and never propagated as fatal.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mklounge/squadqueue/pkg/logger"
)

// Sink sends a text message to a named destination.
type Sink interface {
	Send(ctx context.Context, destination, text string) error
}

// LogSink writes announcements to the log. It stands in for a chat
// platform in deployments without one.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates a sink logging under the given logger.
func NewLogSink(log logger.Logger) *LogSink {
	if log == nil {
		log = logger.Named("messaging")
	}
	return &LogSink{log: log}
}

// Send implements Sink.
func (s *LogSink) Send(ctx context.Context, destination, text string) error {
	s.log.Info(ctx, "announcement",
		logger.String("destination", destination),
		logger.String("text", text))
	return nil
}

// WebhookSink posts announcements as JSON to a single webhook endpoint.
// The destination travels in the payload so one endpoint can fan out.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a sink posting to the given URL.
func NewWebhookSink(url string, client *http.Client) *WebhookSink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookSink{url: url, client: client}
}

type webhookPayload struct {
	Destination string `json:"destination"`
	Text        string `json:"text"`
}

// Send implements Sink.
func (s *WebhookSink) Send(ctx context.Context, destination, text string) error {
	body, err := json.Marshal(webhookPayload{Destination: destination, Text: text})
	if err != nil {
		return fmt.Errorf("encoding announcement: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building announcement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivering announcement: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook answered %s", resp.Status)
	}
	return nil
}

// Announce sends through the sink and logs any failure. Use it wherever
// delivery must not interrupt the caller.
func Announce(ctx context.Context, sink Sink, log logger.Logger, destination, text string) {
	if sink == nil {
		return
	}
	if err := sink.Send(ctx, destination, text); err != nil {
		log.Warn(ctx, "announcement delivery failed",
			logger.String("destination", destination), logger.Error(err))
	}
}
