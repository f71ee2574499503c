package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/caselens/lexalert/internal/domain/hit"
	domwebhook "github.com/caselens/lexalert/internal/domain/webhook"
	"github.com/caselens/lexalert/internal/version"
)

// WebhookSender posts alert events to subscriber endpoints.
type WebhookSender struct {
	client *http.Client
}

// NewWebhookSender builds a sender with a per-delivery timeout.
func NewWebhookSender(timeout time.Duration) *WebhookSender {
	return &WebhookSender{client: &http.Client{Timeout: timeout}}
}

// webhookPayload is the wire shape of one delivery.
type webhookPayload struct {
	Webhook webhookMeta  `json:"webhook"`
	Payload eventPayload `json:"payload"`
}

type webhookMeta struct {
	Event      string `json:"event_type"`
	Version    string `json:"version"`
	DeliveryID string `json:"delivery_id"`
	DateSent   string `json:"date_created"`
}

type eventPayload struct {
	Alerts []alertSection `json:"alerts"`
}

type alertSection struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Type    string        `json:"search_type"`
	Results []resultEntry `json:"results"`
}

type resultEntry struct {
	ID         string            `json:"id"`
	Fields     map[string]string `json:"fields"`
	ChildDocs  []resultEntry     `json:"child_docs,omitempty"`
	ChildCount int               `json:"child_count,omitempty"`
}

// Send posts one delivery with every hit bundled. Each delivery carries
// a fresh id so receivers can deduplicate retries.
func (s *WebhookSender) Send(ctx context.Context, w domwebhook.Webhook, hits []hit.Hit) error {
	payload := webhookPayload{
		Webhook: webhookMeta{
			Event:      string(w.Event()),
			Version:    version.Version,
			DeliveryID: uuid.NewString(),
			DateSent:   time.Now().UTC().Format(time.RFC3339),
		},
		Payload: eventPayload{Alerts: make([]alertSection, 0, len(hits))},
	}
	for _, h := range hits {
		section := alertSection{
			ID:      h.AlertID,
			Name:    h.AlertName,
			Type:    string(h.SearchType),
			Results: make([]resultEntry, 0, len(h.Documents)),
		}
		for _, d := range h.Documents {
			section.Results = append(section.Results, toResultEntry(d))
		}
		payload.Payload.Alerts = append(payload.Payload.Alerts, section)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", payload.Webhook.DeliveryID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook to %s: %w", w.Endpoint(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook endpoint %s replied %d", w.Endpoint(), resp.StatusCode)
	}
	return nil
}

func toResultEntry(d hit.Document) resultEntry {
	entry := resultEntry{ID: d.ID, Fields: d.Fields, ChildCount: d.ChildCount}
	for _, child := range d.ChildDocs {
		entry.ChildDocs = append(entry.ChildDocs, toResultEntry(child))
	}
	return entry
}
