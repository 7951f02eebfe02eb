package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"text/template"
	"time"
)

// WebhookNotifier sends notifications to a webhook URL.
type WebhookNotifier struct {
	URL      string // webhook endpoint
	Format   string // "slack", "json" or "custom"
	Template string // body template for the custom format
	client   *http.Client
}

// NewWebhookNotifier creates a webhook notifier for the given URL and format.
func NewWebhookNotifier(url, format, tmpl string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:      url,
		Format:   format,
		Template: tmpl,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the notification to the configured webhook.
func (w *WebhookNotifier) Send(n Notification) error {
	var payload any

	text := fmt.Sprintf("%s: %s", n.Title, n.Message)

	switch w.Format {
	case "json":
		payload = n.Event
	case "custom":
		if w.Template == "" {
			return fmt.Errorf("webhook custom format: missing template")
		}
		tmpl, err := template.New("webhook").Parse(w.Template)
		if err != nil {
			return fmt.Errorf("webhook custom template parse: %w", err)
		}
		data := struct {
			Title   string
			Message string
			Text    string
			Event   Event
		}{n.Title, n.Message, text, n.Event}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return fmt.Errorf("webhook custom template execute: %w", err)
		}
		// Parse rendered template as JSON to validate it
		if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
			return fmt.Errorf("webhook custom template produced invalid JSON: %w", err)
		}
	default: // "slack" and any other format
		payload = map[string]string{
			"text": text,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook marshal: %w", err)
	}

	resp, err := w.client.Post(w.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Name returns the name of this notifier.
func (w *WebhookNotifier) Name() string { return "webhook" }
