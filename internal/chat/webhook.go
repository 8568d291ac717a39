package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// WebhookTransport bridges the abstract transport to an external chat
// gateway over JSON webhooks: outbound deliveries are POSTed to the
// gateway, uploaded files are fetched from it by id.
type WebhookTransport struct {
	client  *http.Client
	gateway string
}

// NewWebhookTransport creates a transport talking to the gateway base URL.
func NewWebhookTransport(gateway string) *WebhookTransport {
	return &WebhookTransport{
		client:  &http.Client{Timeout: 30 * time.Second},
		gateway: gateway,
	}
}

// outboundDelivery is the JSON body POSTed to the gateway.
type outboundDelivery struct {
	Type     string     `json:"type"`
	Text     string     `json:"text,omitempty"`
	Document string     `json:"document,omitempty"`
	Data     []byte     `json:"data,omitempty"`
	Rows     [][]Button `json:"rows,omitempty"`
	ChatID   int64      `json:"chat_id"`
}

func (t *WebhookTransport) deliver(ctx context.Context, delivery outboundDelivery) error {
	body, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("failed to encode delivery: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.gateway+"/deliveries", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver to gateway: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("gateway rejected delivery: %s", resp.Status)
	}
	return nil
}

// SendMessage implements Transport.
func (t *WebhookTransport) SendMessage(ctx context.Context, chatID int64, text string) error {
	return t.deliver(ctx, outboundDelivery{Type: "message", ChatID: chatID, Text: text})
}

// SendKeyboard implements Transport.
func (t *WebhookTransport) SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]Button) error {
	return t.deliver(ctx, outboundDelivery{Type: "keyboard", ChatID: chatID, Text: text, Rows: rows})
}

// SendDocument implements Transport.
func (t *WebhookTransport) SendDocument(ctx context.Context, chatID int64, name string, data []byte) error {
	return t.deliver(ctx, outboundDelivery{Type: "document", ChatID: chatID, Document: name, Data: data})
}

// DownloadFile implements Transport.
func (t *WebhookTransport) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.gateway+"/files/"+fileID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build file request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch file %q: %w", fileID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway refused file %q: %s", fileID, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// inboundEvent is the JSON body the gateway POSTs for each user action.
type inboundEvent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	FileID   string `json:"file_id,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Data     string `json:"data,omitempty"`
	ChatID   int64  `json:"chat_id"`
	UserID   int64  `json:"user_id"`
}

// EventHandler returns an http.Handler accepting gateway event webhooks
// and submitting them to the dispatcher.
func EventHandler(dispatcher *Dispatcher) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var raw inboundEvent
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			http.Error(w, "bad event payload", http.StatusBadRequest)
			return
		}

		var event Event
		switch raw.Type {
		case "text":
			event = TextEvent{ChatID: raw.ChatID, UserID: raw.UserID, Text: raw.Text}
		case "file":
			event = FileEvent{ChatID: raw.ChatID, UserID: raw.UserID, FileID: raw.FileID, FileName: raw.FileName}
		case "callback":
			event = CallbackEvent{ChatID: raw.ChatID, UserID: raw.UserID, Data: raw.Data}
		default:
			http.Error(w, fmt.Sprintf("unknown event type %q", raw.Type), http.StatusBadRequest)
			return
		}

		if err := dispatcher.Submit(r.Context(), event); err != nil {
			slog.Error("Failed to submit inbound event", "error", err)
			http.Error(w, "dispatcher unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}
