package chat

import (
	"context"
	"fmt"
	"sync"
)

// MockTransport is a recording Transport for tests. Sends are captured in
// order; downloads are served from a scripted file map.
type MockTransport struct {
	files    map[string][]byte
	Messages []SentMessage
	mu       sync.Mutex
	FailSend bool
}

// SentMessage is one captured outbound delivery.
type SentMessage struct {
	Text     string
	Document string
	Rows     [][]Button
	ChatID   int64
}

// NewMockTransport creates an empty mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{files: make(map[string][]byte)}
}

// AddFile scripts the content served for fileID.
func (m *MockTransport) AddFile(fileID string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[fileID] = data
}

// SendMessage implements Transport.
func (m *MockTransport) SendMessage(_ context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSend {
		return fmt.Errorf("mock send failure")
	}
	m.Messages = append(m.Messages, SentMessage{ChatID: chatID, Text: text})
	return nil
}

// SendKeyboard implements Transport.
func (m *MockTransport) SendKeyboard(_ context.Context, chatID int64, text string, rows [][]Button) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSend {
		return fmt.Errorf("mock send failure")
	}
	m.Messages = append(m.Messages, SentMessage{ChatID: chatID, Text: text, Rows: rows})
	return nil
}

// SendDocument implements Transport.
func (m *MockTransport) SendDocument(_ context.Context, chatID int64, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSend {
		return fmt.Errorf("mock send failure")
	}
	m.Messages = append(m.Messages, SentMessage{ChatID: chatID, Document: name, Text: string(data)})
	return nil
}

// DownloadFile implements Transport.
func (m *MockTransport) DownloadFile(_ context.Context, fileID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[fileID]
	if !ok {
		return nil, fmt.Errorf("unknown file %q", fileID)
	}
	return data, nil
}

// Sent returns a copy of all captured messages.
func (m *MockTransport) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.Messages))
	copy(out, m.Messages)
	return out
}

// LastMessage returns the most recent captured message.
func (m *MockTransport) LastMessage() (SentMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Messages) == 0 {
		return SentMessage{}, false
	}
	return m.Messages[len(m.Messages)-1], true
}
