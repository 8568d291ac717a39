// Package chat abstracts the chat delivery layer: inbound events from end
// users and the outbound capability to send text, keyboards and documents.
// The concrete wire protocol lives outside this repository.
package chat

import "context"

// Button is one pressable choice in an inline keyboard. Data is the opaque
// callback payload delivered back when the button is clicked.
type Button struct {
	Label string
	Data  string
}

// Event is an inbound chat event. Exactly one of the concrete event types
// implements it per delivery.
type Event interface {
	Chat() int64
	User() int64
}

// TextEvent is a plain text message, including /commands.
type TextEvent struct {
	Text   string
	ChatID int64
	UserID int64
}

// Chat returns the chat the event belongs to.
func (e TextEvent) Chat() int64 { return e.ChatID }

// User returns the sender.
func (e TextEvent) User() int64 { return e.UserID }

// FileEvent is a message carrying an attachment. Any attachment is treated
// as a receipt candidate; validation happens by attempting to parse it.
type FileEvent struct {
	FileID   string
	FileName string
	ChatID   int64
	UserID   int64
}

// Chat returns the chat the event belongs to.
func (e FileEvent) Chat() int64 { return e.ChatID }

// User returns the sender.
func (e FileEvent) User() int64 { return e.UserID }

// CallbackEvent is a button click. Data is the payload supplied when the
// keyboard was sent.
type CallbackEvent struct {
	Data   string
	ChatID int64
	UserID int64
}

// Chat returns the chat the event belongs to.
func (e CallbackEvent) Chat() int64 { return e.ChatID }

// User returns the sender.
func (e CallbackEvent) User() int64 { return e.UserID }

// Transport is the outbound side of the chat layer.
type Transport interface {
	// SendMessage delivers a plain text message to the chat.
	SendMessage(ctx context.Context, chatID int64, text string) error
	// SendKeyboard delivers a text message with an inline keyboard of
	// button rows.
	SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]Button) error
	// SendDocument delivers a named file to the chat.
	SendDocument(ctx context.Context, chatID int64, name string, data []byte) error
	// DownloadFile fetches the content of an uploaded file by its id.
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Handler consumes inbound events. Implementations are invoked serially
// per chat id.
type Handler interface {
	HandleText(ctx context.Context, event TextEvent) error
	HandleFile(ctx context.Context, event FileEvent) error
	HandleCallback(ctx context.Context, event CallbackEvent) error
}
