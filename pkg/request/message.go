package request

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
)

// Message represents a message response.
type Message struct {
	Message string `json:"Message"`
}

// NewMessage creates a new Message.
func NewMessage(message string, args ...any) *Message {
	msg := message
	if len(args) > 0 {
		msg = fmt.Sprintf(message, args...)
	}
	return &Message{
		Message: msg,
	}
}

// MessageError is a message response that also carries the error that caused it.
type MessageError struct {
	Message string `json:"Message"`
	Error   string `json:"Error"`
}

// NewMessageError creates a new MessageError.
func NewMessageError(message string, err error) *MessageError {
	return &MessageError{
		Message: message,
		Error:   err.Error(),
	}
}

// Encode writes v as the JSON body of the response with the given status code.
func Encode(l *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		l.Error("Error encoding response", slog.String(logging.KeyError, err.Error()))
	}
}
