package amqp

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidMessage = errors.New("invalid receipt upload message")

// ReceiptUploadMessage carries one receipt image into the inbox. With
// ExpenseID set the image is attached to that expense; otherwise it is
// scanned and, when AutoCommit is true, turned into a new expense.
type ReceiptUploadMessage struct {
	ID          uuid.UUID `json:"id"`
	FileName    string    `json:"fileName"`
	ImageBase64 string    `json:"imageBase64"`
	ExpenseID   *int64    `json:"expenseId,omitempty"`
	AutoCommit  bool      `json:"autoCommit"`
	Currency    string    `json:"currency,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewReceiptUploadMessage wraps raw image bytes in a new message.
func NewReceiptUploadMessage(fileName string, data []byte) *ReceiptUploadMessage {
	return &ReceiptUploadMessage{
		ID:          uuid.New(),
		FileName:    fileName,
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		Timestamp:   time.Now(),
	}
}

// Image decodes the carried image bytes.
func (m *ReceiptUploadMessage) Image() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(m.ImageBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: image: %w", ErrInvalidMessage, err)
	}
	return data, nil
}

func (m *ReceiptUploadMessage) Validate() error {
	switch {
	case m.ID == uuid.Nil:
		return fmt.Errorf("%w: missing id", ErrInvalidMessage)
	case m.FileName == "":
		return fmt.Errorf("%w: missing file name", ErrInvalidMessage)
	case m.ImageBase64 == "":
		return fmt.Errorf("%w: missing image", ErrInvalidMessage)
	case m.ExpenseID != nil && *m.ExpenseID <= 0:
		return fmt.Errorf("%w: expense id must be positive", ErrInvalidMessage)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ReceiptUploadMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReceiptUploadMessageFromJSON decodes and validates a message.
func ReceiptUploadMessageFromJSON(data []byte) (*ReceiptUploadMessage, error) {
	var msg ReceiptUploadMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
