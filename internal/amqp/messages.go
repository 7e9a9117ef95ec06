package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrInvalidMessage = errors.New("invalid expense.recorded message")

// ExpenseRecordedMessage announces a newly stored expense. Consumers load the
// record itself from the ledger by ID.
type ExpenseRecordedMessage struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseRecordedMessage creates a message stamped with the current time
func NewExpenseRecordedMessage(id, userID int64) *ExpenseRecordedMessage {
	return &ExpenseRecordedMessage{
		ID:        id,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseRecordedMessageFromJSON decodes and checks a message body
func ExpenseRecordedMessageFromJSON(data []byte) (*ExpenseRecordedMessage, error) {
	var msg ExpenseRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, ErrInvalidMessage
	}
	return &msg, nil
}
