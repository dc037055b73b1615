package amqp

import (
	"encoding/json"
	"time"
)

// EventType doubles as the routing key.
type EventType string

const (
	TransactionCreated EventType = "transaction.created"
	TransactionUpdated EventType = "transaction.updated"
	TransactionDeleted EventType = "transaction.deleted"
)

// TransactionEvent announces a change to a transaction. Consumers fetch the
// record itself if they need it.
type TransactionEvent struct {
	Type          EventType `json:"type"`
	TransactionID string    `json:"transactionId"`
	UserID        string    `json:"userId"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEvent(t EventType, transactionID, userID string) TransactionEvent {
	return TransactionEvent{
		Type:          t,
		TransactionID: transactionID,
		UserID:        userID,
		Timestamp:     time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (e TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
