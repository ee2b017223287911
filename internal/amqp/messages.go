package amqp

import (
	"encoding/json"
	"time"
)

// TransactionMatchedMessage announces that the upstream matcher reconciled
// an expected transaction. It carries identifiers only; the worker reloads
// the affected plan from the database before regenerating its report.
type TransactionMatchedMessage struct {
	ExpectedTransactionID string    `json:"expected_transaction_id"`
	MonthPlanID           string    `json:"month_plan_id"`
	UserID                string    `json:"user_id"`
	Timestamp             time.Time `json:"timestamp"`
}

// NewTransactionMatchedMessage creates a matched notification for one
// expected transaction.
func NewTransactionMatchedMessage(expectedTransactionID, monthPlanID, userID string) *TransactionMatchedMessage {
	return &TransactionMatchedMessage{
		ExpectedTransactionID: expectedTransactionID,
		MonthPlanID:           monthPlanID,
		UserID:                userID,
		Timestamp:             time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionMatchedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionMatchedMessageFromJSON creates a message from JSON bytes
func TransactionMatchedMessageFromJSON(data []byte) (*TransactionMatchedMessage, error) {
	var msg TransactionMatchedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
