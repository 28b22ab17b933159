package models

import "time"

// PaymentEvent is the standardized payload published after a paid
// transition is applied.
type PaymentEvent struct {
	Type        string    `json:"type"`
	OrderID     string    `json:"order_id"`
	UserID      string    `json:"user_id"`
	IntentID    string    `json:"intent_id"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	Timestamp   time.Time `json:"timestamp"`
}
