package models

import (
	"encoding/json"
	"time"
)

// Subscription is one persisted row of the subscriptions table.
type Subscription struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Platform      Platform        `json:"platform"`
	ProductID     string          `json:"product_id"`
	TransactionID string          `json:"transaction_id"`
	Status        Status          `json:"status"`
	ExpiresAt     *time.Time      `json:"expires_at"`
	RawData       json.RawMessage `json:"raw_data"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// SubscriptionFilter narrows a per-user lookup. Empty fields match anything.
type SubscriptionFilter struct {
	Platform  Platform
	ProductID string
}

// SubscriptionEvent is published after a verification changed a row.
type SubscriptionEvent struct {
	Type          string     `json:"type"`
	UserID        int64      `json:"user_id"`
	Platform      Platform   `json:"platform"`
	ProductID     string     `json:"product_id"`
	TransactionID string     `json:"transaction_id"`
	Status        Status     `json:"status"`
	ExpiresAt     *time.Time `json:"expires_at"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

const EventSubscriptionVerified = "subscription.verified"
