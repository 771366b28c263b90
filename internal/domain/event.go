package domain

import "time"

// SettlementEvent is published after every settled transfer, fulfilled
// or not. It never carries the transfer data or any credential.
type SettlementEvent struct {
	Account     string    `json:"account"`
	Amount      string    `json:"amount"`
	Expiry      string    `json:"expiry"`
	Condition   string    `json:"condition"`
	Destination string    `json:"destination"`
	Fulfilled   bool      `json:"fulfilled"`
	SettledAt   time.Time `json:"settledAt"`
}
