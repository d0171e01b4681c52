package models

import "time"

// TemperatureReading is a single temperature observation for a city.
// FetchedAt records when the value was obtained upstream; cache freshness
// is judged against it.
type TemperatureReading struct {
	City        string    `json:"city"`
	Temperature float64   `json:"temperature"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// Operation is the direction of a balance adjustment.
type Operation string

const (
	OperationIncrease Operation = "increase"
	OperationDecrease Operation = "decrease"
)

// Valid reports whether op is one of the known operations.
func (op Operation) Valid() bool {
	return op == OperationIncrease || op == OperationDecrease
}

// User is a stored user record. Balance is a signed amount.
type User struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Balance  float64 `json:"balance"`
}

// BalanceUpdateRequest is a single balance-adjustment request. Constructed
// per request at the HTTP boundary, consumed once, never persisted.
type BalanceUpdateRequest struct {
	UserID    int64
	Operation Operation
	City      string
}

// BalanceUpdateResult reports the outcome of an applied balance update.
type BalanceUpdateResult struct {
	UserID      int64     `json:"userId"`
	Operation   Operation `json:"operation"`
	City        string    `json:"city"`
	Temperature float64   `json:"temperature"`
	Delta       float64   `json:"delta"`
	NewBalance  float64   `json:"newBalance"`
}
