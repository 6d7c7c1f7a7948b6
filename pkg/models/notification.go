package models

import "time"

const ViaViber = "viber"

// Notification kinds.
const (
	KindReminder = "reminder"
	KindReading  = "reading"
	KindPayment  = "payment"
)

type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Message   string    `json:"message"`
	Via       string    `json:"via"`
	Kind      string    `json:"kind"`
	Success   bool      `json:"success"`
	Error     *string   `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}
