package models

import (
	"encoding/json"
	"time"
)

type User struct {
	ID                   int64           `json:"id"`
	PlotNumber           string          `json:"plot_number"`
	FullName             string          `json:"full_name"`
	Phone                *string         `json:"phone"`
	ViberID              *string         `json:"viber_id"`
	NotificationsEnabled bool            `json:"notifications_enabled"`
	ReminderDay          *int            `json:"reminder_day"` // 1..28, nil when not configured
	ViberDetails         json.RawMessage `json:"viber_details"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (u *User) Linked() bool {
	return u.ViberID != nil && *u.ViberID != ""
}
