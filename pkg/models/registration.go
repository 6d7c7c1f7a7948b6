package models

import "time"

type PendingRegistration struct {
	ViberID   string    `json:"viber_id"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *PendingRegistration) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(p.CreatedAt) > ttl
}
