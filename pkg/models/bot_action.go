package models

import "time"

const (
	ActionMessage             = "message"
	ActionCommand             = "command"
	ActionSubscribed          = "subscribed"
	ActionUnsubscribed        = "unsubscribed"
	ActionConversationStarted = "conversation_started"
	ActionPhoneSubmitted      = "phone_submitted"
	ActionRegistered          = "registered"
	ActionRegistrationCancel  = "registration_cancelled"
	ActionUnlinked            = "unlinked"
)

type BotAction struct {
	ID         int64     `json:"id"`
	ViberID    string    `json:"viber_id"`
	ActionType string    `json:"action_type"`
	ActionData string    `json:"action_data"`
	CreatedAt  time.Time `json:"created_at"`
}
