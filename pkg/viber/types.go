package viber

import "encoding/json"

// Webhook event names.
const (
	EventMessage             = "message"
	EventSubscribed          = "subscribed"
	EventUnsubscribed        = "unsubscribed"
	EventConversationStarted = "conversation_started"
	EventDelivered           = "delivered"
	EventSeen                = "seen"
	EventFailed              = "failed"
	EventWebhook             = "webhook"
)

const MessageTypeText = "text"

type Sender struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

type Message struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Event is the inbound webhook body. Which fields are set depends on Event:
// message carries Sender+Message, subscribed and conversation_started carry
// User (or Sender), delivered/seen/unsubscribed carry UserID.
type Event struct {
	Event        string      `json:"event"`
	Timestamp    int64       `json:"timestamp"`
	MessageToken json.Number `json:"message_token,omitempty"`
	Sender       *Sender     `json:"sender,omitempty"`
	User         *Sender     `json:"user,omitempty"`
	UserID       string      `json:"user_id,omitempty"`
	Message      *Message    `json:"message,omitempty"`
}

// Identity returns the messaging id the event refers to.
func (e *Event) Identity() string {
	switch {
	case e.Sender != nil && e.Sender.ID != "":
		return e.Sender.ID
	case e.User != nil && e.User.ID != "":
		return e.User.ID
	default:
		return e.UserID
	}
}

type Button struct {
	Columns    int    `json:"Columns,omitempty"`
	Rows       int    `json:"Rows,omitempty"`
	ActionType string `json:"ActionType"`
	ActionBody string `json:"ActionBody"`
	Text       string `json:"Text"`
	BgColor    string `json:"BgColor,omitempty"`
}

type Keyboard struct {
	Type          string   `json:"Type"`
	DefaultHeight bool     `json:"DefaultHeight"`
	Buttons       []Button `json:"Buttons"`
}

// NewReplyKeyboard lays labels out two per row.
func NewReplyKeyboard(labels ...string) *Keyboard {
	kb := &Keyboard{Type: "keyboard"}
	for _, l := range labels {
		kb.Buttons = append(kb.Buttons, Button{
			Columns:    3,
			Rows:       1,
			ActionType: "reply",
			ActionBody: l,
			Text:       l,
			BgColor:    "#e6f2ff",
		})
	}
	return kb
}

type sendMessageRequest struct {
	Receiver      string    `json:"receiver"`
	MinAPIVersion int       `json:"min_api_version,omitempty"`
	Sender        Sender    `json:"sender"`
	Type          string    `json:"type"`
	Text          string    `json:"text"`
	Keyboard      *Keyboard `json:"keyboard,omitempty"`
}

// WelcomeMessage is the body of a conversation_started callback response.
// Viber shows it to users who have not subscribed yet, when send_message
// would be rejected.
type WelcomeMessage struct {
	Sender   Sender    `json:"sender"`
	Type     string    `json:"type"`
	Text     string    `json:"text"`
	Keyboard *Keyboard `json:"keyboard,omitempty"`
}

func NewWelcome(senderName, text string, kb *Keyboard) *WelcomeMessage {
	return &WelcomeMessage{
		Sender:   Sender{Name: senderName},
		Type:     MessageTypeText,
		Text:     text,
		Keyboard: kb,
	}
}

type setWebhookRequest struct {
	URL        string   `json:"url"`
	EventTypes []string `json:"event_types"`
	SendName   bool     `json:"send_name"`
}

type userDetailsRequest struct {
	ID string `json:"id"`
}

type apiResponse struct {
	Status        int             `json:"status"`
	StatusMessage string          `json:"status_message"`
	User          json.RawMessage `json:"user,omitempty"`
}
