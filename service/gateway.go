package service

import (
	"context"
	"encoding/json"

	"plotbot/pkg/viber"
)

// Gateway is the outbound side of the messaging platform.
type Gateway interface {
	SendText(ctx context.Context, receiver, text string, kb *viber.Keyboard) error
	UserDetails(ctx context.Context, id string) (json.RawMessage, error)
}

// Reply is what the bot sends back for one inbound event.
type Reply struct {
	Text     string
	Keyboard *viber.Keyboard
}
