package viber

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	authHeader      = "X-Viber-Auth-Token"
	SignatureHeader = "X-Viber-Content-Signature"

	minAPIVersion = 3
)

// APIError is a non-zero status returned by the Viber REST API.
type APIError struct {
	Method  string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("viber %s: status %d: %s", e.Method, e.Status, e.Message)
}

type Client struct {
	baseURL    string
	token      string
	senderName string
	http       *http.Client
}

func NewClient(baseURL, token, senderName string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		senderName: senderName,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) SendText(ctx context.Context, receiver, text string, kb *Keyboard) error {
	req := sendMessageRequest{
		Receiver:      receiver,
		MinAPIVersion: minAPIVersion,
		Sender:        Sender{Name: c.senderName},
		Type:          MessageTypeText,
		Text:          text,
		Keyboard:      kb,
	}
	_, err := c.call(ctx, "send_message", req)
	return err
}

// UserDetails returns the raw "user" object, stored as-is as the profile snapshot.
func (c *Client) UserDetails(ctx context.Context, id string) (json.RawMessage, error) {
	resp, err := c.call(ctx, "get_user_details", userDetailsRequest{ID: id})
	if err != nil {
		return nil, err
	}
	return resp.User, nil
}

func (c *Client) SetWebhook(ctx context.Context, url string) error {
	req := setWebhookRequest{
		URL:        url,
		EventTypes: []string{EventDelivered, EventSeen, EventFailed, EventSubscribed, EventUnsubscribed, EventConversationStarted},
		SendName:   true,
	}
	_, err := c.call(ctx, "set_webhook", req)
	return err
}

func (c *Client) call(ctx context.Context, method string, payload any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(authHeader, c.token)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("viber %s: %w", method, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("viber %s: read body: %w", method, err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, &APIError{Method: method, Status: res.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("viber %s: decode: %w", method, err)
	}
	if out.Status != 0 {
		return nil, &APIError{Method: method, Status: out.Status, Message: out.StatusMessage}
	}
	return &out, nil
}

// VerifySignature checks the hex HMAC-SHA256 of the raw body keyed with the auth token.
func VerifySignature(token string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(token))
	mac.Write(body)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
