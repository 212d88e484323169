package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// gatewayHTTPClient is shared by the HTTP channels.
var gatewayHTTPClient = &http.Client{Timeout: 15 * time.Second}

// ChatChannel delivers via the WhatsApp chat gateway's REST endpoint.
type ChatChannel struct {
	url   string
	token string
}

// NewChatChannel creates the chat gateway channel.
func NewChatChannel(url, token string) *ChatChannel {
	return &ChatChannel{url: url, token: token}
}

func (c *ChatChannel) Name() string {
	return "chat"
}

func (c *ChatChannel) Send(ctx context.Context, recipient, message string) error {
	return postGateway(ctx, c.Name(), c.url, c.token, recipient, message)
}

// SMSChannel delivers via the SMS gateway's REST endpoint. It serves as the
// secondary transport when the chat gateway degrades.
type SMSChannel struct {
	url   string
	token string
}

// NewSMSChannel creates the SMS gateway channel.
func NewSMSChannel(url, token string) *SMSChannel {
	return &SMSChannel{url: url, token: token}
}

func (c *SMSChannel) Name() string {
	return "sms"
}

func (c *SMSChannel) Send(ctx context.Context, recipient, message string) error {
	return postGateway(ctx, c.Name(), c.url, c.token, recipient, message)
}

func postGateway(ctx context.Context, channel, url, token, recipient, message string) error {
	payload, err := json.Marshal(map[string]string{
		"to":      recipient,
		"message": message,
	})
	if err != nil {
		return &DeliveryError{Channel: channel, Err: fmt.Errorf("failed to marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &DeliveryError{Channel: channel, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := gatewayHTTPClient.Do(req)
	if err != nil {
		return &DeliveryError{Channel: channel, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	// 4xx means the request itself is wrong and retrying the same payload
	// cannot succeed; 5xx and 429 are worth retrying.
	retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
	return &DeliveryError{
		Channel:   channel,
		Retryable: retryable,
		Err:       fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(body)),
	}
}

var (
	_ Channel = (*ChatChannel)(nil)
	_ Channel = (*SMSChannel)(nil)
)
