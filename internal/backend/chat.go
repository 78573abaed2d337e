package backend

import "context"

// ChatSender delivers assistant replies back to the customer's chat
// channel (WhatsApp business API or compatible).
type ChatSender interface {
	SendText(ctx context.Context, phone, text string) error
}

// HTTPChatClient sends messages through the chat provider's HTTP API.
type HTTPChatClient struct {
	api httpAPI
}

func NewChatClient(baseURL, apiKey string) *HTTPChatClient {
	return &HTTPChatClient{api: newHTTPAPI("chat", baseURL, apiKey)}
}

func (c *HTTPChatClient) SendText(ctx context.Context, phone, text string) error {
	payload := map[string]string{
		"to":   phone,
		"text": text,
	}
	return c.api.postJSON(ctx, "/messages", payload, nil)
}
