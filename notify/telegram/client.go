package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	extErrors "github.com/pkg/errors"
)

// Client is a minimal Telegram Bot API client. Only the methods needed for
// outbound delivery are implemented.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		token:      token,
		baseURL:    "https://api.telegram.org",
		httpClient: http.DefaultClient,
	}
}

func (c *Client) url(method string) string {
	return c.baseURL + "/bot" + c.token + "/" + method
}

// SendMessage delivers text to the chat identified by chatID
func (c *Client) SendMessage(ctx context.Context, chatID string, text string) error {
	body := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return extErrors.Wrap(err, "Cannot encode sendMessage request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("sendMessage"), bytes.NewReader(b))
	if err != nil {
		return extErrors.Wrap(err, "Cannot construct sendMessage request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return extErrors.Wrap(err, "Cannot reach Telegram API")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return extErrors.Errorf("telegram: unexpected status %s", resp.Status)
	}
	return nil
}
