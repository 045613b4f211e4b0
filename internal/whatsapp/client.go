// ABOUTME: Messaging client for the WhatsApp Business Cloud API
// ABOUTME: Sends outbound text messages via the Graph API messages endpoint

package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultBaseURL = "https://graph.facebook.com"

// Client sends messages through the WhatsApp Business Cloud API.
// Retry policy belongs to the transport layer upstream of us; a failed
// send is reported as an error and feeds the queue tracker.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	accessToken   string
	version       string
	phoneNumberID string
	logger        *slog.Logger
}

// NewClient creates a messaging client. baseURL may be empty to use the
// real Graph API endpoint; tests point it at an httptest server.
func NewClient(accessToken, version, phoneNumberID, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		baseURL:       baseURL,
		accessToken:   accessToken,
		version:       version,
		phoneNumberID: phoneNumberID,
		logger:        slog.Default().With("component", "whatsapp"),
	}
}

// outboundText is the Graph API payload for a plain text message
type outboundText struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

// SendMessage sends a text message to the given user. The content is
// formatted for WhatsApp before sending.
func (c *Client) SendMessage(ctx context.Context, userID, content string) error {
	if userID == "" || content == "" {
		return fmt.Errorf("recipient and content are required")
	}

	payload := outboundText{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               userID,
		Type:             "text",
		Text:             textBody{Body: FormatText(content)},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.version, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("message API returned %d: %s", resp.StatusCode, respBody)
	}

	c.logger.Debug("message sent", "to", userID, "status", resp.StatusCode)
	return nil
}
