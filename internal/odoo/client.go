// ABOUTME: Ticket/lead backend adapter posting to Odoo webhook endpoints
// ABOUTME: Translates collected form data into the Odoo webhook payloads

package odoo

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

// Client submits tickets and leads to Odoo-side webhook URLs.
type Client struct {
	httpClient *http.Client
	ticketsURL string
	leadsURL   string
	teamID     int
	logger     *slog.Logger
}

// NewClient creates a backend client for the given webhook URLs.
// Either URL may be empty; submitting to an unconfigured endpoint fails.
func NewClient(ticketsURL, leadsURL string, teamID int) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		ticketsURL: ticketsURL,
		leadsURL:   leadsURL,
		teamID:     teamID,
		logger:     slog.Default().With("component", "odoo"),
	}
}

// CreateTicket submits the collected ticket form and returns the created
// ticket's identifier.
func (c *Client) CreateTicket(ctx context.Context, form map[string]string) (string, error) {
	if c.ticketsURL == "" {
		return "", fmt.Errorf("ticket webhook URL not configured")
	}
	if form["description"] == "" {
		return "", fmt.Errorf("description is required")
	}

	payload := map[string]any{
		"team_id":       c.teamID,
		"name":          form["title"],
		"description":   form["description"],
		"partner_email": form["email"],
	}

	return c.post(ctx, c.ticketsURL, payload)
}

// CreateLead submits the collected lead form and returns the created
// lead's identifier.
func (c *Client) CreateLead(ctx context.Context, form map[string]string) (string, error) {
	if c.leadsURL == "" {
		return "", fmt.Errorf("lead webhook URL not configured")
	}
	if form["email"] == "" {
		return "", fmt.Errorf("email is required")
	}

	payload := map[string]any{
		"contact_name": form["name"],
		"partner_name": form["company"],
		"email_from":   form["email"],
	}

	return c.post(ctx, c.leadsURL, payload)
}

// webhookResponse is the envelope Odoo's automation returns
type webhookResponse struct {
	ID json.Number `json:"id"`
}

func (c *Client) post(ctx context.Context, url string, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("posting to backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("backend returned %d: %s", resp.StatusCode, respBody)
	}

	// The webhook may answer with an ID or an empty body; both count as success
	var parsed webhookResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			c.logger.Debug("unparseable backend response", "error", err)
		}
	}

	c.logger.Info("submission accepted", "url", url, "id", parsed.ID.String())
	return parsed.ID.String(), nil
}
