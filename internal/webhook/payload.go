// ABOUTME: Parsing and validation of inbound webhook payloads
// ABOUTME: Extracts messages from the nested entry/changes/value envelope

package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Parse errors
var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrNoMessages       = errors.New("no messages in payload")
	ErrStatusOnly       = errors.New("status update only")
)

const maxBodyRunes = 1000

// Message is one validated inbound message extracted from a webhook event
type Message struct {
	ID     string
	UserID string
	Name   string
	Type   string
	Body   string
}

// envelope mirrors the nested webhook structure. Only the fields the
// router needs are decoded; everything else is ignored.
type envelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					ID   string `json:"id"`
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
					Interactive struct {
						Type      string `json:"type"`
						ListReply struct {
							Title string `json:"title"`
						} `json:"list_reply"`
						ButtonReply struct {
							Title string `json:"title"`
						} `json:"button_reply"`
					} `json:"interactive"`
				} `json:"messages"`
				Statuses []json.RawMessage `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseMessage extracts the first message from a webhook payload.
// Returns ErrStatusOnly for delivery-status events, which are valid
// payloads that carry nothing to route.
func ParseMessage(body []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	sawStatus := false
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			value := change.Value

			if len(value.Messages) == 0 {
				if len(value.Statuses) > 0 {
					sawStatus = true
				}
				continue
			}

			raw := value.Messages[0]
			msg := &Message{
				ID:     raw.ID,
				UserID: raw.From,
				Type:   raw.Type,
			}

			if len(value.Contacts) > 0 {
				if msg.UserID == "" {
					msg.UserID = value.Contacts[0].WaID
				}
				msg.Name = value.Contacts[0].Profile.Name
			}

			switch raw.Type {
			case "text":
				msg.Body = raw.Text.Body
			case "interactive":
				// Menu selections route like typed text
				msg.Type = "text"
				switch raw.Interactive.Type {
				case "list_reply":
					msg.Body = raw.Interactive.ListReply.Title
				case "button_reply":
					msg.Body = raw.Interactive.ButtonReply.Title
				default:
					msg.Type = raw.Type
				}
			}

			if err := validate(msg); err != nil {
				return nil, err
			}
			return msg, nil
		}
	}

	if sawStatus {
		return nil, ErrStatusOnly
	}
	return nil, ErrNoMessages
}

// validate enforces sender and body constraints before routing
func validate(msg *Message) error {
	if msg.UserID == "" {
		return fmt.Errorf("%w: missing sender id", ErrMalformedPayload)
	}
	if !isNumeric(msg.UserID) {
		return fmt.Errorf("%w: sender id is not a phone number", ErrMalformedPayload)
	}
	if msg.ID == "" {
		return fmt.Errorf("%w: missing message id", ErrMalformedPayload)
	}

	msg.Body = strings.TrimSpace(msg.Body)
	if runes := []rune(msg.Body); len(runes) > maxBodyRunes {
		msg.Body = string(runes[:maxBodyRunes])
	}
	return nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
