// ABOUTME: Tests for webhook payload parsing and validation
// ABOUTME: Covers text and interactive messages, status events and malformed input

package webhook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textPayload(body string) []byte {
	return []byte(`{
		"entry": [{
			"changes": [{
				"value": {
					"contacts": [{"wa_id": "14155550100", "profile": {"name": "Maria"}}],
					"messages": [{
						"id": "wamid.abc123",
						"from": "14155550100",
						"type": "text",
						"text": {"body": "` + body + `"}
					}]
				}
			}]
		}]
	}`)
}

func TestParseMessage_TextMessage(t *testing.T) {
	msg, err := ParseMessage(textPayload("hello there"))
	require.NoError(t, err)

	assert.Equal(t, "wamid.abc123", msg.ID)
	assert.Equal(t, "14155550100", msg.UserID)
	assert.Equal(t, "Maria", msg.Name)
	assert.Equal(t, "text", msg.Type)
	assert.Equal(t, "hello there", msg.Body)
}

func TestParseMessage_InteractiveListReply(t *testing.T) {
	payload := []byte(`{
		"entry": [{"changes": [{"value": {
			"contacts": [{"wa_id": "14155550100", "profile": {"name": "Maria"}}],
			"messages": [{
				"id": "wamid.x",
				"from": "14155550100",
				"type": "interactive",
				"interactive": {"type": "list_reply", "list_reply": {"title": "New Ticket"}}
			}]
		}}]}]
	}`)

	msg, err := ParseMessage(payload)
	require.NoError(t, err)

	// Menu selections route like typed text
	assert.Equal(t, "text", msg.Type)
	assert.Equal(t, "New Ticket", msg.Body)
}

func TestParseMessage_InteractiveButtonReply(t *testing.T) {
	payload := []byte(`{
		"entry": [{"changes": [{"value": {
			"messages": [{
				"id": "wamid.x",
				"from": "14155550100",
				"type": "interactive",
				"interactive": {"type": "button_reply", "button_reply": {"title": "Yes"}}
			}]
		}}]}]
	}`)

	msg, err := ParseMessage(payload)
	require.NoError(t, err)
	assert.Equal(t, "Yes", msg.Body)
}

func TestParseMessage_UnsupportedTypePassedThrough(t *testing.T) {
	payload := []byte(`{
		"entry": [{"changes": [{"value": {
			"messages": [{"id": "wamid.x", "from": "14155550100", "type": "image"}]
		}}]}]
	}`)

	msg, err := ParseMessage(payload)
	require.NoError(t, err)
	assert.Equal(t, "image", msg.Type)
	assert.Empty(t, msg.Body)
}

func TestParseMessage_StatusOnly(t *testing.T) {
	payload := []byte(`{
		"entry": [{"changes": [{"value": {
			"statuses": [{"id": "wamid.x", "status": "delivered"}]
		}}]}]
	}`)

	_, err := ParseMessage(payload)
	assert.ErrorIs(t, err, ErrStatusOnly)
}

func TestParseMessage_EmptyPayload(t *testing.T) {
	_, err := ParseMessage([]byte(`{"entry": []}`))
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestParseMessage_InvalidJSON(t *testing.T) {
	_, err := ParseMessage([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestParseMessage_NonNumericSender(t *testing.T) {
	payload := []byte(`{
		"entry": [{"changes": [{"value": {
			"messages": [{"id": "wamid.x", "from": "not-a-number", "type": "text", "text": {"body": "hi"}}]
		}}]}]
	}`)

	_, err := ParseMessage(payload)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestParseMessage_MissingMessageID(t *testing.T) {
	payload := []byte(`{
		"entry": [{"changes": [{"value": {
			"messages": [{"from": "14155550100", "type": "text", "text": {"body": "hi"}}]
		}}]}]
	}`)

	_, err := ParseMessage(payload)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestParseMessage_FallsBackToContactWaID(t *testing.T) {
	payload := []byte(`{
		"entry": [{"changes": [{"value": {
			"contacts": [{"wa_id": "14155550100", "profile": {"name": "Maria"}}],
			"messages": [{"id": "wamid.x", "type": "text", "text": {"body": "hi"}}]
		}}]}]
	}`)

	msg, err := ParseMessage(payload)
	require.NoError(t, err)
	assert.Equal(t, "14155550100", msg.UserID)
}

func TestParseMessage_LongBodyTruncated(t *testing.T) {
	long := strings.Repeat("x", 1500)

	msg, err := ParseMessage(textPayload(long))
	require.NoError(t, err)
	assert.Len(t, msg.Body, maxBodyRunes)
}

func TestParseMessage_BodyTrimmed(t *testing.T) {
	msg, err := ParseMessage(textPayload("  hello  "))
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Body)
}
