// ABOUTME: Outbound text formatting for WhatsApp
// ABOUTME: Converts markdown bold, strips annotation blocks, caps length

package whatsapp

import (
	"regexp"
	"strings"
)

// WhatsApp caps messages around 4096 characters; stay under it
const maxMessageLength = 4000

var (
	annotationRe = regexp.MustCompile(`【.*?】`)
	boldRe       = regexp.MustCompile(`\*\*(.*?)\*\*`)
)

// FormatText adjusts assistant output for WhatsApp: removes bracketed
// annotation blocks the AI sometimes emits, converts markdown bold
// (**word**) to WhatsApp bold (*word*), and truncates overlong messages.
func FormatText(text string) string {
	if text == "" {
		return ""
	}

	text = strings.TrimSpace(annotationRe.ReplaceAllString(text, ""))
	text = boldRe.ReplaceAllString(text, "*$1*")

	if runes := []rune(text); len(runes) > maxMessageLength {
		text = string(runes[:maxMessageLength]) + "..."
	}
	return text
}
