// ABOUTME: Tests for outbound WhatsApp text formatting
// ABOUTME: Covers bold conversion, annotation stripping and length capping

package whatsapp

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestFormatText_ConvertsMarkdownBold(t *testing.T) {
	assert.Equal(t, "see *this* and *that*", FormatText("see **this** and **that**"))
}

func TestFormatText_StripsAnnotations(t *testing.T) {
	assert.Equal(t, "The answer is 42.", FormatText("The answer is 42.【4:0†source】"))
}

func TestFormatText_PlainTextUnchanged(t *testing.T) {
	assert.Equal(t, "hello there", FormatText("hello there"))
}

func TestFormatText_Empty(t *testing.T) {
	assert.Equal(t, "", FormatText(""))
}

func TestFormatText_TruncatesLongMessages(t *testing.T) {
	long := strings.Repeat("x", 5000)

	got := FormatText(long)

	assert.Equal(t, maxMessageLength+3, len(got))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestFormatText_TruncationIsRuneSafe(t *testing.T) {
	long := strings.Repeat("ñ", 5000)

	got := FormatText(long)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, maxMessageLength+3, utf8.RuneCountInString(got))
}

func TestFormatText_ShortMessageNotTruncated(t *testing.T) {
	msg := strings.Repeat("x", maxMessageLength)

	assert.Equal(t, msg, FormatText(msg))
}
