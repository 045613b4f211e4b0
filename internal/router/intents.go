// ABOUTME: Intent classification for inbound messages
// ABOUTME: Matches configured keyword sets; explicit commands beat free text

package router

import (
	"strings"

	"github.com/solarops/ticketbot/internal/config"
)

// Intent is the classified meaning of an inbound message
type Intent int

// Recognized intents. Anything unmatched is free text.
const (
	IntentNone Intent = iota
	IntentStartTicket
	IntentStartLead
	IntentCancel
	IntentSkip
	IntentConfirm
	IntentEnd
	IntentGreeting
)

// intentTable holds lowercased keyword sets for exact-match classification
type intentTable struct {
	startTicket map[string]struct{}
	startLead   map[string]struct{}
	cancel      map[string]struct{}
	skip        map[string]struct{}
	confirm     map[string]struct{}
	end         map[string]struct{}
	greeting    map[string]struct{}
}

func newIntentTable(cfg config.IntentsConfig) *intentTable {
	return &intentTable{
		startTicket: toSet(cfg.StartTicket),
		startLead:   toSet(cfg.StartLead),
		cancel:      toSet(cfg.Cancel),
		skip:        toSet(cfg.Skip),
		confirm:     toSet(cfg.Confirm),
		end:         toSet(cfg.End),
		greeting:    toSet(cfg.Greeting),
	}
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return set
}

// classify matches the whole trimmed, lowercased message against the
// keyword sets. Commands take precedence over free text, so a form answer
// that happens to equal a command keyword is treated as the command.
func (t *intentTable) classify(body string) Intent {
	msg := strings.ToLower(strings.TrimSpace(body))
	if msg == "" {
		return IntentNone
	}

	switch {
	case contains(t.cancel, msg):
		return IntentCancel
	case contains(t.end, msg):
		return IntentEnd
	case contains(t.startTicket, msg):
		return IntentStartTicket
	case contains(t.startLead, msg):
		return IntentStartLead
	case contains(t.skip, msg):
		return IntentSkip
	case contains(t.confirm, msg):
		return IntentConfirm
	case contains(t.greeting, msg):
		return IntentGreeting
	default:
		return IntentNone
	}
}

func contains(set map[string]struct{}, msg string) bool {
	_, ok := set[msg]
	return ok
}
