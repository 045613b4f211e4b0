// ABOUTME: Guided form definitions for ticket and lead creation
// ABOUTME: Fixed field order, optional-field skipping, confirmation rendering

package router

import (
	"fmt"
	"strings"

	"github.com/solarops/ticketbot/internal/config"
)

// stepConfirm is the sub-step reached once every field is collected
const stepConfirm = "confirmation"

// field is one entry in a form's fixed field order
type field struct {
	name     string
	prompt   string
	optional bool
}

// form is an ordered field table plus labels used in replies
type form struct {
	label  string // "ticket" or "lead", used in reply texts
	fields []field
}

func newForm(label string, cfg []config.FieldConfig) *form {
	f := &form{label: label}
	for _, fc := range cfg {
		f.fields = append(f.fields, field{name: fc.Name, prompt: fc.Prompt, optional: fc.Optional})
	}
	return f
}

// first returns the opening field of the form
func (f *form) first() field {
	return f.fields[0]
}

// lookup finds a field by name; ok is false for unknown names (including
// the confirmation step).
func (f *form) lookup(name string) (field, bool) {
	for _, fl := range f.fields {
		if fl.name == name {
			return fl, true
		}
	}
	return field{}, false
}

// next returns the field following name, or the confirmation step name
// when name was the last field.
func (f *form) next(name string) (field, string) {
	for i, fl := range f.fields {
		if fl.name == name && i+1 < len(f.fields) {
			return f.fields[i+1], f.fields[i+1].name
		}
	}
	return field{}, stepConfirm
}

// summary renders the collected values for the confirmation prompt
func (f *form) summary(data map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Please confirm the %s details:\n", f.label)
	for _, fl := range f.fields {
		val := data[fl.name]
		if val == "" {
			val = "(not provided)"
		}
		fmt.Fprintf(&b, "\n*%s:* %s", titleCase(fl.name), val)
	}
	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
