// ABOUTME: Default values for optional ticketbot configuration
// ABOUTME: Keyword sets, form field tables and reply texts fall back to these

package config

import "time"

// Defaults applied when the corresponding section is absent from the file.
const (
	DefaultSessionTTL       = 10 * time.Minute
	DefaultBackendTimeout   = 15 * time.Second
	DefaultHistoryLimit     = 50
	DefaultAssistantHistory = 10
	DefaultModel            = "gpt-4-turbo"
	DefaultTokenTTL         = 12 * time.Hour
	DefaultOdooTeamID       = 1
)

func defaultIntents() IntentsConfig {
	return IntentsConfig{
		StartTicket: []string{"new ticket", "start ticket", "ticket", "report a problem"},
		StartLead:   []string{"new lead", "start lead", "sales", "contact sales"},
		Cancel:      []string{"cancel", "cancelar"},
		Skip:        []string{"skip", "omitir", "no", "n"},
		Confirm:     []string{"yes", "y", "si", "sí", "confirm", "ok"},
		End:         []string{"end", "bye", "exit", "finalizar", "terminar", "adios", "salir"},
		Greeting:    []string{"hello", "hi", "hola"},
	}
}

func defaultTicketForm() []FieldConfig {
	return []FieldConfig{
		{Name: "title", Prompt: "Please provide a short title describing the problem:"},
		{Name: "description", Prompt: "Thanks. Please describe the problem in detail."},
		{Name: "email", Prompt: "Could you share your email address so our team can follow up? Reply 'skip' if you prefer not to.", Optional: true},
	}
}

func defaultLeadForm() []FieldConfig {
	return []FieldConfig{
		{Name: "name", Prompt: "Great! What is your full name?"},
		{Name: "company", Prompt: "Which company are you contacting us on behalf of? Reply 'skip' if not applicable.", Optional: true},
		{Name: "email", Prompt: "What email address should our sales team use to reach you?"},
	}
}

func defaultReplies() RepliesConfig {
	return RepliesConfig{
		Welcome:       "Hello! Welcome to our support line. How can I help you today?",
		Apology:       "Sorry, I'm having technical difficulties right now. Please try again in a moment.",
		Unsupported:   "I received your message, but I can't process that kind of content yet. Could you describe your request in a text message?",
		Farewell:      "Thanks for contacting us. Your session has been closed. Write again any time you need help!",
		Cancelled:     "Okay, I've cancelled that. What else can I help you with?",
		ConfirmPrompt: "Please confirm the details above. Reply 'yes' to submit or 'cancel' to discard.",
		SubmitOK:      "Done! Our team will contact you soon. Is there anything else I can help you with?",
		SubmitFailed:  "Sorry, there was a problem submitting your request. Reply 'yes' to retry or 'cancel' to discard.",
	}
}

// applyDefaults fills in every optional field that was left empty
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = DefaultSessionTTL
	}
	if c.Session.BackendTimeout == 0 {
		c.Session.BackendTimeout = DefaultBackendTimeout
	}
	if c.Session.HistoryLimit == 0 {
		c.Session.HistoryLimit = DefaultHistoryLimit
	}
	if c.Assistant.HistoryLimit == 0 {
		c.Assistant.HistoryLimit = DefaultAssistantHistory
	}
	if c.Assistant.Model == "" {
		c.Assistant.Model = DefaultModel
	}
	if c.Odoo.TeamID == 0 {
		c.Odoo.TeamID = DefaultOdooTeamID
	}
	if c.Dashboard.TokenTTL == 0 {
		c.Dashboard.TokenTTL = DefaultTokenTTL
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	def := defaultIntents()
	if len(c.Intents.StartTicket) == 0 {
		c.Intents.StartTicket = def.StartTicket
	}
	if len(c.Intents.StartLead) == 0 {
		c.Intents.StartLead = def.StartLead
	}
	if len(c.Intents.Cancel) == 0 {
		c.Intents.Cancel = def.Cancel
	}
	if len(c.Intents.Skip) == 0 {
		c.Intents.Skip = def.Skip
	}
	if len(c.Intents.Confirm) == 0 {
		c.Intents.Confirm = def.Confirm
	}
	if len(c.Intents.End) == 0 {
		c.Intents.End = def.End
	}
	if len(c.Intents.Greeting) == 0 {
		c.Intents.Greeting = def.Greeting
	}

	if len(c.Forms.Ticket) == 0 {
		c.Forms.Ticket = defaultTicketForm()
	}
	if len(c.Forms.Lead) == 0 {
		c.Forms.Lead = defaultLeadForm()
	}

	defReplies := defaultReplies()
	if c.Replies.Welcome == "" {
		c.Replies.Welcome = defReplies.Welcome
	}
	if c.Replies.Apology == "" {
		c.Replies.Apology = defReplies.Apology
	}
	if c.Replies.Unsupported == "" {
		c.Replies.Unsupported = defReplies.Unsupported
	}
	if c.Replies.Farewell == "" {
		c.Replies.Farewell = defReplies.Farewell
	}
	if c.Replies.Cancelled == "" {
		c.Replies.Cancelled = defReplies.Cancelled
	}
	if c.Replies.ConfirmPrompt == "" {
		c.Replies.ConfirmPrompt = defReplies.ConfirmPrompt
	}
	if c.Replies.SubmitOK == "" {
		c.Replies.SubmitOK = defReplies.SubmitOK
	}
	if c.Replies.SubmitFailed == "" {
		c.Replies.SubmitFailed = defReplies.SubmitFailed
	}
}
