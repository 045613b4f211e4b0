// Package router implements the conversation state machine.
//
// Each user session moves through a small set of states: INITIAL,
// AWAITING_QUERY, TICKET_CREATION, LEAD_CREATION. Guided form states track
// their progress in a sub-step; free-text states forward to the AI backend
// on the session's thread. Command keywords (cancel, skip, confirm, end)
// are classified before any state-specific handling, so cancel works
// everywhere and a form can always be abandoned.
//
// Processing for one user is strictly serialized by a per-user lock held
// across the whole load-route-save cycle; different users proceed fully in
// parallel. Backend calls run under a circuit breaker with a bounded
// timeout, and every transition is saved before the reply is sent, so a
// crash after the save point costs at most a duplicate reply, never a lost
// transition.
package router
