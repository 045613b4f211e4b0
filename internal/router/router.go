// ABOUTME: Message router and session state machine, the core of ticketbot
// ABOUTME: Turns validated inbound messages into state transitions and outbound replies

package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/solarops/ticketbot/internal/breaker"
	"github.com/solarops/ticketbot/internal/config"
	"github.com/solarops/ticketbot/internal/queue"
	"github.com/solarops/ticketbot/internal/store"
)

// ErrBackendUnavailable marks AI or ticket backend failures and timeouts.
// The router converts it into a state-preserving reply, never a crash.
var ErrBackendUnavailable = errors.New("backend unavailable")

// Messenger sends outbound messages to users. Retries are the transport
// adapter's concern; the router only records success or failure.
type Messenger interface {
	SendMessage(ctx context.Context, userID, content string) error
}

// Assistant is the AI backend: opaque per-user threads and free-text replies.
type Assistant interface {
	GetOrCreateThread(ctx context.Context, userID string) (string, error)
	Ask(ctx context.Context, threadRef, content string) (string, error)
}

// TicketBackend creates tickets and leads from collected form data.
type TicketBackend interface {
	CreateTicket(ctx context.Context, form map[string]string) (string, error)
	CreateLead(ctx context.Context, form map[string]string) (string, error)
}

// Recorder receives successful form-submission events for daily stats.
type Recorder interface {
	RecordTicket(at time.Time)
	RecordLead(at time.Time)
}

// Inbound is one validated inbound message
type Inbound struct {
	UserID string
	Name   string // sender profile name, may be empty
	Type   string // "text"; anything else is unsupported content
	Body   string
}

// Options configures a Router
type Options struct {
	Store     store.Store
	Messenger Messenger
	Assistant Assistant
	Backend   TicketBackend
	Tracker   queue.Tracker
	Recorder  Recorder // optional

	TTL            time.Duration
	BackendTimeout time.Duration
	HistoryLimit   int

	Intents config.IntentsConfig
	Forms   config.FormsConfig
	Replies config.RepliesConfig

	AIBreaker      *breaker.Breaker // optional
	BackendBreaker *breaker.Breaker // optional

	Now func() time.Time // test hook, defaults to time.Now
}

// Router classifies inbound messages against per-user session state and
// produces the next state plus an outbound reply. Operations for different
// users run fully in parallel; operations for the same user are serialized
// by a per-user lock held across the whole get -> route -> save cycle.
type Router struct {
	store     store.Store
	messenger Messenger
	ai        Assistant
	backend   TicketBackend
	tracker   queue.Tracker
	recorder  Recorder

	ttl            time.Duration
	backendTimeout time.Duration
	historyLimit   int

	intents    *intentTable
	ticketForm *form
	leadForm   *form
	replies    config.RepliesConfig

	aiBreaker      *breaker.Breaker
	backendBreaker *breaker.Breaker

	locks  *userLocks
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Router from the given options
func New(opts Options) (*Router, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Messenger == nil {
		return nil, errors.New("messenger is required")
	}
	if opts.Assistant == nil {
		return nil, errors.New("assistant is required")
	}
	if opts.Backend == nil {
		return nil, errors.New("ticket backend is required")
	}
	if opts.Tracker == nil {
		return nil, errors.New("queue tracker is required")
	}
	if len(opts.Forms.Ticket) == 0 || len(opts.Forms.Lead) == 0 {
		return nil, errors.New("ticket and lead form tables are required")
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = config.DefaultSessionTTL
	}
	timeout := opts.BackendTimeout
	if timeout <= 0 {
		timeout = config.DefaultBackendTimeout
	}
	historyLimit := opts.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = config.DefaultHistoryLimit
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Router{
		store:          opts.Store,
		messenger:      opts.Messenger,
		ai:             opts.Assistant,
		backend:        opts.Backend,
		tracker:        opts.Tracker,
		recorder:       opts.Recorder,
		ttl:            ttl,
		backendTimeout: timeout,
		historyLimit:   historyLimit,
		intents:        newIntentTable(opts.Intents),
		ticketForm:     newForm("ticket", opts.Forms.Ticket),
		leadForm:       newForm("lead", opts.Forms.Lead),
		replies:        opts.Replies,
		aiBreaker:      opts.AIBreaker,
		backendBreaker: opts.BackendBreaker,
		locks:          newUserLocks(),
		logger:         slog.Default().With("component", "router"),
		now:            now,
	}, nil
}

// Process routes one inbound message end to end, recording the work item's
// lifecycle on the inbound queue. The caller has already enqueued it.
func (r *Router) Process(ctx context.Context, in Inbound) error {
	r.tracker.StartProcessing(ctx, queue.QueueInboundMessages)

	if err := r.route(ctx, in); err != nil {
		r.tracker.Fail(ctx, queue.QueueInboundMessages)
		return err
	}

	r.tracker.Complete(ctx, queue.QueueInboundMessages)
	return nil
}

// route runs the state machine for one message under the user's lock
func (r *Router) route(ctx context.Context, in Inbound) error {
	if in.UserID == "" {
		return errors.New("user id is required")
	}

	r.locks.acquire(in.UserID)
	defer r.locks.release(in.UserID)

	now := r.now()

	sess, err := r.store.GetOrCreate(ctx, in.UserID)
	if err != nil {
		// Storage failure: the event is not acknowledged as processed;
		// redelivery is safe because creation and save are idempotent.
		return fmt.Errorf("loading session: %w", err)
	}
	if in.Name != "" {
		sess.Name = in.Name
	}

	// An expired session never resumes a partially filled form
	if sess.State != store.StateInitial && sess.Expired(now, r.ttl) {
		r.logger.Info("session expired, resetting",
			"user_id", in.UserID,
			"state", sess.State,
			"idle", now.Sub(sess.LastActivityAt))
		sess.State = store.StateInitial
		sess.ResetForm()
	}

	// A closed session reopens on any message
	if sess.State == store.StateClosed {
		sess.State = store.StateInitial
		sess.ResetForm()
	}

	reply, endSession := r.dispatch(ctx, sess, in, now)

	sess.Touch(now)
	sess.AppendHistory("assistant", reply, r.now(), r.historyLimit)

	if endSession {
		// Farewell goes out before the record disappears
		r.send(ctx, sess.UserID, reply)
		if err := r.store.Delete(ctx, sess.UserID); err != nil {
			return fmt.Errorf("ending session: %w", err)
		}
		r.logger.Info("session ended by user", "user_id", sess.UserID)
		return nil
	}

	if err := r.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	r.send(ctx, sess.UserID, reply)
	return nil
}

// dispatch picks the transition for one message and mutates the session.
// Returns the outbound reply and whether the session should be deleted.
func (r *Router) dispatch(ctx context.Context, sess *store.Session, in Inbound, now time.Time) (string, bool) {
	if in.Type != "text" || in.Body == "" {
		// Unsupported content: generic reply, state unchanged
		label := strings.ToUpper(in.Type)
		if label == "" {
			label = "UNKNOWN"
		}
		sess.AppendHistory("user", "["+label+"]", now, r.historyLimit)
		return r.replies.Unsupported, false
	}

	sess.AppendHistory("user", in.Body, now, r.historyLimit)

	intent := r.intents.classify(in.Body)
	switch {
	case intent == IntentEnd:
		return r.replies.Farewell, true

	case intent == IntentCancel:
		return r.cancel(sess), false

	case intent == IntentStartTicket:
		return r.beginForm(sess, store.StateTicketCreation), false

	case intent == IntentStartLead:
		return r.beginForm(sess, store.StateLeadCreation), false

	case sess.State.InForm():
		return r.formInput(ctx, sess, in.Body, intent), false

	case intent == IntentGreeting && sess.State == store.StateInitial:
		sess.State = store.StateAwaitingQuery
		return r.replies.Welcome, false

	default:
		return r.freeText(ctx, sess, in.Body), false
	}
}

// cancel clears any in-progress form. From a form state the user returns
// to AWAITING_QUERY; otherwise the session resets to INITIAL.
func (r *Router) cancel(sess *store.Session) string {
	wasInForm := sess.State.InForm()
	sess.ResetForm()
	if wasInForm {
		sess.State = store.StateAwaitingQuery
	} else {
		sess.State = store.StateInitial
	}
	return r.replies.Cancelled
}

// beginForm enters (or restarts) a guided form at its first field
func (r *Router) beginForm(sess *store.Session, state store.State) string {
	f := r.formFor(state)
	sess.State = state
	sess.ResetForm()
	sess.SubStep = f.first().name
	return f.first().prompt
}

func (r *Router) formFor(state store.State) *form {
	if state == store.StateLeadCreation {
		return r.leadForm
	}
	return r.ticketForm
}

// formInput consumes a message while a guided form is active
func (r *Router) formInput(ctx context.Context, sess *store.Session, body string, intent Intent) string {
	f := r.formFor(sess.State)

	if sess.SubStep == stepConfirm {
		if intent == IntentConfirm {
			return r.submit(ctx, sess, f)
		}
		// Anything else re-prompts; cancel was already handled upstream
		return f.summary(sess.FormData) + "\n\n" + r.replies.ConfirmPrompt
	}

	fl, ok := f.lookup(sess.SubStep)
	if !ok {
		r.logger.Warn("unknown form step, restarting form",
			"user_id", sess.UserID, "sub_step", sess.SubStep)
		return r.beginForm(sess, sess.State)
	}

	if intent == IntentSkip && fl.optional {
		// Skipped optional fields stay out of the collected form data
		delete(sess.FormData, fl.name)
	} else {
		sess.FormData[fl.name] = strings.TrimSpace(body)
	}

	next, nextName := f.next(fl.name)
	sess.SubStep = nextName
	if nextName == stepConfirm {
		return f.summary(sess.FormData) + "\n\n" + r.replies.ConfirmPrompt
	}
	return next.prompt
}

// submit sends the collected form to the ticket backend. On failure the
// session stays at the confirmation step with the form data intact.
func (r *Router) submit(ctx context.Context, sess *store.Session, f *form) string {
	isLead := sess.State == store.StateLeadCreation
	queueName := queue.QueueTicketCreation
	if isLead {
		queueName = queue.QueueLeadCreation
	}

	r.tracker.Enqueue(ctx, queueName)
	r.tracker.StartProcessing(ctx, queueName)

	// The backend receives exactly the collected form data
	form := make(map[string]string, len(sess.FormData))
	for k, v := range sess.FormData {
		form[k] = v
	}

	id, err := r.callBackend(ctx, r.backendBreaker, func(callCtx context.Context) (string, error) {
		if isLead {
			return r.backend.CreateLead(callCtx, form)
		}
		return r.backend.CreateTicket(callCtx, form)
	})
	if err != nil {
		r.tracker.Fail(ctx, queueName)
		r.logger.Error("form submission failed",
			"user_id", sess.UserID, "form", f.label, "error", err)
		return r.replies.SubmitFailed
	}

	r.tracker.Complete(ctx, queueName)
	r.logger.Info("form submitted", "user_id", sess.UserID, "form", f.label, "id", id)

	if r.recorder != nil {
		if isLead {
			r.recorder.RecordLead(r.now())
		} else {
			r.recorder.RecordTicket(r.now())
		}
	}

	sess.State = store.StateAwaitingQuery
	sess.ResetForm()
	return r.replies.SubmitOK
}

// freeText forwards a message to the AI backend on the session's thread
func (r *Router) freeText(ctx context.Context, sess *store.Session, body string) string {
	if sess.ThreadRef == "" {
		ref, err := r.ai.GetOrCreateThread(ctx, sess.UserID)
		if err != nil {
			r.logger.Error("thread creation failed", "user_id", sess.UserID, "error", err)
			return r.replies.Apology
		}
		sess.ThreadRef = ref
	}

	reply, err := r.callBackend(ctx, r.aiBreaker, func(callCtx context.Context) (string, error) {
		return r.ai.Ask(callCtx, sess.ThreadRef, body)
	})
	if err != nil {
		// State unchanged: the next message retries from the same place
		r.logger.Error("assistant call failed", "user_id", sess.UserID, "error", err)
		return r.replies.Apology
	}

	if sess.State == store.StateInitial {
		sess.State = store.StateAwaitingQuery
	}
	return reply
}

// callBackend runs a blocking backend call under the breaker with a
// bounded timeout. The call itself is never cancelled mid-flight; when the
// timeout fires the router stops waiting and the late result is discarded
// (the result channel is buffered and abandoned), so it can never
// overwrite a session that has since moved on.
func (r *Router) callBackend(ctx context.Context, b *breaker.Breaker, call func(ctx context.Context) (string, error)) (string, error) {
	run := func() (string, error) {
		type result struct {
			val string
			err error
		}
		ch := make(chan result, 1)
		callCtx := context.WithoutCancel(ctx)

		go func() {
			val, err := call(callCtx)
			ch <- result{val, err}
		}()

		select {
		case res := <-ch:
			return res.val, res.err
		case <-time.After(r.backendTimeout):
			return "", fmt.Errorf("%w: timed out after %s", ErrBackendUnavailable, r.backendTimeout)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if b == nil {
		return run()
	}

	var val string
	err := b.Do(func() error {
		var callErr error
		val, callErr = run()
		return callErr
	})
	if errors.Is(err, breaker.ErrOpen) {
		err = fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return val, err
}

// send dispatches an outbound reply and records the outcome on the
// outbound queue. Send failures are logged, not propagated: the session
// transition already happened and is saved.
func (r *Router) send(ctx context.Context, userID, content string) {
	r.tracker.Enqueue(ctx, queue.QueueOutboundMessages)
	r.tracker.StartProcessing(ctx, queue.QueueOutboundMessages)

	if err := r.messenger.SendMessage(ctx, userID, content); err != nil {
		r.tracker.Fail(ctx, queue.QueueOutboundMessages)
		r.logger.Error("outbound send failed", "user_id", userID, "error", err)
		return
	}

	r.tracker.Complete(ctx, queue.QueueOutboundMessages)
}
