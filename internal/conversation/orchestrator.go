// Package conversation runs one conversational turn end to end: it loads the
// member's session, profile and memory, classifies the message, routes it to
// the profile wizard, verification or search, and persists the outcome before
// a single reply is returned.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/cache"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/followup"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/intent"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/memory"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/profileflow"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/ratelimit"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/search"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/store"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/verify"
)

// Defaults for session lifetime and persistence retries.
const (
	DefaultSessionTTL  = 24 * time.Hour
	DefaultSaveRetries = 3
	DefaultSaveBackoff = 100 * time.Millisecond
)

// Member-facing texts for failures. Raw error text never reaches members.
const (
	apologyText = "Sorry, something went wrong on my side. Please try again in a moment."
	resendText  = "Sorry, I couldn't save that. Please send your message again."
)

// ErrEmptySender is returned for messages without a sender identifier.
var ErrEmptySender = errors.New("inbound message has no sender")

// Repository is the persistence the orchestrator needs.
type Repository interface {
	store.ProfileRepo
	store.SessionRepo
	store.MemoryRepo
	store.DedupRepo
}

// InboundMessage is one message received from a transport.
type InboundMessage struct {
	SenderID string
	Text     string
	// MessageID is the transport's identifier, used for deduplication. It may be empty.
	MessageID string
}

// Reply is the outcome of a turn. NoReply is set when nothing should be sent.
type Reply struct {
	Text    string
	NoReply bool
	Intent  models.IntentType
	TurnID  string
}

// Orchestrator runs turns. It is safe for concurrent use; turns for the same
// sender are serialised.
type Orchestrator struct {
	repo       Repository
	classifier *intent.Classifier
	resolver   *followup.Resolver
	machine    *profileflow.Machine
	memory     *memory.Manager
	engine     search.Engine
	admitter   ratelimit.Admitter
	issuer     *verify.Issuer
	shown      *cache.TTL[string, []string]
	locks      *KeyedMutex

	sessionTTL  time.Duration
	saveRetries int
	saveBackoff time.Duration
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClassifier sets the intent classifier.
func WithClassifier(c *intent.Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

// WithResolver sets the follow-up resolver. The default classifier shares it.
func WithResolver(r *followup.Resolver) Option {
	return func(o *Orchestrator) { o.resolver = r }
}

// WithMachine sets the profile wizard.
func WithMachine(m *profileflow.Machine) Option {
	return func(o *Orchestrator) { o.machine = m }
}

// WithMemoryManager sets the memory manager.
func WithMemoryManager(m *memory.Manager) Option {
	return func(o *Orchestrator) { o.memory = m }
}

// WithSearch sets the search engine.
func WithSearch(e search.Engine) Option {
	return func(o *Orchestrator) { o.engine = e }
}

// WithAdmitter sets the rate limiter.
func WithAdmitter(a ratelimit.Admitter) Option {
	return func(o *Orchestrator) { o.admitter = a }
}

// WithIssuer sets the verification code issuer.
func WithIssuer(i *verify.Issuer) Option {
	return func(o *Orchestrator) { o.issuer = i }
}

// WithSessionTTL sets how long an idle session lives.
func WithSessionTTL(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.sessionTTL = d
		}
	}
}

// WithSaveRetry sets how often a failed save is retried and the first backoff.
func WithSaveRetry(retries int, backoff time.Duration) Option {
	return func(o *Orchestrator) {
		if retries >= 0 {
			o.saveRetries = retries
		}
		if backoff >= 0 {
			o.saveBackoff = backoff
		}
	}
}

// WithClock overrides the time source of the orchestrator and of the default
// components it builds.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an Orchestrator over repo. Components not supplied
// through options are built with defaults.
func NewOrchestrator(repo Repository, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		repo:        repo,
		locks:       NewKeyedMutex(),
		sessionTTL:  DefaultSessionTTL,
		saveRetries: DefaultSaveRetries,
		saveBackoff: DefaultSaveBackoff,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.resolver == nil {
		o.resolver = followup.NewResolver()
	}
	if o.classifier == nil {
		o.classifier = intent.NewClassifier(intent.WithResolver(o.resolver))
	}
	if o.machine == nil {
		o.machine = profileflow.NewMachine(repo, profileflow.WithClock(o.now))
	}
	if o.memory == nil {
		o.memory = memory.NewManager(memory.WithClock(o.now))
	}
	if o.engine == nil {
		o.engine = search.NewProfileSearch(repo)
	}
	if o.admitter == nil {
		o.admitter = ratelimit.NewLimiter(ratelimit.WithClock(o.now))
	}
	if o.issuer == nil {
		o.issuer = verify.NewIssuer(verify.LogSender{}, verify.WithClock(o.now))
	}
	o.shown = cache.NewTTL[string, []string](o.resolver.Window(), cache.WithClock(o.now))
	return o
}

// turn carries the state of one message through the pipeline.
type turn struct {
	id      string
	text    string
	now     time.Time
	sess    *models.Session
	profile *models.Profile
	mem     *models.Memory
	intent  models.Intent
	record  memory.TurnRecord

	// discard is set when the turn must leave persisted state untouched.
	discard bool
}

// HandleMessage runs one turn and returns the reply. Infrastructure failures
// are logged and answered with an apology; the returned error is reserved for
// malformed input.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg InboundMessage) (Reply, error) {
	userID := strings.TrimSpace(msg.SenderID)
	if userID == "" {
		return Reply{}, ErrEmptySender
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		slog.Debug("Orchestrator.HandleMessage: empty message ignored", "user", userID)
		return Reply{NoReply: true}, nil
	}

	if msg.MessageID != "" {
		fresh, err := o.repo.RecordInbound(ctx, msg.MessageID, userID)
		if err != nil {
			slog.Warn("Orchestrator.HandleMessage: dedup check failed, processing anyway", "user", userID, "messageID", msg.MessageID, "error", err)
		} else if !fresh {
			slog.Info("Orchestrator.HandleMessage: duplicate message ignored", "user", userID, "messageID", msg.MessageID)
			return Reply{NoReply: true}, nil
		}
	}
	// Only answered turns are stamped; failed ones are released for redelivery.
	answered := false
	defer func() { o.settleInbound(msg.MessageID, answered) }()

	if d := o.admitter.CheckAdmission(ctx, userID, ratelimit.KindMessage); !d.Allowed {
		slog.Info("Orchestrator.HandleMessage: message denied", "user", userID, "reason", d.Reason, "retryAfter", d.RetryAfter)
		answered = true
		return Reply{Text: d.Message()}, nil
	}

	unlock := o.locks.Lock(userID)
	defer unlock()

	t := &turn{id: uuid.NewString(), text: text, now: o.now()}
	var err error
	t.sess, t.profile, t.mem, err = o.load(ctx, userID, t.now)
	if err != nil {
		slog.Error("Orchestrator.HandleMessage: load failed", "user", userID, "turn", t.id, "error", err)
		return Reply{Text: apologyText, TurnID: t.id}, nil
	}
	if t.profile != nil && t.profile.Basic.Verified {
		t.sess.Authenticated = true
	}

	it := o.classifier.Classify(ctx, intent.Input{
		Message: text,
		Session: t.sess,
		Memory:  t.mem,
		Profile: t.profile,
		Now:     t.now,
	})
	t.intent = intent.ValidateIntentForUserState(it, t.sess, t.profile)
	slog.Debug("Orchestrator.HandleMessage: classified", "user", userID, "turn", t.id,
		"intent", t.intent.Type, "confidence", t.intent.Confidence, "source", t.intent.Source,
		"blocked", t.intent.Blocked, "state", t.sess.State().Kind())

	replyText, err := o.dispatch(ctx, t)
	if err != nil {
		slog.Error("Orchestrator.HandleMessage: turn failed", "user", userID, "turn", t.id, "intent", t.intent.Type, "error", err)
		return Reply{Text: apologyText, Intent: t.intent.Type, TurnID: t.id}, nil
	}
	reply := Reply{Text: replyText, Intent: t.intent.Type, TurnID: t.id}
	if t.discard {
		answered = true
		return reply, nil
	}

	t.record.Message = text
	t.record.Reply = replyText
	t.record.Intent = t.intent.Type
	o.memory.RecordTurn(t.mem, t.record)

	if err := o.persist(ctx, t.sess, t.mem); err != nil {
		slog.Error("Orchestrator.HandleMessage: persist failed", "user", userID, "turn", t.id, "error", err)
		reply.Text = resendText
		return reply, nil
	}
	answered = true
	return reply, nil
}

// load reads session, profile and memory concurrently. Missing and corrupt
// sessions become a fresh Idle session; a missing profile is nil.
func (o *Orchestrator) load(ctx context.Context, userID string, now time.Time) (*models.Session, *models.Profile, *models.Memory, error) {
	var (
		sess    *models.Session
		profile *models.Profile
		mem     *models.Memory
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := o.repo.GetSession(gctx, userID)
		switch {
		case err == nil:
			sess = s
		case errors.Is(err, store.ErrNotFound):
			sess = models.NewSession(userID, now, o.sessionTTL)
		case errors.Is(err, store.ErrCorruptRecord):
			slog.Warn("Orchestrator.load: corrupt session replaced", "user", userID, "error", err)
			sess = models.NewSession(userID, now, o.sessionTTL)
		default:
			return fmt.Errorf("load session: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		p, err := o.repo.GetProfile(gctx, userID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("load profile: %w", err)
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		m, err := o.repo.GetMemory(gctx, userID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("load memory: %w", err)
		}
		mem = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return sess, profile, o.memory.Ensure(userID, mem), nil
}

// persist saves session and memory, retrying with exponential backoff.
func (o *Orchestrator) persist(ctx context.Context, sess *models.Session, mem *models.Memory) error {
	delay := o.saveBackoff
	var err error
	for attempt := 0; ; attempt++ {
		if err = o.save(ctx, sess, mem); err == nil {
			return nil
		}
		if attempt >= o.saveRetries {
			return err
		}
		slog.Debug("Orchestrator.persist: save failed, retrying", "user", sess.UserID, "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (o *Orchestrator) save(ctx context.Context, sess *models.Session, mem *models.Memory) error {
	if err := o.repo.PutSession(ctx, sess, o.sessionTTL); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := o.repo.PutMemory(ctx, mem); err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	return nil
}

// settleInbound stamps an answered message or releases a failed one. It uses
// its own context so that a cancelled turn still settles the record.
func (o *Orchestrator) settleInbound(messageID string, answered bool) {
	if messageID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if answered {
		if err := o.repo.MarkProcessed(ctx, messageID); err != nil {
			slog.Warn("Orchestrator.settleInbound: mark processed failed", "messageID", messageID, "error", err)
		}
		return
	}
	if err := o.repo.ReleaseInbound(ctx, messageID); err != nil {
		slog.Warn("Orchestrator.settleInbound: release failed", "messageID", messageID, "error", err)
	}
}

// ResetSession drops the member's session so the next message starts fresh.
func (o *Orchestrator) ResetSession(ctx context.Context, userID string) error {
	unlock := o.locks.Lock(userID)
	defer unlock()
	o.shown.Delete(userID)
	return o.repo.DeleteSession(ctx, userID)
}

// PurgeCaches drops shown-result entries whose follow-up window has passed
// and returns how many were removed.
func (o *Orchestrator) PurgeCaches() int {
	return o.shown.Purge()
}

// RunJanitor purges expired cache entries every interval until ctx is done.
func (o *Orchestrator) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = o.resolver.Window()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := o.PurgeCaches(); n > 0 {
				slog.Debug("Orchestrator.RunJanitor: purged shown results", "count", n)
			}
		}
	}
}
