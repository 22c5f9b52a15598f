package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/winnowlabs/winnow/internal/csync"
	"github.com/winnowlabs/winnow/internal/message"
	"github.com/winnowlabs/winnow/internal/pubsub"
)

const defaultArgCacheSize = 4096

// session is the registry entry for one live session: its resolved
// settings snapshot, the compiled eligibility filter, and the cooldown
// bookkeeping. Entries exist exactly as long as the session: StartSession
// creates them, EndSession removes them. The mutex serializes pruning
// calls for the same session.
type session struct {
	mu        sync.Mutex
	settings  Settings
	eligible  ToolFilter
	window    int
	lastTouch time.Time
}

// Manager owns the per-session runtime registries and drives both engines
// with them. All methods are safe for concurrent use and nil-safe on a nil
// receiver.
type Manager struct {
	defaults Settings
	window   int
	share    float64
	parts    int

	sessions      *csync.Map[string, *session]
	sizer         Sizer
	hooks         []PrepareContextHook
	compactFlight singleflight.Group

	compactions *pubsub.Broker[CompactionEvent]
	prunes      *pubsub.Broker[PruneEvent]
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithDefaultSettings sets the settings applied to sessions started
// without their own.
func WithDefaultSettings(s Settings) ManagerOption {
	return func(m *Manager) { m.defaults = s.Normalized() }
}

// WithContextWindow sets the default model window in tokens.
func WithContextWindow(tokens int) ManagerOption {
	return func(m *Manager) {
		if tokens > 0 {
			m.window = tokens
		}
	}
}

// WithCompaction sets the history share and chunk count used by
// CompactHistory.
func WithCompaction(share float64, parts int) ManagerOption {
	return func(m *Manager) {
		if share > 0 {
			m.share = share
		}
		if parts > 0 {
			m.parts = parts
		}
	}
}

// WithSizer overrides the estimator, mainly for tests.
func WithSizer(s Sizer) ManagerOption {
	return func(m *Manager) {
		if s != nil {
			m.sizer = s
		}
	}
}

// WithPrepareContextHooks appends hooks run on every prepared context, in
// order, after pruning.
func WithPrepareContextHooks(hooks ...PrepareContextHook) ManagerOption {
	return func(m *Manager) {
		m.hooks = append(m.hooks, hooks...)
	}
}

// NewManager returns a Manager with documented defaults.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		defaults:    DefaultSettings(),
		window:      DefaultContextWindowTokens,
		share:       DefaultMaxHistoryShare,
		parts:       DefaultParts,
		sessions:    csync.NewMap[string, *session](),
		sizer:       newCachingSizer(defaultArgCacheSize),
		compactions: pubsub.NewBroker[CompactionEvent](),
		prunes:      pubsub.NewBroker[PruneEvent](),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SessionOption configures one session at StartSession.
type SessionOption func(*session)

// WithSettings sets the session's pruning settings snapshot.
func WithSettings(s Settings) SessionOption {
	st := s.Normalized()
	return func(sess *session) {
		sess.settings = st
		sess.eligible = NewToolFilter(st.Tools.Allowed, st.Tools.Denied)
	}
}

// WithWindow overrides the model window for one session.
func WithWindow(tokens int) SessionOption {
	return func(sess *session) {
		if tokens > 0 {
			sess.window = tokens
		}
	}
}

// StartSession registers runtime state for sessionID. Calling it again for
// a live session replaces the settings snapshot and resets the cooldown.
func (m *Manager) StartSession(sessionID string, opts ...SessionOption) {
	if m == nil || sessionID == "" {
		return
	}
	sess := &session{
		settings: m.defaults,
		eligible: NewToolFilter(m.defaults.Tools.Allowed, m.defaults.Tools.Denied),
		window:   m.window,
	}
	for _, opt := range opts {
		opt(sess)
	}
	m.sessions.Set(sessionID, sess)
}

// EndSession removes all state for sessionID. Required for long-lived
// processes: registry entries never outlive their session.
func (m *Manager) EndSession(sessionID string) {
	if m == nil {
		return
	}
	m.sessions.Del(sessionID)
}

// SessionCount returns the number of registered sessions.
func (m *Manager) SessionCount() int {
	if m == nil {
		return 0
	}
	return m.sessions.Len()
}

func (m *Manager) sessionFor(sessionID string) *session {
	return m.sessions.GetOrSet(sessionID, func() *session {
		return &session{
			settings: m.defaults,
			eligible: NewToolFilter(m.defaults.Tools.Allowed, m.defaults.Tools.Denied),
			window:   m.window,
		}
	})
}

// PrepareContext is the context assembly event: it runs the pruning engine
// with the session's registry state and returns the message list to send.
// When nothing changes the input slice is returned as is. Unknown sessions
// are registered lazily with the manager defaults.
func (m *Manager) PrepareContext(ctx context.Context, sessionID string, msgs []message.Message) []message.Message {
	if m == nil || len(msgs) == 0 {
		return msgs
	}
	sess := m.sessionFor(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	res := Prune(msgs, PruneInput{
		Settings:            sess.settings,
		ContextWindowTokens: sess.window,
		LastTouch:           sess.lastTouch,
		Eligible:            sess.eligible,
		Sizer:               m.sizer,
	})
	prepared := msgs
	if res.Changed {
		prepared = res.Messages
		if sess.settings.Mode == ModeCacheTTL {
			sess.lastTouch = time.Now()
		}
		slog.Debug("pruned context",
			"session_id", sessionID,
			"soft_trimmed", res.SoftTrimmed,
			"hard_cleared", res.HardCleared,
			"chars", res.Chars,
			"budget_chars", res.BudgetChars,
		)
		m.prunes.Publish(pubsub.UpdatedEvent, PruneEvent{
			SessionID:   sessionID,
			SoftTrimmed: res.SoftTrimmed,
			HardCleared: res.HardCleared,
			Chars:       res.Chars,
			BudgetChars: res.BudgetChars,
		})
	}
	if _, hooked, err := applyPrepareContextHooks(ctx, sessionID, prepared, m.hooks); err != nil {
		slog.Warn("prepare context hook failed", "session_id", sessionID, "error", err)
	} else {
		prepared = hooked
	}
	return prepared
}

// CompactHistory runs turn-boundary compaction for the session. Concurrent
// calls for the same session are collapsed into one pass sharing its
// result.
func (m *Manager) CompactHistory(ctx context.Context, sessionID string, msgs []message.Message) CompactionResult {
	if m == nil {
		return CompactionResult{Messages: msgs, KeptTokens: ContextTokens(msgs)}
	}
	sess := m.sessionFor(sessionID)
	v, _, _ := m.compactFlight.Do(sessionID, func() (any, error) {
		res := Compact(msgs, CompactionRequest{
			MaxContextTokens: sess.window,
			MaxHistoryShare:  m.share,
			Parts:            m.parts,
		}, m.sizer)
		if res.DroppedChunks > 0 {
			slog.Info("compacted history",
				"session_id", sessionID,
				"dropped_chunks", res.DroppedChunks,
				"dropped_messages", res.DroppedMessages,
				"kept_tokens", res.KeptTokens,
			)
			m.compactions.Publish(pubsub.CreatedEvent, CompactionEvent{
				SessionID:       sessionID,
				DroppedChunks:   res.DroppedChunks,
				DroppedMessages: res.DroppedMessages,
				KeptTokens:      res.KeptTokens,
			})
		}
		return res, nil
	})
	return v.(CompactionResult)
}

// SubscribeCompactions streams compaction events until ctx is canceled.
func (m *Manager) SubscribeCompactions(ctx context.Context) <-chan pubsub.Event[CompactionEvent] {
	if m == nil {
		ch := make(chan pubsub.Event[CompactionEvent])
		close(ch)
		return ch
	}
	return m.compactions.Subscribe(ctx)
}

// SubscribePrunes streams prune events until ctx is canceled.
func (m *Manager) SubscribePrunes(ctx context.Context) <-chan pubsub.Event[PruneEvent] {
	if m == nil {
		ch := make(chan pubsub.Event[PruneEvent])
		close(ch)
		return ch
	}
	return m.prunes.Subscribe(ctx)
}

// Shutdown closes the event brokers. Session state needs no teardown
// beyond EndSession.
func (m *Manager) Shutdown() {
	if m == nil {
		return
	}
	m.compactions.Shutdown()
	m.prunes.Shutdown()
}

// PrepareContext applies mgr's pruning when mgr is non-nil, otherwise
// returns msgs untouched. Convenient for call sites with an optional
// manager.
func PrepareContext(ctx context.Context, mgr *Manager, sessionID string, msgs []message.Message) []message.Message {
	if mgr == nil {
		return msgs
	}
	return mgr.PrepareContext(ctx, sessionID, msgs)
}

// CompactHistory compacts via mgr when non-nil, otherwise reports the
// input unchanged.
func CompactHistory(ctx context.Context, mgr *Manager, sessionID string, msgs []message.Message) CompactionResult {
	if mgr == nil {
		return CompactionResult{Messages: msgs, KeptTokens: ContextTokens(msgs)}
	}
	return mgr.CompactHistory(ctx, sessionID, msgs)
}
