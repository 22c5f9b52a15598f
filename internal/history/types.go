package history

import (
	"time"

	"github.com/winnowlabs/winnow/internal/message"
)

// PruneMode controls how often pruning re-evaluates a session's context.
type PruneMode string

const (
	// ModeAlways re-evaluates on every context assembly event.
	ModeAlways PruneMode = "always"
	// ModeCacheTTL re-evaluates only after a cooldown since the last
	// mutating pass, so provider prompt caches are not invalidated on
	// every call.
	ModeCacheTTL PruneMode = "cache-ttl"
)

// Conservative defaults for every tunable. Each is overridable per field;
// partial configuration is valid.
const (
	// DefaultContextWindowTokens is used when no model metadata supplies a
	// window.
	DefaultContextWindowTokens = 128000
	// DefaultTTL matches typical provider prompt cache lifetime.
	DefaultTTL                  = 5 * time.Minute
	DefaultKeepLastAssistants   = 3
	DefaultSoftTrimRatio        = 0.7
	DefaultHardClearRatio       = 0.9
	DefaultSoftTrimMaxChars     = 4000
	DefaultSoftTrimHeadChars    = 1000
	DefaultSoftTrimTailChars    = 1000
	DefaultMinPrunableToolChars = 2000
	DefaultMaxHistoryShare      = 0.6
	DefaultParts                = 4

	// DefaultHardClearPlaceholder replaces cleared tool results. It tells
	// the model the data was removed deliberately and how to get it back.
	DefaultHardClearPlaceholder = "[tool result cleared to free context; rerun the tool if this output is needed]"
)

// SoftTrimSettings shapes the per-result soft trim: results longer than
// MaxChars are reduced to their first HeadChars and last TailChars.
type SoftTrimSettings struct {
	MaxChars  int
	HeadChars int
	TailChars int
}

// HardClearSettings controls the full-clear escalation phase.
type HardClearSettings struct {
	Enabled     bool
	Placeholder string
}

// ToolRules is the allow/deny classification consumed by NewToolFilter.
type ToolRules struct {
	Allowed []string
	Denied  []string
}

// Settings is a session's resolved pruning configuration.
type Settings struct {
	Mode                 PruneMode
	TTL                  time.Duration
	KeepLastAssistants   int
	SoftTrimRatio        float64
	HardClearRatio       float64
	SoftTrim             SoftTrimSettings
	HardClear            HardClearSettings
	MinPrunableToolChars int
	Tools                ToolRules
}

// DefaultSettings returns the documented default configuration.
func DefaultSettings() Settings {
	return Settings{
		Mode:               ModeCacheTTL,
		TTL:                DefaultTTL,
		KeepLastAssistants: DefaultKeepLastAssistants,
		SoftTrimRatio:      DefaultSoftTrimRatio,
		HardClearRatio:     DefaultHardClearRatio,
		SoftTrim: SoftTrimSettings{
			MaxChars:  DefaultSoftTrimMaxChars,
			HeadChars: DefaultSoftTrimHeadChars,
			TailChars: DefaultSoftTrimTailChars,
		},
		HardClear: HardClearSettings{
			Enabled:     true,
			Placeholder: DefaultHardClearPlaceholder,
		},
		MinPrunableToolChars: DefaultMinPrunableToolChars,
	}
}

// Normalized returns a copy with invalid values replaced by defaults and
// the escalation ratios made consistent. Zero is meaningful for several
// fields (no tail protection, no cooldown, no clear gate) and is kept;
// negatives fall back to defaults.
func (s Settings) Normalized() Settings {
	def := DefaultSettings()
	out := s
	if out.Mode != ModeAlways && out.Mode != ModeCacheTTL {
		out.Mode = def.Mode
	}
	if out.TTL < 0 {
		out.TTL = def.TTL
	}
	if out.KeepLastAssistants < 0 {
		out.KeepLastAssistants = def.KeepLastAssistants
	}
	if out.SoftTrimRatio < 0 {
		out.SoftTrimRatio = def.SoftTrimRatio
	}
	if out.HardClearRatio < 0 {
		out.HardClearRatio = def.HardClearRatio
	}
	if out.HardClearRatio < out.SoftTrimRatio {
		out.HardClearRatio = out.SoftTrimRatio
	}
	if out.SoftTrim.MaxChars <= 0 {
		out.SoftTrim.MaxChars = def.SoftTrim.MaxChars
	}
	if out.SoftTrim.HeadChars < 0 {
		out.SoftTrim.HeadChars = def.SoftTrim.HeadChars
	}
	if out.SoftTrim.TailChars < 0 {
		out.SoftTrim.TailChars = def.SoftTrim.TailChars
	}
	if out.HardClear.Placeholder == "" {
		out.HardClear.Placeholder = def.HardClear.Placeholder
	}
	if out.MinPrunableToolChars < 0 {
		out.MinPrunableToolChars = def.MinPrunableToolChars
	}
	return out
}

// CompactionRequest asks for a history to be reduced to a share of the
// model's context window, evicting whole chunks from the oldest end.
type CompactionRequest struct {
	// MaxContextTokens is the model's context window. Zero or negative
	// disables compaction.
	MaxContextTokens int
	// MaxHistoryShare is the fraction (0..1] of the window the history may
	// occupy. Zero or negative disables compaction; values above 1 are
	// treated as 1.
	MaxHistoryShare float64
	// Parts is the chunk count hint for splitting. Zero uses DefaultParts;
	// values below 2 make the whole history a single chunk, which is never
	// dropped.
	Parts int
}

// CompactionResult reports what compaction kept and dropped. Messages is a
// contiguous newest suffix of the input in original order. Dropped holds
// the evicted messages, oldest first, for logging and audit.
type CompactionResult struct {
	Messages        []message.Message
	DroppedChunks   int
	DroppedMessages int
	Dropped         []message.Message
	KeptTokens      int
}

// PruneInput carries one pruning invocation's context: the session's
// resolved settings, the model window, the cooldown bookkeeping, and
// optional overrides for the eligibility filter and the estimator.
type PruneInput struct {
	Settings Settings
	// ContextWindowTokens is the resolved model window. Zero or negative
	// means do not prune.
	ContextWindowTokens int
	// LastTouch is the session's last mutating prune in cache-ttl mode.
	// The zero value means no prior touch.
	LastTouch time.Time
	// Now overrides the clock in tests. The zero value means time.Now.
	Now time.Time
	// Eligible overrides the filter compiled from Settings.Tools.
	Eligible ToolFilter
	// Sizer overrides the default estimator.
	Sizer Sizer
}

// PruneResult reports a pruning pass. When Changed is false, Messages is
// the input slice itself, untouched; callers key cache-invalidation
// decisions on this signal.
type PruneResult struct {
	Messages    []message.Message
	Changed     bool
	SoftTrimmed int
	HardCleared int
	// Chars is the estimated character total after the pass.
	Chars int
	// BudgetChars is the character budget derived from the window.
	BudgetChars int
}

// Ratio returns the post-pass size to budget ratio.
func (r PruneResult) Ratio() float64 {
	if r.BudgetChars <= 0 {
		return 0
	}
	return float64(r.Chars) / float64(r.BudgetChars)
}

// CompactionEvent is published after a compaction pass that dropped
// messages.
type CompactionEvent struct {
	SessionID       string
	DroppedChunks   int
	DroppedMessages int
	KeptTokens      int
}

// PruneEvent is published after a pruning pass that mutated the context.
type PruneEvent struct {
	SessionID   string
	SoftTrimmed int
	HardCleared int
	Chars       int
	BudgetChars int
}
