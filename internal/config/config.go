// Package config loads and resolves winnow's layered JSON configuration.
// Later layers win on scalars and deep-merge on objects; list values are
// appended. Absent fields fall back to documented defaults, while explicit
// zeros are kept, so partial configuration files stay valid.
package config

import (
	"slices"
	"time"

	"github.com/winnowlabs/winnow/internal/history"
)

// Config is the wire form of a winnow.json file. Pointer fields separate
// "not set" from an explicit zero.
type Config struct {
	Schema string `json:"$schema,omitempty"`

	// ContextWindowTokens is the model context window assumed when no
	// caller supplies one (default: 128000).
	ContextWindowTokens *int `json:"context_window_tokens,omitempty"`

	Pruning    *Pruning    `json:"pruning,omitempty"`
	Compaction *Compaction `json:"compaction,omitempty"`
	Options    *Options    `json:"options,omitempty"`
}

// Pruning configures the in-flight tool result pruning pass.
type Pruning struct {
	// Mode is "always" or "cache-ttl" (default: "cache-ttl").
	Mode string `json:"mode,omitempty" jsonschema:"enum=always,enum=cache-ttl"`

	// TTLMS is the cache-ttl cooldown in milliseconds between mutating
	// passes (default: 300000). Zero disables the cooldown.
	TTLMS *int64 `json:"ttl_ms,omitempty"`

	// KeepLastAssistants protects the tail starting at the n-th assistant
	// turn from the end (default: 3). Zero protects nothing.
	KeepLastAssistants *int `json:"keep_last_assistants,omitempty"`

	// SoftTrimRatio is the fraction of the budget at which trimming starts
	// (default: 0.7).
	SoftTrimRatio *float64 `json:"soft_trim_ratio,omitempty"`

	// HardClearRatio is the fraction of the budget at which clearing starts
	// (default: 0.9). Values below SoftTrimRatio are raised to it.
	HardClearRatio *float64 `json:"hard_clear_ratio,omitempty"`

	SoftTrim  *SoftTrim  `json:"soft_trim,omitempty"`
	HardClear *HardClear `json:"hard_clear,omitempty"`

	// MinPrunableToolChars gates clearing on the estimated chars still held
	// by prunable results (default: 2000).
	MinPrunableToolChars *int `json:"min_prunable_tool_chars,omitempty"`

	Tools *Tools `json:"tools,omitempty"`
}

// SoftTrim bounds the per-result trimming shape.
type SoftTrim struct {
	// MaxChars is the size above which a result is trimmed (default: 4000).
	MaxChars *int `json:"max_chars,omitempty"`
	// HeadChars and TailChars are how much of each end survives a trim
	// (defaults: 1000 each).
	HeadChars *int `json:"head_chars,omitempty"`
	TailChars *int `json:"tail_chars,omitempty"`
}

// HardClear configures the full-clear escalation.
type HardClear struct {
	// Enabled turns the clearing phase on (default: true).
	Enabled *bool `json:"enabled,omitempty"`
	// Placeholder replaces cleared results.
	Placeholder string `json:"placeholder,omitempty"`
}

// Tools classifies which tools' results pruning may touch. Deny wins over
// allow; an empty allow list means every tool. Entries may be exact names
// or glob patterns.
type Tools struct {
	Allowed []string `json:"allowed,omitempty"`
	Denied  []string `json:"denied,omitempty"`
}

// Compaction configures turn-boundary history compaction.
type Compaction struct {
	// MaxHistoryShare is the window fraction the history may keep
	// (default: 0.6).
	MaxHistoryShare *float64 `json:"max_history_share,omitempty"`
	// Parts is the chunk count used when splitting (default: 4).
	Parts *int `json:"parts,omitempty"`
}

// Options holds process-level knobs.
type Options struct {
	// Debug lowers the log level to debug.
	Debug bool `json:"debug,omitempty"`
	// DataDirectory overrides where logs and other state live.
	DataDirectory string `json:"data_directory,omitempty"`
}

// PruneSettings resolves the pruning section onto the engine defaults and
// normalizes the result.
func (c *Config) PruneSettings() history.Settings {
	s := history.DefaultSettings()
	if c == nil || c.Pruning == nil {
		return s
	}
	p := c.Pruning
	if p.Mode != "" {
		s.Mode = history.PruneMode(p.Mode)
	}
	if p.TTLMS != nil {
		s.TTL = time.Duration(*p.TTLMS) * time.Millisecond
	}
	if p.KeepLastAssistants != nil {
		s.KeepLastAssistants = *p.KeepLastAssistants
	}
	if p.SoftTrimRatio != nil {
		s.SoftTrimRatio = *p.SoftTrimRatio
	}
	if p.HardClearRatio != nil {
		s.HardClearRatio = *p.HardClearRatio
	}
	if st := p.SoftTrim; st != nil {
		if st.MaxChars != nil {
			s.SoftTrim.MaxChars = *st.MaxChars
		}
		if st.HeadChars != nil {
			s.SoftTrim.HeadChars = *st.HeadChars
		}
		if st.TailChars != nil {
			s.SoftTrim.TailChars = *st.TailChars
		}
	}
	if hc := p.HardClear; hc != nil {
		if hc.Enabled != nil {
			s.HardClear.Enabled = *hc.Enabled
		}
		if hc.Placeholder != "" {
			s.HardClear.Placeholder = hc.Placeholder
		}
	}
	if p.MinPrunableToolChars != nil {
		s.MinPrunableToolChars = *p.MinPrunableToolChars
	}
	if p.Tools != nil {
		s.Tools.Allowed = slices.Clone(p.Tools.Allowed)
		s.Tools.Denied = slices.Clone(p.Tools.Denied)
	}
	return s.Normalized()
}

// CompactionRequest resolves the compaction section against the configured
// context window.
func (c *Config) CompactionRequest() history.CompactionRequest {
	req := history.CompactionRequest{
		MaxContextTokens: c.ContextWindow(),
		MaxHistoryShare:  history.DefaultMaxHistoryShare,
		Parts:            history.DefaultParts,
	}
	if c == nil || c.Compaction == nil {
		return req
	}
	if c.Compaction.MaxHistoryShare != nil {
		req.MaxHistoryShare = *c.Compaction.MaxHistoryShare
	}
	if c.Compaction.Parts != nil {
		req.Parts = *c.Compaction.Parts
	}
	return req
}

// ContextWindow returns the configured model window in tokens.
func (c *Config) ContextWindow() int {
	if c == nil || c.ContextWindowTokens == nil || *c.ContextWindowTokens <= 0 {
		return history.DefaultContextWindowTokens
	}
	return *c.ContextWindowTokens
}

// Debug reports whether debug logging is on.
func (c *Config) Debug() bool {
	return c != nil && c.Options != nil && c.Options.Debug
}
