// Package history implements the context-budget engine for agent
// conversations: approximate size estimation, balanced chunking, coarse
// turn-boundary compaction, and fine-grained in-flight pruning of tool
// results, plus the per-session runtime state that drives them.
package history

import (
	"encoding/json"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/winnowlabs/winnow/internal/message"
)

// CharsPerToken is the fixed character-to-token ratio used everywhere in
// place of exact tokenization.
const CharsPerToken = 4

const (
	// imageChars is the flat budget charged per image part. Images are
	// never measured or altered, only accounted for.
	imageChars = 8000
	// opaqueMessageChars is the flat budget for messages with an
	// unrecognized role.
	opaqueMessageChars = 256
	// toolArgsFallbackChars is charged when tool call arguments cannot be
	// serialized.
	toolArgsFallbackChars = 128
	// unknownPartChars is charged for content part kinds this package does
	// not know. A new part kind must pick its budget contribution here.
	unknownPartChars = 128
)

// Sizer estimates the character cost of a single message. Implementations
// must be total: never an error, never a negative result.
type Sizer interface {
	MessageChars(message.Message) int
}

type baseSizer struct{}

func (baseSizer) MessageChars(m message.Message) int { return MessageChars(m) }

// DefaultSizer is the stateless estimator used when no override is given.
var DefaultSizer Sizer = baseSizer{}

// MessageChars returns the approximate character cost of a message.
// Unrecognized roles are opaque and cost a flat amount regardless of
// content.
func MessageChars(m message.Message) int {
	switch m.Role {
	case message.User, message.Assistant, message.Tool:
	default:
		return opaqueMessageChars
	}
	total := 0
	for _, p := range m.Parts {
		total += partChars(p)
	}
	return total
}

func partChars(p message.Part) int {
	switch p := p.(type) {
	case message.TextPart:
		return utf8.RuneCountInString(p.Text)
	case message.ThinkingPart:
		return utf8.RuneCountInString(p.Thinking)
	case message.ImagePart:
		return imageChars
	case message.ToolCallPart:
		return toolCallChars(p)
	default:
		return unknownPartChars
	}
}

func toolCallChars(p message.ToolCallPart) int {
	data, err := json.Marshal(p.Input)
	if err != nil {
		return toolArgsFallbackChars
	}
	return utf8.RuneCount(data)
}

// ContextChars returns the summed character estimate for a message list.
func ContextChars(msgs []message.Message) int {
	return contextChars(DefaultSizer, msgs)
}

func contextChars(sizer Sizer, msgs []message.Message) int {
	total := 0
	for _, m := range msgs {
		total += sizer.MessageChars(m)
	}
	return total
}

// ContextTokens returns the approximate token estimate for a message list.
func ContextTokens(msgs []message.Message) int {
	return TokensFromChars(ContextChars(msgs))
}

func contextTokens(sizer Sizer, msgs []message.Message) int {
	return TokensFromChars(contextChars(sizer, msgs))
}

// TokensFromChars converts a character count to tokens, rounding up.
func TokensFromChars(chars int) int {
	if chars <= 0 {
		return 0
	}
	return (chars + CharsPerToken - 1) / CharsPerToken
}

// EstimateTokens returns the approximate token count of a string.
func EstimateTokens(s string) int {
	return TokensFromChars(utf8.RuneCountInString(s))
}

// cachingSizer memoizes serialized tool call argument sizes. Tool call
// inputs are immutable after creation, so the cache is keyed by call ID
// alone. Tool result content is mutated by pruning and is never cached.
type cachingSizer struct {
	args *lru.Cache[string, int]
}

func newCachingSizer(size int) *cachingSizer {
	cache, err := lru.New[string, int](size)
	if err != nil {
		return &cachingSizer{}
	}
	return &cachingSizer{args: cache}
}

func (s *cachingSizer) MessageChars(m message.Message) int {
	switch m.Role {
	case message.User, message.Assistant, message.Tool:
	default:
		return opaqueMessageChars
	}
	total := 0
	for _, p := range m.Parts {
		call, ok := p.(message.ToolCallPart)
		if !ok || s.args == nil || call.ID == "" {
			total += partChars(p)
			continue
		}
		if n, ok := s.args.Get(call.ID); ok {
			total += n
			continue
		}
		n := toolCallChars(call)
		s.args.Add(call.ID, n)
		total += n
	}
	return total
}
