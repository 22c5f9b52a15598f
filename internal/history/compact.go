package history

import (
	"github.com/winnowlabs/winnow/internal/message"
)

// Compact reduces msgs to a newest suffix whose token estimate fits
// floor(MaxContextTokens * MaxHistoryShare). The remainder is re-split
// into req.Parts balanced chunks each round and the oldest chunk is
// evicted, until the rest fits or a single chunk remains. The newest chunk
// is never dropped: an over-budget single chunk is returned as-is rather
// than an empty history. Compact never fails; invalid budgets are a no-op.
//
// A nil sizer uses DefaultSizer.
func Compact(msgs []message.Message, req CompactionRequest, sizer Sizer) CompactionResult {
	if sizer == nil {
		sizer = DefaultSizer
	}
	res := CompactionResult{
		Messages:   msgs,
		KeptTokens: contextTokens(sizer, msgs),
	}

	share := req.MaxHistoryShare
	if share > 1 {
		share = 1
	}
	if req.MaxContextTokens <= 0 || share <= 0 {
		return res
	}
	budget := int(float64(req.MaxContextTokens) * share)
	if budget <= 0 {
		return res
	}
	if res.KeptTokens <= budget {
		return res
	}

	parts := req.Parts
	if parts == 0 {
		parts = DefaultParts
	}

	remaining := msgs
	tokens := res.KeptTokens
	for tokens > budget {
		chunks := Split(remaining, parts, sizer)
		if len(chunks) <= 1 {
			break
		}
		oldest := chunks[0]
		res.Dropped = append(res.Dropped, oldest...)
		res.DroppedChunks++
		res.DroppedMessages += len(oldest)
		remaining = remaining[len(oldest):]
		tokens = contextTokens(sizer, remaining)
	}

	res.Messages = remaining
	res.KeptTokens = tokens
	return res
}
