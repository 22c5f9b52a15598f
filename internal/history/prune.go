package history

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/winnowlabs/winnow/internal/message"
)

const trimSeparator = "\n…\n"

// Prune shortens and, under pressure, clears eligible tool result contents
// so the estimated context size fits the character budget derived from the
// model window. The pass escalates in two phases gated by the soft trim
// and hard clear ratios, never touches the protected tail (the last
// KeepLastAssistants assistant turns and everything after), never touches
// anything before the first user message, and never alters image-bearing
// tool results.
//
// Mutation is copy-on-write: the input slice and its messages are never
// modified; if nothing qualifies, the result carries the input slice
// itself with Changed unset. Prune never fails.
func Prune(msgs []message.Message, in PruneInput) PruneResult {
	sizer := in.Sizer
	if sizer == nil {
		sizer = DefaultSizer
	}
	st := in.Settings
	budget := in.ContextWindowTokens * CharsPerToken
	res := PruneResult{Messages: msgs, BudgetChars: budget}
	res.Chars = contextChars(sizer, msgs)
	if in.ContextWindowTokens <= 0 || budget <= 0 {
		return res
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	if st.Mode == ModeCacheTTL && !in.LastTouch.IsZero() && now.Sub(in.LastTouch) < st.TTL {
		return res
	}

	tail, ok := protectedTailStart(msgs, st.KeepLastAssistants)
	if !ok {
		return res
	}
	boot, ok := firstUserIndex(msgs)
	if !ok {
		return res
	}

	total := res.Chars
	if float64(total) < st.SoftTrimRatio*float64(budget) {
		return res
	}

	eligible := in.Eligible
	if eligible == nil {
		eligible = NewToolFilter(st.Tools.Allowed, st.Tools.Denied)
	}

	// Soft trim pass. Also collects the prunable indexes the hard clear
	// phase operates on: every eligible image-free tool result in the
	// window, whether or not it was large enough to trim.
	var out []message.Message
	var prunable []int
	for i := boot + 1; i < tail; i++ {
		m := msgs[i]
		if m.Role != message.Tool || !eligible(m.ToolName) || m.HasImage() {
			continue
		}
		prunable = append(prunable, i)

		text := m.Text()
		n := utf8.RuneCountInString(text)
		if n <= st.SoftTrim.MaxChars || st.SoftTrim.HeadChars+st.SoftTrim.TailChars >= n {
			continue
		}
		trimmed := trimText(text, st.SoftTrim.HeadChars, st.SoftTrim.TailChars)
		if utf8.RuneCountInString(trimmed) >= n {
			// Trimming must strictly shrink; this also keeps repeated
			// passes over already-trimmed content from churning.
			continue
		}
		if out == nil {
			out = slices.Clone(msgs)
		}
		before := sizer.MessageChars(m)
		out[i] = m.WithText(trimmed)
		total += sizer.MessageChars(out[i]) - before
		res.SoftTrimmed++
	}

	cur := msgs
	if out != nil {
		cur = out
	}
	res.Chars = total

	if float64(total) < st.HardClearRatio*float64(budget) {
		return finishPrune(res, out)
	}
	if !st.HardClear.Enabled {
		return finishPrune(res, out)
	}
	prunableChars := 0
	for _, i := range prunable {
		prunableChars += sizer.MessageChars(cur[i])
	}
	if prunableChars < st.MinPrunableToolChars {
		return finishPrune(res, out)
	}

	// Hard clear pass, oldest first, re-measuring after each replacement.
	for _, i := range prunable {
		if float64(total) < st.HardClearRatio*float64(budget) {
			break
		}
		before := sizer.MessageChars(cur[i])
		cleared := cur[i].WithText(st.HardClear.Placeholder)
		after := sizer.MessageChars(cleared)
		if after >= before {
			continue
		}
		if out == nil {
			out = slices.Clone(msgs)
			cur = out
		}
		out[i] = cleared
		total += after - before
		res.HardCleared++
	}
	res.Chars = total
	return finishPrune(res, out)
}

func finishPrune(res PruneResult, out []message.Message) PruneResult {
	if out != nil {
		res.Messages = out
		res.Changed = true
	}
	return res
}

// protectedTailStart returns the index of the keep-th assistant message
// counted from the end; everything at or after it is immutable. With keep
// of zero nothing is protected. When fewer assistant messages exist than
// required, ok is false and the whole list is immutable.
func protectedTailStart(msgs []message.Message, keep int) (int, bool) {
	if keep <= 0 {
		return len(msgs), true
	}
	seen := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != message.Assistant {
			continue
		}
		seen++
		if seen == keep {
			return i, true
		}
	}
	return 0, false
}

// firstUserIndex locates the bootstrap boundary: nothing before the first
// user message is ever eligible. Without one, nothing is.
func firstUserIndex(msgs []message.Message) (int, bool) {
	for i, m := range msgs {
		if m.Role == message.User {
			return i, true
		}
	}
	return 0, false
}

func trimText(text string, head, tail int) string {
	r := []rune(text)
	var sb strings.Builder
	sb.Grow(head + tail + len(trimSeparator) + 64)
	sb.WriteString(string(r[:head]))
	sb.WriteString(trimSeparator)
	sb.WriteString(string(r[len(r)-tail:]))
	fmt.Fprintf(&sb, "\n[tool output trimmed: kept %d of %d chars]", head+tail, len(r))
	return sb.String()
}
