package history

import (
	"github.com/winnowlabs/winnow/internal/message"
)

// Split partitions msgs into at most parts contiguous chunks whose
// estimated sizes are roughly balanced. Chunk boundaries are placed by a
// greedy running sum: a chunk closes once it has accumulated its
// proportional share of the total, as long as enough messages remain to
// keep every later chunk non-empty. The concatenation of the returned
// chunks is msgs in original order; every chunk is non-empty; a non-empty
// input always yields at least one chunk. Chunks share backing memory with
// msgs.
func Split(msgs []message.Message, parts int, sizer Sizer) [][]message.Message {
	if len(msgs) == 0 {
		return nil
	}
	if sizer == nil {
		sizer = DefaultSizer
	}
	if parts <= 1 || len(msgs) == 1 {
		return [][]message.Message{msgs}
	}
	if parts > len(msgs) {
		parts = len(msgs)
	}

	sizes := make([]int, len(msgs))
	total := 0
	for i, m := range msgs {
		sizes[i] = sizer.MessageChars(m)
		total += sizes[i]
	}
	target := float64(total) / float64(parts)

	chunks := make([][]message.Message, 0, parts)
	start := 0
	acc := 0
	for i := range msgs {
		acc += sizes[i]
		remaining := parts - len(chunks) - 1
		if remaining > 0 && float64(acc) >= target && len(msgs)-(i+1) >= remaining {
			chunks = append(chunks, msgs[start:i+1])
			start = i + 1
			acc = 0
		}
	}
	return append(chunks, msgs[start:])
}
