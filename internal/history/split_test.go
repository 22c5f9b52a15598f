package history

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/winnowlabs/winnow/internal/message"
)

func sizedMsgs(sizes ...int) []message.Message {
	msgs := make([]message.Message, 0, len(sizes))
	for i, n := range sizes {
		role := message.User
		if i%2 == 1 {
			role = message.Assistant
		}
		msgs = append(msgs, message.New(role, message.TextPart{Text: strings.Repeat("x", n)}))
	}
	return msgs
}

func chunkLens(chunks [][]message.Message) []int {
	lens := make([]int, len(chunks))
	for i, c := range chunks {
		lens[i] = len(c)
	}
	return lens
}

func TestSplitEmpty(t *testing.T) {
	t.Parallel()
	require.Nil(t, Split(nil, 4, nil))
	require.Nil(t, Split([]message.Message{}, 4, nil))
}

func TestSplitSingleChunk(t *testing.T) {
	t.Parallel()

	msgs := sizedMsgs(10, 20, 30)
	for _, parts := range []int{0, 1, -3} {
		chunks := Split(msgs, parts, nil)
		require.Len(t, chunks, 1)
		require.Equal(t, msgs, chunks[0])
	}

	one := sizedMsgs(5)
	chunks := Split(one, 8, nil)
	require.Len(t, chunks, 1)
	require.Equal(t, one, chunks[0])
}

func TestSplitEvenSizes(t *testing.T) {
	t.Parallel()

	chunks := Split(sizedMsgs(10, 10, 10, 10), 2, nil)
	require.Equal(t, []int{2, 2}, chunkLens(chunks))

	chunks = Split(sizedMsgs(10, 10, 10, 10, 10, 10, 10, 10), 4, nil)
	require.Equal(t, []int{2, 2, 2, 2}, chunkLens(chunks))
}

func TestSplitPartsCappedToLength(t *testing.T) {
	t.Parallel()

	chunks := Split(sizedMsgs(10, 10, 10), 10, nil)
	require.Equal(t, []int{1, 1, 1}, chunkLens(chunks))
}

func TestSplitFrontHeavy(t *testing.T) {
	t.Parallel()

	// A dominant first message fills its chunk alone; the remainder cannot
	// meet the target so it stays together.
	chunks := Split(sizedMsgs(100, 1, 1), 3, nil)
	require.Equal(t, []int{1, 2}, chunkLens(chunks))
}

func TestSplitBackHeavy(t *testing.T) {
	t.Parallel()

	// The running sum only crosses the target at the last message, where no
	// boundary may be placed, so everything lands in one chunk.
	chunks := Split(sizedMsgs(1, 1, 100), 3, nil)
	require.Equal(t, []int{3}, chunkLens(chunks))
}

func TestSplitPartitionProperties(t *testing.T) {
	t.Parallel()

	cases := [][]int{
		{10},
		{10, 10},
		{1, 2, 3, 4, 5, 6, 7, 8},
		{4000, 4000, 4000, 4000},
		{0, 0, 0, 5},
		{100, 1, 1, 1, 100, 1, 1, 1},
	}
	for _, sizes := range cases {
		msgs := sizedMsgs(sizes...)
		for parts := 1; parts <= len(msgs)+2; parts++ {
			chunks := Split(msgs, parts, nil)

			require.NotEmpty(t, chunks)
			require.LessOrEqual(t, len(chunks), parts)
			flat := make([]message.Message, 0, len(msgs))
			for _, c := range chunks {
				require.NotEmpty(t, c, "sizes=%v parts=%d", sizes, parts)
				flat = append(flat, c...)
			}
			require.Equal(t, msgs, flat, "sizes=%v parts=%d", sizes, parts)
		}
	}
}
