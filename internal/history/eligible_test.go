package history

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewToolFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		allowed []string
		denied  []string
		tool    string
		want    bool
	}{
		{name: "empty lists allow everything", tool: "grep", want: true},
		{name: "empty lists allow empty name", tool: "", want: true},
		{name: "allow exact match", allowed: []string{"grep", "read"}, tool: "read", want: true},
		{name: "allow exact miss", allowed: []string{"grep", "read"}, tool: "write", want: false},
		{name: "exact names do not prefix match", allowed: []string{"read"}, tool: "reader", want: false},
		{name: "deny wins over allow", allowed: []string{"*"}, denied: []string{"read"}, tool: "read", want: false},
		{name: "deny wins with empty allow", denied: []string{"fetch"}, tool: "fetch", want: false},
		{name: "deny miss falls through to allow", denied: []string{"fetch"}, tool: "grep", want: true},
		{name: "allow glob", allowed: []string{"mcp_*"}, tool: "mcp_fetch", want: true},
		{name: "allow glob miss", allowed: []string{"mcp_*"}, tool: "grep", want: false},
		{name: "deny glob", denied: []string{"*_secret"}, tool: "vault_secret", want: false},
		{name: "character class", allowed: []string{"tool[0-9]"}, tool: "tool5", want: true},
		{name: "brace alternation", allowed: []string{"{read,write}"}, tool: "write", want: true},
		{name: "malformed pattern matches nothing", allowed: []string{"["}, tool: "x", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := NewToolFilter(tt.allowed, tt.denied)
			require.Equal(t, tt.want, f(tt.tool))
		})
	}
}

func TestNewToolFilterSnapshotsPatterns(t *testing.T) {
	t.Parallel()

	allowed := []string{"grep"}
	f := NewToolFilter(allowed, nil)
	allowed[0] = "write"

	require.True(t, f("grep"))
	require.False(t, f("write"))
}

func TestToolFilterDeterministic(t *testing.T) {
	t.Parallel()

	f := NewToolFilter([]string{"a*"}, []string{"ab"})
	for i := 0; i < 100; i++ {
		require.True(t, f("ax"))
		require.False(t, f("ab"))
	}
}
