package statree_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theonuverse/pasmonux/statree"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", []string{}},
		{"/", []string{}},
		{"stats", []string{"stats"}},
		{"/cores/cpu0/usage", []string{"cores", "cpu0", "usage"}},
		{"cores//usage", []string{"cores", "usage"}},
		{"a/b/", []string{"a", "b"}},
		// Percent-encoded segments are decoded before matching.
		{"battery_level%2Cbattery_status", []string{"battery_level,battery_status"}},
	}
	for _, tt := range tests {
		p := statree.ParsePath(tt.raw)
		require.Equal(t, tt.want, p.Segments(), "raw %q", tt.raw)
	}
}

func TestPathEmptyAndString(t *testing.T) {
	require.True(t, statree.ParsePath("").IsEmpty())
	require.True(t, statree.ParsePath("///").IsEmpty())

	p := statree.NewPath("cores", "*", "usage")
	require.False(t, p.IsEmpty())
	require.Equal(t, "cores/*/usage", p.String())
}

func TestIsWildcard(t *testing.T) {
	require.True(t, statree.IsWildcard("*"))
	require.True(t, statree.IsWildcard("all"))
	require.False(t, statree.IsWildcard("ALL"))
	require.False(t, statree.IsWildcard("cpu0"))
}
