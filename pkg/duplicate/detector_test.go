package duplicate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenSetRatio(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "identical", a: "Cannot login", b: "Cannot login", want: 1},
		{name: "reordered", a: "login cannot", b: "Cannot Login", want: 1},
		{name: "subset", a: "cannot login", b: "cannot login to dashboard", want: 1},
		{name: "repeated tokens", a: "help help help", b: "help", want: 1},
		{name: "empty", a: "", b: "Cannot login", want: 0},
		{name: "whitespace only", a: "   ", b: "   ", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, TokenSetRatio(tt.a, tt.b), 1e-9)
		})
	}
}

func TestTokenSetRatio_Disjoint(t *testing.T) {
	score := TokenSetRatio("cannot login", "billing refund")
	require.Less(t, score, DefaultThreshold)
	require.GreaterOrEqual(t, score, 0.0)

	require.Equal(t, 0.0, TokenSetRatio("abc", "xyz"))
}

func TestTokenSetRatio_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"cannot login to site", "login broken on site"},
		{"payment failed", "payment declined today"},
		{"héllo wörld", "wörld peace"},
	}
	for _, p := range pairs {
		s := TokenSetRatio(p[0], p[1])
		require.InDelta(t, s, TokenSetRatio(p[1], p[0]), 1e-9)
		require.GreaterOrEqual(t, s, 0.0)
		require.LessOrEqual(t, s, 1.0)
	}
}

func TestTokenSetRatio_PartialOverlap(t *testing.T) {
	// sect "payment", diffs "failed" and "declined today".
	// sect vs sect+diff: 1 - 7/(2*7+7) = 0.666...
	score := TokenSetRatio("payment failed", "payment declined today")
	require.InDelta(t, 1-7.0/21.0, score, 1e-9)
}

func TestBest(t *testing.T) {
	recent := []string{"Billing question", "cannot login", "Cannot login to dashboard"}

	m, ok := Best("Cannot login", recent, DefaultThreshold)
	require.True(t, ok)
	require.Equal(t, "cannot login", m.Title)
	require.Equal(t, 1.0, m.Score)

	_, ok = Best("Feature request: dark mode", recent, DefaultThreshold)
	require.False(t, ok)

	_, ok = Best("anything", nil, 0)
	require.False(t, ok)
}
