package scramble

import (
	"testing"

	"github.com/netshroud/shroud/internal/mangle/config"
	"github.com/netshroud/shroud/internal/mangle/ttlfocus"
	"github.com/stretchr/testify/require"
)

func TestAvailableWithoutFocus(t *testing.T) {
	got := Available(nil, false)
	want := config.ScrambleChecksum | config.ScrambleMalformed | config.ScrambleInnocent
	require.Equal(t, want, got)
	require.Zero(t, got&config.ScrambleTTL, "TTL must not be available without a KNOWN focus")
}

func TestAvailableWithKnownFocus(t *testing.T) {
	f := &ttlfocus.Focus{Status: ttlfocus.Known}
	got := Available(f, true)
	require.NotZero(t, got&config.ScrambleTTL, "TTL must be available once focus.Status == Known")
}

func TestAvailableWithBruteforcingFocus(t *testing.T) {
	f := &ttlfocus.Focus{Status: ttlfocus.Bruteforce}
	got := Available(f, true)
	require.Zero(t, got&config.ScrambleTTL, "TTL must not be available while still bruteforcing")
}

// TestAppliesAlwaysShortCircuits matches --only-plugin mode: AGG_ALWAYS
// fires regardless of the draw.
func TestAppliesAlwaysShortCircuits(t *testing.T) {
	draw := func() int { return 100 } // worst possible draw
	require.True(t, Applies(0, config.AggAlways, config.AggNone, 0, draw), "AggAlways must fire unconditionally")
}

// TestAppliesCombinesHackAndUserViaMax exercises the fixed probability gate
// (spec.md §4.6's Open Question): without max(hackPct, userPct), a hack
// frequency alone would never fire because the user frequency is AggNone
// (0%). This is the regression test for that fix.
func TestAppliesCombinesHackAndUserViaMax(t *testing.T) {
	draw := func() int { return 10 } // would pass a 15% but not a 5% gate
	applies := Applies(0, config.AggRare /* 15% */, config.AggNone /* 0% */, 0, draw)
	require.True(t, applies, "expected gate to fire: max(15, 0) = 15 >= draw 10")
}

func TestAppliesRejectsAboveThreshold(t *testing.T) {
	draw := func() int { return 99 }
	require.False(t, Applies(0, config.AggVeryRare, config.AggNone, 0, draw), "expected gate to reject: max(5, 0) = 5 < draw 99")
}
