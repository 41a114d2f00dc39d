package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseScrambleListMatchesBySubstring(t *testing.T) {
	got := ParseScrambleList("TTL,CHECKSUM")
	require.Equal(t, ScrambleTTL|ScrambleChecksum, got)
}

func TestParseScrambleListEmptyOnNoMatch(t *testing.T) {
	require.Zero(t, ParseScrambleList("garbage"))
}

func TestScrambleStringOrderAndNone(t *testing.T) {
	require.Equal(t, "NONE", Scramble(0).String())
	got := (ScrambleInnocent | ScrambleTTL).String()
	require.Equal(t, "TTL,INNOCENT", got, "String() must keep the fixed TTL/MALFORMED/CHECKSUM/INNOCENT order")
}
