package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockedByBlacklist(t *testing.T) {
	bl, _ := NewAddrSet([]string{"1.2.3.4"})
	e := &Env{Blacklist: bl}
	require.True(t, e.Blocked([4]byte{1, 2, 3, 4}), "blacklisted address must be Blocked")
	require.False(t, e.Blocked([4]byte{5, 6, 7, 8}), "non-blacklisted address must not be Blocked")
}

func TestBlockedByWhitelistExclusion(t *testing.T) {
	wl, _ := NewAddrSet([]string{"1.2.3.4"})
	e := &Env{Whitelist: wl}
	require.False(t, e.Blocked([4]byte{1, 2, 3, 4}), "whitelisted address must not be Blocked")
	require.True(t, e.Blocked([4]byte{5, 6, 7, 8}), "address absent from an active whitelist must be Blocked")
}

func TestBlockedWithNoLists(t *testing.T) {
	e := &Env{}
	require.False(t, e.Blocked([4]byte{1, 2, 3, 4}), "with no lists configured, nothing should be Blocked")
}

func TestFailHardOnPluginViolationThreshold(t *testing.T) {
	e := &Env{DebugLevel: 1}
	require.False(t, e.FailHardOnPluginViolation(), "debug level below threshold must not fail hard")
	e.DebugLevel = DebugLevelPacket
	require.True(t, e.FailHardOnPluginViolation(), "debug level at threshold must fail hard")
}

func TestEnvAggressivityForDefaultsToNone(t *testing.T) {
	e := &Env{}
	require.Equal(t, AggNone, e.AggressivityFor(80), "AggressivityFor with nil PortConf")
}
