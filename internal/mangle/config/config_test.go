package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddrSetContainsAndSkipsBad(t *testing.T) {
	s, err := NewAddrSet([]string{"10.0.0.1", "not-an-ip", "8.8.8.8"})
	require.Error(t, err, "expected a joined error reporting the unparseable entry")
	require.True(t, s.Contains(netip.MustParseAddr("10.0.0.1")))
	require.False(t, s.Contains(netip.MustParseAddr("1.2.3.4")))
}

func TestAddrSetNilIsEmpty(t *testing.T) {
	var s *AddrSet
	require.False(t, s.Contains(netip.MustParseAddr("1.2.3.4")), "nil *AddrSet must report no membership")
}

func TestAggressivityForRoundtrips(t *testing.T) {
	c := New("")
	c.SetAggressivity(443, AggCommon)
	require.Equal(t, AggCommon, c.AggressivityFor(443))
	require.Equal(t, AggNone, c.AggressivityFor(80), "unset port should read AggNone")
}

func TestParseEnablerFileOrderAndComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enabler.txt")
	content := "# a comment\n\nfirstplugin,TTL,CHECKSUM\nsecondplugin,MALFORMED\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	entries, err := ParseEnablerFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "firstplugin", entries[0].Name)
	require.Equal(t, ScrambleTTL|ScrambleChecksum, entries[0].Scrambles)
	require.Equal(t, "secondplugin", entries[1].Name)
	require.Equal(t, ScrambleMalformed, entries[1].Scrambles)
}

func TestParseEnablerFileRejectsMissingComma(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enabler.txt")
	require.NoError(t, os.WriteFile(path, []byte("badline\n"), 0o644))

	_, err := ParseEnablerFile(path)
	require.Error(t, err, "expected error for a line lacking a comma separator")
}

func TestParseEnablerFileRejectsUnknownScramble(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enabler.txt")
	require.NoError(t, os.WriteFile(path, []byte("plug,NOTASCRAMBLE\n"), 0o644))

	_, err := ParseEnablerFile(path)
	require.Error(t, err, "expected error for an unrecognized scramble keyword")
}
