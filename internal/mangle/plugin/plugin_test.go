package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/netshroud/shroud/internal/mangle/config"
	"github.com/netshroud/shroud/internal/mangle/packet"
	"github.com/stretchr/testify/require"
)

// fakePlugin is a minimal Plugin stub for load/validate tests.
type fakePlugin struct {
	name      string
	version   string
	supported config.Scramble
	freq      config.Aggressivity
	initOK    bool
}

func (f *fakePlugin) Version() string                                 { return f.version }
func (f *fakePlugin) Name() string                                    { return f.name }
func (f *fakePlugin) HackName() string                                { return f.name + "-hack" }
func (f *fakePlugin) SupportedScramble() config.Scramble               { return f.supported }
func (f *fakePlugin) HackFrequency() config.Aggressivity               { return f.freq }
func (f *fakePlugin) RemoveOrigPkt() bool                              { return false }
func (f *fakePlugin) Init(config.Scramble) bool                        { return f.initOK }
func (f *fakePlugin) Condition(*packet.Buffer, config.Scramble) bool   { return true }
func (f *fakePlugin) CreateHack(*packet.Buffer, config.Scramble) []Hack { return nil }

func newOKPlugin(name string) *fakePlugin {
	return &fakePlugin{
		name:      name,
		version:   EngineVersion,
		supported: config.ScrambleChecksum,
		freq:      config.AggCommon,
		initOK:    true,
	}
}

func TestValidateRejectsVersionMismatch(t *testing.T) {
	p := newOKPlugin("x")
	p.version = "wrong-version"
	require.Error(t, validate(p, config.ScrambleChecksum), "expected version mismatch to be rejected")
}

func TestValidateRejectsEmptyName(t *testing.T) {
	p := newOKPlugin("")
	require.Error(t, validate(p, config.ScrambleChecksum), "expected empty name to be rejected")
}

func TestValidateRejectsFailedInit(t *testing.T) {
	p := newOKPlugin("x")
	p.initOK = false
	require.Error(t, validate(p, config.ScrambleChecksum), "expected Init()==false to be rejected")
}

func TestValidateRejectsZeroSupportedScramble(t *testing.T) {
	p := newOKPlugin("x")
	p.supported = 0
	require.Error(t, validate(p, config.ScrambleChecksum), "expected zero SupportedScramble to be rejected")
}

func TestValidateRejectsNonIntersectingEnabledScramble(t *testing.T) {
	p := newOKPlugin("x")
	p.supported = config.ScrambleTTL
	require.Error(t, validate(p, config.ScrambleChecksum), "expected disjoint enabled/supported scrambles to be rejected")
}

func TestLoadFromEnablerFileRespectsFileOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enabler.txt")
	require.NoError(t, os.WriteFile(path, []byte("second,CHECKSUM\nfirst,TTL\n"), 0o644))

	registry := Registry{
		"first":  func() Plugin { return newOKPlugin("first") },
		"second": func() Plugin { return newOKPlugin("second") },
	}
	// newOKPlugin declares ScrambleChecksum support; "first" is enabled for
	// TTL in the file, which would fail validate — give it TTL support too.
	registry["first"] = func() Plugin {
		p := newOKPlugin("first")
		p.supported = config.ScrambleTTL
		return p
	}

	var pool Pool
	require.NoError(t, pool.LoadFromEnablerFile(path, registry))
	require.Equal(t, 2, pool.Len())
	all := pool.All()
	require.Equal(t, "second", all[0].Name(), "load order not preserved")
	require.Equal(t, "first", all[1].Name(), "load order not preserved")
}

func TestLoadFromEnablerFileRejectsUnknownPlugin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enabler.txt")
	require.NoError(t, os.WriteFile(path, []byte("ghost,CHECKSUM\n"), 0o644))

	var pool Pool
	err := pool.LoadFromEnablerFile(path, Registry{})
	require.Error(t, err, "expected error for a name absent from the registry")
}

func TestLoadOnlyForcesAggAlways(t *testing.T) {
	registry := Registry{"x": func() Plugin { return newOKPlugin("x") }}

	var pool Pool
	only := config.OnlyPlugin{Name: "x", Scrambles: config.ScrambleChecksum}
	require.NoError(t, pool.LoadOnly(only, registry))
	require.Equal(t, 1, pool.Len())
	require.Equal(t, config.AggAlways, pool.All()[0].HackFrequency(), "HackFrequency() must be AggAlways under --only-plugin")
}
