// Package plugin implements PluginPool: the registry of mangling plugins,
// their load-time contract validation, and the enabler-file/--only-plugin
// loading modes. Grounded on original_source/src/service/PluginPool.cc's
// PluginTrack/PluginPool constructors and importPlugin, and on the
// capability-interface-over-dynamic-dispatch pattern the teacher's
// internal/services package uses for its PIMWriter/HeartbeatWriter/
// BGPReaderWriter registrations — here the dynamic dispatch is Go interface
// satisfaction instead of dlopen/dlsym, per spec.md §9's explicit "model
// plugins as a registered set of implementations of a single capability
// interface" design note.
package plugin

import (
	"fmt"

	"github.com/netshroud/shroud/internal/mangle/config"
	"github.com/netshroud/shroud/internal/mangle/packet"
)

// EngineVersion is the contract version every plugin's Version() must match,
// mirroring the original's dlsym'd versionValue symbol check.
const EngineVersion = "shroud-plugin-v1"

// Hack is a single plugin-produced candidate packet, populated by
// CreateHack. The fields mirror the ones selfIntegrityCheck
// (original_source/src/service/Packet.cc) requires to be set before a
// produced packet may be finalized.
type Hack struct {
	Packet   *packet.Buffer
	Judge    packet.Judge
	Scramble config.Scramble
	Proto    packet.Proto
	Position packet.Position
	Chain    packet.Chain
}

// Plugin is the capability interface every mangling plugin implements —
// the Go analogue of the original's C-ABI trio (version/create/destroy)
// plus the per-object contract (pluginName, hackName, supportedScramble,
// hackFrequency, removeOrigPkt, init, condition, createHack) described in
// spec.md §6.3.
type Plugin interface {
	// Version must equal EngineVersion for the plugin to load.
	Version() string
	// Name is pluginName; must be non-empty.
	Name() string
	// HackName is hackName, used only for logging/diagnostics.
	HackName() string
	// SupportedScramble is the bitmask of techniques this plugin can use.
	SupportedScramble() config.Scramble
	// HackFrequency is the plugin-declared aggressivity; the probability
	// gate uses the larger of its percentage and the port's portconf one.
	HackFrequency() config.Aggressivity
	// RemoveOrigPkt reports whether injecting this plugin's hacks should
	// remove the original packet from the queue afterward.
	RemoveOrigPkt() bool
	// Init is called once at load time with the scrambles the operator has
	// enabled for this plugin; returning false fails the load.
	Init(enabledScrambles config.Scramble) bool
	// Condition reports whether this plugin applies to pkt given the
	// scrambles currently available for its destination.
	Condition(pkt *packet.Buffer, available config.Scramble) bool
	// CreateHack produces zero or more candidate packets for pkt.
	CreateHack(pkt *packet.Buffer, available config.Scramble) []Hack
}

// loaded is one successfully validated plugin plus the scrambles the
// operator enabled for it (which may be a subset of SupportedScramble()).
type loaded struct {
	Plugin
	enabledScramble config.Scramble
}

// Pool is PluginPool: the ordered set of validated, loaded plugins.
type Pool struct {
	plugins []loaded
}

// EnabledScramble returns the scrambles enabled for this loaded plugin —
// SupportedScramble() intersected with what the operator actually turned on.
func (l loaded) EnabledScramble() config.Scramble { return l.enabledScramble }

// Len reports how many plugins are loaded.
func (p *Pool) Len() int { return len(p.plugins) }

// All returns every loaded plugin together with its enabled-scramble mask,
// in load order — load order is the order the engine shuffles and filters
// from in inject_hack.
func (p *Pool) All() []loaded { return p.plugins }

// validate applies the load-time checks spec.md §4.4 requires: version
// match, non-empty name, successful Init, and a non-zero SupportedScramble
// that intersects the operator-enabled set. Matches PluginTrack's
// constructor checks plus PluginPool::importPlugin's failInit handling.
func validate(pl Plugin, enabledScramble config.Scramble) error {
	if pl.Version() != EngineVersion {
		return fmt.Errorf("plugin %q: version %q != engine version %q", pl.Name(), pl.Version(), EngineVersion)
	}
	if pl.Name() == "" {
		return fmt.Errorf("plugin: pluginName must not be empty")
	}
	if !pl.Init(enabledScramble) {
		return fmt.Errorf("plugin %q: init(%s) returned false", pl.Name(), enabledScramble)
	}
	supported := pl.SupportedScramble()
	if supported == 0 {
		return fmt.Errorf("plugin %q: supportedScramble is zero", pl.Name())
	}
	if supported&enabledScramble == 0 {
		return fmt.Errorf("plugin %q: supportedScramble %s does not intersect enabled %s", pl.Name(), supported, enabledScramble)
	}
	return nil
}
