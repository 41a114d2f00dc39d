package plugin

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/netshroud/shroud/internal/mangle/config"
	"github.com/netshroud/shroud/internal/mangle/metrics"
)

// Factory builds a fresh Plugin instance; the compiled-in registry below is
// the "resolve at build time" half of spec.md §9's dynamic-dispatch design
// note (the alternative to load-time .so/WASM resolution, which Go's single
// static binary model doesn't need).
type Factory func() Plugin

// Registry maps a plugin name (as it appears in the enabler file) to its
// Factory.
type Registry map[string]Factory

// LoadFromEnablerFile loads plugins in the order
// config.ParseEnablerFile returns them, matching
// PluginPool::parseEnablerFile's load-order contract. Reading the enabler
// file is retried with bounded backoff — distinct from the engine's own
// fixed-interval TTL-probe timers (ttlfocus.MaxTTLProbe etc, which must stay
// exactly as specified) — because an enabler file can be transiently
// missing mid-deploy (a new version being rsynced into place) where a short
// retry is the right response, not an immediate fatal load failure.
func (p *Pool) LoadFromEnablerFile(path string, registry Registry) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	var entries []config.EnablerEntry
	readErr := backoff.Retry(func() error {
		var err error
		entries, err = config.ParseEnablerFile(path)
		return err
	}, backoff.WithMaxRetries(b, 5))
	if readErr != nil {
		return fmt.Errorf("plugin: loading enabler file: %w", readErr)
	}

	for _, e := range entries {
		factory, ok := registry[e.Name]
		if !ok {
			return fmt.Errorf("plugin: enabler file names unknown plugin %q", e.Name)
		}
		if err := p.add(factory(), e.Scrambles); err != nil {
			return err
		}
	}

	if len(p.plugins) == 0 {
		return fmt.Errorf("plugin: loaded correctly 0 plugins")
	}
	return nil
}

// LoadOnly loads exactly one plugin forced to AGG_ALWAYS frequency, matching
// --only-plugin mode (spec.md §6.2/§4.4): a single-plugin debugging run
// where the gate always fires regardless of port aggressivity.
func (p *Pool) LoadOnly(only config.OnlyPlugin, registry Registry) error {
	factory, ok := registry[only.Name]
	if !ok {
		return fmt.Errorf("plugin: --only-plugin names unknown plugin %q", only.Name)
	}
	pl := onlyPluginOverride{Plugin: factory()}
	if err := p.add(pl, only.Scrambles); err != nil {
		return err
	}
	if len(p.plugins) == 0 {
		return fmt.Errorf("plugin: loaded correctly 0 plugins")
	}
	return nil
}

func (p *Pool) add(pl Plugin, enabledScramble config.Scramble) error {
	if err := validate(pl, enabledScramble); err != nil {
		metrics.PluginLoads.WithLabelValues("rejected").Inc()
		return err
	}
	p.plugins = append(p.plugins, loaded{Plugin: pl, enabledScramble: enabledScramble & pl.SupportedScramble()})
	metrics.PluginLoads.WithLabelValues("ok").Inc()
	return nil
}

// onlyPluginOverride wraps a Plugin to force its declared frequency to
// AGG_ALWAYS, matching TCPTrack::percentage's "hackFrequency & AGG_ALWAYS
// short-circuits" path that --only-plugin relies on.
type onlyPluginOverride struct {
	Plugin
}

func (o onlyPluginOverride) HackFrequency() config.Aggressivity {
	return config.AggAlways
}
