// Package config holds the engine's immutable run-config view and the
// persisted plugin-enabler file format. Modeled on
// client/doublezerod/internal/config/config.go's atomic-rewrite pattern for
// anything the daemon itself owns, and on
// original_source/src/service/PluginPool.cc's parseEnablerFile for the
// plugin-enabler text format, which the daemon only reads.
package config

import (
	"bufio"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// OnlyPlugin describes a forced single-plugin run, parsed from the
// "name,SCRAMBLE[,SCRAMBLE...]" --only-plugin command line value.
type OnlyPlugin struct {
	Name      string
	Scrambles Scramble
}

// Config is the daemon's persisted configuration; the engine's Env
// (env.go) holds a pointer to it as PortConf. Grounded on
// internal/config/config.go: a mutex-guarded struct with
// atomic-rewrite-on-save. There is no load-from-disk or reload path.
type Config struct {
	NetIfaceMTU  uint32          `json:"net_iface_mtu"`
	DebugLevel   int             `json:"debug_level"`
	UseBlacklist bool            `json:"use_blacklist"`
	UseWhitelist bool            `json:"use_whitelist"`
	ListedAddrs  []string        `json:"listed_addrs"`
	PortConf     [65536]uint16   `json:"-"` // aggressivity bitmask per destination port; not JSON-round-tripped by default
	OnlyPlugin   *OnlyPlugin     `json:"-"`

	path string
	mu   sync.RWMutex
}

// New returns a Config with spec.md-default MTU and no port overrides.
func New(path string) *Config {
	return &Config{NetIfaceMTU: 1500, path: path}
}

// Save atomically rewrites the config file, mirroring
// internal/config/config.go's saveLocked: write to a sibling temp file, then
// rename over the target so a reader never observes a partial write.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

func (c *Config) saveLocked() error {
	if c.path == "" {
		return nil
	}
	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, ".shroudd-cfg-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := fmt.Fprintf(tmp, "net_iface_mtu=%d\ndebug_level=%d\nuse_blacklist=%t\nuse_whitelist=%t\n",
		c.NetIfaceMTU, c.DebugLevel, c.UseBlacklist, c.UseWhitelist); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// AggressivityFor returns the user-configured aggressivity mask for a
// destination port.
func (c *Config) AggressivityFor(port uint16) Aggressivity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Aggressivity(c.PortConf[port])
}

// SetAggressivity installs a per-port aggressivity override.
func (c *Config) SetAggressivity(port uint16, agg Aggressivity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PortConf[port] = uint16(agg)
}

// AddrSet is a bounded IPv4 membership set used for the blacklist/whitelist.
type AddrSet struct {
	addrs map[netip.Addr]struct{}
}

// NewAddrSet builds a set from a list of dotted-quad strings, skipping any
// that fail to parse (reported to the caller as a joined error, non-fatal:
// the rest of the set is still usable).
func NewAddrSet(raw []string) (*AddrSet, error) {
	s := &AddrSet{addrs: make(map[netip.Addr]struct{}, len(raw))}
	var bad []string
	for _, r := range raw {
		a, err := netip.ParseAddr(r)
		if err != nil {
			bad = append(bad, r)
			continue
		}
		s.addrs[a] = struct{}{}
	}
	if len(bad) > 0 {
		return s, fmt.Errorf("config: %d unparseable addresses: %v", len(bad), bad)
	}
	return s, nil
}

// Contains reports set membership.
func (s *AddrSet) Contains(a netip.Addr) bool {
	if s == nil {
		return false
	}
	_, ok := s.addrs[a]
	return ok
}

// ParseEnablerFile reads a plugin-enabler text file: lines of
// "name,SCRAMBLE[,SCRAMBLE...]"; '#' and blank lines are ignored. Grounded
// directly on PluginPool::parseEnablerFile
// (original_source/src/service/PluginPool.cc), including its line-number
// diagnostics on malformed input. Returns the parsed entries in file order —
// plugin.Pool.LoadFromEnablerFile loads them in that order.
func ParseEnablerFile(path string) ([]EnablerEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open enabler file %s: %w", path, err)
	}
	defer f.Close()

	var entries []EnablerEntry
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" || text[0] == '#' || text[0] == ' ' {
			continue
		}

		idx := strings.IndexByte(text, ',')
		if idx < 0 {
			return entries, fmt.Errorf("config: %s line %d: imported %d plugins, line lacks comma separator", path, line, len(entries))
		}
		name, scrambleStr := text[:idx], text[idx+1:]
		if name == "" {
			return entries, fmt.Errorf("config: %s line %d: empty plugin name", path, line)
		}

		mask := ParseScrambleList(scrambleStr)
		if mask == 0 {
			return entries, fmt.Errorf("config: %s line %d (%s): no valid scramble keywords", path, line, name)
		}

		entries = append(entries, EnablerEntry{Name: name, Scrambles: mask})
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return entries, nil
}

// EnablerEntry is one parsed line of a plugin-enabler file.
type EnablerEntry struct {
	Name      string
	Scrambles Scramble
}
