// Command shroudd runs the mangling engine against a TUN device and a raw
// network socket. Grounded on client/doublezerod/cmd/doublezerod/main.go's
// flag/logger/metrics-server wiring, generalized from the BGP/routing daemon
// it drives to the packet-mangling engine in internal/mangle.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netshroud/shroud/internal/daemon"
	"github.com/netshroud/shroud/internal/mangle/clockrand"
	"github.com/netshroud/shroud/internal/mangle/config"
	"github.com/netshroud/shroud/internal/mangle/engine"
	"github.com/netshroud/shroud/internal/mangle/packet"
	"github.com/netshroud/shroud/internal/mangle/plugin"
	"github.com/netshroud/shroud/internal/mangle/plugin/builtin"
	"github.com/netshroud/shroud/internal/mangle/session"
	"github.com/netshroud/shroud/internal/mangle/ttlfocus"
	"github.com/netshroud/shroud/internal/transport"
)

var (
	tunIface   = flag.String("tun-iface", "shroud0", "name of the TUN device to read/write client traffic on")
	netIface   = flag.String("net-iface", "eth0", "physical interface to send/receive mangled traffic on")
	mtu        = flag.Uint("mtu", 1500, "interface MTU; packets are dropped if they would exceed it")
	debugLevel = flag.Int("debug-level", 0, "engine debug level: 2 (PACKET) or higher fails hard on a plugin contract violation; lower values have no effect")
	verbose    = flag.Bool("v", false, "enable debug-level logging regardless of -debug-level")
	versionFlag = flag.Bool("version", false, "print build version and exit")

	blacklist = flag.String("blacklist", "", "comma-separated destination addresses to never mangle")
	whitelist = flag.String("whitelist", "", "comma-separated destination addresses; when set, only these are mangled")

	pluginEnablerFile = flag.String("plugin-enabler-file", "", "path to a plugin-enabler file (name,SCRAMBLE[,SCRAMBLE...] per line)")
	onlyPlugin        = flag.String("only-plugin", "", "force a single plugin at AGG_ALWAYS: name,SCRAMBLE[,SCRAMBLE...]")

	sessionMaxEntries    = flag.Int("session-max-entries", 4096, "SessionMap eviction bound")
	sessionMaxIdleSecs   = flag.Int64("session-max-idle-seconds", 300, "SessionMap idle eviction bound")
	ttlFocusMaxEntries   = flag.Int("ttlfocus-max-entries", 4096, "TTLFocusMap eviction bound")
	ttlFocusMaxIdleSecs  = flag.Int64("ttlfocus-max-idle-seconds", 600, "TTLFocusMap idle eviction bound")

	chrootDir   = flag.String("chroot-dir", "", "if set, jail into this directory after opening privileged resources")
	chrootUser  = flag.String("chroot-user", "nobody", "user to drop privileges to after chroot")
	chrootGroup = flag.String("chroot-group", "nogroup", "group to drop privileges to after chroot")
	pidFile     = flag.String("pid-file", "/var/run/shroudd.pid", "path to the daemon's PID file")

	metricsEnable = flag.Bool("metrics-enable", false, "enable the prometheus metrics HTTP server")
	metricsAddr   = flag.String("metrics-addr", "localhost:0", "address to listen on for prometheus metrics")

	tickInterval = flag.Duration("tick-interval", 10*time.Millisecond, "poll-cycle interval between Engine.Tick calls")

	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func main() {
	flag.Parse()

	logger := newLogger(*verbose)
	slog.SetDefault(logger)

	if *versionFlag {
		fmt.Printf("version: %s\ncommit: %s\ndate: %s\n", version, commit, date)
		os.Exit(0)
	}

	if err := run(logger); err != nil {
		logger.Error("shroudd exiting", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	env, err := buildEnv(logger)
	if err != nil {
		return fmt.Errorf("build engine env: %w", err)
	}

	registry := plugin.Registry{
		"checksumcorrupt": func() plugin.Plugin { return &builtin.ChecksumCorrupt{} },
	}

	var pool plugin.Pool
	switch {
	case *onlyPlugin != "":
		only, err := parseOnlyPlugin(*onlyPlugin)
		if err != nil {
			return fmt.Errorf("parse -only-plugin: %w", err)
		}
		if err := pool.LoadOnly(only, registry); err != nil {
			return fmt.Errorf("load --only-plugin: %w", err)
		}
	case *pluginEnablerFile != "":
		if err := pool.LoadFromEnablerFile(*pluginEnablerFile, registry); err != nil {
			return fmt.Errorf("load plugin enabler file: %w", err)
		}
	default:
		logger.Info("no plugin enabler file or --only-plugin given; running with zero mangling plugins")
	}

	sessions := session.New(env, *sessionMaxEntries, *sessionMaxIdleSecs)
	foci := ttlfocus.New(env, *ttlFocusMaxEntries, *ttlFocusMaxIdleSecs)
	eng := engine.New(env, &pool, sessions, foci)

	if *metricsEnable {
		go serveMetrics(logger)
	}

	if *chrootDir != "" {
		if err := daemon.Jail(daemon.JailConfig{ChrootDir: *chrootDir, User: *chrootUser, Group: *chrootGroup}); err != nil {
			return fmt.Errorf("jail: %w", err)
		}
		logger.Info("jailed", "dir", *chrootDir, "user", *chrootUser, "group", *chrootGroup)
	}
	if err := daemon.WritePidFile(*pidFile); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer func() {
		if err := daemon.RemovePidFile(*pidFile); err != nil {
			logger.Warn("failed to remove pid file", "error", err)
		}
	}()

	tun, err := transport.OpenTunnel(*tunIface)
	if err != nil {
		return fmt.Errorf("open tunnel %s: %w", *tunIface, err)
	}
	defer tun.Close()

	netPort, err := transport.OpenNetworkPort(*netIface)
	if err != nil {
		return fmt.Errorf("open network port %s: %w", *netIface, err)
	}
	defer netPort.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ingest := make(chan ingestedPacket, 256)
	go readLoop(ctx, packet.SourceTunnel, tun, ingest, logger)
	go readLoop(ctx, packet.SourceNetwork, netPort, ingest, logger)

	logger.Info("shroudd started", "tun", *tunIface, "net", *netIface, "mtu", *mtu)

	ticker := time.NewTicker(*tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shroudd shutting down")
			return nil
		case in := <-ingest:
			if err := eng.WritePacket(in.source, in.raw); err != nil {
				logger.Debug("dropping malformed inbound packet", "source", in.source, "error", err)
			}
		case <-ticker.C:
			eng.Tick()
			drainToWire(eng, netPort, tun, logger)
		}
	}
}

// drainToWire empties SEND of everything bound for the network wire (the
// non-network-origin bucket: TUNNEL/LOCAL/TTLBFORCE) and everything bound
// back up the tunnel (the SourceNetwork-origin bucket), matching
// Engine.ReadPacket's two consumer buckets.
func drainToWire(eng *engine.Engine, netPort transport.NetworkPort, tun transport.TunnelPort, logger *slog.Logger) {
	for {
		pkt := eng.ReadPacket(packet.SourceTunnel)
		if pkt == nil {
			break
		}
		if err := netPort.WritePacket(pkt.Bytes()); err != nil {
			logger.Debug("network write failed", "error", err)
		}
	}
	for {
		pkt := eng.ReadPacket(packet.SourceNetwork)
		if pkt == nil {
			break
		}
		if err := tun.WritePacket(pkt.Bytes()); err != nil {
			logger.Debug("tunnel write failed", "error", err)
		}
	}
}

type ingestedPacket struct {
	source packet.Source
	raw    []byte
}

// readLoop pumps raw datagrams from port onto ingest until ctx is done.
// Parsing/validation happens in the main loop via Engine.WritePacket, not
// here — this goroutine only ever touches the port, never Engine state,
// preserving the single-threaded-cooperative-engine invariant spec.md §5
// requires.
func readLoop(ctx context.Context, source packet.Source, port portReader, ingest chan<- ingestedPacket, logger *slog.Logger) {
	buf := make([]byte, *mtu)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := port.ReadPacket(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Debug("read failed", "source", source, "error", err)
			continue
		}
		raw := make([]byte, n)
		copy(raw, buf[:n])
		select {
		case ingest <- ingestedPacket{source: source, raw: raw}:
		case <-ctx.Done():
			return
		}
	}
}

type portReader interface {
	ReadPacket(buf []byte) (int, error)
}

func parseOnlyPlugin(s string) (config.OnlyPlugin, error) {
	idx := strings.IndexByte(s, ',')
	if idx < 0 {
		return config.OnlyPlugin{}, fmt.Errorf("expected name,SCRAMBLE[,SCRAMBLE...], got %q", s)
	}
	name, scrambleStr := s[:idx], s[idx+1:]
	mask := config.ParseScrambleList(scrambleStr)
	if mask == 0 {
		return config.OnlyPlugin{}, fmt.Errorf("no valid scramble keywords in %q", s)
	}
	return config.OnlyPlugin{Name: name, Scrambles: mask}, nil
}

func buildEnv(logger *slog.Logger) (*config.Env, error) {
	var bl, wl *config.AddrSet
	if *blacklist != "" {
		var err error
		bl, err = config.NewAddrSet(strings.Split(*blacklist, ","))
		if err != nil {
			logger.Warn("some blacklist entries were unparseable", "error", err)
		}
	}
	if *whitelist != "" {
		var err error
		wl, err = config.NewAddrSet(strings.Split(*whitelist, ","))
		if err != nil {
			logger.Warn("some whitelist entries were unparseable", "error", err)
		}
	}

	return &config.Env{
		MTU:        uint32(*mtu),
		Blacklist:  bl,
		Whitelist:  wl,
		RNG:        clockrand.NewMathRand(time.Now().UnixNano()),
		Clock:      clockrand.NewSystemClock(),
		DebugLevel: *debugLevel,
	}, nil
}

func serveMetrics(logger *slog.Logger) {
	listener, err := net.Listen("tcp", *metricsAddr)
	if err != nil {
		logger.Error("failed to start prometheus metrics listener", "error", err)
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("prometheus metrics server started", "address", listener.Addr().String())
	if err := http.Serve(listener, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}
