// Package daemon holds the process-lifecycle collaborators spec.md §1 scopes
// out of the mangling engine itself: privilege dropping, filesystem
// jailing, and PID-file bookkeeping. These mirror
// original_source/src/service/Process.cc's jail()/writePidfile()/
// readPidfile()/unlinkPidfile(), kept here only as thin, independently
// testable steps a process entrypoint calls in sequence — never reached
// from HackEngine.Tick or anything else in internal/mangle.
package daemon

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"syscall"
)

// JailConfig names the chroot target and the user/group to drop to after
// entering it. Matches runconfig.chroot_dir/user/group in Process.cc's jail().
type JailConfig struct {
	ChrootDir string
	User      string
	Group     string
}

// Jail creates (if needed) and chroots into cfg.ChrootDir, then drops to
// cfg.User/cfg.Group. Matches Process.cc's jail(): mkdir, chown, chdir+chroot,
// setgid before setuid (order matters — setuid first would drop the
// privilege setgid needs).
func Jail(cfg JailConfig) error {
	if cfg.ChrootDir == "" {
		return fmt.Errorf("daemon: jail requires a chroot directory")
	}

	u, err := user.Lookup(cfg.User)
	if err != nil {
		return fmt.Errorf("daemon: lookup user %q: %w", cfg.User, err)
	}
	g, err := user.LookupGroup(cfg.Group)
	if err != nil {
		return fmt.Errorf("daemon: lookup group %q: %w", cfg.Group, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("daemon: parse uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return fmt.Errorf("daemon: parse gid %q: %w", g.Gid, err)
	}

	if err := os.MkdirAll(cfg.ChrootDir, 0o700); err != nil {
		return fmt.Errorf("daemon: mkdir %s: %w", cfg.ChrootDir, err)
	}
	if err := os.Chown(cfg.ChrootDir, uid, gid); err != nil {
		return fmt.Errorf("daemon: chown %s to %s:%s: %w", cfg.ChrootDir, cfg.User, cfg.Group, err)
	}
	if err := os.Chdir(cfg.ChrootDir); err != nil {
		return fmt.Errorf("daemon: chdir %s: %w", cfg.ChrootDir, err)
	}
	if err := syscall.Chroot(cfg.ChrootDir); err != nil {
		return fmt.Errorf("daemon: chroot %s: %w", cfg.ChrootDir, err)
	}

	if err := syscall.Setgid(gid); err != nil {
		return fmt.Errorf("daemon: setgid %d: %w", gid, err)
	}
	if err := syscall.Setuid(uid); err != nil {
		return fmt.Errorf("daemon: setuid %d: %w", uid, err)
	}
	return nil
}

// WritePidFile writes the current process's PID to path, matching
// Process.cc's writePidfile. Fails if a live process already owns path.
func WritePidFile(path string) error {
	if pid, err := ReadPidFile(path); err == nil {
		if processAlive(pid) {
			return fmt.Errorf("daemon: pidfile %s already claimed by running pid %d", path, pid)
		}
	}
	return os.WriteFile(path, fmt.Appendf(nil, "%d\n", os.Getpid()), 0o644)
}

// ReadPidFile parses the PID recorded at path, matching Process.cc's
// readPidfile.
func ReadPidFile(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("daemon: read pidfile %s: %w", path, err)
	}
	pid, err := strconv.Atoi(trimNewline(string(b)))
	if err != nil {
		return 0, fmt.Errorf("daemon: parse pidfile %s: %w", path, err)
	}
	return pid, nil
}

// RemovePidFile unlinks path, matching Process.cc's unlinkPidfile. A missing
// file is not an error — the daemon may never have written one.
func RemovePidFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("daemon: remove pidfile %s: %w", path, err)
	}
	return nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
