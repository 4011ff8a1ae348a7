// Package detect finds the provider CLIs installed on the host.
package detect

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"oulipoly-plane/internal/domain"
)

// Known describes a CLI the detector looks for.
type Known struct {
	Name       string
	ConfigDirs []string
	// AuthFiles are paths relative to the home directory whose presence
	// means the CLI is logged in.
	AuthFiles []string
	// AuthEnv are environment variables that authenticate the CLI.
	AuthEnv []string
}

// DefaultKnown lists the supported provider CLIs in display order.
var DefaultKnown = []Known{
	{
		Name:       "claude",
		ConfigDirs: []string{".claude"},
		AuthFiles:  []string{".claude/.credentials.json", ".claude/credentials.json"},
	},
	{
		Name:       "codex",
		ConfigDirs: []string{".codex"},
		AuthFiles:  []string{".codex/auth.json"},
		AuthEnv:    []string{"OPENAI_API_KEY"},
	},
	{
		Name:       "opencode",
		ConfigDirs: []string{".opencode"},
		AuthFiles:  []string{".local/share/opencode/auth.json"},
	},
	{
		Name:       "gemini",
		ConfigDirs: []string{".gemini"},
		AuthFiles:  []string{".gemini/oauth_creds.json"},
	},
}

// Names returns the names of the given CLIs.
func Names(known []Known) []string {
	out := make([]string, 0, len(known))
	for _, k := range known {
		out = append(out, k.Name)
	}
	return out
}

// Compile-time interface check.
var _ domain.Detector = (*Detector)(nil)

// Options configures a Detector. Zero values select the host defaults.
type Options struct {
	Known          []Known
	Home           string
	LookPath       func(string) (string, error)
	Getenv         func(string) string
	VersionTimeout time.Duration
	Tracker        domain.VersionTracker
	Logger         *slog.Logger
}

// Detector implements domain.Detector against the local machine.
type Detector struct {
	opts Options
}

// New creates a detector.
func New(opts Options) *Detector {
	if opts.Known == nil {
		opts.Known = DefaultKnown
	}
	if opts.Home == "" {
		opts.Home, _ = os.UserHomeDir()
	}
	if opts.LookPath == nil {
		opts.LookPath = exec.LookPath
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.VersionTimeout == 0 {
		opts.VersionTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Detector{opts: opts}
}

// Detect scans every known CLI, the OS and ~/.local/bin wrappers.
func (d *Detector) Detect(ctx context.Context) domain.DetectionReport {
	report := domain.DetectionReport{
		CLIs:     make([]domain.CLIInfo, 0, len(d.opts.Known)),
		OS:       domain.OSInfo{OS: runtime.GOOS, Arch: runtime.GOARCH},
		Wrappers: d.scanWrappers(),
	}
	for _, k := range d.opts.Known {
		report.CLIs = append(report.CLIs, d.detect(ctx, k))
	}
	return report
}

// DetectCLI scans a single CLI. Unknown names are probed on PATH only.
func (d *Detector) DetectCLI(ctx context.Context, name string) domain.CLIInfo {
	for _, k := range d.opts.Known {
		if k.Name == name {
			return d.detect(ctx, k)
		}
	}
	return d.detect(ctx, Known{Name: name})
}

func (d *Detector) detect(ctx context.Context, k Known) domain.CLIInfo {
	info := domain.CLIInfo{Name: k.Name}

	for _, dir := range k.ConfigDirs {
		p := filepath.Join(d.opts.Home, dir)
		if _, err := os.Stat(p); err == nil {
			info.ConfigDir = &p
			break
		}
	}

	path, err := d.opts.LookPath(k.Name)
	if err != nil {
		return info
	}
	info.Installed = true
	info.Path = &path
	info.Authenticated = d.authenticated(k)

	if v, ok := d.version(ctx, path); ok {
		info.Version = &v
		if d.opts.Tracker != nil {
			prev, err := d.opts.Tracker.RecordVersion(ctx, k.Name, v, path)
			if err != nil {
				d.opts.Logger.Warn("record cli version failed", "cli", k.Name, "error", err)
			} else if prev != "" && prev != v {
				info.PreviousVersion = &prev
			}
		}
	}
	return info
}

func (d *Detector) authenticated(k Known) bool {
	for _, env := range k.AuthEnv {
		if d.opts.Getenv(env) != "" {
			return true
		}
	}
	for _, f := range k.AuthFiles {
		if _, err := os.Stat(filepath.Join(d.opts.Home, f)); err == nil {
			return true
		}
	}
	return false
}

// version runs "<cli> --version" and returns the first output line.
func (d *Detector) version(ctx context.Context, path string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.VersionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		d.opts.Logger.Debug("cli version probe failed", "path", path, "error", err)
		return "", false
	}
	line := strings.TrimSpace(firstLine(string(out)))
	return line, line != ""
}

func firstLine(s string) string {
	sc := bufio.NewScanner(strings.NewReader(s))
	if sc.Scan() {
		return sc.Text()
	}
	return ""
}

// scanWrappers finds scripts in ~/.local/bin that mention a known CLI.
func (d *Detector) scanWrappers() []domain.WrapperInfo {
	dir := filepath.Join(d.opts.Home, ".local", "bin")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []domain.WrapperInfo{}
	}
	out := []domain.WrapperInfo{}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		body := strings.ToLower(string(data))
		for _, k := range d.opts.Known {
			if strings.Contains(body, k.Name) {
				out = append(out, domain.WrapperInfo{Name: e.Name(), Path: p, TargetCLI: k.Name})
				break
			}
		}
	}
	return out
}
