package setupflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"oulipoly-plane/internal/domain"
)

// CommandRunner executes a command and reports its output and exit code.
// A non-nil error means the command could not be run at all.
type CommandRunner interface {
	Run(ctx context.Context, command string, args []string) (stdout, stderr string, exitCode int, err error)
}

// ExecRunner runs commands on the local machine.
type ExecRunner struct {
	Timeout time.Duration
}

func (r ExecRunner) Run(ctx context.Context, command string, args []string) (string, string, int, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return stdout.String(), stderr.String(), 0, nil
	case errors.As(err, &exitErr):
		return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
	}
	return "", "", -1, fmt.Errorf("failed to execute '%s': %w", command, err)
}

// guard enforces the command allowlist and the writable path prefixes.
type guard struct {
	commands map[string]bool
	prefixes []string
	home     string
}

func newGuard(commands, prefixes []string, home string) guard {
	g := guard{commands: make(map[string]bool, len(commands)), home: home}
	for _, c := range commands {
		g.commands[c] = true
	}
	for _, p := range prefixes {
		g.prefixes = append(g.prefixes, filepath.Join(home, p))
	}
	return g
}

func (g guard) checkCommand(command string) error {
	if !g.commands[command] {
		return domain.NewDomainError("setupflow.run_command", domain.ErrCommandNotAllowed,
			fmt.Sprintf("command '%s' is not in the allowlist", command))
	}
	return nil
}

// resolve expands ~/ and returns the cleaned absolute path when it lies
// under one of the allowed prefixes.
func (g guard) resolve(path string) (string, error) {
	p := path
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		p = filepath.Join(g.home, rest)
	}
	p = filepath.Clean(p)
	for _, prefix := range g.prefixes {
		rel, err := filepath.Rel(prefix, p)
		if err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return p, nil
		}
	}
	return "", domain.NewDomainError("setupflow.write_config", domain.ErrPathNotAllowed,
		fmt.Sprintf("write path '%s' is not in allowed directories", p))
}

func (g guard) write(path, content string) (string, error) {
	resolved, err := g.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directories: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return resolved, nil
}

// truncate shortens s to at most n bytes on a rune boundary, appending
// "..." when cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	end := 0
	for i := range s {
		if i > n {
			break
		}
		end = i
	}
	return s[:end] + "..."
}
