package detect

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oulipoly-plane/internal/domain"
)

type fakeTracker struct {
	prev map[string]string
}

func (f *fakeTracker) RecordVersion(_ context.Context, cli, version, _ string) (string, error) {
	p := f.prev[cli]
	f.prev[cli] = version
	return p, nil
}

func writeFile(t *testing.T, path, body string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), mode))
}

// fakeCLI writes an executable that prints version lines.
func fakeCLI(t *testing.T, dir, name string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts required")
	}
	p := filepath.Join(dir, name)
	writeFile(t, p, "#!/bin/sh\necho '2.1.49 (Claude Code)'\necho 'second line'\n", 0o755)
	return p
}

func TestDetect(t *testing.T) {
	home := t.TempDir()
	bin := t.TempDir()
	claude := fakeCLI(t, bin, "claude")

	writeFile(t, filepath.Join(home, ".claude", ".credentials.json"), "{}", 0o600)
	writeFile(t, filepath.Join(home, ".local", "bin", "claude-work"), "#!/bin/sh\nexec claude \"$@\"\n", 0o755)
	writeFile(t, filepath.Join(home, ".local", "bin", "unrelated"), "#!/bin/sh\necho hi\n", 0o755)

	tracker := &fakeTracker{prev: map[string]string{"claude": "2.0.0"}}
	d := New(Options{
		Home: home,
		LookPath: func(name string) (string, error) {
			if name == "claude" {
				return claude, nil
			}
			return "", errors.New("not found")
		},
		Getenv:  func(string) string { return "" },
		Tracker: tracker,
	})

	r := d.Detect(context.Background())
	require.Len(t, r.CLIs, len(DefaultKnown))
	assert.Equal(t, runtime.GOOS, r.OS.OS)

	c, ok := r.CLI("claude")
	require.True(t, ok)
	assert.True(t, c.Installed)
	assert.True(t, c.Authenticated)
	require.NotNil(t, c.Version)
	assert.Equal(t, "2.1.49 (Claude Code)", *c.Version)
	require.NotNil(t, c.PreviousVersion)
	assert.Equal(t, "2.0.0", *c.PreviousVersion)
	require.NotNil(t, c.ConfigDir)
	assert.Equal(t, filepath.Join(home, ".claude"), *c.ConfigDir)

	codex, ok := r.CLI("codex")
	require.True(t, ok)
	assert.False(t, codex.Installed)
	assert.Nil(t, codex.Version)

	require.Len(t, r.Wrappers, 1)
	assert.Equal(t, "claude-work", r.Wrappers[0].Name)
	assert.Equal(t, "claude", r.Wrappers[0].TargetCLI)

	summary := r.Summary()
	require.Len(t, summary, len(DefaultKnown))
	assert.Equal(t, "claude", summary[0].Name)
	assert.Equal(t, 1, summary[0].WrapperCount)
	assert.Zero(t, summary[1].WrapperCount)
}

func TestDetectCLI_AuthFromEnv(t *testing.T) {
	bin := t.TempDir()
	codex := fakeCLI(t, bin, "codex")

	d := New(Options{
		Home:     t.TempDir(),
		LookPath: func(string) (string, error) { return codex, nil },
		Getenv: func(k string) string {
			if k == "OPENAI_API_KEY" {
				return "sk-test"
			}
			return ""
		},
	})

	info := d.DetectCLI(context.Background(), "codex")
	assert.True(t, info.Installed)
	assert.True(t, info.Authenticated)
	assert.Nil(t, info.PreviousVersion)
}

func TestDetectCLI_VersionProbeFailure(t *testing.T) {
	d := New(Options{
		Home:     t.TempDir(),
		LookPath: func(string) (string, error) { return filepath.Join(t.TempDir(), "missing"), nil },
	})

	info := d.DetectCLI(context.Background(), "mystery")
	assert.Equal(t, "mystery", info.Name)
	assert.True(t, info.Installed)
	assert.Nil(t, info.Version)
	assert.False(t, info.Authenticated)
}

func TestSummaryEmpty(t *testing.T) {
	assert.Equal(t, []domain.CLISummaryItem{}, domain.DetectionReport{}.Summary())
}
