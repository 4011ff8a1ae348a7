// Package extensions finds, copies and installs the skills and MCP servers
// of the provider CLIs.
package extensions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"oulipoly-plane/internal/domain"
)

// Layout is where a CLI keeps its extensions, relative to the home
// directory.
type Layout struct {
	SkillsDir string // empty when the CLI has no skills
	MCPConfig string // .json or .toml
}

// DefaultLayouts covers the CLIs with known extension locations.
var DefaultLayouts = map[string]Layout{
	"claude":   {SkillsDir: ".claude/skills", MCPConfig: ".claude/.claude.json"},
	"codex":    {SkillsDir: ".codex/skills", MCPConfig: ".codex/config.toml"},
	"opencode": {MCPConfig: ".opencode/config.json"},
}

// MCP server tables by config format. TOML files are also read from the
// legacy "mcp" table.
const (
	jsonServersKey = "mcpServers"
	tomlServersKey = "mcp_servers"
	tomlLegacyKey  = "mcp"
)

var _ domain.ExtensionSyncer = (*Syncer)(nil)

// Syncer implements domain.ExtensionSyncer on the local file system.
type Syncer struct {
	home    string
	layouts map[string]Layout
	logger  *slog.Logger
}

// New creates a syncer rooted at home. A nil layouts uses DefaultLayouts.
func New(home string, layouts map[string]Layout, logger *slog.Logger) *Syncer {
	if layouts == nil {
		layouts = DefaultLayouts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{home: home, layouts: layouts, logger: logger}
}

func (s *Syncer) layout(op, cli string) (Layout, error) {
	l, ok := s.layouts[cli]
	if !ok {
		return Layout{}, domain.NewDomainError(op, domain.ErrNotFound, fmt.Sprintf("no extension layout for %s", cli))
	}
	return l, nil
}

func (s *Syncer) path(rel string) string { return filepath.Join(s.home, rel) }

// Discover lists the skills and MCP servers of every installed CLI, merged
// by name and kind. Unreadable configs are logged and skipped.
func (s *Syncer) Discover(report domain.DetectionReport) []domain.Extension {
	byKey := map[string]*domain.Extension{}
	add := func(name string, kind domain.ExtensionKind, cli string) {
		key := string(kind) + "/" + name
		ext, ok := byKey[key]
		if !ok {
			ext = &domain.Extension{Name: name, Kind: kind}
			byKey[key] = ext
		}
		ext.InstalledIn = append(ext.InstalledIn, cli)
	}

	for _, c := range report.CLIs {
		if !c.Installed {
			continue
		}
		l, ok := s.layouts[c.Name]
		if !ok {
			continue
		}
		if l.SkillsDir != "" {
			entries, err := os.ReadDir(s.path(l.SkillsDir))
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("read skills dir failed", "cli", c.Name, "error", err)
			}
			for _, e := range entries {
				if e.IsDir() {
					add(e.Name(), domain.ExtensionSkill, c.Name)
				}
			}
		}
		if l.MCPConfig != "" {
			servers, err := readServers(s.path(l.MCPConfig))
			if err != nil {
				s.logger.Warn("read mcp config failed", "cli", c.Name, "error", err)
			}
			for name := range servers {
				add(name, domain.ExtensionMCP, c.Name)
			}
		}
	}

	out := make([]domain.Extension, 0, len(byKey))
	for _, ext := range byKey {
		sort.Strings(ext.InstalledIn)
		out = append(out, *ext)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind > out[j].Kind // skills first
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// CopySkill copies the skill directory of source into target, replacing
// files of the same name.
func (s *Syncer) CopySkill(source, target, skill string) error {
	const op = "extensions.CopySkill"
	if err := checkName(op, skill); err != nil {
		return err
	}
	src, err := s.layout(op, source)
	if err != nil {
		return err
	}
	dst, err := s.layout(op, target)
	if err != nil {
		return err
	}
	if src.SkillsDir == "" {
		return domain.NewDomainError(op, domain.ErrNotFound, "source CLI has no skills directory")
	}
	if dst.SkillsDir == "" {
		return domain.NewDomainError(op, domain.ErrInvalidInput, "target CLI has no skills directory")
	}

	from := filepath.Join(s.path(src.SkillsDir), skill)
	if info, err := os.Stat(from); err != nil || !info.IsDir() {
		return domain.NewDomainError(op, domain.ErrNotFound, fmt.Sprintf("skill '%s' not found in %s", skill, source))
	}
	to := filepath.Join(s.path(dst.SkillsDir), skill)
	if err := copyDir(from, to); err != nil {
		return fmt.Errorf("copy skill %s: %w", skill, err)
	}
	s.logger.Info("skill synced", "skill", skill, "from", source, "to", target)
	return nil
}

// LookupMCP returns the config of the MCP server name in cli as JSON.
func (s *Syncer) LookupMCP(cli, name string) (string, error) {
	const op = "extensions.LookupMCP"
	l, err := s.layout(op, cli)
	if err != nil {
		return "", err
	}
	servers, err := readServers(s.path(l.MCPConfig))
	if err != nil {
		return "", fmt.Errorf("read %s mcp config: %w", cli, err)
	}
	server, ok := servers[name]
	if !ok {
		return "", domain.NewDomainError(op, domain.ErrNotFound, fmt.Sprintf("MCP '%s' not found in %s", name, cli))
	}
	raw, err := json.Marshal(server)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// InstallMCP adds or replaces the MCP server name in target's config.
// config must be a JSON object.
func (s *Syncer) InstallMCP(target, name, config string) error {
	const op = "extensions.InstallMCP"
	if err := checkName(op, name); err != nil {
		return err
	}
	l, err := s.layout(op, target)
	if err != nil {
		return err
	}
	if l.MCPConfig == "" {
		return domain.NewDomainError(op, domain.ErrInvalidInput, fmt.Sprintf("%s has no MCP config", target))
	}
	var server map[string]any
	if err := json.Unmarshal([]byte(config), &server); err != nil || server == nil {
		return domain.NewDomainError(op, domain.ErrInvalidInput, "config must be a JSON object")
	}

	path := s.path(l.MCPConfig)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if isTOML(path) {
		err = installTOML(path, name, server)
	} else {
		err = installJSON(path, name, server)
	}
	if err != nil {
		return err
	}
	s.logger.Info("mcp server installed", "name", name, "cli", target, "config", path)
	return nil
}

func installJSON(path, name string, server map[string]any) error {
	doc, err := readDoc(path, json.Unmarshal)
	if err != nil {
		return err
	}
	servers, _ := doc[jsonServersKey].(map[string]any)
	if servers == nil {
		servers = map[string]any{}
	}
	servers[name] = server
	doc[jsonServersKey] = servers

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, append(out, '\n'))
}

func installTOML(path, name string, server map[string]any) error {
	doc, err := readDoc(path, toml.Unmarshal)
	if err != nil {
		return err
	}
	servers, _ := doc[tomlServersKey].(map[string]any)
	if servers == nil {
		servers = map[string]any{}
	}
	servers[name] = server
	doc[tomlServersKey] = servers

	out, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return writeFile(path, out)
}

// readServers returns the MCP server table of the config at path. A missing
// file has no servers.
func readServers(path string) (map[string]any, error) {
	if isTOML(path) {
		doc, err := readDoc(path, toml.Unmarshal)
		if err != nil {
			return nil, err
		}
		servers := map[string]any{}
		for _, key := range []string{tomlLegacyKey, tomlServersKey} {
			if t, ok := doc[key].(map[string]any); ok {
				for name, v := range t {
					servers[name] = v
				}
			}
		}
		return servers, nil
	}
	doc, err := readDoc(path, json.Unmarshal)
	if err != nil {
		return nil, err
	}
	servers, _ := doc[jsonServersKey].(map[string]any)
	return servers, nil
}

func readDoc(path string, unmarshal func([]byte, any) error) (map[string]any, error) {
	doc := map[string]any{}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return doc, nil
	}
	if err := unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func isTOML(path string) bool { return strings.EqualFold(filepath.Ext(path), ".toml") }

// writeFile replaces path through a temp file in the same directory.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".plane-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// checkName rejects names that would escape the extension directory.
func checkName(op, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return domain.NewDomainError(op, domain.ErrInvalidInput, fmt.Sprintf("invalid name %q", name))
	}
	return nil
}

func copyDir(from, to string) error {
	return filepath.WalkDir(from, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(to, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(dest, info.Mode().Perm()|0o700)
		case d.Type().IsRegular():
			return copyFile(path, dest, info.Mode().Perm())
		}
		// Symlinks and other special files are not copied.
		return nil
	})
}

func copyFile(from, to string, mode fs.FileMode) error {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
