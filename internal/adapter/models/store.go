// Package models stores model configs as YAML files and groups them into
// provider pools.
package models

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"oulipoly-plane/internal/domain"
)

const fileExt = ".yaml"

// Compile-time interface check.
var _ domain.ModelStore = (*FileStore)(nil)

// rawModel accepts both the multi-provider layout and the single-provider
// shorthand with command and args at the top level.
type rawModel struct {
	Command    string                  `yaml:"command,omitempty"`
	Args       []string                `yaml:"args,omitempty"`
	PromptMode string                  `yaml:"prompt_mode,omitempty"`
	Providers  []domain.ProviderConfig `yaml:"providers,omitempty"`
}

// FileStore keeps one <name>.yaml per model in a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a store rooted at dir. The directory is created on
// the first Save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the models directory.
func (s *FileStore) Dir() string { return s.dir }

// Parse decodes one model file.
func Parse(name string, data []byte) (domain.ModelConfig, error) {
	var raw rawModel
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return domain.ModelConfig{}, fmt.Errorf("parse model %s: %w", name, err)
	}
	m := domain.ModelConfig{Name: name, PromptMode: domain.PromptModeStdin}
	if raw.PromptMode == string(domain.PromptModeArg) {
		m.PromptMode = domain.PromptModeArg
	}
	switch {
	case len(raw.Providers) > 0:
		m.Providers = raw.Providers
	case raw.Command != "":
		m.Providers = []domain.ProviderConfig{{Command: raw.Command, Args: raw.Args}}
	default:
		return domain.ModelConfig{}, domain.NewDomainError("models.Parse", domain.ErrInvalidInput,
			"model "+name+": needs command or providers")
	}
	for i := range m.Providers {
		if m.Providers[i].Args == nil {
			m.Providers[i].Args = []string{}
		}
	}
	return m, nil
}

// Encode renders m in the single-provider shorthand when possible.
func Encode(m domain.ModelConfig) ([]byte, error) {
	raw := rawModel{PromptMode: string(m.PromptMode)}
	if len(m.Providers) == 1 {
		raw.Command = m.Providers[0].Command
		raw.Args = m.Providers[0].Args
	} else {
		raw.Providers = m.Providers
	}
	return yaml.Marshal(raw)
}

// List returns every model sorted by name. A missing directory is empty.
func (s *FileStore) List(_ context.Context) ([]domain.ModelConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.ModelConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read models dir: %w", err)
	}

	out := make([]domain.ModelConfig, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fileExt {
			continue
		}
		name := strings.TrimSuffix(e.Name(), fileExt)
		m, err := s.read(name)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get loads one model.
func (s *FileStore) Get(_ context.Context, name string) (domain.ModelConfig, error) {
	if err := checkName(name); err != nil {
		return domain.ModelConfig{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(name)
}

// Save validates and writes m, replacing any model of the same name.
func (s *FileStore) Save(_ context.Context, m domain.ModelConfig) error {
	if err := checkName(m.Name); err != nil {
		return err
	}
	if m.PromptMode == "" {
		m.PromptMode = domain.PromptModeStdin
	}
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := Encode(m)
	if err != nil {
		return fmt.Errorf("encode model %s: %w", m.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create models dir: %w", err)
	}
	return os.WriteFile(s.path(m.Name), data, 0o644)
}

// Delete removes a model.
func (s *FileStore) Delete(_ context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewDomainError("models.Delete", domain.ErrNotFound, name)
	}
	return err
}

// SetupNeeded reports whether first-run setup should be offered.
func (s *FileStore) SetupNeeded(ctx context.Context) (bool, error) {
	all, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	return len(all) == 0, nil
}

// Pools groups the stored models by provider command set.
func (s *FileStore) Pools(ctx context.Context) ([]domain.Pool, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return GroupPools(all), nil
}

// UpdatePool rewrites every model whose command set equals from so that it
// uses the command set to. Providers for removed commands are dropped and
// added commands get a provider with no arguments.
func (s *FileStore) UpdatePool(ctx context.Context, from, to []string) error {
	to = commandSet(to)
	if len(to) == 0 {
		return domain.NewDomainError("models.UpdatePool", domain.ErrInvalidInput, "pool must have at least one command")
	}
	from = commandSet(from)

	all, err := s.List(ctx)
	if err != nil {
		return err
	}
	var matched []domain.ModelConfig
	for _, m := range all {
		if equal(providerSet(m), from) {
			matched = append(matched, m)
		}
	}
	if len(matched) == 0 {
		return domain.NewDomainError("models.UpdatePool", domain.ErrNotFound, "no models use "+strings.Join(from, ", "))
	}

	removed := difference(from, to)
	added := difference(to, from)
	for _, m := range matched {
		var kept []domain.ProviderConfig
		for _, p := range m.Providers {
			if !contains(removed, ProviderName(p.Command)) {
				kept = append(kept, p)
			}
		}
		for _, c := range added {
			kept = append(kept, domain.ProviderConfig{Command: c, Args: []string{}})
		}
		m.Providers = kept
		if len(m.Providers) == 0 {
			return domain.NewDomainError("models.UpdatePool", domain.ErrInvalidInput,
				"model "+m.Name+" would end up with zero providers")
		}
		if err := s.Save(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// GroupPools groups models by their sorted, deduplicated provider names.
// Pools are ordered by command set; model names within a pool are sorted.
func GroupPools(all []domain.ModelConfig) []domain.Pool {
	groups := make(map[string]*domain.Pool)
	for _, m := range all {
		cmds := providerSet(m)
		k := strings.Join(cmds, "\x00")
		p, ok := groups[k]
		if !ok {
			p = &domain.Pool{Commands: cmds}
			groups[k] = p
		}
		p.ModelNames = append(p.ModelNames, m.Name)
	}

	out := make([]domain.Pool, 0, len(groups))
	for _, p := range groups {
		sort.Strings(p.ModelNames)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Join(out[i].Commands, "\x00") < strings.Join(out[j].Commands, "\x00")
	})
	return out
}

func (s *FileStore) read(name string) (domain.ModelConfig, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.ModelConfig{}, domain.NewDomainError("models.Get", domain.ErrNotFound, name)
	}
	if err != nil {
		return domain.ModelConfig{}, fmt.Errorf("read model %s: %w", name, err)
	}
	return Parse(name, data)
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+fileExt)
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return domain.NewDomainError("models", domain.ErrInvalidInput, "invalid model name "+fmt.Sprintf("%q", name))
	}
	return nil
}

func providerSet(m domain.ModelConfig) []string {
	cmds := make([]string, 0, len(m.Providers))
	for _, p := range m.Providers {
		cmds = append(cmds, ProviderName(p.Command))
	}
	return commandSet(cmds)
}

func commandSet(cmds []string) []string {
	out := make([]string, 0, len(cmds))
	seen := make(map[string]bool, len(cmds))
	for _, c := range cmds {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func difference(a, b []string) []string {
	var out []string
	for _, x := range a {
		if !contains(b, x) {
			out = append(out, x)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
