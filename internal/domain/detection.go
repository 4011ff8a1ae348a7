package domain

import "context"

// CLIInfo describes one detected provider CLI.
type CLIInfo struct {
	Name          string  `json:"name"`
	Installed     bool    `json:"installed"`
	Path          *string `json:"path"`
	Version       *string `json:"version"`
	Authenticated bool    `json:"authenticated"`
	ConfigDir     *string `json:"config_dir"`
	// PreviousVersion is set when a version tracker saw a different version
	// before this detection.
	PreviousVersion *string `json:"previous_version"`
}

// OSInfo identifies the host platform.
type OSInfo struct {
	OS   string `json:"os_type"`
	Arch string `json:"arch"`
}

// WrapperInfo is a user script that launches one of the known CLIs.
type WrapperInfo struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	TargetCLI string `json:"target_cli"`
}

// DetectionReport is the result of scanning the host for provider CLIs.
type DetectionReport struct {
	CLIs     []CLIInfo     `json:"clis"`
	OS       OSInfo        `json:"os"`
	Wrappers []WrapperInfo `json:"wrappers"`
}

// CLI returns the entry for name.
func (r DetectionReport) CLI(name string) (CLIInfo, bool) {
	for _, c := range r.CLIs {
		if c.Name == name {
			return c, true
		}
	}
	return CLIInfo{}, false
}

// Summary converts the report into detection_summary rows.
func (r DetectionReport) Summary() []CLISummaryItem {
	out := make([]CLISummaryItem, 0, len(r.CLIs))
	for _, c := range r.CLIs {
		n := 0
		for _, w := range r.Wrappers {
			if w.TargetCLI == c.Name {
				n++
			}
		}
		out = append(out, CLISummaryItem{
			Name:          c.Name,
			Installed:     c.Installed,
			Version:       c.Version,
			Authenticated: c.Authenticated,
			WrapperCount:  n,
		})
	}
	return out
}

// Detector scans the host for provider CLIs.
type Detector interface {
	Detect(ctx context.Context) DetectionReport
	DetectCLI(ctx context.Context, name string) CLIInfo
}

// VersionTracker remembers the last seen version of each CLI.
type VersionTracker interface {
	// RecordVersion stores version and returns the previously recorded
	// one, or "" when there was none.
	RecordVersion(ctx context.Context, cli, version, path string) (previous string, err error)
}
