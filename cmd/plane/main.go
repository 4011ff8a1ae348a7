package main

import (
	"fmt"
	"os"
	"strings"

	"oulipoly-plane/internal/adapter/tui/uxerror"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		if err := runDefault(); err != nil {
			fail(err)
		}
		return
	}

	var err error
	switch os.Args[1] {
	case "setup":
		err = runSetup(flagValue("--cli"), flagValue("--scenario"))
	case "dashboard":
		err = runDashboard()
	case "detect":
		err = runDetect()
	case "history":
		err = runHistory(positional(2))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'plane --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
	if err != nil {
		fail(err)
	}
}

// fail prints a friendly rendering of err and exits.
func fail(err error) {
	fmt.Fprintln(os.Stderr, uxerror.Humanize(err).Render())
	os.Exit(1)
}

func showUsage() {
	fmt.Println(`plane - model pool control for the Oulipoly agent runner

USAGE:
    plane [COMMAND] [FLAGS]

COMMANDS:
    setup       Run interactive setup
                  --cli NAME        set up a single provider CLI
                  --scenario FILE   replay a scripted session instead
    dashboard   Manage configured model pools
    detect      Print detected provider CLIs
    history     List recent setup sessions
                  history ID        show the turns of one session

    (no command) - Open the dashboard, or run setup on first use

FLAGS:
    -h, --help         Show this help message
    --config PATH      Config file (default: $PLANE_CONFIG or
                       ~/.config/oulipoly-plane/config.yaml)

CONFIGURATION:
    Environment: PLANE_* variables override config

EXAMPLES:
    plane                        # Dashboard, or setup when nothing is configured
    plane setup                  # Detect CLIs and configure models
    plane setup --cli codex      # Add the codex CLI only
    plane detect                 # Show what is installed`)
}

// flagValue returns the value of --name VALUE or --name=VALUE.
func flagValue(name string) string {
	for i := 1; i < len(os.Args); i++ {
		switch {
		case os.Args[i] == name && i+1 < len(os.Args):
			return os.Args[i+1]
		case strings.HasPrefix(os.Args[i], name+"="):
			return strings.TrimPrefix(os.Args[i], name+"=")
		}
	}
	return ""
}

// positional returns the n-th argument when it is not a flag.
func positional(n int) string {
	if n < len(os.Args) && !strings.HasPrefix(os.Args[n], "-") {
		return os.Args[n]
	}
	return ""
}
