package setupflow

// installInstructions returns how to install the claude CLI on goos.
// Single-quoted fragments render as inline code in the OAuth prompt.
func installInstructions(goos string) string {
	const tail = "2. After installation, run: 'claude login'\n" +
		"3. Complete the OAuth flow in your browser\n" +
		"4. Choose \"I've logged in\" when done"

	switch goos {
	case "linux":
		return "To install Claude CLI:\n\n" +
			"1. Run: 'curl -fsSL https://claude.ai/install.sh | bash'\n" + tail
	case "darwin":
		return "To install Claude CLI:\n\n" +
			"1. Run: 'brew install claude'\n   OR: 'curl -fsSL https://claude.ai/install.sh | bash'\n" + tail
	case "windows":
		return "To install Claude CLI:\n\n" +
			"1. Run in PowerShell: 'irm https://claude.ai/install.ps1 | iex'\n" + tail
	}
	return "Please visit https://claude.ai/download to install the Claude CLI for your platform.\n\n" +
		"After installation, run: 'claude login'"
}
