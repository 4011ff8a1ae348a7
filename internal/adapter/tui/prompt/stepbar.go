package prompt

import (
	"fmt"
	"strings"

	"oulipoly-plane/internal/adapter/tui/theme"
)

// stepBar displays wizard progress as "Step 2/4: Model" above a segmented
// bar: done steps, the active step and pending steps each get their own
// style.
type stepBar struct {
	labels  []string
	current int
	width   int
}

func (b stepBar) View() string {
	if len(b.labels) == 0 {
		return ""
	}
	header := theme.WizardStepActive.Render(
		fmt.Sprintf("Step %d/%d: %s", b.current+1, len(b.labels), b.labels[b.current]),
	)

	seg := theme.Clamp((b.width-len(b.labels))/len(b.labels), 2, 16)
	var bar, names []string
	for i, label := range b.labels {
		block := strings.Repeat("█", seg)
		switch {
		case i < b.current:
			bar = append(bar, theme.WizardStepDone.Render(block))
			names = append(names, theme.WizardStepDone.Render(label))
		case i == b.current:
			bar = append(bar, theme.WizardStepActive.Render(block))
			names = append(names, theme.WizardStepActive.Render(label))
		default:
			bar = append(bar, theme.ProgressEmpty.Render(strings.Repeat("░", seg)))
			names = append(names, theme.WizardStepPending.Render(label))
		}
	}
	return header + "\n" + strings.Join(bar, " ") + "\n" + strings.Join(names, theme.TextMuted.Render(" "+theme.SymbolArrowR+" "))
}
