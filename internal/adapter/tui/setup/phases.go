package setup

// Phase is the screen shown by ScreenModel.
type Phase int

const (
	PhaseSession Phase = iota
	PhaseComplete
)
