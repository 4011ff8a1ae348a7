package domain

import "context"

// EventKind discriminates SetupEvent variants on the wire.
type EventKind string

const (
	EventStatus     EventKind = "status"
	EventProgress   EventKind = "progress"
	EventNeedInput  EventKind = "need_input"
	EventShowResult EventKind = "show_result"
	EventComplete   EventKind = "complete"
	EventError      EventKind = "error"
)

// SetupEvent is a message pushed from a setup backend to the client.
// The set of variants is closed; see the Event* kinds.
type SetupEvent interface {
	EventKind() EventKind
	isSetupEvent()
}

// StatusEvent is an informational status line.
type StatusEvent struct {
	Message string `json:"message"`
}

// ProgressEvent reports progress. Percent is 0-100 when known.
type ProgressEvent struct {
	Message string   `json:"message"`
	Percent *float64 `json:"percent"`
	Detail  *string  `json:"detail"`
}

// NeedInputEvent blocks the backend until a matching UserResponse arrives.
type NeedInputEvent struct {
	Action Action `json:"action"`
}

// ShowResultEvent appends content to the client's result log.
type ShowResultEvent struct {
	Content ResultContent `json:"content"`
}

// CompleteEvent is terminal success.
type CompleteEvent struct {
	Summary         string   `json:"summary"`
	ItemsConfigured []string `json:"items_configured"`
}

// ErrorEvent reports a failure. A non-recoverable error ends the attempt.
type ErrorEvent struct {
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

func (StatusEvent) EventKind() EventKind     { return EventStatus }
func (ProgressEvent) EventKind() EventKind   { return EventProgress }
func (NeedInputEvent) EventKind() EventKind  { return EventNeedInput }
func (ShowResultEvent) EventKind() EventKind { return EventShowResult }
func (CompleteEvent) EventKind() EventKind   { return EventComplete }
func (ErrorEvent) EventKind() EventKind      { return EventError }

func (StatusEvent) isSetupEvent()     {}
func (ProgressEvent) isSetupEvent()   {}
func (NeedInputEvent) isSetupEvent()  {}
func (ShowResultEvent) isSetupEvent() {}
func (CompleteEvent) isSetupEvent()   {}
func (ErrorEvent) isSetupEvent()      {}

// ActionKind discriminates Action variants on the wire.
type ActionKind string

const (
	ActionForm         ActionKind = "form"
	ActionWizard       ActionKind = "wizard"
	ActionConfirm      ActionKind = "confirm"
	ActionOAuthFlow    ActionKind = "oauth_flow"
	ActionAPIKeyEntry  ActionKind = "api_key_entry"
	ActionCLISelection ActionKind = "cli_selection"
)

// Action describes a prompt the user must answer.
type Action interface {
	ActionKind() ActionKind
	// CorrelationID is the id a response must echo back. OAuth and API key
	// prompts correlate by provider; CLI selection has no id.
	CorrelationID() string
	isAction()
}

// FieldType is the input kind of a form field.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldPassword    FieldType = "password"
	FieldTextarea    FieldType = "textarea"
	FieldSelect      FieldType = "select"
	FieldCheckbox    FieldType = "checkbox"
	FieldMultiSelect FieldType = "multi_select"
)

// SelectOption is one choice of a select or multi_select field.
type SelectOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FormField is one input of a form.
type FormField struct {
	Name         string         `json:"name"`
	Label        string         `json:"label"`
	FieldType    FieldType      `json:"field_type"`
	Required     bool           `json:"required"`
	DefaultValue *string        `json:"default_value"`
	Options      []SelectOption `json:"options"`
	Placeholder  *string        `json:"placeholder"`
	HelpText     *string        `json:"help_text"`
}

// FormAction asks for a set of named values.
type FormAction struct {
	Title       string      `json:"title"`
	Description *string     `json:"description"`
	Fields      []FormField `json:"fields"`
	FormID      string      `json:"form_id"`
	SubmitLabel *string     `json:"submit_label"`
}

// WizardStep wraps one form of a multi-step wizard.
type WizardStep struct {
	Label       string     `json:"label"`
	Description *string    `json:"description"`
	Form        FormAction `json:"form"`
}

// WizardAction is an ordered sequence of forms.
type WizardAction struct {
	Title       string       `json:"title"`
	Steps       []WizardStep `json:"steps"`
	CurrentStep int          `json:"current_step"`
	WizardID    string       `json:"wizard_id"`
}

// ConfirmAction is a yes/no question.
type ConfirmAction struct {
	Title        string  `json:"title"`
	Message      string  `json:"message"`
	ConfirmID    string  `json:"confirm_id"`
	ConfirmLabel *string `json:"confirm_label"`
	CancelLabel  *string `json:"cancel_label"`
}

// OAuthFlowAction asks the user to log in out of band.
type OAuthFlowAction struct {
	Provider     string `json:"provider"`
	LoginCommand string `json:"login_command"`
	Instructions string `json:"instructions"`
}

// APIKeyEntryAction asks for a secret key.
type APIKeyEntryAction struct {
	Provider string  `json:"provider"`
	EnvVar   string  `json:"env_var"`
	HelpURL  *string `json:"help_url"`
}

// CLIOption is one selectable CLI.
type CLIOption struct {
	Name        string `json:"name"`
	Installed   bool   `json:"installed"`
	Description string `json:"description"`
}

// CLISelectionAction asks which detected CLIs to configure.
type CLISelectionAction struct {
	Available []CLIOption `json:"available"`
	Message   string      `json:"message"`
}

func (FormAction) ActionKind() ActionKind         { return ActionForm }
func (WizardAction) ActionKind() ActionKind       { return ActionWizard }
func (ConfirmAction) ActionKind() ActionKind      { return ActionConfirm }
func (OAuthFlowAction) ActionKind() ActionKind    { return ActionOAuthFlow }
func (APIKeyEntryAction) ActionKind() ActionKind  { return ActionAPIKeyEntry }
func (CLISelectionAction) ActionKind() ActionKind { return ActionCLISelection }

func (a FormAction) CorrelationID() string        { return a.FormID }
func (a WizardAction) CorrelationID() string      { return a.WizardID }
func (a ConfirmAction) CorrelationID() string     { return a.ConfirmID }
func (a OAuthFlowAction) CorrelationID() string   { return a.Provider }
func (a APIKeyEntryAction) CorrelationID() string { return a.Provider }
func (CLISelectionAction) CorrelationID() string  { return "" }

func (FormAction) isAction()         {}
func (WizardAction) isAction()       {}
func (ConfirmAction) isAction()      {}
func (OAuthFlowAction) isAction()    {}
func (APIKeyEntryAction) isAction()  {}
func (CLISelectionAction) isAction() {}

// ResultKind discriminates ResultContent variants on the wire.
type ResultKind string

const (
	ResultCommandOutput    ResultKind = "command_output"
	ResultDetectionSummary ResultKind = "detection_summary"
	ResultConfigWritten    ResultKind = "config_written"
	ResultTestResult       ResultKind = "test_result"
)

// ResultContent is an entry of the result log.
type ResultContent interface {
	ResultKind() ResultKind
	isResultContent()
}

// CommandOutput records a command the backend ran.
type CommandOutput struct {
	Command  string `json:"command"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// CLISummaryItem is one row of a detection summary.
type CLISummaryItem struct {
	Name          string  `json:"name"`
	Installed     bool    `json:"installed"`
	Version       *string `json:"version"`
	Authenticated bool    `json:"authenticated"`
	WrapperCount  int     `json:"wrapper_count"`
}

// DetectionSummary lists every known CLI and what was found.
type DetectionSummary struct {
	CLIs []CLISummaryItem `json:"clis"`
}

// ConfigWritten records a file the backend wrote.
type ConfigWritten struct {
	Path        string `json:"path"`
	Description string `json:"description"`
}

// TestResult records an integration test of a model.
type TestResult struct {
	Model   string `json:"model"`
	Success bool   `json:"success"`
	Output  string `json:"output"`
}

func (CommandOutput) ResultKind() ResultKind    { return ResultCommandOutput }
func (DetectionSummary) ResultKind() ResultKind { return ResultDetectionSummary }
func (ConfigWritten) ResultKind() ResultKind    { return ResultConfigWritten }
func (TestResult) ResultKind() ResultKind       { return ResultTestResult }

func (CommandOutput) isResultContent()    {}
func (DetectionSummary) isResultContent() {}
func (ConfigWritten) isResultContent()    {}
func (TestResult) isResultContent()       {}

// ResponseKind discriminates UserResponse variants on the wire.
type ResponseKind string

const (
	ResponseFormSubmit    ResponseKind = "form_submit"
	ResponseWizardStep    ResponseKind = "wizard_step"
	ResponseConfirm       ResponseKind = "confirm"
	ResponseOAuthComplete ResponseKind = "oauth_complete"
	ResponseAPIKey        ResponseKind = "api_key"
	ResponseCLISelection  ResponseKind = "cli_selection"
	ResponseSkip          ResponseKind = "skip"
	ResponseCancel        ResponseKind = "cancel"
)

// UserResponse is the client's answer to a pending Action.
type UserResponse interface {
	ResponseKind() ResponseKind
	CorrelationID() string
	isUserResponse()
}

type FormSubmit struct {
	FormID string            `json:"form_id"`
	Values map[string]string `json:"values"`
}

type WizardStepResponse struct {
	WizardID string            `json:"wizard_id"`
	Step     int               `json:"step"`
	Values   map[string]string `json:"values"`
}

type ConfirmResponse struct {
	ConfirmID string `json:"confirm_id"`
	Confirmed bool   `json:"confirmed"`
}

type OAuthComplete struct {
	Provider string `json:"provider"`
	Success  bool   `json:"success"`
}

type APIKeyResponse struct {
	Provider string `json:"provider"`
	Key      string `json:"key"`
}

type CLISelectionResponse struct {
	Selected []string `json:"selected"`
}

// SkipResponse declines the pending action without cancelling the session.
type SkipResponse struct {
	Reason *string `json:"reason"`
}

// CancelResponse asks the backend to abandon the session.
type CancelResponse struct{}

func (FormSubmit) ResponseKind() ResponseKind           { return ResponseFormSubmit }
func (WizardStepResponse) ResponseKind() ResponseKind   { return ResponseWizardStep }
func (ConfirmResponse) ResponseKind() ResponseKind      { return ResponseConfirm }
func (OAuthComplete) ResponseKind() ResponseKind        { return ResponseOAuthComplete }
func (APIKeyResponse) ResponseKind() ResponseKind       { return ResponseAPIKey }
func (CLISelectionResponse) ResponseKind() ResponseKind { return ResponseCLISelection }
func (SkipResponse) ResponseKind() ResponseKind         { return ResponseSkip }
func (CancelResponse) ResponseKind() ResponseKind       { return ResponseCancel }

func (r FormSubmit) CorrelationID() string         { return r.FormID }
func (r WizardStepResponse) CorrelationID() string { return r.WizardID }
func (r ConfirmResponse) CorrelationID() string    { return r.ConfirmID }
func (r OAuthComplete) CorrelationID() string      { return r.Provider }
func (r APIKeyResponse) CorrelationID() string     { return r.Provider }
func (CLISelectionResponse) CorrelationID() string { return "" }
func (SkipResponse) CorrelationID() string         { return "" }
func (CancelResponse) CorrelationID() string       { return "" }

func (FormSubmit) isUserResponse()           {}
func (WizardStepResponse) isUserResponse()   {}
func (ConfirmResponse) isUserResponse()      {}
func (OAuthComplete) isUserResponse()        {}
func (APIKeyResponse) isUserResponse()       {}
func (CLISelectionResponse) isUserResponse() {}
func (SkipResponse) isUserResponse()         {}
func (CancelResponse) isUserResponse()       {}

// ResponseKindFor returns the response kind that answers an action kind.
func ResponseKindFor(kind ActionKind) ResponseKind {
	switch kind {
	case ActionForm:
		return ResponseFormSubmit
	case ActionWizard:
		return ResponseWizardStep
	case ActionConfirm:
		return ResponseConfirm
	case ActionOAuthFlow:
		return ResponseOAuthComplete
	case ActionAPIKeyEntry:
		return ResponseAPIKey
	case ActionCLISelection:
		return ResponseCLISelection
	}
	return ""
}

// Answers reports whether resp is a valid answer to action. Skip and cancel
// answer any action; every other response must match the action's kind and
// echo its correlation id.
func Answers(action Action, resp UserResponse) error {
	if resp == nil {
		return NewDomainError("Answers", ErrInvalidInput, "nil response")
	}
	if action == nil {
		return ErrNoPendingAction
	}
	switch resp.ResponseKind() {
	case ResponseSkip, ResponseCancel:
		return nil
	}
	if want := ResponseKindFor(action.ActionKind()); resp.ResponseKind() != want {
		return NewDomainError("Answers", ErrCorrelationMismatch,
			"got "+string(resp.ResponseKind())+", want "+string(want))
	}
	if resp.CorrelationID() != action.CorrelationID() {
		return NewDomainError("Answers", ErrCorrelationMismatch,
			"id "+resp.CorrelationID()+" != "+action.CorrelationID())
	}
	return nil
}

// SessionHandle identifies a backend setup session.
type SessionHandle string

// EventSink receives events pushed by a backend. Implementations must
// deliver events in the order Send is called.
type EventSink interface {
	Send(ev SetupEvent) error
}

// SetupBackend is the capability surface of a setup task.
type SetupBackend interface {
	// Start begins a session that pushes events into sink.
	Start(ctx context.Context, sink EventSink) (SessionHandle, error)
	// Respond answers the pending action. It fails with ErrNoActiveSession
	// once the session is gone.
	Respond(ctx context.Context, resp UserResponse) error
	Cancel(ctx context.Context) error
}

// Ptr returns a pointer to v. Used for optional wire fields.
func Ptr[T any](v T) *T { return &v }

// Deref returns *p, or def when p is nil.
func Deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
