package domain

import (
	"encoding/json"
	"fmt"
)

// Wire aliases drop the variant methods so encoding/json sees plain structs.
type (
	statusWire       StatusEvent
	progressWire     ProgressEvent
	completeWire     CompleteEvent
	errorWire        ErrorEvent
	formWire         FormAction
	wizardWire       WizardAction
	confirmWire      ConfirmAction
	oauthWire        OAuthFlowAction
	apiKeyWire       APIKeyEntryAction
	cliSelectionWire CLISelectionAction
	commandWire      CommandOutput
	detectionWire    DetectionSummary
	configWire       ConfigWritten
	testResultWire   TestResult
	formSubmitWire   FormSubmit
	wizardStepWire   WizardStepResponse
	confirmRespWire  ConfirmResponse
	oauthRespWire    OAuthComplete
	apiKeyRespWire   APIKeyResponse
	cliRespWire      CLISelectionResponse
	skipWire         SkipResponse
)

type eventEnvelope struct {
	Event EventKind       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type typeTag struct {
	Type string `json:"type"`
}

// MarshalSetupEvent encodes ev as {"event": kind, "data": {...}}.
func MarshalSetupEvent(ev SetupEvent) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch e := ev.(type) {
	case StatusEvent:
		data, err = json.Marshal(statusWire(e))
	case ProgressEvent:
		data, err = json.Marshal(progressWire(e))
	case NeedInputEvent:
		var action json.RawMessage
		if action, err = MarshalAction(e.Action); err == nil {
			data, err = json.Marshal(struct {
				Action json.RawMessage `json:"action"`
			}{action})
		}
	case ShowResultEvent:
		var content json.RawMessage
		if content, err = MarshalResultContent(e.Content); err == nil {
			data, err = json.Marshal(struct {
				Content json.RawMessage `json:"content"`
			}{content})
		}
	case CompleteEvent:
		if e.ItemsConfigured == nil {
			e.ItemsConfigured = []string{}
		}
		data, err = json.Marshal(completeWire(e))
	case ErrorEvent:
		data, err = json.Marshal(errorWire(e))
	default:
		return nil, fmt.Errorf("marshal event %T: %w", ev, ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", ev.EventKind(), err)
	}
	return json.Marshal(eventEnvelope{Event: ev.EventKind(), Data: data})
}

// UnmarshalSetupEvent decodes the envelope produced by MarshalSetupEvent.
func UnmarshalSetupEvent(b []byte) (SetupEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if len(env.Data) == 0 {
		env.Data = []byte("{}")
	}
	switch env.Event {
	case EventStatus:
		var w statusWire
		return decodeAs(env.Data, &w, func() SetupEvent { return StatusEvent(w) })
	case EventProgress:
		var w progressWire
		return decodeAs(env.Data, &w, func() SetupEvent { return ProgressEvent(w) })
	case EventNeedInput:
		var w struct {
			Action json.RawMessage `json:"action"`
		}
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, fmt.Errorf("unmarshal need_input: %w", err)
		}
		action, err := UnmarshalAction(w.Action)
		if err != nil {
			return nil, err
		}
		return NeedInputEvent{Action: action}, nil
	case EventShowResult:
		var w struct {
			Content json.RawMessage `json:"content"`
		}
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, fmt.Errorf("unmarshal show_result: %w", err)
		}
		content, err := UnmarshalResultContent(w.Content)
		if err != nil {
			return nil, err
		}
		return ShowResultEvent{Content: content}, nil
	case EventComplete:
		var w completeWire
		return decodeAs(env.Data, &w, func() SetupEvent { return CompleteEvent(w) })
	case EventError:
		var w errorWire
		return decodeAs(env.Data, &w, func() SetupEvent { return ErrorEvent(w) })
	}
	return nil, NewDomainError("UnmarshalSetupEvent", ErrInvalidInput, fmt.Sprintf("unknown event %q", env.Event))
}

// MarshalAction encodes a as a flat object tagged with "type".
func MarshalAction(a Action) ([]byte, error) {
	switch v := a.(type) {
	case FormAction:
		return json.Marshal(struct {
			Type ActionKind `json:"type"`
			formWire
		}{ActionForm, formWire(v)})
	case WizardAction:
		return json.Marshal(struct {
			Type ActionKind `json:"type"`
			wizardWire
		}{ActionWizard, wizardWire(v)})
	case ConfirmAction:
		return json.Marshal(struct {
			Type ActionKind `json:"type"`
			confirmWire
		}{ActionConfirm, confirmWire(v)})
	case OAuthFlowAction:
		return json.Marshal(struct {
			Type ActionKind `json:"type"`
			oauthWire
		}{ActionOAuthFlow, oauthWire(v)})
	case APIKeyEntryAction:
		return json.Marshal(struct {
			Type ActionKind `json:"type"`
			apiKeyWire
		}{ActionAPIKeyEntry, apiKeyWire(v)})
	case CLISelectionAction:
		if v.Available == nil {
			v.Available = []CLIOption{}
		}
		return json.Marshal(struct {
			Type ActionKind `json:"type"`
			cliSelectionWire
		}{ActionCLISelection, cliSelectionWire(v)})
	}
	return nil, fmt.Errorf("marshal action %T: %w", a, ErrInvalidInput)
}

// UnmarshalAction decodes a "type"-tagged action object.
func UnmarshalAction(b []byte) (Action, error) {
	var tag typeTag
	if err := json.Unmarshal(b, &tag); err != nil {
		return nil, fmt.Errorf("unmarshal action: %w", err)
	}
	switch ActionKind(tag.Type) {
	case ActionForm:
		var w formWire
		return decodeAs(b, &w, func() Action { return FormAction(w) })
	case ActionWizard:
		var w wizardWire
		return decodeAs(b, &w, func() Action { return WizardAction(w) })
	case ActionConfirm:
		var w confirmWire
		return decodeAs(b, &w, func() Action { return ConfirmAction(w) })
	case ActionOAuthFlow:
		var w oauthWire
		return decodeAs(b, &w, func() Action { return OAuthFlowAction(w) })
	case ActionAPIKeyEntry:
		var w apiKeyWire
		return decodeAs(b, &w, func() Action { return APIKeyEntryAction(w) })
	case ActionCLISelection:
		var w cliSelectionWire
		return decodeAs(b, &w, func() Action { return CLISelectionAction(w) })
	}
	return nil, NewDomainError("UnmarshalAction", ErrInvalidInput, fmt.Sprintf("unknown action %q", tag.Type))
}

// MarshalResultContent encodes c as a flat object tagged with "type".
func MarshalResultContent(c ResultContent) ([]byte, error) {
	switch v := c.(type) {
	case CommandOutput:
		return json.Marshal(struct {
			Type ResultKind `json:"type"`
			commandWire
		}{ResultCommandOutput, commandWire(v)})
	case DetectionSummary:
		if v.CLIs == nil {
			v.CLIs = []CLISummaryItem{}
		}
		return json.Marshal(struct {
			Type ResultKind `json:"type"`
			detectionWire
		}{ResultDetectionSummary, detectionWire(v)})
	case ConfigWritten:
		return json.Marshal(struct {
			Type ResultKind `json:"type"`
			configWire
		}{ResultConfigWritten, configWire(v)})
	case TestResult:
		return json.Marshal(struct {
			Type ResultKind `json:"type"`
			testResultWire
		}{ResultTestResult, testResultWire(v)})
	}
	return nil, fmt.Errorf("marshal result %T: %w", c, ErrInvalidInput)
}

// UnmarshalResultContent decodes a "type"-tagged result object.
func UnmarshalResultContent(b []byte) (ResultContent, error) {
	var tag typeTag
	if err := json.Unmarshal(b, &tag); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	switch ResultKind(tag.Type) {
	case ResultCommandOutput:
		var w commandWire
		return decodeAs(b, &w, func() ResultContent { return CommandOutput(w) })
	case ResultDetectionSummary:
		var w detectionWire
		return decodeAs(b, &w, func() ResultContent { return DetectionSummary(w) })
	case ResultConfigWritten:
		var w configWire
		return decodeAs(b, &w, func() ResultContent { return ConfigWritten(w) })
	case ResultTestResult:
		var w testResultWire
		return decodeAs(b, &w, func() ResultContent { return TestResult(w) })
	}
	return nil, NewDomainError("UnmarshalResultContent", ErrInvalidInput, fmt.Sprintf("unknown result %q", tag.Type))
}

// MarshalUserResponse encodes r as a flat object tagged with "type".
func MarshalUserResponse(r UserResponse) ([]byte, error) {
	switch v := r.(type) {
	case FormSubmit:
		if v.Values == nil {
			v.Values = map[string]string{}
		}
		return json.Marshal(struct {
			Type ResponseKind `json:"type"`
			formSubmitWire
		}{ResponseFormSubmit, formSubmitWire(v)})
	case WizardStepResponse:
		if v.Values == nil {
			v.Values = map[string]string{}
		}
		return json.Marshal(struct {
			Type ResponseKind `json:"type"`
			wizardStepWire
		}{ResponseWizardStep, wizardStepWire(v)})
	case ConfirmResponse:
		return json.Marshal(struct {
			Type ResponseKind `json:"type"`
			confirmRespWire
		}{ResponseConfirm, confirmRespWire(v)})
	case OAuthComplete:
		return json.Marshal(struct {
			Type ResponseKind `json:"type"`
			oauthRespWire
		}{ResponseOAuthComplete, oauthRespWire(v)})
	case APIKeyResponse:
		return json.Marshal(struct {
			Type ResponseKind `json:"type"`
			apiKeyRespWire
		}{ResponseAPIKey, apiKeyRespWire(v)})
	case CLISelectionResponse:
		if v.Selected == nil {
			v.Selected = []string{}
		}
		return json.Marshal(struct {
			Type ResponseKind `json:"type"`
			cliRespWire
		}{ResponseCLISelection, cliRespWire(v)})
	case SkipResponse:
		return json.Marshal(struct {
			Type ResponseKind `json:"type"`
			skipWire
		}{ResponseSkip, skipWire(v)})
	case CancelResponse:
		return json.Marshal(typeTag{Type: string(ResponseCancel)})
	}
	return nil, fmt.Errorf("marshal response %T: %w", r, ErrInvalidInput)
}

// UnmarshalUserResponse decodes a "type"-tagged response object.
func UnmarshalUserResponse(b []byte) (UserResponse, error) {
	var tag typeTag
	if err := json.Unmarshal(b, &tag); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	switch ResponseKind(tag.Type) {
	case ResponseFormSubmit:
		var w formSubmitWire
		return decodeAs(b, &w, func() UserResponse { return FormSubmit(w) })
	case ResponseWizardStep:
		var w wizardStepWire
		return decodeAs(b, &w, func() UserResponse { return WizardStepResponse(w) })
	case ResponseConfirm:
		var w confirmRespWire
		return decodeAs(b, &w, func() UserResponse { return ConfirmResponse(w) })
	case ResponseOAuthComplete:
		var w oauthRespWire
		return decodeAs(b, &w, func() UserResponse { return OAuthComplete(w) })
	case ResponseAPIKey:
		var w apiKeyRespWire
		return decodeAs(b, &w, func() UserResponse { return APIKeyResponse(w) })
	case ResponseCLISelection:
		var w cliRespWire
		return decodeAs(b, &w, func() UserResponse { return CLISelectionResponse(w) })
	case ResponseSkip:
		var w skipWire
		return decodeAs(b, &w, func() UserResponse { return SkipResponse(w) })
	case ResponseCancel:
		return CancelResponse{}, nil
	}
	return nil, NewDomainError("UnmarshalUserResponse", ErrInvalidInput, fmt.Sprintf("unknown response %q", tag.Type))
}

// decodeAs unmarshals b into w and converts it with build on success.
func decodeAs[W any, T any](b []byte, w *W, build func() T) (T, error) {
	if err := json.Unmarshal(b, w); err != nil {
		var zero T
		return zero, fmt.Errorf("unmarshal %T: %w", *w, err)
	}
	return build(), nil
}
