package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalSetupEvent_Envelope(t *testing.T) {
	b, err := MarshalSetupEvent(ProgressEvent{Message: "Provider 1 of 3", Percent: Ptr(35.0)})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "progress", raw["event"])
	data := raw["data"].(map[string]any)
	assert.Equal(t, "Provider 1 of 3", data["message"])
	assert.Equal(t, 35.0, data["percent"])
	assert.Contains(t, data, "detail", "optional fields are sent as null")
	assert.Nil(t, data["detail"])
}

func TestUnmarshalSetupEvent_NeedInputConfirm(t *testing.T) {
	in := `{"event":"need_input","data":{"action":{"type":"confirm","title":"Write config?","message":"ok?","confirm_id":"X","confirm_label":null,"cancel_label":"No"}}}`

	ev, err := UnmarshalSetupEvent([]byte(in))
	require.NoError(t, err)

	ni, ok := ev.(NeedInputEvent)
	require.True(t, ok, "got %T", ev)
	c, ok := ni.Action.(ConfirmAction)
	require.True(t, ok, "got %T", ni.Action)
	assert.Equal(t, "X", c.ConfirmID)
	assert.Nil(t, c.ConfirmLabel)
	assert.Equal(t, "No", Deref(c.CancelLabel, ""))
}

func TestUnmarshalSetupEvent_ShowResult(t *testing.T) {
	in := `{"event":"show_result","data":{"content":{"type":"command_output","command":"which claude","stdout":"/usr/bin/claude","stderr":"","exit_code":0}}}`

	ev, err := UnmarshalSetupEvent([]byte(in))
	require.NoError(t, err)
	out := ev.(ShowResultEvent).Content.(CommandOutput)
	assert.Equal(t, "which claude", out.Command)
	assert.Equal(t, 0, out.ExitCode)
}

func TestSetupEvent_RoundTripWizard(t *testing.T) {
	wizard := WizardAction{
		Title:    "Configure",
		WizardID: "w1",
		Steps: []WizardStep{
			{Label: "Name", Form: FormAction{
				Title:  "Model",
				FormID: "f1",
				Fields: []FormField{{Name: "model_name", Label: "Model", FieldType: FieldText, DefaultValue: Ptr("gpt-4")}},
			}},
		},
	}

	b, err := MarshalSetupEvent(NeedInputEvent{Action: wizard})
	require.NoError(t, err)
	ev, err := UnmarshalSetupEvent(b)
	require.NoError(t, err)
	assert.Equal(t, NeedInputEvent{Action: wizard}, ev)

	// Nested forms carry no type tag of their own.
	assert.NotContains(t, string(b), `"form":{"type"`)
}

func TestMarshalSetupEvent_CompleteEmptyItems(t *testing.T) {
	b, err := MarshalSetupEvent(CompleteEvent{Summary: "Done"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"complete","data":{"summary":"Done","items_configured":[]}}`, string(b))
}

func TestUnmarshal_UnknownKinds(t *testing.T) {
	_, err := UnmarshalSetupEvent([]byte(`{"event":"teleport","data":{}}`))
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = UnmarshalAction([]byte(`{"type":"captcha"}`))
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = UnmarshalUserResponse([]byte(`{"type":"shrug"}`))
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = UnmarshalResultContent([]byte(`{"type":"hologram"}`))
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestMarshalUserResponse_Shapes(t *testing.T) {
	tests := []struct {
		name string
		in   UserResponse
		want string
	}{
		{"cancel", CancelResponse{}, `{"type":"cancel"}`},
		{"skip", SkipResponse{}, `{"type":"skip","reason":null}`},
		{"confirm", ConfirmResponse{ConfirmID: "X", Confirmed: true}, `{"type":"confirm","confirm_id":"X","confirmed":true}`},
		{"cli selection nil", CLISelectionResponse{}, `{"type":"cli_selection","selected":[]}`},
		{"form", FormSubmit{FormID: "f", Values: map[string]string{"a": "b"}}, `{"type":"form_submit","form_id":"f","values":{"a":"b"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := MarshalUserResponse(tt.in)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))

			back, err := UnmarshalUserResponse(b)
			require.NoError(t, err)
			assert.Equal(t, tt.in.ResponseKind(), back.ResponseKind())
		})
	}
}

func TestAnswers(t *testing.T) {
	confirm := ConfirmAction{ConfirmID: "X"}

	assert.NoError(t, Answers(confirm, ConfirmResponse{ConfirmID: "X"}))
	assert.NoError(t, Answers(confirm, CancelResponse{}))
	assert.NoError(t, Answers(confirm, SkipResponse{}))
	assert.NoError(t, Answers(CLISelectionAction{}, CLISelectionResponse{Selected: []string{"claude"}}))

	assert.ErrorIs(t, Answers(confirm, ConfirmResponse{ConfirmID: "Y"}), ErrCorrelationMismatch)
	assert.ErrorIs(t, Answers(confirm, FormSubmit{FormID: "X"}), ErrCorrelationMismatch)
	assert.ErrorIs(t, Answers(nil, CancelResponse{}), ErrNoPendingAction)

	err := Answers(confirm, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "Answers", de.Op)
	assert.ErrorIs(t, Answers(nil, nil), ErrInvalidInput)
}
