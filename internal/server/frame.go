package server

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Yahya305/Daaktar-Saab/internal/dialogue"
)

// Frame is one server-sent event on the /chat stream. Exactly the fields
// relevant to the event are set.
type Frame struct {
	Token    *string     `json:"token,omitempty"`
	State    *FrameState `json:"state,omitempty"`
	Message  string      `json:"message,omitempty"`
	Error    string      `json:"error,omitempty"`
	Complete bool        `json:"complete,omitempty"`
}

// FrameState is the "state" object of a frame. For a clarifying question it
// holds the full conversation state; for a diagnosis only the diagnosis,
// confidence and complete flag.
type FrameState struct {
	*dialogue.State

	Diagnosis  string   `json:"diagnosis,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Complete   bool     `json:"complete"`
}

// Done reports whether the frame ends the session.
func (f Frame) Done() bool {
	return f.Complete || (f.State != nil && f.State.Complete)
}

// Text returns the patient-facing text carried by the frame.
func (f Frame) Text() string {
	switch {
	case f.Token != nil && *f.Token != "":
		return *f.Token
	case f.Message != "":
		return f.Message
	default:
		return f.Error
	}
}

// EncodeEvent maps an engine event to its wire frame.
func EncodeEvent(ev dialogue.Event) (Frame, error) {
	switch ev := ev.(type) {
	case dialogue.Prompt:
		return Frame{Token: &ev.Text}, nil

	case dialogue.Token:
		f := Frame{Token: &ev.Text}
		if ev.Diagnosis != nil {
			f.State = diagnosisState(ev.Diagnosis, false)
		}
		return f, nil

	case dialogue.StateUpdate:
		if ev.Diagnosis != nil {
			return Frame{State: diagnosisState(ev.Diagnosis, true)}, nil
		}
		st := ev.State.Clone()
		empty := ""
		return Frame{Token: &empty, State: &FrameState{State: &st, Complete: ev.Complete}}, nil

	case dialogue.Terminal:
		switch ev.Kind {
		case dialogue.TerminalReferral:
			return Frame{Token: &ev.Text, Complete: true}, nil
		case dialogue.TerminalNoMatch:
			return Frame{Message: ev.Text, Complete: true}, nil
		default:
			return Frame{Error: ev.Text, Complete: true}, nil
		}
	}
	return Frame{}, fmt.Errorf("unknown event %T", ev)
}

func diagnosisState(d *dialogue.Diagnosis, complete bool) *FrameState {
	conf := d.Confidence
	return &FrameState{Diagnosis: d.Disease, Confidence: &conf, Complete: complete}
}

// WriteFrame writes f as a single "data: <json>\n\n" event.
func WriteFrame(w io.Writer, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
