package dialogue

// Fixed texts emitted by the engine.
const (
	DescribePrompt  = "Describe your symptoms: "
	ReferralMessage = "Please consult a healthcare professional."
	NoMatchMessage  = "Unable to determine diagnosis. Please consult a doctor."
	ErrorMessage    = "An error occurred. Please try again."
)

// Event is one item of a turn's output. The concrete types are Prompt, Token,
// StateUpdate and Terminal.
type Event interface {
	isEvent()
}

// Diagnosis names the accepted candidate of a turn.
type Diagnosis struct {
	Disease    string  `json:"diagnosis"`
	Confidence float64 `json:"confidence"`
}

// Prompt asks the patient for an initial description.
type Prompt struct {
	Text string
}

// Token is a piece of text for the patient. Diagnosis is set only on the
// announcement that opens a diagnosis.
type Token struct {
	Text      string
	Diagnosis *Diagnosis
}

// StateUpdate carries the state the client must send back next turn.
// When Diagnosis is set the session is over and Complete is true.
type StateUpdate struct {
	State     State
	Diagnosis *Diagnosis
	Complete  bool
}

// TerminalKind classifies how a session ended.
type TerminalKind int

const (
	TerminalReferral TerminalKind = iota
	TerminalNoMatch
	TerminalError
)

func (k TerminalKind) String() string {
	switch k {
	case TerminalReferral:
		return "referral"
	case TerminalNoMatch:
		return "no_match"
	case TerminalError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal ends the session. It always implies complete.
type Terminal struct {
	Kind TerminalKind
	Text string
}

func (Prompt) isEvent()      {}
func (Token) isEvent()       {}
func (StateUpdate) isEvent() {}
func (Terminal) isEvent()    {}
