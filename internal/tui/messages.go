package tui

// openMsg starts the first turn once the program runs.
type openMsg struct{}

// replyTextMsg carries a piece of the doctor's streamed reply.
type replyTextMsg string

// turnDoneMsg is sent when a turn's stream ends.
type turnDoneMsg struct {
	Err error
}
