package components

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/Yahya305/Daaktar-Saab/internal/ui/theme"
)

// ChatInput wraps bubbles/textinput for the patient's replies. While a
// reply is streaming the input is locked and ignores keys.
type ChatInput struct {
	Model  textinput.Model
	locked bool
}

// NewChatInput creates a focused input.
func NewChatInput(placeholder string, charLimit int) ChatInput {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "› "
	if charLimit > 0 {
		ti.CharLimit = charLimit
	}
	ti.Focus()
	return ChatInput{Model: ti}
}

// Init returns the initial command.
func (c ChatInput) Init() tea.Cmd {
	return c.Model.Focus()
}

// Update handles messages.
func (c ChatInput) Update(msg tea.Msg) (ChatInput, tea.Cmd) {
	if c.locked {
		if _, ok := msg.(tea.KeyMsg); ok {
			return c, nil
		}
	}
	var cmd tea.Cmd
	c.Model, cmd = c.Model.Update(msg)
	return c, cmd
}

// View renders the input, dimmed while locked.
func (c ChatInput) View() string {
	if c.locked {
		return lipgloss.NewStyle().Foreground(theme.TextDim).Render("› waiting for the doctor...")
	}
	return c.Model.View()
}

// SetWidth sizes the input field.
func (c *ChatInput) SetWidth(w int) {
	c.Model.SetWidth(max(w-lipgloss.Width(c.Model.Prompt)-1, 1))
}

// Take returns the trimmed value and clears the field.
func (c *ChatInput) Take() string {
	v := strings.TrimSpace(c.Model.Value())
	c.Model.Reset()
	return v
}

// Lock stops the input from accepting keys.
func (c *ChatInput) Lock() {
	c.locked = true
}

// Unlock lets the input accept keys again.
func (c *ChatInput) Unlock() {
	c.locked = false
}

// Locked reports whether the input is locked.
func (c ChatInput) Locked() bool {
	return c.locked
}
