package voice

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Speaker identifies who a transcript line belongs to.
type Speaker int

const (
	SpeakerSystem Speaker = iota
	SpeakerUser
	SpeakerAgent
)

func (s Speaker) String() string {
	switch s {
	case SpeakerSystem:
		return "system"
	case SpeakerUser:
		return "user"
	case SpeakerAgent:
		return "agent"
	default:
		return "unknown"
	}
}

// Line is one transcript entry.
type Line struct {
	ID      uuid.UUID
	Speaker Speaker
	Text    string
	At      time.Time
}

// Transcript is the ordered, append-only record of a call. The zero value is
// empty and ready to use. A Transcript is not safe for concurrent use; the
// [Session] guards its own.
type Transcript struct {
	AgentName string
	Lines     []Line

	now func() time.Time
}

func (t *Transcript) append(sp Speaker, text string) {
	now := time.Now
	if t.now != nil {
		now = t.now
	}
	t.Lines = append(t.Lines, Line{ID: uuid.New(), Speaker: sp, Text: text, At: now()})
}

// AppendSystem appends a status message.
func (t *Transcript) AppendSystem(text string) { t.append(SpeakerSystem, text) }

// AppendUser appends one user utterance.
func (t *Transcript) AppendUser(text string) { t.append(SpeakerUser, text) }

// AppendAgentDelta extends the last line if it belongs to the agent and
// starts a new agent line otherwise.
func (t *Transcript) AppendAgentDelta(delta string) {
	if n := len(t.Lines); n > 0 && t.Lines[n-1].Speaker == SpeakerAgent {
		t.Lines[n-1].Text += delta
		return
	}
	t.append(SpeakerAgent, delta)
}

// Reset drops every line.
func (t *Transcript) Reset() { t.Lines = nil }

// Len returns the number of lines.
func (t *Transcript) Len() int { return len(t.Lines) }

// Clone returns a deep copy safe to hand to another goroutine.
func (t *Transcript) Clone() Transcript {
	return Transcript{AgentName: t.AgentName, Lines: append([]Line(nil), t.Lines...), now: t.now}
}

// String renders the transcript for display, one blank line between entries.
func (t Transcript) String() string {
	parts := make([]string, len(t.Lines))
	for i, l := range t.Lines {
		switch l.Speaker {
		case SpeakerUser:
			parts[i] = "You: " + l.Text
		case SpeakerAgent:
			parts[i] = t.AgentName + ": " + l.Text
		default:
			parts[i] = l.Text
		}
	}
	return strings.Join(parts, "\n\n")
}
