package voice

import (
	"encoding/json"
	"fmt"
)

// Server event types handled by a session.
const (
	TypeSpeechStarted          = "input_audio_buffer.speech_started"
	TypeSpeechStopped          = "input_audio_buffer.speech_stopped"
	TypeTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	TypeTextDelta              = "response.text.delta"
	TypeAudioTranscriptDelta   = "response.audio_transcript.delta"
	TypeResponseDone           = "response.done"
	TypeError                  = "error"
)

// Event is a server event received on the side channel. The set of
// implementations is closed; switch on the concrete type.
type Event interface {
	// Type returns the wire type the event was parsed from.
	Type() string
	isEvent()
}

// SpeechStarted reports that the server detected the user speaking.
type SpeechStarted struct{}

// SpeechStopped reports the end of user speech.
type SpeechStopped struct{}

// TranscriptionCompleted carries the transcript of one user utterance.
type TranscriptionCompleted struct {
	Transcript string
}

// TextDelta carries an incremental piece of the agent's reply.
type TextDelta struct {
	Wire  string
	Delta string
}

// ResponseDone marks the end of an agent reply.
type ResponseDone struct{}

// ServerError is an error reported by the realtime service. It does not end
// the call.
type ServerError struct {
	Code    string
	Message string
}

// Unknown is any event type the session does not act on.
type Unknown struct {
	Wire string
}

func (SpeechStarted) Type() string          { return TypeSpeechStarted }
func (SpeechStopped) Type() string          { return TypeSpeechStopped }
func (TranscriptionCompleted) Type() string { return TypeTranscriptionCompleted }
func (e TextDelta) Type() string            { return e.Wire }
func (ResponseDone) Type() string           { return TypeResponseDone }
func (ServerError) Type() string            { return TypeError }
func (e Unknown) Type() string              { return e.Wire }

func (SpeechStarted) isEvent()          {}
func (SpeechStopped) isEvent()          {}
func (TranscriptionCompleted) isEvent() {}
func (TextDelta) isEvent()              {}
func (ResponseDone) isEvent()           {}
func (ServerError) isEvent()            {}
func (Unknown) isEvent()                {}

type serverEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta"`
	Transcript string `json:"transcript"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseEvent decodes one side-channel message. Only malformed JSON is an
// error; unrecognised types yield [Unknown].
func ParseEvent(data []byte) (Event, error) {
	var evt serverEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("voice: parse event: %w", err)
	}

	switch evt.Type {
	case TypeSpeechStarted:
		return SpeechStarted{}, nil
	case TypeSpeechStopped:
		return SpeechStopped{}, nil
	case TypeTranscriptionCompleted:
		return TranscriptionCompleted{Transcript: evt.Transcript}, nil
	case TypeTextDelta, TypeAudioTranscriptDelta:
		return TextDelta{Wire: evt.Type, Delta: evt.Delta}, nil
	case TypeResponseDone:
		return ResponseDone{}, nil
	case TypeError:
		e := ServerError{Message: "unknown error"}
		if evt.Error != nil {
			e.Code = evt.Error.Code
			if evt.Error.Message != "" {
				e.Message = evt.Error.Message
			}
		}
		return e, nil
	default:
		return Unknown{Wire: evt.Type}, nil
	}
}
