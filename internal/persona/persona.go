// Package persona holds the instruction documents that define the interview
// persona for the text-chat and voice paths.
//
// Both documents are embedded at build time and can be replaced at runtime by
// files named in the config. A [Store] makes the active [Set] swappable while
// requests are in flight.
package persona

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

// DefaultAgentName is the speaker label used for agent lines.
const DefaultAgentName = "Robert Mill AI"

//go:embed chat.md
var defaultChat string

//go:embed voice.md
var defaultVoice string

// Set is one consistent generation of persona documents.
type Set struct {
	AgentName string
	Chat      string
	Voice     string
}

// Default returns the embedded persona documents.
func Default() Set {
	return Set{
		AgentName: DefaultAgentName,
		Chat:      strings.TrimSpace(defaultChat),
		Voice:     strings.TrimSpace(defaultVoice),
	}
}

// Load builds a Set from the embedded defaults, replacing each document whose
// override path is non-empty with that file's contents.
func Load(agentName, chatFile, voiceFile string) (Set, error) {
	s := Default()
	if agentName != "" {
		s.AgentName = agentName
	}
	if chatFile != "" {
		text, err := readPrompt(chatFile)
		if err != nil {
			return Set{}, fmt.Errorf("persona: chat prompt: %w", err)
		}
		s.Chat = text
	}
	if voiceFile != "" {
		text, err := readPrompt(voiceFile)
		if err != nil {
			return Set{}, fmt.Errorf("persona: voice prompt: %w", err)
		}
		s.Voice = text
	}
	return s, nil
}

func readPrompt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%s is empty", path)
	}
	return text, nil
}

// Store holds the active Set. The zero value is not usable; use [NewStore].
type Store struct {
	cur atomic.Pointer[Set]
}

// NewStore returns a Store serving s.
func NewStore(s Set) *Store {
	st := &Store{}
	st.Swap(s)
	return st
}

// Get returns the active Set.
func (st *Store) Get() Set {
	return *st.cur.Load()
}

// Swap replaces the active Set.
func (st *Store) Swap(s Set) {
	st.cur.Store(&s)
}
