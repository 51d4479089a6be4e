package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	s := Default()
	if s.AgentName != "Robert Mill AI" {
		t.Errorf("AgentName = %q", s.AgentName)
	}
	if !strings.Contains(s.Chat, "CIBC") {
		t.Error("chat persona should mention CIBC")
	}
	if s.Voice == "" {
		t.Error("voice persona is empty")
	}
	if s.Chat != strings.TrimSpace(s.Chat) {
		t.Error("chat persona should be trimmed")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	chatPath := filepath.Join(dir, "chat.md")
	if err := os.WriteFile(chatPath, []byte("\n  custom chat persona \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load("Coach", chatPath, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.AgentName != "Coach" {
		t.Errorf("AgentName = %q, want Coach", s.AgentName)
	}
	if s.Chat != "custom chat persona" {
		t.Errorf("Chat = %q", s.Chat)
	}
	if s.Voice != Default().Voice {
		t.Error("voice persona should keep the embedded default")
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.md")
	if err := os.WriteFile(empty, []byte("   \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		chat      string
		voice     string
		wantInErr string
	}{
		{"missing chat file", filepath.Join(dir, "nope.md"), "", "persona: chat prompt"},
		{"empty voice file", "", empty, "persona: voice prompt"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load("", tc.chat, tc.voice)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantInErr) {
				t.Errorf("err = %v, want substring %q", err, tc.wantInErr)
			}
		})
	}
}

func TestStore_Swap(t *testing.T) {
	t.Parallel()

	st := NewStore(Default())
	st.Swap(Set{AgentName: "B", Chat: "c", Voice: "v"})

	if got := st.Get(); got.AgentName != "B" || got.Chat != "c" {
		t.Errorf("Get() = %+v", got)
	}
}
