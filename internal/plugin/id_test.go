package plugin

import "testing"

func TestIDValid(t *testing.T) {
	tests := []struct {
		id   ID
		want bool
	}{
		{"a", true},
		{"undo", true},
		{"clipboard-html", true},
		{"editor.heading", true},
		{"h1", true},
		{"", false},
		{"1abc", false},
		{"Undo", false},
		{"trailing-", false},
		{"has space", false},
		{"under_score", false},
		{"-", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			if got := tt.id.Valid(); got != tt.want {
				t.Errorf("ID(%q).Valid() = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		want     string
		terminal bool
	}{
		{StateUnloaded, "unloaded", false},
		{StatePending, "pending", false},
		{StateConstructing, "constructing", false},
		{StateLoaded, "loaded", true},
		{StateFailed, "failed", true},
		{StateAborted, "aborted", true},
		{State(99), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if got := tt.state.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}
