package backup

import "testing"

func TestMatcher(t *testing.T) {
	m, err := NewMatcher([]string{"**/.DS_Store", "**/*.log", "skills/*/drafts", "todos"})
	if err != nil {
		t.Fatalf("NewMatcher() error = %v", err)
	}

	tests := []struct {
		rel  string
		want bool
	}{
		{".DS_Store", true},
		{"skills/.DS_Store", true},
		{"skills/ffmpeg/.DS_Store", true},
		{"debug.log", true},
		{"hooks/logs/run.log", true},
		{"skills/ffmpeg/drafts", true},
		{"skills/ffmpeg/SKILL.md", false},
		{"skills/a/b/drafts", false},
		{"todos", true},
		{"todos.md", false},
		{"settings.json", false},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			if got := m.Match(tt.rel); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.rel, got, tt.want)
			}
		})
	}
}

func TestMatcher_SingleStarNeedsASegment(t *testing.T) {
	m, err := NewMatcher([]string{"*/drafts"})
	if err != nil {
		t.Fatalf("NewMatcher() error = %v", err)
	}
	if m.Match("drafts") {
		t.Error(`"*/drafts" should not match top-level "drafts"`)
	}
	if !m.Match("skills/drafts") {
		t.Error(`"*/drafts" should match "skills/drafts"`)
	}
}

func TestMatcher_Nil(t *testing.T) {
	var m *Matcher
	if m.Match("anything") {
		t.Error("nil matcher should match nothing")
	}
	if m.Patterns() != nil {
		t.Error("nil matcher should have no patterns")
	}
}
