package main

import (
	"strings"
	"testing"
)

// setMockTTY sets the TTY override for tests and returns a cleanup function.
func setMockTTY(value bool) func() {
	testIsTTYMutex.Lock()
	testIsTTYOverride = &value
	testIsTTYMutex.Unlock()
	return func() {
		testIsTTYMutex.Lock()
		testIsTTYOverride = nil
		testIsTTYMutex.Unlock()
	}
}

func TestRenderTable_TTY_WithHeaders(t *testing.T) {
	defer setMockTTY(true)()

	result := renderTable([]string{"PATTERN", "CONFIDENCE"}, [][]string{
		{"timing", "40"},
		{"workout_preference", "40"},
	})

	for _, want := range []string{"PATTERN", "CONFIDENCE", "timing", "workout_preference"} {
		if !strings.Contains(result, want) {
			t.Errorf("result should contain %q", want)
		}
	}
	if !strings.ContainsAny(result, "─│╭╮╰╯├┼┤┬┴") {
		t.Error("TTY output should contain border characters")
	}
}

func TestRenderTable_NonTTY_PlainText(t *testing.T) {
	defer setMockTTY(false)()

	result := renderTable([]string{"USER", "SCORE"}, [][]string{
		{"twin", "0.91"},
		{"stranger-with-long-name", "0.72"},
	})

	if strings.ContainsAny(result, "─│╭╮╰╯") {
		t.Error("non-TTY output should not contain border characters")
	}
	lines := strings.Split(result, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), result)
	}
	// Columns are aligned to the widest cell.
	if strings.Index(lines[0], "SCORE") != strings.Index(lines[2], "0.72") {
		t.Errorf("columns not aligned:\n%s", result)
	}
}

func TestRenderTable_EmptyRows(t *testing.T) {
	defer setMockTTY(false)()

	result := renderTable([]string{"PATTERN"}, nil)
	if result != "PATTERN" {
		t.Errorf("renderTable() = %q, want header only", result)
	}
}

func TestRenderTable_RowsLongerThanHeaders(t *testing.T) {
	defer setMockTTY(false)()

	result := renderTable([]string{"A"}, [][]string{{"1", "extra"}})
	if !strings.Contains(result, "extra") {
		t.Errorf("extra cells should be rendered:\n%s", result)
	}
}

func TestRenderPanel(t *testing.T) {
	t.Run("TTY with title", func(t *testing.T) {
		defer setMockTTY(true)()
		result := renderPanel("Store Statistics", "Users: 1")
		if !strings.Contains(result, "Store Statistics") || !strings.Contains(result, "Users: 1") {
			t.Errorf("panel missing title or content:\n%s", result)
		}
		if !strings.ContainsAny(result, "╭╮╰╯") {
			t.Error("TTY panel should have a rounded border")
		}
	})

	t.Run("non-TTY", func(t *testing.T) {
		defer setMockTTY(false)()
		if got := renderPanel("Title", "body"); got != "Title\nbody" {
			t.Errorf("renderPanel() = %q", got)
		}
		if got := renderPanel("", "body"); got != "body" {
			t.Errorf("renderPanel() without title = %q", got)
		}
	})
}

func TestPrintHelpers_NonTTY(t *testing.T) {
	defer setMockTTY(false)()

	var sb strings.Builder
	printSuccess(&sb, "saved %d", 3)
	printWarning(&sb, "careful")
	printLabel(&sb, "Readiness:", "60")

	want := "✓ saved 3\n⚠ careful\nReadiness: 60\n"
	if sb.String() != want {
		t.Errorf("output = %q, want %q", sb.String(), want)
	}
}

func TestRenderMarkdown_NonTTYPassesThrough(t *testing.T) {
	defer setMockTTY(false)()

	md := "## Recommendations\n\n- **R1** Keep going\n"
	if got := renderMarkdown(md); got != md {
		t.Errorf("renderMarkdown() = %q, want input unchanged", got)
	}
}

func TestHasMarkdown(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"## Header", true},
		{"- **R1** Title", true},
		{"ID: `01HX`", true},
		{"plain text", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := hasMarkdown(tt.content); got != tt.want {
			t.Errorf("hasMarkdown(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
