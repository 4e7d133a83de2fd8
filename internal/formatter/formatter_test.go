package formatter

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestTable_HeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "PATH", "ACTION")
	tbl.AddRow("skills/a.md", "copied")
	tbl.AddRow("settings.json")
	if err := tbl.Render(); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "PATH") || !strings.Contains(lines[0], "ACTION") {
		t.Errorf("header line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "----") {
		t.Errorf("separator line = %q", lines[1])
	}
	if strings.TrimSpace(lines[3]) != "settings.json" {
		t.Errorf("short row should pad missing cells, got %q", lines[3])
	}
}

func TestTable_NoRowsNoHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTable(&buf, "A").Render(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("empty table should render nothing, got %q", buf.String())
	}
}

func TestTable_Truncate(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "NAME").SetMaxWidth(0, 8)
	tbl.AddRow("abcdefghijkl")
	_ = tbl.Render()
	if !strings.Contains(buf.String(), "abcde...") {
		t.Errorf("expected truncated cell, got %q", buf.String())
	}
}

func TestWriteStructured(t *testing.T) {
	v := map[string]int{"copied": 3}

	var js bytes.Buffer
	if err := WriteStructured(&js, FormatJSON, v); err != nil {
		t.Fatal(err)
	}
	if js.String() != "{\n  \"copied\": 3\n}\n" {
		t.Errorf("json = %q", js.String())
	}

	var ym bytes.Buffer
	if err := WriteStructured(&ym, FormatYAML, v); err != nil {
		t.Fatal(err)
	}
	if ym.String() != "copied: 3\n" {
		t.Errorf("yaml = %q", ym.String())
	}

	if err := WriteStructured(&ym, "xml", v); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("xml error = %v, want ErrUnknownFormat", err)
	}
}

func TestValidate(t *testing.T) {
	for _, f := range []string{FormatTable, FormatJSON, FormatYAML} {
		if err := Validate(f); err != nil {
			t.Errorf("Validate(%q) = %v", f, err)
		}
	}
	if err := Validate("csv"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Validate(csv) = %v, want ErrUnknownFormat", err)
	}
}
