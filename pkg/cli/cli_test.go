package cli

import (
	"strings"
	"testing"
)

func TestPrintFormats(t *testing.T) {
	v := map[string]any{"id": "r1", "content": "好きな色は青"}

	var buf strings.Builder
	if err := Print(v, OutputOptions{Format: FormatJSON, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"id": "r1"`) {
		t.Errorf("json output = %s", buf.String())
	}

	buf.Reset()
	if err := Print(v, OutputOptions{Format: FormatYAML, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "id: r1") {
		t.Errorf("yaml output = %s", buf.String())
	}
}

func TestPrintWithFilter(t *testing.T) {
	v := []map[string]any{
		{"id": "a", "kind": "note"},
		{"id": "b", "kind": "session_summary"},
	}
	var buf strings.Builder
	err := Print(v, OutputOptions{
		Format: FormatJSON,
		Filter: `.[] | select(.kind == "session_summary") | .id`,
		Writer: &buf,
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != `"b"` {
		t.Errorf("filtered output = %q", buf.String())
	}
}

func TestPrintBadFilter(t *testing.T) {
	if err := Print(nil, OutputOptions{Filter: "][ not jq"}); err == nil {
		t.Error("want parse error")
	}
}

func TestLogWriterSplitsLines(t *testing.T) {
	w := NewLogWriter(3)
	w.Write([]byte("one\ntwo\n"))
	w.Write([]byte("three\nfour"))

	lines := w.Lines()
	if len(lines) != 3 {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0] != "two" || lines[2] != "four" {
		t.Errorf("lines = %v", lines)
	}
	if tail := w.Tail(1); len(tail) != 1 || tail[0] != "four" {
		t.Errorf("tail = %v", tail)
	}
}

func TestFrameRender(t *testing.T) {
	f := Frame{
		Styles: NewStyles(DefaultTheme),
		Title:  "guri",
		Status: "listening",
		Sections: []Section{
			{Label: "Transcript", Content: func() []string { return []string{"ぐり、今何時？"} }},
		},
		Help: "q: quit",
	}
	out := f.Render(80, 24)
	for _, want := range []string{"guri", "Transcript", "ぐり、今何時？", "q: quit"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q", want)
		}
	}
	if f.Render(0, 0) != "Loading..." {
		t.Error("zero size should render placeholder")
	}
}
