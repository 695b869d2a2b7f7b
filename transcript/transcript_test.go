package transcript

import "testing"

func TestTranscript_AppendAndClear(t *testing.T) {
	tr := New(DefaultBanner())
	if got := tr.Len(); got != 3 {
		t.Fatalf("Len() after New = %d, want banner length 3", got)
	}

	tr.Append(PlainLine("$ help"), ErrorLine("boom"), Blank())
	if got := tr.Len(); got != 6 {
		t.Fatalf("Len() = %d, want 6", got)
	}

	added := tr.Since(3)
	if len(added) != 3 || added[1].Severity != Error || added[1].Text != "boom" {
		t.Errorf("Since(3) = %+v", added)
	}

	tr.Clear()
	lines := tr.Lines()
	if len(lines) != 3 || lines[0] != DefaultBanner()[0] {
		t.Errorf("Lines() after Clear = %+v, want banner", lines)
	}
}

func TestTranscript_LinesIsACopy(t *testing.T) {
	tr := New(nil)
	tr.Append(InfoLine("one"))

	lines := tr.Lines()
	lines[0].Text = "mutated"

	if got := tr.Lines()[0].Text; got != "one" {
		t.Errorf("transcript line changed through a copy: %q", got)
	}
}

func TestTranscript_EmptyBanner(t *testing.T) {
	tr := New(nil)
	tr.Append(PlainLine("x"))
	tr.Clear()
	if tr.Len() != 0 {
		t.Errorf("Len() = %d, want 0", tr.Len())
	}
	if got := tr.Since(5); got != nil {
		t.Errorf("Since past the end = %+v, want nil", got)
	}
}

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		sev  Severity
		want string
	}{
		{Plain, "plain"},
		{Error, "error"},
		{Success, "success"},
		{Info, "info"},
	}
	for _, tt := range tests {
		if got := tt.sev.String(); got != tt.want {
			t.Errorf("Severity(%d).String() = %q, want %q", tt.sev, got, tt.want)
		}
	}
}
