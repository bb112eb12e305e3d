package types

import "testing"

func TestStatus_Severity(t *testing.T) {
	s := NewStatus()
	if !s.IsOK() || s.String() != "<OK>" {
		t.Fatalf("Expected a new status to be OK")
	}

	s.AddInfo("overrides Shape#area()", nil)
	s.AddWarning("method is deprecated", nil)
	if s.Severity() != SeverityWarning || !s.HasWarning() || s.HasError() {
		t.Errorf("Expected warning severity, got %s", s.Severity())
	}

	s.AddEntry(SeverityError, "deleted-parameter-used", "parameter 'a' is used", &SourceContext{File: "/ws/A.java", Line: 3})
	if !s.HasError() || s.HasFatal() {
		t.Errorf("Expected error severity, got %s", s.Severity())
	}
	if got := s.FirstMessage(SeverityWarning); got != "method is deprecated" {
		t.Errorf("Unexpected first warning %q", got)
	}

	entry, ok := s.EntryWithCode("deleted-parameter-used")
	if !ok || entry.Context.Line != 3 {
		t.Errorf("Expected the coded entry to be found")
	}
	if _, ok := s.EntryWithCode("missing"); ok {
		t.Errorf("Expected unknown codes not to match")
	}

	want := "Info: overrides Shape#area()\nWarning: method is deprecated\nError: parameter 'a' is used (/ws/A.java:3)"
	if s.String() != want {
		t.Errorf("Unexpected rendering:\n%s", s.String())
	}
}

func TestStatus_Merge(t *testing.T) {
	s := NewStatus()
	s.Merge(nil)
	s.Merge(FatalStatus("binary method", nil))

	if !s.HasFatal() || s.Len() != 1 {
		t.Errorf("Expected the merged fatal entry, got %s", s)
	}

	entries := s.Entries()
	entries[0].Message = "changed"
	if s.FirstMessage(SeverityFatal) != "binary method" {
		t.Errorf("Expected Entries to return a copy")
	}
}

func TestStatus_Nil(t *testing.T) {
	var s *Status
	if s.Severity() != SeverityOK || s.Entries() != nil || s.FirstMessage(SeverityInfo) != "" {
		t.Errorf("Expected a nil status to behave as OK")
	}
	if _, ok := s.EntryWithCode("x"); ok {
		t.Errorf("Expected no entries in a nil status")
	}
}

func TestSourceContext_String(t *testing.T) {
	var nilCtx *SourceContext
	if nilCtx.String() != "" {
		t.Errorf("Expected empty rendering for nil context")
	}
	ctx := &SourceContext{File: "/ws/A.java", Start: 10, End: 14}
	if ctx.String() != "/ws/A.java[10,4]" {
		t.Errorf("Unexpected rendering %q", ctx.String())
	}
}
