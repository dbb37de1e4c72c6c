package rules

import (
	"testing"

	"github.com/hazyhaar/a11yaudit/report"
)

func TestLookup_Known(t *testing.T) {
	d, ok := Lookup("image-alt")
	if !ok {
		t.Fatal("image-alt not found")
	}
	if d.SC != "1.1.1" || d.NationalPriority != "CRITICAL" || d.Level != "A" {
		t.Fatalf("unexpected definition: %+v", d)
	}
}

func TestResolve_Unknown(t *testing.T) {
	d := Resolve("made-up-rule", "Something odd")
	if d.SC != "Unknown" || d.NationalPriority != "LOW" || d.Title != "Something odd" {
		t.Fatalf("unexpected synthetic definition: %+v", d)
	}
	if d := Resolve("made-up-rule", ""); d.Title != "made-up-rule" {
		t.Fatalf("title = %q, want rule id", d.Title)
	}
}

func TestCheckpoint(t *testing.T) {
	if got := Checkpoint("1.4.3"); got != "9.1.4 (Contrast Minimum)" {
		t.Fatalf("Checkpoint(1.4.3) = %q", got)
	}
	if got := Checkpoint("2.5.8"); got != NoCheckpoint {
		t.Fatalf("Checkpoint(2.5.8) = %q, want %q", got, NoCheckpoint)
	}
}

func TestFixPriority(t *testing.T) {
	tests := []struct {
		national string
		want     report.Priority
	}{
		{"CRITICAL", report.PriorityHigh},
		{"HIGH", report.PriorityMedium},
		{"MEDIUM", report.PriorityMedium},
		{"LOW", report.PriorityMedium},
		{"", report.PriorityMedium},
	}
	for _, tt := range tests {
		if got := FixPriority(tt.national); got != tt.want {
			t.Errorf("FixPriority(%q) = %s, want %s", tt.national, got, tt.want)
		}
	}
}

func TestTableConsistency(t *testing.T) {
	for rule, d := range table {
		switch d.NationalPriority {
		case "CRITICAL", "HIGH", "MEDIUM", "LOW":
		default:
			t.Errorf("%s: invalid national priority %q", rule, d.NationalPriority)
		}
		if d.Title == "" {
			t.Errorf("%s: empty title", rule)
		}
	}
}
