package complexity

import (
	"testing"

	"github.com/zen-systems/taskgate/pkg/task"
)

func TestAnalyzeDeterministic(t *testing.T) {
	text := "How much does the premium plan cost, and can we schedule a demo?"
	first := Analyze(text, task.Flags{})
	for i := 0; i < 5; i++ {
		again := Analyze(text, task.Flags{})
		if again != first {
			t.Fatalf("analysis not deterministic: %+v vs %+v", again, first)
		}
	}
}

func TestAnalyzeBounds(t *testing.T) {
	texts := []string{
		"",
		"   ",
		"thanks",
		"urgent: everything is broken and the integration fails because the api, the webhook, and the sync all error",
		"short",
	}
	for _, text := range texts {
		s := Analyze(text, task.Flags{})
		if s.Composite < 0 || s.Composite > 10 {
			t.Fatalf("composite out of range for %q: %f", text, s.Composite)
		}
		for name, v := range map[string]float64{"pattern": s.Pattern, "linguistic": s.Linguistic, "situational": s.Situational} {
			if v < 0 || v > 10 {
				t.Fatalf("%s score out of range for %q: %f", name, text, v)
			}
		}
		if s.Confidence < 0 || s.Confidence > 0.9 {
			t.Fatalf("confidence out of range for %q: %f", text, s.Confidence)
		}
	}
}

func TestAnalyzeEmptyTextIsSimple(t *testing.T) {
	s := Analyze("", task.Flags{})
	if s.Class != ClassSimple {
		t.Fatalf("expected simple class for empty text, got %s", s.Class)
	}
	s = Analyze("   \n\t ", task.Flags{})
	if s.Class != ClassSimple {
		t.Fatalf("expected simple class for whitespace text, got %s", s.Class)
	}
}

func TestAnalyzeSimpleAcknowledgement(t *testing.T) {
	s := Analyze("thanks, got it", task.Flags{})
	if s.Class != ClassSimple {
		t.Fatalf("expected simple, got %s (composite %.2f)", s.Class, s.Composite)
	}
}

func TestAnalyzeUrgentRefundIsComplex(t *testing.T) {
	s := Analyze("urgent: order stuck, need refund now", task.Flags{})
	if s.Composite <= 7 {
		t.Fatalf("expected composite above 7, got %.2f", s.Composite)
	}
	if s.Class != ClassComplex {
		t.Fatalf("expected complex, got %s", s.Class)
	}
}

func TestExternalSystemFlagForcesHighSituational(t *testing.T) {
	s := Analyze("thanks", task.Flags{ExternalSystem: true})
	if s.Situational < 8 {
		t.Fatalf("expected situational >= 8 with external flag, got %.2f", s.Situational)
	}
	s = Analyze("thanks", task.Flags{CrossEntity: true})
	if s.Situational < 8 {
		t.Fatalf("expected situational >= 8 with cross-entity flag, got %.2f", s.Situational)
	}
}

func TestClassThresholds(t *testing.T) {
	cases := []struct {
		composite float64
		want      Class
	}{
		{0, ClassSimple},
		{3.0, ClassSimple},
		{3.01, ClassStandard},
		{7.0, ClassStandard},
		{7.01, ClassComplex},
		{10, ClassComplex},
	}
	for _, tc := range cases {
		if got := classify(tc.composite); got != tc.want {
			t.Fatalf("classify(%.2f) = %s, want %s", tc.composite, got, tc.want)
		}
	}
}

func TestConfidenceCapped(t *testing.T) {
	if c := confidence(10); c > 0.9 {
		t.Fatalf("confidence above cap: %f", c)
	}
	near := confidence(3.05)
	far := confidence(5.0)
	if near >= far {
		t.Fatalf("confidence near boundary (%.2f) should be below mid-band (%.2f)", near, far)
	}
}
