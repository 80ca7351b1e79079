package domain

import (
	"strings"
	"testing"
)

func TestAssignedIDsPrefersCurrentFormat(t *testing.T) {
	a := Assignment{Assigned: []string{"x"}, Similar: []string{"y"}, Opposite: []string{"z"}}
	got := a.AssignedIDs()
	if len(got) != 1 || got[0] != "x" {
		t.Fatalf("при заполненном assigned легаси-поля игнорируются: %v", got)
	}
}

func TestAssignedIDsNormalizesLegacyFormat(t *testing.T) {
	a := Assignment{Similar: []string{"a", "b"}, Opposite: []string{"c"}}
	got := a.AssignedIDs()
	if len(got) != 3 {
		t.Fatalf("легаси-поля должны объединяться: %v", got)
	}
	if got[0] != "a" || got[2] != "c" {
		t.Fatalf("порядок similar, затем opposite: %v", got)
	}
}

func TestAssignedIDsEmpty(t *testing.T) {
	if got := (Assignment{}).AssignedIDs(); got != nil {
		t.Fatalf("пустое назначение должно давать nil: %v", got)
	}
}

func TestExpectedCodeFallsBackToID(t *testing.T) {
	p := Participant{ID: "m1"}
	if p.ExpectedCode() != "m1" {
		t.Fatalf("без кода участия используется ID, получено %q", p.ExpectedCode())
	}
	p.ParticipationCode = "code-7"
	if p.ExpectedCode() != "code-7" {
		t.Fatalf("код участия имеет приоритет, получено %q", p.ExpectedCode())
	}
}

func TestValidationErrorListsAllViolations(t *testing.T) {
	err := &ValidationError{Violations: []string{"первое", "второе"}}
	msg := err.Error()
	for _, v := range err.Violations {
		if !strings.Contains(msg, v) {
			t.Fatalf("сообщение должно содержать %q: %s", v, msg)
		}
	}
}
