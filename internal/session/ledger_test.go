package session

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/nexusedu/exam-agent/internal/model"
)

// fiveQuestions builds a 5-question exam, questions 1 and 3 multi-choice.
func fiveQuestions() []model.Question {
	qs := make([]model.Question, 5)
	for i := range qs {
		qs[i] = model.Question{
			Text: "q",
			Options: []model.Option{
				{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"},
			},
		}
	}
	qs[1].AllowMultiple = true
	qs[3].AllowMultiple = true
	return qs
}

func TestLedger_SingleChoiceReplaces(t *testing.T) {
	l := NewLedger()
	l.Set(0, 1, false)
	l.Set(0, 3, false)

	sel, ok := l.Selection(0)
	if !ok {
		t.Fatal("expected an entry for question 0")
	}
	if sel.Option == nil || *sel.Option != 3 {
		t.Errorf("expected option 3, got %+v", sel)
	}
}

func TestLedger_MultiChoiceToggles(t *testing.T) {
	l := NewLedger()
	l.Set(1, 2, true)
	l.Set(1, 0, true)

	sel, _ := l.Selection(1)
	if !reflect.DeepEqual(sel.Options, []int{0, 2}) {
		t.Fatalf("expected [0 2], got %v", sel.Options)
	}

	// Toggling an existing option removes it.
	l.Set(1, 2, true)
	sel, _ = l.Selection(1)
	if !reflect.DeepEqual(sel.Options, []int{0}) {
		t.Fatalf("expected [0] after toggle, got %v", sel.Options)
	}

	// Removing the last option empties the entry entirely.
	l.Set(1, 0, true)
	if l.Answered(1) {
		t.Error("expected question 1 to be unanswered after removing all options")
	}
}

func TestLedger_IsComplete(t *testing.T) {
	qs := fiveQuestions()
	l := NewLedger()

	if l.IsComplete(qs) {
		t.Fatal("empty ledger must not be complete")
	}
	if got := l.RemainingCount(qs); got != 5 {
		t.Fatalf("expected 5 remaining, got %d", got)
	}

	l.Set(0, 0, false)
	l.Set(1, 1, true)
	l.Set(2, 2, false)
	l.Set(3, 0, true)
	l.Set(3, 3, true)
	if l.IsComplete(qs) {
		t.Fatal("ledger missing question 4 must not be complete")
	}
	if got := l.RemainingCount(qs); got != 1 {
		t.Fatalf("expected 1 remaining, got %d", got)
	}

	l.Set(4, 1, false)
	if !l.IsComplete(qs) {
		t.Fatal("expected complete ledger")
	}
	if got := l.AttemptedCount(); got != 5 {
		t.Fatalf("expected 5 attempted, got %d", got)
	}

	// Toggling a multi-choice answer away makes the ledger incomplete again.
	l.Set(1, 1, true)
	if l.IsComplete(qs) {
		t.Fatal("ledger must not be complete after clearing a multi-choice entry")
	}
}

func TestLedger_WireTranslatesToOneBased(t *testing.T) {
	// Internal {0: 2, 1: [0,2]} must submit as {0: 3, 1: [1,3]}.
	l := NewLedger()
	l.Set(0, 2, false)
	l.Set(1, 0, true)
	l.Set(1, 2, true)

	wire := l.Wire()
	if got := wire["0"]; got != 3 {
		t.Errorf("expected question 0 to submit option 3, got %v", got)
	}
	if got, ok := wire["1"].([]int); !ok || !reflect.DeepEqual(got, []int{1, 3}) {
		t.Errorf("expected question 1 to submit [1 3], got %v", wire["1"])
	}
}

func TestLedger_JSONRoundTrip(t *testing.T) {
	l := NewLedger()
	l.Set(0, 2, false)
	l.Set(1, 0, true)
	l.Set(1, 3, true)
	l.Set(4, 1, false)

	data, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	restored := NewLedger()
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !reflect.DeepEqual(restored.Wire(), l.Wire()) {
		t.Errorf("round trip mismatch: %v vs %v", restored.Wire(), l.Wire())
	}
}
