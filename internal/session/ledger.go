package session

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/nexusedu/exam-agent/internal/model"
)

// Selection holds a student's current picks for one question. Exactly one of
// Option (single-choice) or Options (multi-choice) is populated.
type Selection struct {
	Option  *int  `json:"option,omitempty"`
	Options []int `json:"options,omitempty"`
}

func (sel *Selection) empty() bool {
	return sel == nil || (sel.Option == nil && len(sel.Options) == 0)
}

// Ledger is the per-question record of the student's selections. Indices are
// 0-based internally; conversion to the backend's 1-based option numbering
// happens only in Wire at submit time. An entry exists only once a question
// has been touched.
type Ledger struct {
	entries map[int]*Selection
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[int]*Selection)}
}

// Set records an option pick for a question. For multi-choice questions the
// option toggles: picked if absent, removed if present. For single-choice the
// previous pick is replaced.
func (l *Ledger) Set(questionIndex, optionIndex int, allowMultiple bool) {
	if !allowMultiple {
		opt := optionIndex
		l.entries[questionIndex] = &Selection{Option: &opt}
		return
	}

	sel := l.entries[questionIndex]
	if sel == nil {
		sel = &Selection{}
		l.entries[questionIndex] = sel
	}

	for i, existing := range sel.Options {
		if existing == optionIndex {
			sel.Options = append(sel.Options[:i], sel.Options[i+1:]...)
			if sel.empty() {
				delete(l.entries, questionIndex)
			}
			return
		}
	}
	sel.Options = append(sel.Options, optionIndex)
	sort.Ints(sel.Options)
}

// Selection returns a copy of the current picks for a question.
func (l *Ledger) Selection(questionIndex int) (Selection, bool) {
	sel, ok := l.entries[questionIndex]
	if !ok || sel.empty() {
		return Selection{}, false
	}
	out := Selection{}
	if sel.Option != nil {
		opt := *sel.Option
		out.Option = &opt
	}
	out.Options = append(out.Options, sel.Options...)
	return out, true
}

// Answered reports whether the question has a non-empty entry.
func (l *Ledger) Answered(questionIndex int) bool {
	return !l.entries[questionIndex].empty()
}

// IsComplete reports whether every question has a non-empty entry.
func (l *Ledger) IsComplete(questions []model.Question) bool {
	return l.RemainingCount(questions) == 0
}

// RemainingCount counts the questions still lacking an answer.
func (l *Ledger) RemainingCount(questions []model.Question) int {
	remaining := 0
	for i := range questions {
		if !l.Answered(i) {
			remaining++
		}
	}
	return remaining
}

// AttemptedCount counts the questions with a non-empty entry.
func (l *Ledger) AttemptedCount() int {
	count := 0
	for _, sel := range l.entries {
		if !sel.empty() {
			count++
		}
	}
	return count
}

// Wire builds the backend representation of the answers: question indices as
// decimal-string keys, option values shifted to 1-based. Single-choice
// answers become bare integers, multi-choice answers sorted integer arrays.
func (l *Ledger) Wire() map[string]any {
	out := make(map[string]any, len(l.entries))
	for q, sel := range l.entries {
		if sel.empty() {
			continue
		}
		key := strconv.Itoa(q)
		if sel.Option != nil {
			out[key] = *sel.Option + 1
			continue
		}
		opts := make([]int, len(sel.Options))
		for i, o := range sel.Options {
			opts[i] = o + 1
		}
		out[key] = opts
	}
	return out
}

// MarshalJSON serializes the ledger for snapshot persistence.
func (l *Ledger) MarshalJSON() ([]byte, error) {
	out := make(map[string]*Selection, len(l.entries))
	for q, sel := range l.entries {
		out[strconv.Itoa(q)] = sel
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a persisted ledger verbatim.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	raw := make(map[string]*Selection)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.entries = make(map[int]*Selection, len(raw))
	for key, sel := range raw {
		q, err := strconv.Atoi(key)
		if err != nil {
			return err
		}
		l.entries[q] = sel
	}
	return nil
}
