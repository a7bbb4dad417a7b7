package quiz_test

import (
	"strings"
	"testing"

	"github.com/codekids/quiz-backend/internal/quiz"
)

func TestDefaultBank(t *testing.T) {
	bank, err := quiz.DefaultBank()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if bank.Len() != 10 {
		t.Fatalf("expected 10 questions, got %d", bank.Len())
	}
	counts := make(map[quiz.Category]int)
	for i, q := range bank.Questions() {
		if q.ID != i+1 {
			t.Fatalf("expected id %d at position %d, got %d", i+1, i, q.ID)
		}
		counts[q.Category]++
	}
	if counts[quiz.CategoryReading] != 2 || counts[quiz.CategoryComputing] != 3 || counts[quiz.CategoryCuriosity] != 5 {
		t.Fatalf("unexpected category counts %+v", counts)
	}
	if q, ok := bank.Get(7); !ok || q.CorrectAnswer != quiz.OptionA {
		t.Fatalf("unexpected question 7: %+v", q)
	}
}

func TestLoadBankRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "empty", yaml: "[]", want: "empty"},
		{name: "gap in ids", yaml: `
- {id: 2, category: reading, text: x, options: {a: "1", b: "2", c: "3", d: "4"}, correct: a}`, want: "ids must run"},
		{name: "bad category", yaml: `
- {id: 1, category: maths, text: x, options: {a: "1", b: "2", c: "3", d: "4"}, correct: a}`, want: "unknown category"},
		{name: "missing option", yaml: `
- {id: 1, category: reading, text: x, options: {a: "1", b: "2", c: "3"}, correct: a}`, want: "missing option d"},
		{name: "bad correct", yaml: `
- {id: 1, category: reading, text: x, options: {a: "1", b: "2", c: "3", d: "4"}, correct: e}`, want: "invalid correct"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := quiz.LoadBank([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
