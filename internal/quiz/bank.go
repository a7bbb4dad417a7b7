package quiz

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var defaultQuestions []byte

// Category groups questions for the score breakdown.
type Category string

const (
	CategoryReading   Category = "reading"
	CategoryComputing Category = "computing"
	CategoryCuriosity Category = "curiosity"
)

// Categories lists categories in reporting order.
var Categories = []Category{CategoryReading, CategoryComputing, CategoryCuriosity}

func (c Category) valid() bool {
	switch c {
	case CategoryReading, CategoryComputing, CategoryCuriosity:
		return true
	}
	return false
}

// Option is an answer key, one of a, b, c, d.
type Option string

const (
	OptionA Option = "a"
	OptionB Option = "b"
	OptionC Option = "c"
	OptionD Option = "d"
)

// Options lists the answer keys in display order.
var Options = []Option{OptionA, OptionB, OptionC, OptionD}

// Valid reports whether o is one of a, b, c, d.
func (o Option) Valid() bool {
	switch o {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

// Question is a static multiple-choice question. CorrectAnswer is never serialized to clients.
type Question struct {
	ID            int               `yaml:"id" json:"id"`
	Category      Category          `yaml:"category" json:"category"`
	Text          string            `yaml:"text" json:"text"`
	Options       map[Option]string `yaml:"options" json:"options"`
	CorrectAnswer Option            `yaml:"correct" json:"-"`
}

// Bank is the immutable, ordered question set loaded at startup.
type Bank struct {
	questions []Question
	index     map[int]int // question id -> position
}

// DefaultBank loads the embedded question set.
func DefaultBank() (*Bank, error) {
	return LoadBank(defaultQuestions)
}

// LoadBank parses a YAML question list. Ids must be unique and cover 1..N.
func LoadBank(data []byte) (*Bank, error) {
	var qs []Question
	if err := yaml.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	return NewBank(qs)
}

// NewBank validates and orders qs by id.
func NewBank(qs []Question) (*Bank, error) {
	if len(qs) == 0 {
		return nil, fmt.Errorf("question bank is empty")
	}
	sorted := make([]Question, len(qs))
	copy(sorted, qs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	index := make(map[int]int, len(sorted))
	for i, q := range sorted {
		if q.ID != i+1 {
			return nil, fmt.Errorf("question ids must run 1..%d, got %d at position %d", len(sorted), q.ID, i+1)
		}
		if !q.Category.valid() {
			return nil, fmt.Errorf("question %d: unknown category %q", q.ID, q.Category)
		}
		for _, o := range Options {
			if q.Options[o] == "" {
				return nil, fmt.Errorf("question %d: missing option %s", q.ID, o)
			}
		}
		if len(q.Options) != len(Options) {
			return nil, fmt.Errorf("question %d: expected exactly %d options", q.ID, len(Options))
		}
		if !q.CorrectAnswer.Valid() {
			return nil, fmt.Errorf("question %d: invalid correct answer %q", q.ID, q.CorrectAnswer)
		}
		opts := make(map[Option]string, len(q.Options))
		for k, v := range q.Options {
			opts[k] = v
		}
		sorted[i].Options = opts
		index[q.ID] = i
	}
	return &Bank{questions: sorted, index: index}, nil
}

// Len returns the number of questions.
func (b *Bank) Len() int { return len(b.questions) }

// Questions returns the questions in order. The slice is a copy; option maps are shared and must not be modified.
func (b *Bank) Questions() []Question {
	out := make([]Question, len(b.questions))
	copy(out, b.questions)
	return out
}

// At returns the question at position i.
func (b *Bank) At(i int) Question { return b.questions[i] }

// Get returns the question with the given id.
func (b *Bank) Get(id int) (Question, bool) {
	i, ok := b.index[id]
	if !ok {
		return Question{}, false
	}
	return b.questions[i], true
}

func (b *Bank) position(id int) (int, bool) {
	i, ok := b.index[id]
	return i, ok
}
