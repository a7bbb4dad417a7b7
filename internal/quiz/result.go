package quiz

import "time"

// Participant identifies the child taking the quiz.
type Participant struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// Answer is the selection for one question. SelectedAnswer is nil until answered.
type Answer struct {
	QuestionID     int     `json:"questionId"`
	SelectedAnswer *Option `json:"selectedAnswer"`
}

// Answered reports whether an option has been selected.
func (a Answer) Answered() bool { return a.SelectedAnswer != nil }

// CategoryScore is the per-category part of a result.
type CategoryScore struct {
	Category Category `json:"category"`
	Correct  int      `json:"correct"`
	Total    int      `json:"total"`
}

// Result is the write-once outcome of a submitted session.
type Result struct {
	Participant    Participant     `json:"participant"`
	Answers        []Answer        `json:"answers"`
	Score          int             `json:"score"`
	TotalQuestions int             `json:"totalQuestions"`
	CompletionTime int             `json:"completionTime"` // seconds
	Timestamp      time.Time       `json:"timestamp"`
	Breakdown      []CategoryScore `json:"breakdown"`
	Feedback       string          `json:"feedback"`
}

// Clone returns a deep copy of r.
func (r Result) Clone() Result {
	out := r
	out.Answers = copyAnswers(r.Answers)
	out.Breakdown = append([]CategoryScore(nil), r.Breakdown...)
	return out
}

// Feedback picks the encouragement message shown with a score.
func Feedback(score, total int) string {
	if total <= 0 {
		return ""
	}
	pct := float64(score) / float64(total) * 100
	switch {
	case pct >= 70:
		return "Excellent! You're ready for our coding program!"
	case pct >= 50:
		return "Good job! You show great potential for learning coding!"
	default:
		return "Great effort! Keep exploring technology and come back to try again!"
	}
}

// score counts exact matches against the bank; unanswered never matches.
func score(bank *Bank, answers []Answer) (int, []CategoryScore) {
	correct := make(map[Category]int)
	total := make(map[Category]int)
	for _, q := range bank.questions {
		total[q.Category]++
	}
	n := 0
	for _, a := range answers {
		q, ok := bank.Get(a.QuestionID)
		if !ok || a.SelectedAnswer == nil || *a.SelectedAnswer != q.CorrectAnswer {
			continue
		}
		n++
		correct[q.Category]++
	}
	breakdown := make([]CategoryScore, 0, len(Categories))
	for _, c := range Categories {
		if total[c] == 0 {
			continue
		}
		breakdown = append(breakdown, CategoryScore{Category: c, Correct: correct[c], Total: total[c]})
	}
	return n, breakdown
}

func copyAnswers(in []Answer) []Answer {
	if in == nil {
		return nil
	}
	out := make([]Answer, len(in))
	for i, a := range in {
		out[i].QuestionID = a.QuestionID
		if a.SelectedAnswer != nil {
			o := *a.SelectedAnswer
			out[i].SelectedAnswer = &o
		}
	}
	return out
}
