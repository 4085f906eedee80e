package assessment

import (
	"strings"

	"github.com/alem-hub/learning-engine/internal/domain/shared"
)

// QuestionResult is the outcome for one question of the frozen set.
type QuestionResult struct {
	QuestionID string
	Answered   bool
	Correct    bool
	Awarded    int
}

// GradeResult is the outcome of grading an attempt.
type GradeResult struct {
	Score      int
	MaxScore   int
	Percentage float64
	Passed     bool
	Questions  []QuestionResult
}

// Grade scores answers against a frozen question set. Each question earns its
// full points on an exact match and zero otherwise. Unanswered questions score
// zero; answers for questions outside the set are ignored. When a question is
// answered more than once, the first answer counts.
//
// Grade is pure: the same inputs always give the same result.
func Grade(questions []Question, answers []Answer, passingScore float64) GradeResult {
	byQuestion := make(map[string]Answer, len(answers))
	for _, a := range answers {
		if a == nil {
			continue
		}
		if _, dup := byQuestion[a.QuestionRef()]; dup {
			continue
		}
		byQuestion[a.QuestionRef()] = a
	}

	res := GradeResult{
		MaxScore:  MaxScore(questions),
		Questions: make([]QuestionResult, 0, len(questions)),
	}
	for _, q := range questions {
		a, answered := byQuestion[q.QuestionID()]
		qr := QuestionResult{QuestionID: q.QuestionID(), Answered: answered}
		if answered && isCorrect(q, a) {
			qr.Correct = true
			qr.Awarded = q.Points()
			res.Score += qr.Awarded
		}
		res.Questions = append(res.Questions, qr)
	}

	res.Percentage = shared.Percentage(int64(res.Score), int64(res.MaxScore))
	res.Passed = res.Percentage >= passingScore
	return res
}

func isCorrect(q Question, a Answer) bool {
	switch v := q.(type) {
	case SingleChoice:
		c, ok := a.(ChoiceAnswer)
		if !ok {
			return false
		}
		picked := uniq(c.OptionIDs)
		return len(picked) == 1 && sameSet(picked, correctOptionIDs(v.Options))
	case MultiChoice:
		c, ok := a.(ChoiceAnswer)
		if !ok {
			return false
		}
		return sameSet(uniq(c.OptionIDs), correctOptionIDs(v.Options))
	case TrueFalse:
		b, ok := a.(BoolAnswer)
		return ok && b.Value == v.CorrectValue
	case ShortAnswer:
		t, ok := a.(TextAnswer)
		if !ok {
			return false
		}
		want := strings.TrimSpace(v.CanonicalAnswer)
		return want != "" && strings.EqualFold(strings.TrimSpace(t.Text), want)
	default:
		return false
	}
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// sameSet compares two duplicate-free id lists as sets.
func sameSet(a, b []string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	want := make(map[string]struct{}, len(b))
	for _, id := range b {
		want[id] = struct{}{}
	}
	for _, id := range a {
		if _, ok := want[id]; !ok {
			return false
		}
	}
	return true
}
