// Package assessment implements the quiz attempt lifecycle and grading.
//
// Questions and answers are closed sets of tagged variants. Grading is an
// exhaustive switch over the question variant; adding a variant means adding a
// case in Grade, in the JSON codec, and in the payload view.
package assessment

import (
	"fmt"
	"time"

	"github.com/alem-hub/learning-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUESTIONS
// ══════════════════════════════════════════════════════════════════════════════

// QuestionKind names a question variant.
type QuestionKind string

const (
	KindSingleChoice QuestionKind = "single_choice"
	KindMultiChoice  QuestionKind = "multi_choice"
	KindTrueFalse    QuestionKind = "true_false"
	KindShortAnswer  QuestionKind = "short_answer"
)

// Question is one of SingleChoice, MultiChoice, TrueFalse or ShortAnswer.
// The interface is sealed.
type Question interface {
	QuestionID() string
	Points() int
	Kind() QuestionKind
	Prompt() string
	isQuestion()
}

// QuestionBase carries the fields every variant has.
type QuestionBase struct {
	ID         string
	Text       string
	PointValue int
}

// QuestionID implements Question.
func (b QuestionBase) QuestionID() string { return b.ID }

// Points implements Question.
func (b QuestionBase) Points() int { return b.PointValue }

// Prompt implements Question.
func (b QuestionBase) Prompt() string { return b.Text }

// Option is an answer option of a choice question.
type Option struct {
	ID      string
	Text    string
	Correct bool
}

// SingleChoice has exactly one correct option.
type SingleChoice struct {
	QuestionBase
	Options []Option
}

// MultiChoice has one or more correct options; the learner must pick all of
// them and nothing else.
type MultiChoice struct {
	QuestionBase
	Options []Option
}

// TrueFalse is answered with a boolean.
type TrueFalse struct {
	QuestionBase
	CorrectValue bool
}

// ShortAnswer is compared against CanonicalAnswer, ignoring case and
// surrounding whitespace.
type ShortAnswer struct {
	QuestionBase
	CanonicalAnswer string
}

func (SingleChoice) Kind() QuestionKind { return KindSingleChoice }
func (MultiChoice) Kind() QuestionKind  { return KindMultiChoice }
func (TrueFalse) Kind() QuestionKind    { return KindTrueFalse }
func (ShortAnswer) Kind() QuestionKind  { return KindShortAnswer }

func (SingleChoice) isQuestion() {}
func (MultiChoice) isQuestion()  {}
func (TrueFalse) isQuestion()    {}
func (ShortAnswer) isQuestion()  {}

// correctOptionIDs returns the ids flagged correct, in option order.
func correctOptionIDs(opts []Option) []string {
	var ids []string
	for _, o := range opts {
		if o.Correct {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// ValidateQuestion checks a question definition.
func ValidateQuestion(q Question) error {
	const op = "ValidateQuestion"
	if q == nil {
		return shared.Validation("assessment", op, "nil question")
	}
	if q.QuestionID() == "" {
		return shared.Validation("assessment", op, "question id is required")
	}
	if q.Points() < 0 {
		return shared.Validation("assessment", op, "question %s has negative points", q.QuestionID())
	}

	switch v := q.(type) {
	case SingleChoice:
		if n := len(correctOptionIDs(v.Options)); n != 1 {
			return shared.Validation("assessment", op, "single choice %s needs exactly one correct option, has %d", v.ID, n)
		}
		return validateOptions(v.ID, v.Options)
	case MultiChoice:
		if len(correctOptionIDs(v.Options)) == 0 {
			return shared.Validation("assessment", op, "multi choice %s needs a correct option", v.ID)
		}
		return validateOptions(v.ID, v.Options)
	case TrueFalse, ShortAnswer:
		return nil
	default:
		return shared.Validation("assessment", op, "unsupported question type %T", q)
	}
}

func validateOptions(questionID string, opts []Option) error {
	seen := make(map[string]struct{}, len(opts))
	for _, o := range opts {
		if o.ID == "" {
			return shared.Validation("assessment", "ValidateQuestion", "question %s has an option without id", questionID)
		}
		if _, dup := seen[o.ID]; dup {
			return shared.Validation("assessment", "ValidateQuestion", "question %s repeats option %s", questionID, o.ID)
		}
		seen[o.ID] = struct{}{}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ
// ══════════════════════════════════════════════════════════════════════════════

// Quiz is the assessment bound to a lesson.
type Quiz struct {
	ID       string
	LessonID string
	Title    string

	Published bool
	// PassingScore is a percentage in [0, 100].
	PassingScore float64
	// MaxAttempts nil means unlimited.
	MaxAttempts *int
	// TimeLimit nil means untimed.
	TimeLimit *time.Duration

	ShuffleQuestions bool
	ShuffleOptions   bool
	RevealAnswers    bool

	Questions []Question
}

// MaxScore is the sum of all question points.
func (q *Quiz) MaxScore() int {
	return MaxScore(q.Questions)
}

// MaxScore sums the points of a question set.
func MaxScore(questions []Question) int {
	total := 0
	for _, qq := range questions {
		total += qq.Points()
	}
	return total
}

// CheckAttemptAllowed enforces the attempt limit given how many attempts
// already exist. Abandoned and expired attempts count.
func (q *Quiz) CheckAttemptAllowed(existing int) error {
	if q.MaxAttempts == nil {
		return nil
	}
	if existing >= *q.MaxAttempts {
		return &shared.AttemptLimitError{QuizID: q.ID, Count: existing, Limit: *q.MaxAttempts}
	}
	return nil
}

// Validate checks the quiz definition.
func (q *Quiz) Validate() error {
	const op = "ValidateQuiz"
	if q.ID == "" || q.LessonID == "" {
		return shared.Validation("assessment", op, "quiz and lesson ids are required")
	}
	if q.PassingScore < 0 || q.PassingScore > 100 {
		return shared.Validation("assessment", op, "passing score %.2f out of range", q.PassingScore)
	}
	if q.MaxAttempts != nil && *q.MaxAttempts < 1 {
		return shared.Validation("assessment", op, "max attempts must be positive")
	}
	if q.TimeLimit != nil && *q.TimeLimit <= 0 {
		return shared.Validation("assessment", op, "time limit must be positive")
	}
	if q.TimeLimit != nil && *q.TimeLimit%time.Second != 0 {
		return shared.Validation("assessment", op, "time limit %s is not a whole number of seconds", *q.TimeLimit)
	}
	seen := make(map[string]struct{}, len(q.Questions))
	for _, qq := range q.Questions {
		if err := ValidateQuestion(qq); err != nil {
			return err
		}
		if _, dup := seen[qq.QuestionID()]; dup {
			return shared.Validation("assessment", op, "duplicate question %s", qq.QuestionID())
		}
		seen[qq.QuestionID()] = struct{}{}
	}
	return nil
}

// String is used in logs.
func (q *Quiz) String() string {
	return fmt.Sprintf("quiz(%s lesson=%s questions=%d)", q.ID, q.LessonID, len(q.Questions))
}
