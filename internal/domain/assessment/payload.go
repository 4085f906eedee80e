package assessment

import "time"

// OptionView is an option as shown to the learner.
type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionView is a question as shown to the learner: no correctness data.
type QuestionView struct {
	ID      string       `json:"id"`
	Kind    QuestionKind `json:"kind"`
	Text    string       `json:"text"`
	Points  int          `json:"points"`
	Options []OptionView `json:"options,omitempty"`
}

// RevealedAnswer is the correct answer of one question, disclosed after
// grading when the quiz allows it.
type RevealedAnswer struct {
	QuestionID       string   `json:"question_id"`
	CorrectOptionIDs []string `json:"correct_option_ids,omitempty"`
	CorrectValue     *bool    `json:"correct_value,omitempty"`
	CanonicalAnswer  string   `json:"canonical_answer,omitempty"`
}

// Payload is what a client renders for an attempt.
type Payload struct {
	AttemptID     string         `json:"attempt_id"`
	QuizID        string         `json:"quiz_id"`
	AttemptNumber int            `json:"attempt_number"`
	Status        AttemptStatus  `json:"status"`
	StartedAt     time.Time      `json:"started_at"`
	Deadline      *time.Time     `json:"deadline,omitempty"`
	MaxScore      int            `json:"max_score"`
	Questions     []QuestionView `json:"questions"`

	// Set once graded.
	Score      *int     `json:"score,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
	IsPassed   *bool    `json:"is_passed,omitempty"`

	// Set once graded and only if the quiz reveals answers.
	RevealedAnswers []RevealedAnswer `json:"revealed_answers,omitempty"`
}

// BuildPayload renders the attempt in its frozen order with correctness
// stripped.
func BuildPayload(a *Attempt) Payload {
	p := Payload{
		AttemptID:     a.ID,
		QuizID:        a.QuizID,
		AttemptNumber: a.AttemptNumber,
		Status:        a.Status,
		StartedAt:     a.StartedAt,
		MaxScore:      a.MaxScore,
		Questions:     make([]QuestionView, 0, len(a.Questions)),
	}
	if d, ok := a.Deadline(); ok {
		p.Deadline = &d
	}
	for _, q := range a.Questions {
		p.Questions = append(p.Questions, viewOf(q))
	}

	if a.Status != AttemptGraded {
		return p
	}
	score, pct := a.Score, a.Percentage
	p.Score = &score
	p.Percentage = &pct
	if a.IsPassed != nil {
		passed := *a.IsPassed
		p.IsPassed = &passed
	}
	if a.RevealAnswers {
		p.RevealedAnswers = make([]RevealedAnswer, 0, len(a.Questions))
		for _, q := range a.Questions {
			p.RevealedAnswers = append(p.RevealedAnswers, revealOf(q))
		}
	}
	return p
}

func viewOf(q Question) QuestionView {
	v := QuestionView{ID: q.QuestionID(), Kind: q.Kind(), Text: q.Prompt(), Points: q.Points()}
	switch qq := q.(type) {
	case SingleChoice:
		v.Options = optionViews(qq.Options)
	case MultiChoice:
		v.Options = optionViews(qq.Options)
	case TrueFalse, ShortAnswer:
	}
	return v
}

func optionViews(opts []Option) []OptionView {
	out := make([]OptionView, len(opts))
	for i, o := range opts {
		out[i] = OptionView{ID: o.ID, Text: o.Text}
	}
	return out
}

func revealOf(q Question) RevealedAnswer {
	r := RevealedAnswer{QuestionID: q.QuestionID()}
	switch qq := q.(type) {
	case SingleChoice:
		r.CorrectOptionIDs = correctOptionIDs(qq.Options)
	case MultiChoice:
		r.CorrectOptionIDs = correctOptionIDs(qq.Options)
	case TrueFalse:
		v := qq.CorrectValue
		r.CorrectValue = &v
	case ShortAnswer:
		r.CanonicalAnswer = qq.CanonicalAnswer
	}
	return r
}
