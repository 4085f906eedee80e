package assessment

// Answer is one of ChoiceAnswer, BoolAnswer or TextAnswer. The interface is
// sealed. Answers are stored exactly as submitted.
type Answer interface {
	// QuestionRef is the id of the question being answered.
	QuestionRef() string
	isAnswer()
}

// ChoiceAnswer selects options of a SingleChoice or MultiChoice question.
type ChoiceAnswer struct {
	QuestionID string
	OptionIDs  []string
}

// BoolAnswer answers a TrueFalse question.
type BoolAnswer struct {
	QuestionID string
	Value      bool
}

// TextAnswer answers a ShortAnswer question.
type TextAnswer struct {
	QuestionID string
	Text       string
}

func (a ChoiceAnswer) QuestionRef() string { return a.QuestionID }
func (a BoolAnswer) QuestionRef() string   { return a.QuestionID }
func (a TextAnswer) QuestionRef() string   { return a.QuestionID }

func (ChoiceAnswer) isAnswer() {}
func (BoolAnswer) isAnswer()   {}
func (TextAnswer) isAnswer()   {}

// cloneAnswers copies the slice and any option id slices.
func cloneAnswers(in []Answer) []Answer {
	if in == nil {
		return nil
	}
	out := make([]Answer, len(in))
	for i, a := range in {
		if c, ok := a.(ChoiceAnswer); ok {
			c.OptionIDs = append([]string(nil), c.OptionIDs...)
			a = c
		}
		out[i] = a
	}
	return out
}
