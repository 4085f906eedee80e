package assessment

import (
	"encoding/json"
	"fmt"
)

// Wire forms of the tagged variants, used for JSONB columns and caches.

type optionDoc struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

type questionDoc struct {
	Kind            QuestionKind `json:"kind"`
	ID              string       `json:"id"`
	Text            string       `json:"text"`
	Points          int          `json:"points"`
	Options         []optionDoc  `json:"options,omitempty"`
	CorrectValue    *bool        `json:"correct_value,omitempty"`
	CanonicalAnswer string       `json:"canonical_answer,omitempty"`
}

type answerDoc struct {
	Kind       string   `json:"kind"`
	QuestionID string   `json:"question_id"`
	OptionIDs  []string `json:"option_ids,omitempty"`
	Value      *bool    `json:"value,omitempty"`
	Text       *string  `json:"text,omitempty"`
}

const (
	answerChoice = "choice"
	answerBool   = "bool"
	answerText   = "text"
)

// MarshalQuestions encodes a question set.
func MarshalQuestions(qs []Question) ([]byte, error) {
	docs := make([]questionDoc, 0, len(qs))
	for _, q := range qs {
		d := questionDoc{Kind: q.Kind(), ID: q.QuestionID(), Text: q.Prompt(), Points: q.Points()}
		switch v := q.(type) {
		case SingleChoice:
			d.Options = toOptionDocs(v.Options)
		case MultiChoice:
			d.Options = toOptionDocs(v.Options)
		case TrueFalse:
			val := v.CorrectValue
			d.CorrectValue = &val
		case ShortAnswer:
			d.CanonicalAnswer = v.CanonicalAnswer
		default:
			return nil, fmt.Errorf("marshal question: unsupported type %T", q)
		}
		docs = append(docs, d)
	}
	return json.Marshal(docs)
}

// UnmarshalQuestions decodes a question set.
func UnmarshalQuestions(data []byte) ([]Question, error) {
	var docs []questionDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	out := make([]Question, 0, len(docs))
	for _, d := range docs {
		base := QuestionBase{ID: d.ID, Text: d.Text, PointValue: d.Points}
		switch d.Kind {
		case KindSingleChoice:
			out = append(out, SingleChoice{QuestionBase: base, Options: fromOptionDocs(d.Options)})
		case KindMultiChoice:
			out = append(out, MultiChoice{QuestionBase: base, Options: fromOptionDocs(d.Options)})
		case KindTrueFalse:
			q := TrueFalse{QuestionBase: base}
			if d.CorrectValue != nil {
				q.CorrectValue = *d.CorrectValue
			}
			out = append(out, q)
		case KindShortAnswer:
			out = append(out, ShortAnswer{QuestionBase: base, CanonicalAnswer: d.CanonicalAnswer})
		default:
			return nil, fmt.Errorf("unmarshal questions: unknown kind %q", d.Kind)
		}
	}
	return out, nil
}

// MarshalAnswers encodes an answer set.
func MarshalAnswers(as []Answer) ([]byte, error) {
	docs := make([]answerDoc, 0, len(as))
	for _, a := range as {
		switch v := a.(type) {
		case ChoiceAnswer:
			docs = append(docs, answerDoc{Kind: answerChoice, QuestionID: v.QuestionID, OptionIDs: v.OptionIDs})
		case BoolAnswer:
			val := v.Value
			docs = append(docs, answerDoc{Kind: answerBool, QuestionID: v.QuestionID, Value: &val})
		case TextAnswer:
			txt := v.Text
			docs = append(docs, answerDoc{Kind: answerText, QuestionID: v.QuestionID, Text: &txt})
		default:
			return nil, fmt.Errorf("marshal answer: unsupported type %T", a)
		}
	}
	return json.Marshal(docs)
}

// UnmarshalAnswers decodes an answer set. Empty input decodes to nil.
func UnmarshalAnswers(data []byte) ([]Answer, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var docs []answerDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	out := make([]Answer, 0, len(docs))
	for _, d := range docs {
		switch d.Kind {
		case answerChoice:
			out = append(out, ChoiceAnswer{QuestionID: d.QuestionID, OptionIDs: d.OptionIDs})
		case answerBool:
			a := BoolAnswer{QuestionID: d.QuestionID}
			if d.Value != nil {
				a.Value = *d.Value
			}
			out = append(out, a)
		case answerText:
			a := TextAnswer{QuestionID: d.QuestionID}
			if d.Text != nil {
				a.Text = *d.Text
			}
			out = append(out, a)
		default:
			return nil, fmt.Errorf("unmarshal answers: unknown kind %q", d.Kind)
		}
	}
	return out, nil
}

func toOptionDocs(opts []Option) []optionDoc {
	out := make([]optionDoc, len(opts))
	for i, o := range opts {
		out[i] = optionDoc(o)
	}
	return out
}

func fromOptionDocs(docs []optionDoc) []Option {
	out := make([]Option, len(docs))
	for i, d := range docs {
		out[i] = Option(d)
	}
	return out
}
