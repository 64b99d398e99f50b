package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

var errInvalidQuestion = errors.New("invalid question")

// Question is the payload of a quiz cue.
type Question struct {
	Question     string   `json:"question"`
	Answers      []string `json:"answers"`
	CorrectIndex int      `json:"correctIndex"`
}

// wireQuestion is the cue payload as sent; every key is required.
type wireQuestion struct {
	Question     *string   `json:"question"`
	Answers      *[]string `json:"answers"`
	CorrectIndex *int      `json:"correctIndex"`
}

var questionKeys = []string{"question", "answers", "correctIndex"}

// Decode parses a cue text payload into a Question. It rejects invalid
// UTF-8, malformed JSON, missing or null keys, keys spelled in another case,
// an empty answer list and an out-of-range index.
func Decode(payload []byte) (Question, error) {
	if !utf8.Valid(payload) {
		return Question{}, fmt.Errorf("%w: payload is not utf-8", errInvalidQuestion)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Question{}, fmt.Errorf("%w: %v", errInvalidQuestion, err)
	}
	for _, k := range questionKeys {
		if _, ok := raw[k]; !ok {
			return Question{}, fmt.Errorf("%w: missing %q", errInvalidQuestion, k)
		}
	}
	var w wireQuestion
	if err := json.Unmarshal(payload, &w); err != nil {
		return Question{}, fmt.Errorf("%w: %v", errInvalidQuestion, err)
	}
	if w.Question == nil || w.Answers == nil || w.CorrectIndex == nil {
		return Question{}, fmt.Errorf("%w: null field", errInvalidQuestion)
	}
	q := Question{Question: *w.Question, Answers: *w.Answers, CorrectIndex: *w.CorrectIndex}
	if len(q.Answers) == 0 {
		return q, fmt.Errorf("%w: no answers", errInvalidQuestion)
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Answers) {
		return q, fmt.Errorf("%w: correct index %d of %d answers", errInvalidQuestion, q.CorrectIndex, len(q.Answers))
	}
	return q, nil
}

// IsCorrect reports whether the answer at index is the correct one.
// Answers are compared by text, so duplicated correct answers also match.
func (q Question) IsCorrect(index int) bool {
	if index < 0 || index >= len(q.Answers) {
		return false
	}
	return q.Answers[index] == q.Answers[q.CorrectIndex]
}
