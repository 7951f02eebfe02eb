package qa

import (
	"encoding/json"
	"fmt"
	"log"
	"slices"
)

// Question is a single point where the transformation needs user input. The
// backend calls it a problem.
type Question struct {
	ID          string
	Kind        Kind
	Description string
	Hints       []string
	Options     []string
	Default     Answer // nil when the backend sent no default
	Answer      Answer
}

// wireQuestion is the JSON shape exchanged with the backend.
type wireQuestion struct {
	ID          string          `json:"id"`
	Type        Kind            `json:"type"`
	Description string          `json:"description"`
	Hints       []string        `json:"hints,omitempty"`
	Options     []string        `json:"options,omitempty"`
	Default     json.RawMessage `json:"default,omitempty"`
	Answer      json.RawMessage `json:"answer,omitempty"`
}

// MarshalJSON always emits an answer in the kind's shape, so a MultiSelect
// answer serializes as a list even when empty.
func (q *Question) MarshalJSON() ([]byte, error) {
	w := wireQuestion{
		ID:          q.ID,
		Type:        q.Kind,
		Description: q.Description,
		Hints:       q.Hints,
		Options:     q.Options,
	}
	if q.Default != nil {
		raw, err := json.Marshal(q.Default)
		if err != nil {
			return nil, err
		}
		w.Default = raw
	}
	ans := q.Answer
	if ans == nil {
		var err error
		if ans, err = EmptyAnswer(q.Kind); err != nil {
			return nil, err
		}
	}
	raw, err := json.Marshal(ans)
	if err != nil {
		return nil, err
	}
	w.Answer = raw
	return json.Marshal(w)
}

// UnmarshalJSON decodes a backend problem and seeds Answer from Default.
// Unknown type tags fail with ErrUnknownKind; a default of the wrong shape
// fails with ErrMalformed.
func (q *Question) UnmarshalJSON(data []byte) error {
	var w wireQuestion
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	parsed := Question{
		ID:          w.ID,
		Kind:        w.Type,
		Description: w.Description,
		Hints:       w.Hints,
		Options:     w.Options,
	}
	if len(w.Default) > 0 && string(w.Default) != "null" {
		def, err := DecodeAnswer(w.Type, w.Default)
		if err != nil {
			return fmt.Errorf("%w: question %s default: %v", ErrMalformed, w.ID, err)
		}
		parsed.Default = def
	}
	if len(w.Answer) > 0 && string(w.Answer) != "null" {
		ans, err := DecodeAnswer(w.Type, w.Answer)
		if err != nil {
			return fmt.Errorf("%w: question %s answer: %v", ErrMalformed, w.ID, err)
		}
		parsed.Answer = ans
	}
	*q = parsed
	return nil
}

// Seed sets Answer to Default, or to the kind's empty value when Default is
// absent or does not fit the options.
func (q *Question) Seed() error {
	if _, err := Resolve(q.Kind); err != nil {
		return err
	}
	if q.Default != nil {
		err := CheckAnswer(q, q.Default)
		if err == nil {
			q.Answer = CloneAnswer(q.Default)
			return nil
		}
		log.Printf("[qa] question %s: ignoring default: %v", q.ID, err)
	}
	empty, err := EmptyAnswer(q.Kind)
	if err != nil {
		return err
	}
	q.Answer = empty
	return nil
}

// Clone returns a deep copy of q.
func (q *Question) Clone() *Question {
	if q == nil {
		return nil
	}
	out := *q
	out.Hints = slices.Clone(q.Hints)
	out.Options = slices.Clone(q.Options)
	if q.Default != nil {
		out.Default = CloneAnswer(q.Default)
	}
	if q.Answer != nil {
		out.Answer = CloneAnswer(q.Answer)
	}
	return &out
}
