package qa

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Kind is the closed set of question types the backend may ask.
type Kind int

const (
	KindMultiSelect Kind = iota + 1
	KindSelect
	KindInput
	KindConfirm
	KindMultiLineInput
	KindPassword
)

var kindNames = map[Kind]string{
	KindMultiSelect:    "MultiSelect",
	KindSelect:         "Select",
	KindInput:          "Input",
	KindConfirm:        "Confirm",
	KindMultiLineInput: "MultiLineInput",
	KindPassword:       "Password",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a wire type tag to a Kind. Unknown tags return an error
// wrapping ErrUnknownKind so callers never guess a rendering strategy.
func ParseKind(tag string) (Kind, error) {
	for k, name := range kindNames {
		if name == tag {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, tag)
}

func (k Kind) MarshalJSON() ([]byte, error) {
	name, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return json.Marshal(name)
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("%w: type tag: %v", ErrMalformed, err)
	}
	parsed, err := ParseKind(tag)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Answer is a type-specific answer value. Exactly one concrete type exists
// per Kind; renderers switch on the concrete type.
type Answer interface {
	Kind() Kind
	isAnswer()
}

type (
	MultiSelectAnswer    []string
	SelectAnswer         string
	InputAnswer          string
	ConfirmAnswer        bool
	MultiLineInputAnswer string
	PasswordAnswer       string
)

func (MultiSelectAnswer) Kind() Kind    { return KindMultiSelect }
func (SelectAnswer) Kind() Kind         { return KindSelect }
func (InputAnswer) Kind() Kind          { return KindInput }
func (ConfirmAnswer) Kind() Kind        { return KindConfirm }
func (MultiLineInputAnswer) Kind() Kind { return KindMultiLineInput }
func (PasswordAnswer) Kind() Kind       { return KindPassword }

func (MultiSelectAnswer) isAnswer()    {}
func (SelectAnswer) isAnswer()         {}
func (InputAnswer) isAnswer()          {}
func (ConfirmAnswer) isAnswer()        {}
func (MultiLineInputAnswer) isAnswer() {}
func (PasswordAnswer) isAnswer()       {}

// MarshalJSON keeps an empty selection as [] rather than null.
func (a MultiSelectAnswer) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(a))
}

// EmptyAnswer returns the answer a question of kind k starts with when it has
// no default.
func EmptyAnswer(k Kind) (Answer, error) {
	switch k {
	case KindMultiSelect:
		return MultiSelectAnswer{}, nil
	case KindSelect:
		return SelectAnswer(""), nil
	case KindInput:
		return InputAnswer(""), nil
	case KindConfirm:
		return ConfirmAnswer(false), nil
	case KindMultiLineInput:
		return MultiLineInputAnswer(""), nil
	case KindPassword:
		return PasswordAnswer(""), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownKind, k)
}

// DecodeAnswer parses a raw JSON value into the answer shape of kind k.
// A JSON null decodes to the empty answer.
func DecodeAnswer(k Kind, raw json.RawMessage) (Answer, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return EmptyAnswer(k)
	}
	switch k {
	case KindMultiSelect:
		var v []string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %v wants a list of strings: %v", ErrAnswerShape, k, err)
		}
		if v == nil {
			v = []string{}
		}
		return MultiSelectAnswer(v), nil
	case KindConfirm:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %v wants a boolean: %v", ErrAnswerShape, k, err)
		}
		return ConfirmAnswer(v), nil
	case KindSelect, KindInput, KindMultiLineInput, KindPassword:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %v wants a string: %v", ErrAnswerShape, k, err)
		}
		return stringAnswer(k, v), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownKind, k)
}

// AnswerValue converts an arbitrary decoded value (as produced by
// encoding/json into an interface{}) to the answer shape of kind k.
func AnswerValue(k Kind, v any) (Answer, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnswerShape, err)
	}
	return DecodeAnswer(k, raw)
}

func stringAnswer(k Kind, v string) Answer {
	switch k {
	case KindSelect:
		return SelectAnswer(v)
	case KindMultiLineInput:
		return MultiLineInputAnswer(v)
	case KindPassword:
		return PasswordAnswer(v)
	}
	return InputAnswer(v)
}

// CheckAnswer validates a against the question it is meant for: the kind must
// match and choice answers must stay within the question's options.
func CheckAnswer(q *Question, a Answer) error {
	if a == nil {
		return fmt.Errorf("%w: nil answer", ErrAnswerShape)
	}
	if a.Kind() != q.Kind {
		return fmt.Errorf("%w: %v answer for %v question", ErrAnswerShape, a.Kind(), q.Kind)
	}
	switch v := a.(type) {
	case SelectAnswer:
		if v != "" && !slices.Contains(q.Options, string(v)) {
			return fmt.Errorf("%w: %q is not one of the options", ErrAnswerShape, string(v))
		}
	case MultiSelectAnswer:
		for _, s := range v {
			if !slices.Contains(q.Options, s) {
				return fmt.Errorf("%w: %q is not one of the options", ErrAnswerShape, s)
			}
		}
	}
	return nil
}

// CloneAnswer returns a copy that shares no memory with a.
func CloneAnswer(a Answer) Answer {
	if ms, ok := a.(MultiSelectAnswer); ok {
		out := make(MultiSelectAnswer, len(ms))
		copy(out, ms)
		return out
	}
	return a
}

// Capability describes how a renderer should present a kind.
type Capability struct {
	Choices   bool // answer is picked from Options
	Multiple  bool // more than one option may be picked
	Multiline bool // answer may span lines
	Secret    bool // input must not be echoed or kept
	Boolean   bool // yes/no
}

// Resolve returns the rendering capability for kind k, the pure type-to-widget
// table that renderers consult.
func Resolve(k Kind) (Capability, error) {
	switch k {
	case KindMultiSelect:
		return Capability{Choices: true, Multiple: true}, nil
	case KindSelect:
		return Capability{Choices: true}, nil
	case KindInput:
		return Capability{}, nil
	case KindConfirm:
		return Capability{Boolean: true}, nil
	case KindMultiLineInput:
		return Capability{Multiline: true}, nil
	case KindPassword:
		return Capability{Secret: true}, nil
	}
	return Capability{}, fmt.Errorf("%w: %v", ErrUnknownKind, k)
}
