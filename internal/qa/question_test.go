package qa

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"os"
	"reflect"
	"strings"
	"testing"
)

func TestSeedFromDefault(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Answer
	}{
		{"multiselect default", `{"id":"a","type":"MultiSelect","options":["x","y"],"default":["y"]}`, MultiSelectAnswer{"y"}},
		{"multiselect empty", `{"id":"a","type":"MultiSelect","options":["x","y"]}`, MultiSelectAnswer{}},
		{"select default", `{"id":"a","type":"Select","options":["x","y"],"default":"x"}`, SelectAnswer("x")},
		{"select empty", `{"id":"a","type":"Select","options":["x","y"]}`, SelectAnswer("")},
		{"select default outside options", `{"id":"a","type":"Select","options":["x"],"default":"z"}`, SelectAnswer("")},
		{"input default", `{"id":"a","type":"Input","default":"hello"}`, InputAnswer("hello")},
		{"input empty", `{"id":"a","type":"Input"}`, InputAnswer("")},
		{"confirm default", `{"id":"a","type":"Confirm","default":true}`, ConfirmAnswer(true)},
		{"confirm empty", `{"id":"a","type":"Confirm"}`, ConfirmAnswer(false)},
		{"multiline default", `{"id":"a","type":"MultiLineInput","default":"l1\nl2"}`, MultiLineInputAnswer("l1\nl2")},
		{"multiline empty", `{"id":"a","type":"MultiLineInput","default":null}`, MultiLineInputAnswer("")},
		{"password default", `{"id":"a","type":"Password","default":"pw"}`, PasswordAnswer("pw")},
		{"password empty", `{"id":"a","type":"Password"}`, PasswordAnswer("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Question
			if err := json.Unmarshal([]byte(tt.raw), &q); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if err := q.Seed(); err != nil {
				t.Fatalf("Seed: %v", err)
			}
			if !reflect.DeepEqual(q.Answer, tt.want) {
				t.Errorf("Answer = %#v, want %#v", q.Answer, tt.want)
			}
		})
	}
}

func TestSeedLogsIgnoredDefault(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	var q Question
	if err := json.Unmarshal([]byte(`{"id":"svc","type":"MultiSelect","options":["x"],"default":["x","z"]}`), &q); err != nil {
		t.Fatal(err)
	}
	if err := q.Seed(); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if !reflect.DeepEqual(q.Answer, MultiSelectAnswer{}) {
		t.Errorf("Answer = %#v, want empty", q.Answer)
	}
	if !strings.Contains(buf.String(), "svc") || !strings.Contains(buf.String(), `"z"`) {
		t.Errorf("log = %q", buf.String())
	}
}

func TestMalformedDefault(t *testing.T) {
	var q Question
	err := json.Unmarshal([]byte(`{"id":"a","type":"Confirm","default":"yes"}`), &q)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("Unmarshal = %v, want ErrMalformed", err)
	}
}

func TestMissingTypeFailsSeed(t *testing.T) {
	var q Question
	if err := json.Unmarshal([]byte(`{"id":"a"}`), &q); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if err := q.Seed(); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Seed = %v, want ErrUnknownKind", err)
	}
}

func TestAnswerShapeSurvivesWire(t *testing.T) {
	tests := []struct {
		q    *Question
		want string
	}{
		{&Question{ID: "a", Kind: KindMultiSelect, Options: []string{"x"}, Answer: MultiSelectAnswer(nil)}, `[]`},
		{&Question{ID: "a", Kind: KindMultiSelect, Options: []string{"x", "y"}, Answer: MultiSelectAnswer{"y", "x"}}, `["y","x"]`},
		{&Question{ID: "a", Kind: KindSelect, Options: []string{"x"}, Answer: SelectAnswer("x")}, `"x"`},
		{&Question{ID: "a", Kind: KindConfirm, Answer: ConfirmAnswer(true)}, `true`},
		{&Question{ID: "a", Kind: KindInput}, `""`},
		{&Question{ID: "a", Kind: KindMultiLineInput, Answer: MultiLineInputAnswer("a\nb")}, `"a\nb"`},
	}
	for _, tt := range tests {
		t.Run(tt.q.Kind.String(), func(t *testing.T) {
			raw, err := json.Marshal(tt.q)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var wire struct {
				Answer json.RawMessage `json:"answer"`
			}
			if err := json.Unmarshal(raw, &wire); err != nil {
				t.Fatal(err)
			}
			if string(wire.Answer) != tt.want {
				t.Errorf("answer = %s, want %s", wire.Answer, tt.want)
			}

			var back Question
			if err := json.Unmarshal(raw, &back); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if back.Answer.Kind() != tt.q.Kind {
				t.Errorf("round trip kind = %v, want %v", back.Answer.Kind(), tt.q.Kind)
			}
		})
	}
}

func TestResolveCoversEveryKind(t *testing.T) {
	for k := range kindNames {
		if _, err := Resolve(k); err != nil {
			t.Errorf("Resolve(%v): %v", k, err)
		}
		if _, err := EmptyAnswer(k); err != nil {
			t.Errorf("EmptyAnswer(%v): %v", k, err)
		}
	}
	if _, err := Resolve(Kind(99)); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Resolve(99) = %v", err)
	}
}

func TestAnswerValue(t *testing.T) {
	a, err := AnswerValue(KindMultiSelect, []any{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, MultiSelectAnswer{"a", "b"}) {
		t.Errorf("got %#v", a)
	}
	if _, err := AnswerValue(KindConfirm, "yes"); !errors.Is(err, ErrAnswerShape) {
		t.Errorf("AnswerValue(Confirm, yes) = %v", err)
	}
}
