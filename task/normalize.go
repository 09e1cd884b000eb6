package task

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// DefaultSubject is used by content kinds when no subject alias is present.
const DefaultSubject = "AI automation"

// DefaultUserID is used when the payload carries no user_id.
const DefaultUserID = "anonymous"

// DefaultMaxTargetSize is the largest accepted target size in words.
const DefaultMaxTargetSize = 2000

// Default target sizes per kind. Kinds not listed have no size.
var defaultTargetSizes = map[Kind]int{
	KindContentGeneration: 800,
	KindGeneric:           600,
}

// DefaultTargetSize returns the size used when the payload does not set one.
func DefaultTargetSize(k Kind) int {
	return defaultTargetSizes[k]
}

// InvalidRequestError reports a payload that cannot be normalized.
type InvalidRequestError struct {
	Field   string
	Message string
}

func (e *InvalidRequestError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Message
	}
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Message)
}

// rawPayload is the union of every field name the services have accepted.
// Pointers distinguish "absent" from "present but empty".
type rawPayload struct {
	Definition *string `mapstructure:"definition"`
	Topic      *string `mapstructure:"topic"`
	Input      *string `mapstructure:"input"`
	Text       *string `mapstructure:"text"`
	Intent     *string `mapstructure:"intent"`

	WordCount    *int `mapstructure:"word_count"`
	TargetLength *int `mapstructure:"target_length"`
	TargetSize   *int `mapstructure:"target_size"`

	UserID      *string `mapstructure:"user_id"`
	ContentType *string `mapstructure:"content_type"`
	Format      *string `mapstructure:"format"`
	Title       *string `mapstructure:"title"`
}

// Normalizer maps loosely-typed request payloads onto a Task.
type Normalizer struct {
	maxTargetSize int
}

// NewNormalizer creates a normalizer. A non-positive max uses DefaultMaxTargetSize.
func NewNormalizer(maxTargetSize int) *Normalizer {
	if maxTargetSize <= 0 {
		maxTargetSize = DefaultMaxTargetSize
	}
	return &Normalizer{maxTargetSize: maxTargetSize}
}

// MaxTargetSize returns the largest accepted target size.
func (n *Normalizer) MaxTargetSize() int {
	return n.maxTargetSize
}

// Normalize produces a Task of the given kind from payload.
//
// Subject resolution for content kinds takes the first non-blank value of
// definition, topic, input, text, intent and falls back to DefaultSubject.
// Intent parsing takes input then text and fails when both are blank.
// Sizes must be whole numbers; 50.0 is accepted and 50.9 is rejected.
func (n *Normalizer) Normalize(kind Kind, payload map[string]any) (Task, error) {
	if !kind.IsValid() {
		return Task{}, &InvalidRequestError{Field: "task_kind", Message: fmt.Sprintf("unsupported task kind %q", kind)}
	}
	if payload == nil {
		payload = map[string]any{}
	}

	var raw rawPayload
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &raw,
		WeaklyTypedInput: true,
		DecodeHook:       wholeNumberHook,
	})
	if err != nil {
		return Task{}, fmt.Errorf("create payload decoder: %w", err)
	}
	if err := decoder.Decode(payload); err != nil {
		return Task{}, &InvalidRequestError{Message: err.Error()}
	}

	t := Task{
		Kind:   kind,
		UserID: DefaultUserID,
	}
	if v, ok := firstPresent(raw.UserID); ok {
		t.UserID = v
	}
	if v, ok := firstPresent(raw.ContentType); ok {
		t.ContentType = v
	}
	if v, ok := firstPresent(raw.Title); ok {
		t.Title = v
	}

	if v, ok := firstPresent(raw.Format); ok {
		switch Format(strings.ToLower(v)) {
		case FormatHTML:
			t.Format = FormatHTML
		case FormatMarkdown:
			t.Format = FormatMarkdown
		default:
			return Task{}, &InvalidRequestError{Field: "format", Message: fmt.Sprintf("unsupported format %q", v)}
		}
	}

	if kind == KindIntentParse {
		input, ok := firstPresent(raw.Input, raw.Text)
		if !ok {
			return Task{}, &InvalidRequestError{Field: "input", Message: "Missing 'input' or 'text' field"}
		}
		t.Subject = input
		t.RawInput = input
		return t, nil
	}

	if subject, ok := firstPresent(raw.Definition, raw.Topic, raw.Input, raw.Text, raw.Intent); ok {
		t.Subject = subject
	} else {
		t.Subject = DefaultSubject
	}
	t.RawInput = t.Subject

	if def := DefaultTargetSize(kind); def > 0 {
		t.TargetSize = def
		if size, ok := firstInt(raw.WordCount, raw.TargetLength, raw.TargetSize); ok {
			if size < 1 || size > n.maxTargetSize {
				return Task{}, &InvalidRequestError{
					Field:   "word_count",
					Message: fmt.Sprintf("must be between 1 and %d, got %d", n.maxTargetSize, size),
				}
			}
			t.TargetSize = size
		}
	}

	return t, nil
}

// wholeNumberHook stops weak decoding from truncating fractional numbers
// into integer fields.
func wholeNumberHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	for to.Kind() == reflect.Pointer {
		to = to.Elem()
	}
	if to.Kind() != reflect.Int {
		return data, nil
	}
	if v, ok := data.(float64); ok && v != math.Trunc(v) {
		return nil, fmt.Errorf("expected a whole number, got %v", v)
	}
	return data, nil
}

// firstPresent returns the first value that is set and not blank.
func firstPresent(values ...*string) (string, bool) {
	for _, v := range values {
		if v == nil {
			continue
		}
		if s := strings.TrimSpace(*v); s != "" {
			return s, true
		}
	}
	return "", false
}

func firstInt(values ...*int) (int, bool) {
	for _, v := range values {
		if v != nil {
			return *v, true
		}
	}
	return 0, false
}
