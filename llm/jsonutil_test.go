package llm

import (
	"encoding/json"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey string // if non-empty, check this key exists in parsed JSON
		wantErr bool
	}{
		{
			name:    "plain JSON",
			input:   `{"workflow_type": "blog-post-generation"}`,
			wantKey: "workflow_type",
		},
		{
			name:    "markdown code block",
			input:   "```json\n{\"topic\": \"kubernetes\"}\n```",
			wantKey: "topic",
		},
		{
			name:    "prose before and after",
			input:   "Here is the intent:\n{\"title\": \"Scaling Go\"}\nLet me know if you need more.",
			wantKey: "title",
		},
		{
			name:    "nested objects",
			input:   `{"workflow_type": "image-generation", "meta": {"style": {"tone": "calm"}}}`,
			wantKey: "meta",
		},
		{
			name:    "braces inside strings",
			input:   `{"title": "Using {braces} and } in titles", "confidence": 0.9}`,
			wantKey: "confidence",
		},
		{
			name:    "escaped quote inside string",
			input:   `{"title": "A \"quoted\" } brace", "topic": "x"}`,
			wantKey: "topic",
		},
		{
			name:    "first object wins",
			input:   `{"topic": "first"} and then {"other": "second"}`,
			wantKey: "topic",
		},
		{
			name:    "JS comments and trailing commas",
			input:   "```json\n{\n  \"requirements\": [\n    \"one\",  // first\n    \"two\",  // second\n  ]\n}\n```",
			wantKey: "requirements",
		},
		{
			name:    "URL in string not stripped",
			input:   `{"url": "http://example.com/path"}`,
			wantKey: "url",
		},
		{
			name:    "URL in string with comment after",
			input:   "{\"url\": \"http://example.com/path\"} // trailing",
			wantKey: "url",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "no JSON at all",
			input:   "This is just text with no JSON.",
			wantErr: true,
		},
		{
			name:    "unterminated object",
			input:   `{"workflow_type": "blog-post-generation"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractJSON(tt.input)

			if tt.wantErr {
				if result != "" {
					t.Errorf("expected empty result, got: %s", result)
				}
				return
			}

			if result == "" {
				t.Fatal("expected JSON result, got empty string")
			}

			// Verify it's valid JSON
			var parsed map[string]any
			if err := json.Unmarshal([]byte(result), &parsed); err != nil {
				t.Fatalf("result is not valid JSON: %v\nresult: %s", err, result)
			}

			if tt.wantKey != "" {
				if _, ok := parsed[tt.wantKey]; !ok {
					t.Errorf("expected key %q in parsed JSON, got keys: %v", tt.wantKey, keysOf(parsed))
				}
			}
		})
	}
}

func TestFirstBalancedObject(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`prefix {"a": {"b": 1}} suffix }`, `{"a": {"b": 1}}`},
		{`{"s": "}"}`, `{"s": "}"}`},
		{`no braces`, ``},
		{`{"open": [`, ``},
	}

	for _, tt := range tests {
		if got := firstBalancedObject(tt.input); got != tt.want {
			t.Errorf("firstBalancedObject(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestStripLineComment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no comment",
			input:    `  "key": "value",`,
			expected: `  "key": "value",`,
		},
		{
			name:     "trailing comment",
			input:    `  "key": "value",  // a comment`,
			expected: `  "key": "value",`,
		},
		{
			name:     "URL in string preserved",
			input:    `  "url": "http://example.com",`,
			expected: `  "url": "http://example.com",`,
		},
		{
			name:     "URL with trailing comment",
			input:    `  "url": "http://example.com",  // the url`,
			expected: `  "url": "http://example.com",`,
		},
		{
			name:     "whole line comment",
			input:    `  // This is a comment`,
			expected: ``,
		},
		{
			name:     "escaped quote in string",
			input:    `  "path": "a\"b//c",  // comment`,
			expected: `  "path": "a\"b//c",`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stripLineComment(tt.input)
			if got != tt.expected {
				t.Errorf("stripLineComment(%q)\ngot:  %q\nwant: %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "trailing comma in array",
			input: `{"items": ["one", "two",]}`,
		},
		{
			name:  "trailing comma in object",
			input: `{"a": 1, "b": 2,}`,
		},
		{
			name:  "comments and trailing commas",
			input: "{\n  \"items\": [\n    \"one\",  // first\n    \"two\",  // second\n  ]\n}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cleanJSON(tt.input)

			var parsed any
			if err := json.Unmarshal([]byte(result), &parsed); err != nil {
				t.Fatalf("cleaned JSON is invalid: %v\nresult: %s", err, result)
			}
		})
	}
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
