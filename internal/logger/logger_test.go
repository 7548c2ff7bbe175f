package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input    string
		expected Level
		wantErr  bool
	}{
		{input: "", expected: InfoLevel},
		{input: "DEBUG", expected: DebugLevel},
		{input: "warning", expected: WarnLevel},
		{input: " error ", expected: ErrorLevel},
		{input: "trace", wantErr: true},
	}
	for _, testCase := range cases {
		level, err := ParseLevel(testCase.input)
		if testCase.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", testCase.input)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", testCase.input, err)
		}
		if level != testCase.expected {
			t.Fatalf("expected %q for %q, got %q", testCase.expected, testCase.input, level)
		}
	}
}

func TestNew_JSONOutputCarriesKeyValues(t *testing.T) {
	t.Parallel()

	buffer := &bytes.Buffer{}
	log := New(Config{Level: InfoLevel, Output: buffer, JSON: true})
	log.With("dataset", "gsm8k").Info("stage complete", "stage", "loading", "records", 4)

	output := buffer.String()
	for _, fragment := range []string{`"msg":"stage complete"`, `"dataset":"gsm8k"`, `"stage":"loading"`, `"records":4`} {
		if !strings.Contains(output, fragment) {
			t.Fatalf("expected %s in log output, got %q", fragment, output)
		}
	}
}

func TestNew_LevelFiltersDebug(t *testing.T) {
	t.Parallel()

	buffer := &bytes.Buffer{}
	log := New(Config{Level: InfoLevel, Output: buffer})
	log.Debug("hidden")
	if buffer.Len() != 0 {
		t.Fatalf("expected debug entry to be filtered, got %q", buffer.String())
	}
}
