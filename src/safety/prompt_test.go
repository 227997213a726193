package safety_test

import (
	"strings"
	"testing"

	"snapset/src/safety"
)

func TestConfirm_DryRunDeclinesWithoutPrompting(t *testing.T) {
	var out strings.Builder
	ok, err := safety.Confirm(safety.Options{DryRun: true}, strings.NewReader("y\n"), &out, "Delete 2 sets?")
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if ok {
		t.Fatalf("dry run must decline")
	}
	if out.Len() != 0 {
		t.Fatalf("dry run wrote prompt: %q", out.String())
	}
}

func TestConfirm_YesSkipsPrompt(t *testing.T) {
	var out strings.Builder
	ok, err := safety.Confirm(safety.Options{Yes: true}, strings.NewReader(""), &out, "Proceed?")
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if !ok {
		t.Fatalf("--yes must confirm")
	}
	if out.Len() != 0 {
		t.Fatalf("--yes wrote prompt: %q", out.String())
	}
}

func TestConfirm_ForceSkipsPrompt(t *testing.T) {
	ok, err := safety.Confirm(safety.Options{Force: true}, strings.NewReader(""), nil, "Proceed?")
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if !ok {
		t.Fatalf("--force must confirm")
	}
}

func TestConfirm_ReadsAnswer(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"Y\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false}, // EOF counts as decline
	}
	for _, tc := range cases {
		var out strings.Builder
		ok, err := safety.Confirm(safety.Options{}, strings.NewReader(tc.input), &out, "Proceed?")
		if err != nil {
			t.Fatalf("Confirm(%q) error: %v", tc.input, err)
		}
		if ok != tc.want {
			t.Fatalf("Confirm(%q) = %v, want %v", tc.input, ok, tc.want)
		}
		if !strings.Contains(out.String(), "[y/N]") {
			t.Fatalf("prompt missing: %q", out.String())
		}
	}
}
