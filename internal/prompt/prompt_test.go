package prompt

import (
	"errors"
	"testing"
)

func TestFewShotPrompt(t *testing.T) {
	tests := []struct {
		name  string
		pairs []Pair
		want  string
	}{
		{"no pairs", nil, "Q"},
		{"one pair", []Pair{{"a", "1"}}, "Input: a\nOutput: 1\n\n\nQ"},
		{"two pairs", []Pair{{"a", "1"}, {"b", "2"}}, "Input: a\nOutput: 1\n\nInput: b\nOutput: 2\n\n\nQ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FewShotPrompt(tt.pairs, "Q"); got != tt.want {
				t.Errorf("FewShotPrompt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLegacyFewShotPrompt(t *testing.T) {
	if got := LegacyFewShotPrompt(nil, "Q"); got != "\n\n\n\nQ" {
		t.Errorf("no pairs = %q", got)
	}
	got := LegacyFewShotPrompt([]Pair{{"a", "1"}, {"b", "2"}}, "Q")
	if got != "Input: b\nOutput: 2\n\n\nQ" {
		t.Errorf("two pairs = %q", got)
	}
}

func TestChainFewShotPrompt(t *testing.T) {
	got := ChainFewShotPrompt([]Pair{{"a", "1"}, {"b", "2"}}, "Q")
	want := "Input: a\nOutput: Let's think step by step. \n1\n\n" +
		"Input: b\nOutput: Let's think step by step. \n2\n\nQ"
	if got != want {
		t.Errorf("ChainFewShotPrompt() = %q, want %q", got, want)
	}
	if got := ChainFewShotPrompt(nil, "Q"); got != "\n\nQ" {
		t.Errorf("no pairs = %q, want %q", got, "\n\nQ")
	}
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"zero-shot":      ModeZeroShot,
		"FEW_SHOT":       ModeFewShot,
		" cor-zero-shot": ModeChainZeroShot,
		"cor_few_shot":   ModeChainFewShot,
	}
	for in, want := range tests {
		got, err := ParseMode(in)
		if err != nil {
			t.Errorf("ParseMode(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseMode(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := ParseMode("one-shot"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("ParseMode(one-shot) err = %v, want ErrUnknownMode", err)
	}
}

func TestModeProperties(t *testing.T) {
	for _, m := range Modes() {
		wantCalls := 1
		if m == ModeChainZeroShot || m == ModeChainFewShot {
			wantCalls = 2
		}
		if m.Calls() != wantCalls {
			t.Errorf("%s.Calls() = %d, want %d", m, m.Calls(), wantCalls)
		}
	}
	if !ModeFewShot.UsesExamples() || ModeZeroShot.UsesExamples() {
		t.Error("UsesExamples mismatch")
	}
}
