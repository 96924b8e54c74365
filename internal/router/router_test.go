package router

import (
	"strings"
	"testing"
)

func TestSelect_WordCountPolicy(t *testing.T) {
	s := &Selector{WordThreshold: 25, Fast: "gpt-4o-mini", Capable: "gpt-5"}

	tests := []struct {
		name string
		text string
		want Tier
	}{
		{"two words", "hello there", TierFast},
		{"empty", "", TierFast},
		{"whitespace only", "   \t\n  ", TierFast},
		{"twenty-four words", strings.Repeat("word ", 24), TierFast},
		{"exactly threshold", strings.Repeat("word ", 25), TierCapable},
		{"thirty words", strings.Repeat("word ", 30), TierCapable},
		{"extra whitespace does not inflate count", "a  b\t c \n d", TierFast},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Select(tt.text); got != tt.want {
				t.Errorf("Select(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}

func TestSelect_ZeroThresholdFallsBackToDefault(t *testing.T) {
	s := &Selector{}
	if got := s.Select(strings.Repeat("w ", DefaultWordThreshold)); got != TierCapable {
		t.Errorf("expected capable tier at default threshold, got %s", got)
	}
	if got := s.Select("short message"); got != TierFast {
		t.Errorf("expected fast tier, got %s", got)
	}
}

func TestModel_MapsTierToConfiguredName(t *testing.T) {
	s := &Selector{Fast: "gpt-4o-mini", Capable: "gpt-5"}
	if got := s.Model(TierFast); got != "gpt-4o-mini" {
		t.Errorf("fast model = %q", got)
	}
	if got := s.Model(TierCapable); got != "gpt-5" {
		t.Errorf("capable model = %q", got)
	}
}
