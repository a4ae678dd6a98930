package emotion

import (
	"context"
	"errors"
	"testing"
)

func TestRuleBased_Labels(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"I feel so sad and lonely", "sadness"},
		{"I'm scared and anxious about tomorrow", "fear"},
		{"this makes me so angry and frustrated", "anger"},
		{"what a wonderful amazing day", "joy"},
		{"just checking in", "neutral"},
		{"", "neutral"},
	}
	for _, tc := range cases {
		res, err := RuleBased{}.Classify(context.Background(), tc.text)
		if err != nil {
			t.Fatalf("classify %q: %v", tc.text, err)
		}
		if res.Label != tc.want {
			t.Errorf("classify %q: got %q, want %q", tc.text, res.Label, tc.want)
		}
		if res.Confidence <= 0 || res.Confidence > 0.9 {
			t.Errorf("classify %q: confidence %v out of range", tc.text, res.Confidence)
		}
	}
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, string) (Result, error) {
	return Result{}, errors.New("inference down")
}

func TestFallback_UsesRulesWhenPrimaryFails(t *testing.T) {
	f := Fallback{Primary: failingClassifier{}}
	res, err := f.Classify(context.Background(), "I am so depressed")
	if err != nil {
		t.Fatalf("fallback must not surface primary error: %v", err)
	}
	if res.Label != "sadness" {
		t.Fatalf("got %q, want sadness", res.Label)
	}
}
