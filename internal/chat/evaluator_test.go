package chat

import "testing"

func strp(s string) *string { return &s }

func f64p(f float64) *float64 { return &f }

func userMsg(content string, emotion *string) Message {
	return Message{SessionID: "s", Role: "user", Content: content, Emotion: emotion}
}

func aiMsg(content string, confidence *float64) Message {
	return Message{SessionID: "s", Role: "ai", Content: content, Confidence: confidence}
}

func newTestEvaluator() *Evaluator {
	return NewEvaluator(
		NewKeywordIntent([]string{"talk to a person", "real therapist", "human"}),
		EvaluatorConfig{},
	)
}

func TestEvaluateUserRequestWins(t *testing.T) {
	e := newTestEvaluator()

	// window also carries enough distress for the statistical trigger;
	// the explicit ask must still be the recorded reason
	window := []Message{
		userMsg("everything is awful", strp("sadness")),
		userMsg("i can't do this", strp("fear")),
		userMsg("please help", strp("anxiety")),
	}

	d := e.Evaluate(window, "Can I talk to a PERSON instead?")
	if !d.ShouldEscalate {
		t.Fatal("expected escalation")
	}
	if d.Reason != ReasonUserRequest {
		t.Fatalf("reason = %q, want %q", d.Reason, ReasonUserRequest)
	}
}

func TestEvaluateIntentIsCaseInsensitiveSubstring(t *testing.T) {
	e := newTestEvaluator()

	d := e.Evaluate(nil, "I think I need a REAL THERAPIST, honestly")
	if !d.ShouldEscalate || d.Reason != ReasonUserRequest {
		t.Fatalf("decision = %+v, want user_request", d)
	}

	if d := e.Evaluate(nil, "the weather is nice"); d.ShouldEscalate {
		t.Fatalf("unexpected escalation: %+v", d)
	}
}

func TestEvaluateRepetitionBoundary(t *testing.T) {
	e := newTestEvaluator()

	two := []Message{
		aiMsg("Take a deep breath.", nil),
		userMsg("that doesn't help", nil),
		aiMsg("take a deep breath.  ", nil),
	}
	if d := e.Evaluate(two, "still anxious"); d.ShouldEscalate {
		t.Fatalf("two repeats escalated: %+v", d)
	}

	three := append(two, aiMsg("TAKE A DEEP BREATH.", nil))
	d := e.Evaluate(three, "still anxious")
	if !d.ShouldEscalate || d.Reason != ReasonAIRepetition {
		t.Fatalf("decision = %+v, want ai_repetition", d)
	}
}

func TestEvaluateDistressBoundary(t *testing.T) {
	e := newTestEvaluator()

	window := []Message{
		userMsg("bad day", strp("sadness")),
		userMsg("scared", strp("fear")),
		userMsg("fine i guess", strp("neutral")),
		aiMsg("I'm here with you.", nil),
	}
	if d := e.Evaluate(window, "hello"); d.ShouldEscalate {
		t.Fatalf("two negatives escalated: %+v", d)
	}

	window = append(window, userMsg("so angry", strp("anger")))
	d := e.Evaluate(window, "hello")
	if !d.ShouldEscalate || d.Reason != ReasonEmotionalDistress {
		t.Fatalf("decision = %+v, want emotional_distress", d)
	}
}

func TestEvaluateDistressIgnoresAIEmotion(t *testing.T) {
	e := newTestEvaluator()

	// negative labels on non-user rows must not count
	window := []Message{
		{SessionID: "s", Role: "ai", Content: "a", Emotion: strp("sadness")},
		{SessionID: "s", Role: "ai", Content: "b", Emotion: strp("fear")},
		{SessionID: "s", Role: "ai", Content: "c", Emotion: strp("anger")},
	}
	if d := e.Evaluate(window, "hi"); d.ShouldEscalate {
		t.Fatalf("unexpected escalation: %+v", d)
	}
}

func TestEvaluateLowConfidenceBoundary(t *testing.T) {
	e := newTestEvaluator()

	window := []Message{
		aiMsg("Maybe try this?", f64p(0.40)),
		aiMsg("I see.", f64p(0.55)), // at threshold, not below
		aiMsg("Hmm.", nil),          // unscored, skipped
	}
	if d := e.Evaluate(window, "ok"); d.ShouldEscalate {
		t.Fatalf("one low score escalated: %+v", d)
	}

	window = append(window, aiMsg("Not sure.", f64p(0.54)))
	d := e.Evaluate(window, "ok")
	if !d.ShouldEscalate || d.Reason != ReasonLowAIConfidence {
		t.Fatalf("decision = %+v, want low_ai_confidence", d)
	}
}

func TestEvaluateEmptyWindow(t *testing.T) {
	e := newTestEvaluator()
	if d := e.Evaluate(nil, "just saying hi"); d.ShouldEscalate {
		t.Fatalf("unexpected escalation: %+v", d)
	}
}
