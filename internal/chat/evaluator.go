package chat

import "strings"

// Decision is the evaluator output: escalate or not, and why.
type Decision struct {
	ShouldEscalate bool
	Reason         Reason
}

// IntentDetector decides whether raw text explicitly asks for a human.
// It is a replaceable strategy: the keyword matcher below can be swapped
// for a learned classifier without touching the state machine or the
// dispatch loop.
type IntentDetector interface {
	Detect(text string) bool
}

// KeywordIntent matches case-insensitive substrings against a
// configurable phrase list.
type KeywordIntent struct {
	keywords []string
}

func NewKeywordIntent(keywords []string) KeywordIntent {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return KeywordIntent{keywords: lowered}
}

func (k KeywordIntent) Detect(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return false
	}
	for _, kw := range k.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type EvaluatorConfig struct {
	NegativeEmotions       []string
	RepetitionThreshold    int
	DistressThreshold      int
	LowConfidenceThreshold float64
	LowConfidenceCount     int
}

// Evaluator is a pure decision function over the trailing message
// window plus the just-received raw text. No I/O, no mutation; it runs
// only while the session has no escalation record yet.
type Evaluator struct {
	intent    IntentDetector
	cfg       EvaluatorConfig
	negatives map[string]bool
}

func NewEvaluator(intent IntentDetector, cfg EvaluatorConfig) *Evaluator {
	if cfg.RepetitionThreshold <= 0 {
		cfg.RepetitionThreshold = 3
	}
	if cfg.DistressThreshold <= 0 {
		cfg.DistressThreshold = 3
	}
	if cfg.LowConfidenceThreshold <= 0 {
		cfg.LowConfidenceThreshold = 0.55
	}
	if cfg.LowConfidenceCount <= 0 {
		cfg.LowConfidenceCount = 2
	}
	negatives := make(map[string]bool, len(cfg.NegativeEmotions))
	for _, e := range cfg.NegativeEmotions {
		negatives[strings.ToLower(e)] = true
	}
	if len(negatives) == 0 {
		for _, e := range []string{"sadness", "fear", "anger", "anxiety"} {
			negatives[e] = true
		}
	}
	return &Evaluator{intent: intent, cfg: cfg, negatives: negatives}
}

// normalizeReply folds an ai reply for repetition counting: trimmed,
// casefolded, truncated to a fixed prefix.
func normalizeReply(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if runes := []rune(s); len(runes) > 100 {
		s = string(runes[:100])
	}
	return s
}

// Evaluate checks detectors in strict precedence; the first match
// short-circuits. An explicit request for a human always wins over the
// statistical signals.
func (e *Evaluator) Evaluate(window []Message, raw string) Decision {
	if e.intent != nil && e.intent.Detect(raw) {
		return Decision{ShouldEscalate: true, Reason: ReasonUserRequest}
	}

	// ai looping: any normalized reply repeated in the window
	counts := make(map[string]int)
	for _, m := range window {
		if m.Role != "ai" {
			continue
		}
		n := normalizeReply(m.Content)
		counts[n]++
		if counts[n] >= e.cfg.RepetitionThreshold {
			return Decision{ShouldEscalate: true, Reason: ReasonAIRepetition}
		}
	}

	distress := 0
	for _, m := range window {
		if m.Role == "user" && m.Emotion != nil && e.negatives[strings.ToLower(*m.Emotion)] {
			distress++
		}
	}
	if distress >= e.cfg.DistressThreshold {
		return Decision{ShouldEscalate: true, Reason: ReasonEmotionalDistress}
	}

	lowConf := 0
	for _, m := range window {
		if m.Role == "ai" && m.Confidence != nil && *m.Confidence < e.cfg.LowConfidenceThreshold {
			lowConf++
		}
	}
	if lowConf >= e.cfg.LowConfidenceCount {
		return Decision{ShouldEscalate: true, Reason: ReasonLowAIConfidence}
	}

	return Decision{}
}
