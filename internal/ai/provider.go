package ai

import "context"

// Message is one turn of provider context, oldest first.
type Message struct {
	Role    string
	Content string
}

// Provider generates a single reply for the given conversation. The
// reply may be the escalation sentinel; callers decide what to do with
// it.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// ScoredProvider is an optional interface. Providers that can attach a
// self-reported confidence to replies implement it; others leave the
// confidence unknown.
type ScoredProvider interface {
	ChatScored(ctx context.Context, messages []Message) (reply string, confidence float64, err error)
}
