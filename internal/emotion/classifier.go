package emotion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Result is one emotion classification for a piece of text.
type Result struct {
	Label      string
	Confidence float64
}

// Classifier labels end-user messages. A failing classifier never
// blocks a chat turn; the message just persists unlabeled.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// HTTPClassifier calls an external inference service
// (transformer-backed) that returns {"label": ..., "score": ...}.
type HTTPClassifier struct {
	URL    string
	Client *http.Client
}

func NewHTTPClassifier(url string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClassifier{URL: url, Client: &http.Client{Timeout: timeout}}
}

type classifyReq struct {
	Text string `json:"text"`
}

type classifyResp struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Error string  `json:"error,omitempty"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string) (Result, error) {
	if c.URL == "" {
		return Result{}, errors.New("emotion: no inference url configured")
	}

	// long inputs add latency without changing the label much
	if len(text) > 512 {
		text = text[:512]
	}

	b, err := json.Marshal(classifyReq{Text: text})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(b))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("emotion: status %d", resp.StatusCode)
	}

	var decoded classifyResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, err
	}
	if decoded.Error != "" {
		return Result{}, errors.New(decoded.Error)
	}
	return Result{Label: strings.ToLower(decoded.Label), Confidence: decoded.Score}, nil
}

// RuleBased is the keyword fallback used when no inference service is
// configured or reachable.
type RuleBased struct{}

var keywordSets = map[string][]string{
	"joy":      {"happy", "excited", "great", "wonderful", "amazing", "fantastic", "love", "enjoy", "glad", "pleased"},
	"sadness":  {"sad", "depressed", "unhappy", "miserable", "down", "lonely", "cry", "grief", "sorrow", "blue"},
	"anger":    {"angry", "mad", "furious", "annoyed", "frustrated", "irritated", "rage", "hate", "upset"},
	"fear":     {"afraid", "scared", "anxious", "worried", "nervous", "panic", "terrified", "frightened", "fear"},
	"surprise": {"surprised", "shocked", "amazed", "astonished", "unexpected", "wow", "incredible"},
	"disgust":  {"disgusted", "gross", "awful", "terrible", "horrible", "nasty", "yuck"},
	"neutral":  {"okay", "fine", "alright", "normal", "regular"},
}

func (RuleBased) Classify(_ context.Context, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{Label: "neutral", Confidence: 0.5}, nil
	}

	lower := strings.ToLower(text)
	best := ""
	bestCount := 0
	for label, words := range keywordSets {
		count := 0
		for _, w := range words {
			if strings.Contains(lower, w) {
				count++
			}
		}
		if count > bestCount || (count == bestCount && count > 0 && label < best) {
			best = label
			bestCount = count
		}
	}

	if bestCount == 0 {
		return Result{Label: "neutral", Confidence: 0.6}, nil
	}
	conf := 0.5 + float64(bestCount)*0.1
	if conf > 0.9 {
		conf = 0.9
	}
	return Result{Label: best, Confidence: conf}, nil
}

// Fallback tries the primary classifier and falls back to the rule set
// when it fails.
type Fallback struct {
	Primary Classifier
	rules   RuleBased
}

func (f Fallback) Classify(ctx context.Context, text string) (Result, error) {
	if f.Primary != nil {
		if res, err := f.Primary.Classify(ctx, text); err == nil {
			return res, nil
		}
	}
	return f.rules.Classify(ctx, text)
}
