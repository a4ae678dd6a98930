package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SupportPrompt steers the model toward short, empathetic replies and
// teaches it the escalation sentinel. The sentinel itself is stripped
// by the dispatch loop and never shown to anyone.
const SupportPrompt = `You are a mental health support assistant.

Rules you MUST follow:
- Be empathetic and human
- Never repeat the same question twice
- If the user asks for a therapist, appointment, or human help:
  respond ONLY with the word: <<ESCALATE>>
- If the user seems distressed or stuck:
  suggest speaking to a therapist gently
- Do NOT give medical advice
- Keep responses short and supportive (2-3 sentences max)`

type OllamaProvider struct {
	BaseURL string
	Model   string
	System  string
	Client  *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	return &OllamaProvider{
		BaseURL: baseURL,
		Model:   model,
		System:  SupportPrompt,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type ollamaChatReq struct {
	Model    string      `json:"model"`
	Messages []ollamaMsg `json:"messages"`
	Stream   bool        `json:"stream"`
}

type ollamaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResp struct {
	Message ollamaMsg `json:"message"`
	Error   string    `json:"error,omitempty"`
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.Client == nil {
		return "", errors.New("ollama: http client is nil")
	}

	msgs := make([]ollamaMsg, 0, len(messages)+1)
	if p.System != "" {
		msgs = append(msgs, ollamaMsg{Role: "system", Content: p.System})
	}
	for _, m := range messages {
		role := m.Role
		// ollama only knows user/assistant besides system
		if role != "user" && role != "assistant" {
			role = "assistant"
		}
		msgs = append(msgs, ollamaMsg{Role: role, Content: m.Content})
	}

	b, err := json.Marshal(ollamaChatReq{Model: p.Model, Stream: false, Messages: msgs})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/api/chat", p.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama: status %d", resp.StatusCode)
	}

	var decoded ollamaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != "" {
		return "", errors.New(decoded.Error)
	}
	return decoded.Message.Content, nil
}
