package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	ollamamodel "github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/schema"

	"github.com/routineflow/routineflow/internal/pkg/logs"
	"github.com/routineflow/routineflow/internal/routine"
)

// ErrNoHistory is returned when there is nothing to base a suggestion on.
var ErrNoHistory = errors.New("no routine data available to generate suggestions")

// HistoryEntry is one routine summarized for the model. Completed routines
// score high so the model favors patterns the user actually follows through.
type HistoryEntry struct {
	Attempt  string `json:"attempt"`
	TimeSlot string `json:"time"`
	Work     string `json:"work"`
	Score    int    `json:"score"`
}

// Suggestion is one schedule proposal from the model.
type Suggestion struct {
	Work          string `json:"work"`
	SuggestedTime string `json:"suggestedTime"`
	Reasoning     string `json:"reasoning"`
}

// Engine asks a local language model for schedule suggestions based on the
// user's routine history. The chat model is created lazily on first use so a
// missing backend only fails suggestion requests, not startup.
type Engine struct {
	baseURL string
	model   string
	timeout time.Duration

	mu sync.Mutex
	cm *ollamamodel.ChatModel
}

func NewEngine(baseURL, model string, timeout time.Duration) *Engine {
	return &Engine{
		baseURL: baseURL,
		model:   model,
		timeout: timeout,
	}
}

// HistoryFrom converts stored routines into model-facing history entries.
// A routine with no explicit score gets a default: 10 when completed, 2 when
// not, so completion dominates the signal.
func HistoryFrom(routines []routine.Routine) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(routines))
	for _, r := range routines {
		score := r.Score
		if score == 0 {
			if r.Completed {
				score = 10
			} else {
				score = 2
			}
		}
		slot := r.TimeSlot
		if slot == "" {
			slot = r.StartTime
			if r.EndTime != "" {
				slot += " - " + r.EndTime
			}
		}
		out = append(out, HistoryEntry{
			Attempt:  string(r.Attempt),
			TimeSlot: slot,
			Work:     r.Work,
			Score:    score,
		})
	}
	return out
}

// Suggest returns schedule proposals for the given history.
func (e *Engine) Suggest(ctx context.Context, history []HistoryEntry) ([]Suggestion, error) {
	if len(history) == 0 {
		return nil, ErrNoHistory
	}

	cm, err := e.chatModel(ctx)
	if err != nil {
		return nil, err
	}

	prompt, err := buildPrompt(history)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage("You are a productivity coach. Respond with JSON only, no prose and no code fences."),
		schema.UserMessage(prompt),
	})
	if err != nil {
		return nil, fmt.Errorf("suggestion model call failed: %w", err)
	}

	suggestions, err := parseSuggestions(resp.Content)
	if err != nil {
		logs.CtxWarn(ctx, "[suggest] unparseable model output: %v", err)
		return nil, err
	}

	logs.CtxInfo(ctx, "[suggest] produced %d suggestions from %d history entries", len(suggestions), len(history))
	return suggestions, nil
}

func (e *Engine) chatModel(ctx context.Context) (*ollamamodel.ChatModel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cm != nil {
		return e.cm, nil
	}

	cm, err := ollamamodel.NewChatModel(ctx, &ollamamodel.ChatModelConfig{
		BaseURL: e.baseURL,
		Timeout: e.timeout,
		Model:   e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create suggestion chat model: %w", err)
	}
	e.cm = cm
	return cm, nil
}

func buildPrompt(history []HistoryEntry) (string, error) {
	data, err := sonic.MarshalIndent(history, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal history: %w", err)
	}

	var b strings.Builder
	b.WriteString("Analyze the user's routine history and suggest an optimal schedule.\n")
	b.WriteString("Each entry has an attempt label, a time slot, the activity, and a score from 0 to 10 where higher means the slot worked well.\n")
	b.WriteString("Prefer time slots with high scores, move low-scoring activities to better slots, and keep suggestions realistic for a single day.\n\n")
	b.WriteString("Routine history:\n")
	b.Write(data)
	b.WriteString("\n\nReply with a JSON array where each element has exactly these string fields: ")
	b.WriteString(`"work", "suggestedTime", "reasoning".`)
	return b.String(), nil
}

// parseSuggestions tolerates models that wrap the JSON in code fences despite
// being told not to.
func parseSuggestions(content string) ([]Suggestion, error) {
	text := strings.TrimSpace(content)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// Some models prepend prose; cut down to the outermost array.
	if i := strings.Index(text, "["); i > 0 {
		text = text[i:]
	}
	if i := strings.LastIndex(text, "]"); i >= 0 && i < len(text)-1 {
		text = text[:i+1]
	}

	var out []Suggestion
	if err := sonic.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w", err)
	}
	if len(out) == 0 {
		return nil, errors.New("model returned no suggestions")
	}
	return out, nil
}
