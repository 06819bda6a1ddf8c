package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// ChunkFunc receives incremental output while a strategy is streaming.
type ChunkFunc func(chunk string)

// Strategy is one way of obtaining a reply from an agent. Invoke blocks
// until the agent finishes or fails; streamed fragments are forwarded to
// onChunk as they arrive.
type Strategy struct {
	Name   string
	Invoke func(ctx context.Context, prompt string, onChunk ChunkFunc) (Response, error)
}

// LadderError reports that every strategy in a ladder failed. It keeps the
// per-rung diagnostics so callers can surface the whole story.
type LadderError struct {
	Attempts []string
}

func (e *LadderError) Error() string {
	return fmt.Sprintf("all generation strategies failed: %s", strings.Join(e.Attempts, "; "))
}

// Ladder tries strategies in order and returns the first success.
type Ladder struct {
	strategies []Strategy
}

// NewLadder builds a ladder over the given strategies in priority order.
func NewLadder(strategies ...Strategy) *Ladder {
	return &Ladder{strategies: strategies}
}

// Run walks the rungs until one produces a non-empty response. It returns
// the winning response and strategy name, or a *LadderError carrying every
// rung's failure once the ladder is exhausted. A canceled context stops the
// walk immediately.
func (l *Ladder) Run(ctx context.Context, prompt string, onChunk ChunkFunc) (Response, string, error) {
	attempts := make([]string, 0, len(l.strategies))
	for _, s := range l.strategies {
		if err := ctx.Err(); err != nil {
			return Response{}, "", err
		}
		resp, err := s.Invoke(ctx, prompt, onChunk)
		if err != nil {
			log.Printf("Generation strategy %s failed: %v", s.Name, err)
			attempts = append(attempts, fmt.Sprintf("%s: %v", s.Name, err))
			continue
		}
		if resp.Empty() {
			log.Printf("Generation strategy %s returned an empty response", s.Name)
			attempts = append(attempts, fmt.Sprintf("%s: empty response", s.Name))
			continue
		}
		return resp, s.Name, nil
	}
	return Response{}, "", &LadderError{Attempts: attempts}
}
