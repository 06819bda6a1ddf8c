package pack

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/pipeline"
)

// Build faults that callers branch on.
var (
	ErrNoData      = errors.New("no data found for session")
	ErrNoValidData = errors.New("no valid data points after conversion")
)

// SampleSource supplies raw records and metadata for a session.
type SampleSource interface {
	Fetch(ctx context.Context, sessionID string) ([]map[string]interface{}, error)
	FetchMetadata(ctx context.Context, sessionID string) (*models.Session, error)
}

// Builder runs the full session-to-pack pipeline: fetch, normalize,
// pivot/downsample, KPIs, persist.
type Builder struct {
	source SampleSource
	writer *Writer
}

// NewBuilder creates a new pack builder.
func NewBuilder(source SampleSource, writer *Writer) *Builder {
	return &Builder{source: source, writer: writer}
}

// Build builds the pack for one session. No stored data and
// nothing-survives-coercion are both fatal to the build; missing session
// metadata is not.
func (b *Builder) Build(ctx context.Context, sessionID string) (*models.SessionPack, error) {
	raw, err := b.source.Fetch(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetch samples for session %s: %w", sessionID, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNoData)
	}
	log.Printf("Fetched %d data points for session %s", len(raw), sessionID)

	samples := pipeline.Normalize(raw)
	if len(samples) == 0 {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNoValidData)
	}
	log.Printf("Converted to %d long-form samples", len(samples))

	frame := pipeline.BuildFrame(samples)
	log.Printf("Downsampled to %d rows, %d signals", frame.Rows(), len(frame.Signals))

	meta, err := b.source.FetchMetadata(ctx, sessionID)
	if err != nil {
		log.Printf("Metadata lookup failed for session %s: %v", sessionID, err)
		meta = nil
	}

	kpis := pipeline.Summarize(frame, meta)

	sessionPack, err := b.writer.Write(sessionID, frame, kpis)
	if err != nil {
		return nil, fmt.Errorf("write pack for session %s: %w", sessionID, err)
	}
	log.Printf("Wrote pack for session %s (%d bytes)", sessionID, sessionPack.ParquetSize)
	return sessionPack, nil
}
