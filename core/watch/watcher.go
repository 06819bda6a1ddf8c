// Package watch detects image artifacts appearing in a job's output
// directory while the job is still running.
package watch

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
)

// DefaultInterval is how often the output directory is rescanned.
const DefaultInterval = time.Second

// PushFunc delivers one newly detected image to the client side.
type PushFunc func(path, description string)

// Watcher polls a directory for .png files and reports each one exactly
// once. Agents write plots as opaque side effects, so polling the
// directory is the only signal that a visualization exists.
type Watcher struct {
	dir      string
	interval time.Duration

	mu    sync.Mutex
	found []models.Visualization
}

// New creates a watcher over dir with the default poll interval.
func New(dir string) *Watcher {
	return &Watcher{dir: dir, interval: DefaultInterval}
}

// NewWithInterval creates a watcher with a custom poll interval.
func NewWithInterval(dir string, interval time.Duration) *Watcher {
	return &Watcher{dir: dir, interval: interval}
}

// Run polls until ctx is canceled or active reports false. Every .png not
// seen on the previous scan is pushed once and recorded. Directory read
// errors are tolerated; the directory may not exist yet on early scans.
func (w *Watcher) Run(ctx context.Context, active func() bool, push PushFunc) {
	known := make(map[string]bool)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for active() {
		current := make(map[string]bool)
		entries, err := os.ReadDir(w.dir)
		if err == nil {
			for _, entry := range entries {
				if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".png") {
					continue
				}
				path := filepath.Join(w.dir, entry.Name())
				current[path] = true
				if known[path] {
					continue
				}
				log.Printf("New visualization detected: %s", path)
				description := "Visualization: " + entry.Name()
				if push != nil {
					push(path, description)
				}
				w.record(entry.Name(), description)
			}
		}
		known = current

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Found returns the visualizations detected so far, in discovery order.
func (w *Watcher) Found() []models.Visualization {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.Visualization, len(w.found))
	copy(out, w.found)
	return out
}

func (w *Watcher) record(filename, description string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.found = append(w.found, models.Visualization{
		Filename:    filename,
		Description: description,
	})
}
