package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/jobs"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
)

// DefaultTTL is how long mirrored job statuses stay readable.
const DefaultTTL = 24 * time.Hour

const (
	jobKeyPrefix    = "obd2:job:"
	clientKeyPrefix = "obd2:client:"
	dialTimeout     = 5 * time.Second
	writeTimeout    = 2 * time.Second
)

// Mirror copies terminal job transitions into Redis so operators can
// inspect finished work across process restarts. It never sits on the
// request path: writes run under a short timeout and failures are logged
// and dropped.
type Mirror struct {
	client *redis.Client
	ttl    time.Duration
}

var _ jobs.StatusMirror = (*Mirror)(nil)

// NewMirror connects to Redis at addr and verifies the connection.
func NewMirror(addr string) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Mirror{client: client, ttl: DefaultTTL}, nil
}

// SetTTL overrides how long mirrored entries live.
func (m *Mirror) SetTTL(d time.Duration) {
	m.ttl = d
}

// MirrorTerminal writes the job's terminal status to obd2:job:<id> and,
// for completed jobs, appends the id to the owner's completed list.
func (m *Mirror) MirrorTerminal(job models.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	doc := map[string]interface{}{
		"job_id":      job.ID,
		"client_id":   job.ClientID,
		"kind":        string(job.Kind),
		"status":      string(job.Status),
		"output_file": job.OutputFile,
	}
	if job.EndTime != nil {
		doc["ended_at"] = job.EndTime.Format(time.RFC3339)
	}
	if job.Error != "" {
		doc["error"] = job.Error
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return
	}

	if err := m.client.Set(ctx, jobKeyPrefix+job.ID, raw, m.ttl).Err(); err != nil {
		log.Printf("Job status mirror write failed for %s: %v", job.ID, err)
		return
	}

	if job.Status == models.JobStatusCompleted {
		listKey := clientKeyPrefix + job.ClientID + ":completed"
		pipe := m.client.Pipeline()
		pipe.RPush(ctx, listKey, job.ID)
		pipe.Expire(ctx, listKey, m.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("Completed list mirror write failed for client %s: %v", job.ClientID, err)
		}
	}
}

// Close releases the Redis connection.
func (m *Mirror) Close() error {
	return m.client.Close()
}
