// Package storage persists replication run history using NATS KV.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/tagmirror/workflow"
)

// BucketRuns is the KV bucket holding one entry per replication session,
// keyed by session id.
const BucketRuns = "TAGMIRROR_RUNS"

// Store provides run-history operations backed by NATS KV.
type Store struct {
	runs jetstream.KeyValue
}

// NewStore creates a Store with the given JetStream context, creating the
// runs bucket if it doesn't exist.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	runs, err := getOrCreateBucket(ctx, js, BucketRuns)
	if err != nil {
		return nil, fmt.Errorf("create runs bucket: %w", err)
	}
	return &Store{runs: runs}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "Tagmirror replication run history",
		History:     5, // Keep last 5 revisions
	})
}

// SaveRun stores a session result under its session id.
func (s *Store) SaveRun(ctx context.Context, result *workflow.Result) error {
	if result.SessionID == "" {
		return fmt.Errorf("result has no session id")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if _, err := s.runs.Put(ctx, result.SessionID, data); err != nil {
		return fmt.Errorf("store run: %w", err)
	}
	return nil
}

// GetRun retrieves one run by session id.
func (s *Store) GetRun(ctx context.Context, sessionID string) (*workflow.Result, error) {
	entry, err := s.runs.Get(ctx, sessionID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}

	var result workflow.Result
	if err := json.Unmarshal(entry.Value(), &result); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}
	return &result, nil
}

// ListRuns returns all recorded runs, sorted by session id.
func (s *Store) ListRuns(ctx context.Context) ([]*workflow.Result, error) {
	keys, err := s.runs.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list run keys: %w", err)
	}

	results := make([]*workflow.Result, 0, len(keys))
	for _, key := range keys {
		entry, err := s.runs.Get(ctx, key)
		if err != nil {
			continue // Skip entries that fail to load
		}
		var result workflow.Result
		if err := json.Unmarshal(entry.Value(), &result); err != nil {
			continue
		}
		results = append(results, &result)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].SessionID < results[j].SessionID
	})
	return results, nil
}

// DeleteRun removes one run from the history.
func (s *Store) DeleteRun(ctx context.Context, sessionID string) error {
	if err := s.runs.Delete(ctx, sessionID); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// isNotFound checks if an error indicates a key was not found.
func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "key not found")
}
