package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"freqtrade-mcp/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const DefaultRedisKey = "freqtrade-mcp:journal"

// RedisJournal keeps the newest entries in a capped Redis list.
type RedisJournal struct {
	client     redis.Cmdable
	tracer     trace.Tracer
	key        string
	maxEntries int
}

func NewRedisJournal(client redis.Cmdable, tracer trace.Tracer, key string, maxEntries int) *RedisJournal {
	if key == "" {
		key = DefaultRedisKey
	}
	if maxEntries <= 0 {
		maxEntries = maxRecentLimit
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("journal")
	}
	return &RedisJournal{client: client, tracer: tracer, key: key, maxEntries: maxEntries}
}

func (j *RedisJournal) Record(ctx context.Context, entry domain.JournalEntry) error {
	ctx, span := j.tracer.Start(ctx, "journal.redis.record")
	defer span.End()

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}

	pipe := j.client.TxPipeline()
	pipe.LPush(ctx, j.key, payload)
	pipe.LTrim(ctx, j.key, 0, int64(j.maxEntries-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	return nil
}

func (j *RedisJournal) Recent(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	ctx, span := j.tracer.Start(ctx, "journal.redis.recent")
	defer span.End()

	limit = NormalizeLimit(limit)
	raw, err := j.client.LRange(ctx, j.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	entries := make([]domain.JournalEntry, 0, len(raw))
	for _, item := range raw {
		var entry domain.JournalEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("decode journal entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
