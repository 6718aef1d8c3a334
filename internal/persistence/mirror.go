package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/itconnect/internal/domain"
	"github.com/spec-kit/itconnect/internal/observability"
)

// ErrMirrorMiss is returned when a document is not present in the mirror.
var ErrMirrorMiss = errors.New("mirror miss")

// Mirror is a Redis read copy of access-control records and profile
// documents. It serves reads when Postgres is slow or unreachable and is never
// consulted for authorization decisions.
type Mirror struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewMirror builds a mirror. A zero ttl keeps entries until evicted.
func NewMirror(client *redis.Client, ttl time.Duration, metrics *observability.Metrics) *Mirror {
	return &Mirror{client: client, ttl: ttl, metrics: metrics}
}

// PutAccess stores an access-control record. The copy is for offline readers
// of the mirror; this service authorizes from Postgres only.
func (m *Mirror) PutAccess(ctx context.Context, record *domain.AccessControl) error {
	return m.put(ctx, accessKey(record.SubjectID), record)
}

// PutProfile stores a profile document keyed by its subject.
func (m *Mirror) PutProfile(ctx context.Context, profile *domain.Profile) error {
	return m.put(ctx, profileKey(profile.SubjectID), profile)
}

// GetProfile loads a profile document.
func (m *Mirror) GetProfile(ctx context.Context, subjectID string) (*domain.Profile, error) {
	var profile domain.Profile
	if err := m.get(ctx, profileKey(subjectID), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Evict drops both mirrored documents of a subject.
func (m *Mirror) Evict(ctx context.Context, subjectID string) error {
	if m == nil || m.client == nil {
		return ErrRedisNotConfigured
	}
	err := m.client.Del(ctx, accessKey(subjectID), profileKey(subjectID)).Err()
	m.metrics.RecordMirror("evict", resultLabel(err))
	return err
}

func (m *Mirror) put(ctx context.Context, key string, value any) error {
	if m == nil || m.client == nil {
		return ErrRedisNotConfigured
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	err = m.client.Set(ctx, key, payload, m.ttl).Err()
	m.metrics.RecordMirror("put", resultLabel(err))
	return err
}

func (m *Mirror) get(ctx context.Context, key string, dest any) error {
	if m == nil || m.client == nil {
		return ErrRedisNotConfigured
	}
	payload, err := m.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		m.metrics.RecordMirror("get", "miss")
		return ErrMirrorMiss
	}
	if err != nil {
		m.metrics.RecordMirror("get", "error")
		return err
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		m.metrics.RecordMirror("get", "error")
		return fmt.Errorf("decode %s: %w", key, err)
	}
	m.metrics.RecordMirror("get", "hit")
	return nil
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func accessKey(subjectID string) string {
	return fmt.Sprintf("mirror:access:%s", subjectID)
}

func profileKey(subjectID string) string {
	return fmt.Sprintf("mirror:profile:%s", subjectID)
}
