package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/itconnect/internal/domain"
)

// SessionRegistry tracks active sign-ins and broadcasts auth-state changes.
type SessionRegistry interface {
	Create(ctx context.Context, subjectID string) (*domain.AuthSession, error)
	// Lookup returns the subject owning the session, or "" when it is gone.
	Lookup(ctx context.Context, sessionID string) (string, error)
	Revoke(ctx context.Context, sessionID, subjectID string) error
	Subscribe(ctx context.Context, subjectID string) (<-chan domain.AuthStateChange, func(), error)
}

// RedisSessions stores sessions as `session:<id>` keys and publishes changes
// on `auth:state:<subject>`.
type RedisSessions struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSessions builds the registry; ttl should match the token lifetime.
func NewRedisSessions(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisSessions {
	return &RedisSessions{client: client, ttl: ttl, logger: logger}
}

func (s *RedisSessions) Create(ctx context.Context, subjectID string) (*domain.AuthSession, error) {
	now := time.Now().UTC()
	sess := &domain.AuthSession{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(sess.ID), subjectID, s.ttl)
	pipe.Publish(ctx, stateChannel(subjectID), string(domain.AuthSignedIn))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *RedisSessions) Lookup(ctx context.Context, sessionID string) (string, error) {
	subjectID, err := s.client.Get(ctx, sessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return subjectID, nil
}

func (s *RedisSessions) Revoke(ctx context.Context, sessionID, subjectID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(sessionID))
	pipe.Publish(ctx, stateChannel(subjectID), string(domain.AuthSignedOut))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Subscribe relays auth-state messages for subjectID until the returned
// release func is called or ctx ends.
func (s *RedisSessions) Subscribe(ctx context.Context, subjectID string) (<-chan domain.AuthStateChange, func(), error) {
	pubsub := s.client.Subscribe(ctx, stateChannel(subjectID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe auth state: %w", err)
	}

	relayCtx, cancel := context.WithCancel(ctx)
	out := make(chan domain.AuthStateChange)
	messages := pubsub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-relayCtx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				change := domain.AuthStateChange(msg.Payload)
				if change != domain.AuthSignedIn && change != domain.AuthSignedOut {
					s.logger.Warn("ignoring unknown auth state message",
						zap.String("channel", msg.Channel), zap.String("payload", msg.Payload))
					continue
				}
				select {
				case out <- change:
				case <-relayCtx.Done():
					return
				}
			}
		}
	}()

	release := func() {
		cancel()
		if err := pubsub.Close(); err != nil {
			s.logger.Debug("close auth state subscription", zap.Error(err))
		}
	}
	return out, release, nil
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func stateChannel(subjectID string) string {
	return fmt.Sprintf("auth:state:%s", subjectID)
}
