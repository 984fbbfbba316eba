package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shaiso/Relay/internal/domain"
)

// SequenceRepo хранит отметки об обработанных записях потока в Redis.
// Срок хранения обеспечивается нативным TTL ключа.
type SequenceRepo struct {
	client *redis.Client
	prefix string
}

// NewSequenceRepo создаёт новый SequenceRepo.
func NewSequenceRepo(client *redis.Client) *SequenceRepo {
	return &SequenceRepo{client: client, prefix: "relay:seq:"}
}

func (r *SequenceRepo) key(consumerID, seq string) string {
	return r.prefix + consumerID + ":" + seq
}

// Create условно создаёт отметку (SET NX). Возвращает ErrAlreadyExists,
// если отметка уже есть.
func (r *SequenceRepo) Create(ctx context.Context, rec domain.SequenceRecord) error {
	ttl := time.Until(rec.TTL)
	if ttl <= 0 {
		ttl = time.Second
	}

	ok, err := r.client.SetNX(ctx, r.key(rec.ConsumerID, rec.SequenceNumber), rec.TTL.Unix(), ttl).Result()
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrAlreadyExists, rec.ConsumerID, rec.SequenceNumber)
	}
	return nil
}

// Delete удаляет отметку. Отсутствие ключа ошибкой не считается.
func (r *SequenceRepo) Delete(ctx context.Context, consumerID, seq string) error {
	if err := r.client.Del(ctx, r.key(consumerID, seq)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release sequence: %w", err)
	}
	return nil
}
