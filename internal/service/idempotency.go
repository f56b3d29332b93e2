package service

import (
	"context"
	"encoding/json"
	"fmt"

	"digital-wallet/internal/core/domain"
	"digital-wallet/pkg/apperror"

	"github.com/jackc/pgx/v5"
)

// idempotent runs op at most once per (user, operation, client key).
//
// Layer 1 is the Redis response cache, layer 2 the idempotency_logs table
// written in the same atomic unit as the movement. The in-flight guard turns a
// concurrent duplicate into PAY_003 instead of a second processor call.
func (s *WalletServiceImpl) idempotent(
	ctx context.Context,
	userID string,
	op domain.TransactionType,
	clientKey string,
	run func(key string) (*domain.Transaction, error),
) (*domain.Transaction, error) {
	if clientKey == "" {
		return run("")
	}
	key := domain.BuildIdempotencyKey(userID, op, clientKey)

	if txn, err := s.replay(ctx, key); txn != nil || err != nil {
		return txn, err
	}

	guard := s.inflight
	acquired, err := guard.Acquire(ctx, key, s.settings.InFlightTTL)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("in-flight guard unavailable, using process-local guard")
		guard = s.local
		acquired, _ = guard.Acquire(ctx, key, s.settings.InFlightTTL)
	}
	if !acquired {
		return nil, apperror.ErrDuplicateRequest()
	}
	defer func() {
		if err := guard.Release(context.WithoutCancel(ctx), key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to release in-flight guard")
		}
	}()

	// The previous holder may have committed between the first check and Acquire.
	if txn, err := s.replay(ctx, key); txn != nil || err != nil {
		return txn, err
	}

	txn, err := run(key)
	if err != nil {
		return nil, err
	}

	if s.idempCache != nil {
		if body, mErr := json.Marshal(txn); mErr == nil {
			if cErr := s.idempCache.Set(ctx, key, body, s.settings.IdempotencyTTL); cErr != nil {
				s.log.Warn().Err(cErr).Str("key", key).Msg("failed to cache idempotency in redis")
			}
		}
	}
	return txn, nil
}

// replay returns the stored result for key, or nil when key is unused.
func (s *WalletServiceImpl) replay(ctx context.Context, key string) (*domain.Transaction, error) {
	if s.idempCache != nil {
		cached, err := s.idempCache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			return unmarshalTransaction(cached)
		}
	}

	entry, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if entry == nil {
		return nil, nil
	}
	return unmarshalTransaction(entry.ResponseJSON)
}

// saveIdempotency writes the result of a movement inside its atomic unit.
func (s *WalletServiceImpl) saveIdempotency(ctx context.Context, dbTx pgx.Tx, key string, txn *domain.Transaction) error {
	if key == "" {
		return nil
	}
	body, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	return s.idempRepo.Create(ctx, dbTx, &domain.IdempotencyLog{
		Key:           key,
		TransactionID: txn.ID,
		ResponseJSON:  body,
		CreatedAt:     s.now(),
	})
}

func unmarshalTransaction(data []byte) (*domain.Transaction, error) {
	var txn domain.Transaction
	if err := json.Unmarshal(data, &txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached transaction: %w", err))
	}
	return &txn, nil
}
