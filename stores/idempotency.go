package stores

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/malwarebo/condopay/models"
	"gorm.io/gorm"
)

const idempotencyLockTimeout = time.Minute

type IdempotencyStore struct {
	BaseStore
}

func CreateIdempotencyStore(db *gorm.DB) *IdempotencyStore {
	return &IdempotencyStore{BaseStore: BaseStore{db: db}}
}

// GetOrCreate claims key for requestPath. A completed key with the same body
// hash returns the stored response; a different body is ErrIdempotencyMismatch;
// a key still locked by another request is ErrIdempotencyInProgress.
func (s *IdempotencyStore) GetOrCreate(ctx context.Context, key, requestPath string, requestBody []byte, ttl time.Duration) (*models.IdempotencyResult, error) {
	requestHash := hashRequest(requestBody)
	now := time.Now().UTC()

	var existing models.IdempotencyKey
	err := s.GetDB(ctx).
		Where("key = ? AND request_path = ?", key, requestPath).
		First(&existing).Error

	if err == nil {
		if existing.ExpiresAt.Before(now) {
			if err := s.GetDB(ctx).Delete(&existing).Error; err != nil {
				return nil, err
			}
			return s.create(ctx, key, requestPath, requestHash, now, ttl)
		}

		if existing.RequestHash != requestHash {
			return nil, ErrIdempotencyMismatch
		}

		if existing.CompletedAt != nil && existing.ResponseCode != nil {
			return &models.IdempotencyResult{
				IsNew:        false,
				Key:          &existing,
				ResponseCode: *existing.ResponseCode,
				ResponseBody: []byte(existing.ResponseBody),
			}, nil
		}

		if existing.LockedAt != nil && now.Sub(*existing.LockedAt) < idempotencyLockTimeout {
			return nil, ErrIdempotencyInProgress
		}

		if err := s.GetDB(ctx).Model(&existing).Update("locked_at", now).Error; err != nil {
			return nil, err
		}
		return &models.IdempotencyResult{IsNew: true, Key: &existing}, nil
	}

	if !IsNotFound(err) {
		return nil, err
	}
	return s.create(ctx, key, requestPath, requestHash, now, ttl)
}

func (s *IdempotencyStore) create(ctx context.Context, key, requestPath, requestHash string, now time.Time, ttl time.Duration) (*models.IdempotencyResult, error) {
	newKey := &models.IdempotencyKey{
		Key:         key,
		RequestPath: requestPath,
		RequestHash: requestHash,
		LockedAt:    &now,
		ExpiresAt:   now.Add(ttl),
	}

	if err := s.GetDB(ctx).Create(newKey).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrIdempotencyInProgress
		}
		return nil, err
	}

	return &models.IdempotencyResult{IsNew: true, Key: newKey}, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, key, requestPath string, responseCode int, responseBody []byte) error {
	now := time.Now().UTC()
	return s.GetDB(ctx).
		Model(&models.IdempotencyKey{}).
		Where("key = ? AND request_path = ?", key, requestPath).
		Updates(map[string]interface{}{
			"response_code": responseCode,
			"response_body": string(responseBody),
			"completed_at":  now,
			"locked_at":     nil,
		}).Error
}

// Unlock releases a key whose request failed so the client may retry it.
func (s *IdempotencyStore) Unlock(ctx context.Context, key, requestPath string) error {
	return s.GetDB(ctx).
		Where("key = ? AND request_path = ? AND completed_at IS NULL", key, requestPath).
		Delete(&models.IdempotencyKey{}).Error
}

func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	result := s.GetDB(ctx).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&models.IdempotencyKey{})
	return result.RowsAffected, result.Error
}

func hashRequest(body []byte) string {
	hash := sha256.Sum256(body)
	return hex.EncodeToString(hash[:])
}
