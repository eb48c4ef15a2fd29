package stores

import (
	"context"

	"github.com/malwarebo/condopay/models"
	"gorm.io/gorm"
)

type SequenceStore struct {
	BaseStore
}

func CreateSequenceStore(db *gorm.DB) *SequenceStore {
	return &SequenceStore{BaseStore: BaseStore{db: db}}
}

// Next increments the named counter and returns the new value. Call it inside
// a transaction: the UPDATE takes the row lock, so concurrent callers
// serialize until commit.
func (s *SequenceStore) Next(ctx context.Context, name string) (int64, error) {
	db := s.GetDB(ctx)

	result := db.Model(&models.Sequence{}).
		Where("name = ?", name).
		Update("value", gorm.Expr("value + 1"))
	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected == 0 {
		seq := &models.Sequence{Name: name, Value: 1}
		if err := db.Create(seq).Error; err != nil {
			return 0, err
		}
		return seq.Value, nil
	}

	var seq models.Sequence
	if err := db.First(&seq, "name = ?", name).Error; err != nil {
		return 0, err
	}
	return seq.Value, nil
}

func (s *SequenceStore) Current(ctx context.Context, name string) (int64, error) {
	var seq models.Sequence
	err := s.GetDB(ctx).First(&seq, "name = ?", name).Error
	if IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return seq.Value, nil
}
