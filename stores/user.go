package stores

import (
	"context"

	"github.com/malwarebo/condopay/models"
	"gorm.io/gorm"
)

type UserStore struct {
	BaseStore
}

func CreateUserStore(db *gorm.DB) *UserStore {
	return &UserStore{BaseStore: BaseStore{db: db}}
}

func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	return s.GetDB(ctx).Create(user).Error
}

func (s *UserStore) Update(ctx context.Context, user *models.User) error {
	return s.GetDB(ctx).Save(user).Error
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.GetDB(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.GetDB(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) List(ctx context.Context, filter models.UserFilter) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	query := s.GetDB(ctx).Model(&models.User{})
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.Situation != "" {
		query = query.Where("situation = ?", filter.Situation)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Order("unit ASC, name ASC").Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// UpdateSituationIf moves the owner from one situation to another only if
// the stored value still matches from.
func (s *UserStore) UpdateSituationIf(ctx context.Context, id string, from, to models.Situation) (int64, error) {
	result := s.GetDB(ctx).Model(&models.User{}).
		Where("id = ? AND situation = ?", id, from).
		Update("situation", to)
	return result.RowsAffected, result.Error
}
