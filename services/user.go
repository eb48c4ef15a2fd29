package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/malwarebo/condopay/models"
	"github.com/malwarebo/condopay/stores"
	"github.com/malwarebo/condopay/utils"
)

type UserService struct {
	users   *stores.UserStore
	tracker *DelinquencyTracker
	audit   *AuditService
}

func CreateUserService(users *stores.UserStore, tracker *DelinquencyTracker, audit *AuditService) *UserService {
	return &UserService{
		users:   users,
		tracker: tracker,
		audit:   audit,
	}
}

func (s *UserService) Create(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	var errs utils.ValidationErrors
	errs.Add(utils.ValidateString(req.Name, "name", 1, 120, true))
	errs.Add(utils.ValidateEmail(strings.TrimSpace(req.Email), "email"))
	errs.Add(utils.ValidateString(req.Unit, "unit", 0, 32, false))
	if req.Role == "" {
		req.Role = models.RoleOwner
	}
	if !req.Role.IsValid() {
		errs.AddField("role", "must be admin or owner")
	}
	if req.Role == models.RoleOwner && strings.TrimSpace(req.Unit) == "" {
		errs.AddField("unit", "is required for owners")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	user := &models.User{
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Unit:      strings.TrimSpace(req.Unit),
		Phone:     req.Phone,
		Role:      req.Role,
		Situation: models.SituationActive,
	}

	err := s.users.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.users.Create(txCtx, user); err != nil {
			if stores.IsDuplicate(err) {
				return ErrEmailTaken
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		return s.audit.LogUserAction(txCtx, models.AuditActionCreate, user.ID, map[string]interface{}{
			"role": string(user.Role),
			"unit": user.Unit,
		})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Get returns the user with the read-time delinquency classification.
func (s *UserService) Get(ctx context.Context, id string) (*models.UserView, error) {
	if !isID(id) {
		return nil, ErrUserNotFound
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if stores.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return s.view(ctx, user)
}

func (s *UserService) view(ctx context.Context, user *models.User) (*models.UserView, error) {
	if !user.IsOwner() {
		return &models.UserView{User: user, EffectiveSituation: user.Situation}, nil
	}
	situation, count, err := s.tracker.Classify(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to classify owner: %w", err)
	}
	return &models.UserView{User: user, OverdueCount: count, EffectiveSituation: situation}, nil
}

func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]*models.UserView, int64, error) {
	filter.Limit = ClampLimit(filter.Limit)
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	counts, err := s.tracker.OverdueCounts(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count overdue boletos: %w", err)
	}

	views := make([]*models.UserView, 0, len(users))
	for _, u := range users {
		view := &models.UserView{User: u, EffectiveSituation: u.Situation}
		if u.IsOwner() {
			view.OverdueCount = counts[u.ID]
			view.EffectiveSituation = u.EffectiveSituation(view.OverdueCount)
		}
		views = append(views, view)
	}
	return views, total, nil
}

// Update edits profile fields, including the stored situation. Reads still
// report the derived situation.
func (s *UserService) Update(ctx context.Context, id string, req *models.UpdateUserRequest) (*models.UserView, error) {
	if !isID(id) {
		return nil, ErrUserNotFound
	}
	var errs utils.ValidationErrors
	if req.Name != nil {
		errs.Add(utils.ValidateString(*req.Name, "name", 1, 120, true))
	}
	if req.Unit != nil {
		errs.Add(utils.ValidateString(*req.Unit, "unit", 0, 32, false))
	}
	if req.Situation != nil && !req.Situation.IsValid() {
		errs.AddField("situation", "must be active, inactive or delinquent")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.users.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		user, err = s.users.GetByID(txCtx, id)
		if err != nil {
			if stores.IsNotFound(err) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to load user: %w", err)
		}

		if req.Name != nil {
			user.Name = strings.TrimSpace(*req.Name)
		}
		if req.Unit != nil {
			user.Unit = strings.TrimSpace(*req.Unit)
		}
		if req.Phone != nil {
			user.Phone = *req.Phone
		}
		if req.Situation != nil {
			user.Situation = *req.Situation
		}

		if err := s.users.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return s.audit.LogUserAction(txCtx, models.AuditActionUpdate, user.ID, nil)
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, user)
}
