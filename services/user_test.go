package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/malwarebo/condopay/models"
	"github.com/malwarebo/condopay/testutil"
	"github.com/malwarebo/condopay/utils"
)

func TestUserService_Create(t *testing.T) {
	env := newTestEnv(t, at(2024, time.January, 15, 9))
	ctx := context.Background()

	user, err := env.people.Create(ctx, &models.CreateUserRequest{
		Name:  " Maria Souza ",
		Email: "Maria@Example.com",
		Unit:  "12B",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if user.Role != models.RoleOwner {
		t.Errorf("Role = %v, want %v", user.Role, models.RoleOwner)
	}
	if user.Email != "maria@example.com" {
		t.Errorf("Email = %q, want maria@example.com", user.Email)
	}
	if user.Situation != models.SituationActive {
		t.Errorf("Situation = %v, want %v", user.Situation, models.SituationActive)
	}

	_, err = env.people.Create(ctx, &models.CreateUserRequest{Name: "Outra", Email: "maria@example.com", Unit: "13"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Create() duplicate error = %v, want %v", err, ErrEmailTaken)
	}

	tests := []struct {
		name string
		req  *models.CreateUserRequest
	}{
		{"missing name", &models.CreateUserRequest{Email: "a@example.com", Unit: "1"}},
		{"bad email", &models.CreateUserRequest{Name: "A", Email: "not-an-email", Unit: "1"}},
		{"owner without unit", &models.CreateUserRequest{Name: "A", Email: "a@example.com"}},
		{"unknown role", &models.CreateUserRequest{Name: "A", Email: "a@example.com", Role: "sindico"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.people.Create(ctx, tt.req)
			var verrs utils.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Errorf("Create() error = %v, want validation errors", err)
			}
		})
	}

	admin, err := env.people.Create(ctx, &models.CreateUserRequest{Name: "Síndico", Email: "sindico@example.com", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("Create(admin) error = %v", err)
	}
	if admin.Unit != "" {
		t.Errorf("admin Unit = %q, want empty", admin.Unit)
	}
}

func TestUserService_GetAndUpdate(t *testing.T) {
	env := newTestEnv(t, at(2024, time.February, 20, 9))
	ctx := context.Background()
	owner := testutil.CreateOwner(t, env.db, "701")
	testutil.CreateBoleto(t, env.db, owner.ID, "120.00", date(2024, time.February, 1), date(2024, time.February, 10))

	view, err := env.people.Get(ctx, owner.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if view.Situation != models.SituationActive {
		t.Errorf("stored Situation = %v, want %v", view.Situation, models.SituationActive)
	}
	if view.EffectiveSituation != models.SituationDelinquent {
		t.Errorf("EffectiveSituation = %v, want %v", view.EffectiveSituation, models.SituationDelinquent)
	}

	inactive := models.SituationInactive
	phone := "+55 11 99999-0000"
	updated, err := env.people.Update(ctx, owner.ID, &models.UpdateUserRequest{Situation: &inactive, Phone: &phone})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.EffectiveSituation != models.SituationInactive {
		t.Errorf("EffectiveSituation = %v, want %v", updated.EffectiveSituation, models.SituationInactive)
	}
	if updated.OverdueCount != 1 {
		t.Errorf("OverdueCount = %d, want 1", updated.OverdueCount)
	}
	if updated.Phone != phone {
		t.Errorf("Phone = %q, want %q", updated.Phone, phone)
	}

	if _, err := env.people.Get(ctx, uuid.NewString()); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Get() unknown error = %v, want %v", err, ErrUserNotFound)
	}

	bogus := models.Situation("suspended")
	_, err = env.people.Update(ctx, owner.ID, &models.UpdateUserRequest{Situation: &bogus})
	var verrs utils.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Errorf("Update() error = %v, want validation errors", err)
	}
}

func TestUserService_List(t *testing.T) {
	env := newTestEnv(t, at(2024, time.February, 20, 9))
	ctx := context.Background()
	testutil.CreateAdmin(t, env.db)
	late := testutil.CreateOwner(t, env.db, "801")
	current := testutil.CreateOwner(t, env.db, "802")
	testutil.CreateBoleto(t, env.db, late.ID, "120.00", date(2024, time.February, 1), date(2024, time.February, 10))
	testutil.CreateBoleto(t, env.db, current.ID, "120.00", date(2024, time.February, 1), date(2024, time.February, 28))

	views, total, err := env.people.List(ctx, models.UserFilter{Role: models.RoleOwner})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}

	want := map[string]models.Situation{
		late.ID:    models.SituationDelinquent,
		current.ID: models.SituationActive,
	}
	for _, v := range views {
		if v.EffectiveSituation != want[v.ID] {
			t.Errorf("situation of %s = %v, want %v", v.Unit, v.EffectiveSituation, want[v.ID])
		}
	}
}
