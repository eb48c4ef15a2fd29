package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleOwner Role = "owner"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleOwner
}

type Situation string

const (
	SituationActive     Situation = "active"
	SituationInactive   Situation = "inactive"
	SituationDelinquent Situation = "delinquent"
)

func (s Situation) IsValid() bool {
	switch s {
	case SituationActive, SituationInactive, SituationDelinquent:
		return true
	}
	return false
}

// User is either a condominium administrator or a unit owner. Boletos are
// only issued to owners.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	Name      string    `json:"name" gorm:"not null"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Unit      string    `json:"unit" gorm:"size:32"`
	Phone     string    `json:"phone,omitempty"`
	Role      Role      `json:"role" gorm:"size:16;not null;default:'owner'"`
	Situation Situation `json:"situation" gorm:"size:16;not null;default:'active';index"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

func (u *User) IsOwner() bool {
	return u.Role == RoleOwner
}

// EffectiveSituation applies the single delinquency rule: an inactive owner
// stays inactive, otherwise the owner is delinquent iff at least one pending
// boleto is past due.
func (u *User) EffectiveSituation(overdueCount int64) Situation {
	if u.Situation == SituationInactive {
		return SituationInactive
	}
	if overdueCount > 0 {
		return SituationDelinquent
	}
	return SituationActive
}

type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Unit  string `json:"unit"`
	Phone string `json:"phone,omitempty"`
	Role  Role   `json:"role,omitempty"`
}

type UpdateUserRequest struct {
	Name      *string    `json:"name,omitempty"`
	Unit      *string    `json:"unit,omitempty"`
	Phone     *string    `json:"phone,omitempty"`
	Situation *Situation `json:"situation,omitempty"`
}

type UserView struct {
	*User
	OverdueCount       int64     `json:"overdue_count"`
	EffectiveSituation Situation `json:"effective_situation"`
}

type UserFilter struct {
	Role      Role
	Situation Situation
	Limit     int
	Offset    int
}

type UserListResponse struct {
	Users []*UserView `json:"users"`
	Total int64       `json:"total"`
}
