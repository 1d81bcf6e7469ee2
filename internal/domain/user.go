package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

// Define constants for roles
const (
	RoleAthlete Role = "ATHLETE"
	RoleTrainer Role = "TRAINER"
	RoleAdmin   Role = "ADMIN"
)

// AllRoles is the closed role enumeration.
var AllRoles = []Role{RoleAthlete, RoleTrainer, RoleAdmin}

func (r Role) IsValid() bool {
	switch r {
	case RoleAthlete, RoleTrainer, RoleAdmin:
		return true
	default:
		return false
	}
}

// Roles is the set of roles a user holds. A user may hold several at once.
type Roles []Role

// Has is a set-membership test.
func (rs Roles) Has(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// Normalize drops duplicates and keeps the enumeration order.
func (rs Roles) Normalize() Roles {
	out := make(Roles, 0, len(rs))
	for _, r := range AllRoles {
		if rs.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// Valid reports whether every member belongs to the enumeration.
func (rs Roles) Valid() bool {
	for _, r := range rs {
		if !r.IsValid() {
			return false
		}
	}
	return true
}

// User represents an account. Athletes point to their assigned trainer through TrainerID.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"` // unique
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Roles        Roles              `bson:"roles" json:"roles"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`

	// TrainerID is a weak reference to a user holding RoleTrainer.
	// It is checked when assigned, not by the store.
	TrainerID *primitive.ObjectID `bson:"trainerId,omitempty" json:"trainerId,omitempty"`
}

func (u *User) IsTrainer() bool {
	return u.Roles.Has(RoleTrainer)
}

func (u *User) IsAthlete() bool {
	return u.Roles.Has(RoleAthlete)
}

func (u *User) IsAdmin() bool {
	return u.Roles.Has(RoleAdmin)
}

// HasTrainer reports whether the athlete is assigned to trainerID.
func (u *User) HasTrainer(trainerID primitive.ObjectID) bool {
	return u.TrainerID != nil && *u.TrainerID == trainerID
}
