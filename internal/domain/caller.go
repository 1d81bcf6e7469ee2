package domain

import "go.mongodb.org/mongo-driver/bson/primitive"

// Caller is the resolved identity of whoever invokes an operation.
// It is passed explicitly to every service call.
type Caller struct {
	UserID primitive.ObjectID
	Roles  Roles
}

// IsAuthenticated is false for the zero Caller.
func (c Caller) IsAuthenticated() bool {
	return c.UserID != primitive.NilObjectID
}

func (c Caller) Has(role Role) bool {
	return c.Roles.Has(role)
}
