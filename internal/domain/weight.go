package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Accepted body weight range in kilograms.
const (
	MinBodyWeight = 20.0
	MaxBodyWeight = 300.0
)

// WeightEntry is one timestamped body weight sample.
type WeightEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Weight    float64            `bson:"weight" json:"weight"`
	Note      string             `bson:"note,omitempty" json:"note,omitempty"`
	Date      time.Time          `bson:"date" json:"date"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
