// internal/domain/exercise.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category groups catalogue exercises.
type Category string

const (
	CategoryChest     Category = "CHEST"
	CategoryBack      Category = "BACK"
	CategoryShoulders Category = "SHOULDERS"
	CategoryLegs      Category = "LEGS"
	CategoryArms      Category = "ARMS"
	CategoryCore      Category = "CORE"
	CategoryCardio    Category = "CARDIO"
	CategoryCustom    Category = "CUSTOM" // uses Exercise.CustomCategory as its label
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryChest, CategoryBack, CategoryShoulders, CategoryLegs,
		CategoryArms, CategoryCore, CategoryCardio, CategoryCustom:
		return true
	default:
		return false
	}
}

// ExerciseField names a value a trainer prescribes for an exercise.
type ExerciseField string

const (
	FieldWeight   ExerciseField = "WEIGHT"
	FieldReps     ExerciseField = "REPS"
	FieldDistance ExerciseField = "DISTANCE"
	FieldTime     ExerciseField = "TIME"
	FieldRPE      ExerciseField = "RPE"
	FieldNotes    ExerciseField = "NOTES"
)

func (f ExerciseField) IsValid() bool {
	switch f {
	case FieldWeight, FieldReps, FieldDistance, FieldTime, FieldRPE, FieldNotes:
		return true
	default:
		return false
	}
}

// Exercise is a catalogue entry managed by admins.
type Exercise struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	Category       Category           `bson:"category" json:"category"`
	CustomCategory string             `bson:"customCategory,omitempty" json:"customCategory,omitempty"`
	RequiredFields []ExerciseField    `bson:"requiredFields" json:"requiredFields"`
	// VideoKey is the object key of the demo video in object storage, empty when there is none.
	VideoKey  string             `bson:"videoKey,omitempty" json:"-"`
	CreatedBy primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Requires reports whether field is part of the exercise's declared field set.
func (e *Exercise) Requires(field ExerciseField) bool {
	for _, f := range e.RequiredFields {
		if f == field {
			return true
		}
	}
	return false
}

func (e *Exercise) HasVideo() bool {
	return e.VideoKey != ""
}
