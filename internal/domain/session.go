package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionStatus is the lifecycle state of a TrainingSession.
type SessionStatus string

const (
	SessionWaiting   SessionStatus = "WAITING"   // started by the athlete, no trainer yet
	SessionActive    SessionStatus = "ACTIVE"    // trainer joined
	SessionCompleted SessionStatus = "COMPLETED" // final round completed
	SessionCancelled SessionStatus = "CANCELLED"
)

// OpenSessionStatuses are the non-terminal states. An athlete has at most one session in them.
var OpenSessionStatuses = []SessionStatus{SessionWaiting, SessionActive}

func (s SessionStatus) IsOpen() bool {
	return s == SessionWaiting || s == SessionActive
}

func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// TrainingSession is one live coaching encounter between an athlete and a trainer.
type TrainingSession struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	AthleteID   primitive.ObjectID  `bson:"athleteId" json:"athleteId"`
	TrainerID   *primitive.ObjectID `bson:"trainerId,omitempty" json:"trainerId,omitempty"` // set on join
	Status      SessionStatus       `bson:"status" json:"status"`
	StartedAt   time.Time           `bson:"startedAt" json:"startedAt"`
	JoinedAt    *time.Time          `bson:"joinedAt,omitempty" json:"joinedAt,omitempty"`
	CompletedAt *time.Time          `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// IsJoinedTrainer reports whether userID is the trainer that joined the session.
func (s *TrainingSession) IsJoinedTrainer(userID primitive.ObjectID) bool {
	return s.TrainerID != nil && *s.TrainerID == userID
}

// RoundStatus is the lifecycle state of a SessionRound.
type RoundStatus string

const (
	RoundDraft     RoundStatus = "DRAFT"     // trainer is authoring it
	RoundReleased  RoundStatus = "RELEASED"  // visible to the athlete
	RoundCompleted RoundStatus = "COMPLETED" // athlete submitted feedback
)

// AthleteVisibleRoundStatuses are the statuses an athlete can see.
var AthleteVisibleRoundStatuses = []RoundStatus{RoundReleased, RoundCompleted}

// SessionRound is a trainer-planned bundle of exercises within a session.
type SessionRound struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID    primitive.ObjectID `bson:"sessionId" json:"sessionId"`
	RoundNumber  int                `bson:"roundNumber" json:"roundNumber"` // 1-based, never renumbered
	Status       RoundStatus        `bson:"status" json:"status"`
	IsFinalRound bool               `bson:"isFinalRound" json:"isFinalRound"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	ReleasedAt   *time.Time         `bson:"releasedAt,omitempty" json:"releasedAt,omitempty"`
	CompletedAt  *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Difficulty is the athlete's rating of a completed exercise.
type Difficulty string

const (
	DifficultyTooEasy   Difficulty = "TOO_EASY"
	DifficultyJustRight Difficulty = "JUST_RIGHT"
	DifficultyTooHard   Difficulty = "TOO_HARD"
)

func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyTooEasy, DifficultyJustRight, DifficultyTooHard:
		return true
	default:
		return false
	}
}

// BodyRegion tags where an athlete felt pain.
type BodyRegion string

const (
	RegionNeckShoulders   BodyRegion = "NECK_SHOULDERS"
	RegionChest           BodyRegion = "CHEST"
	RegionUpperBack       BodyRegion = "UPPER_BACK"
	RegionLowerBack       BodyRegion = "LOWER_BACK"
	RegionAbs             BodyRegion = "ABS"
	RegionLeftArm         BodyRegion = "LEFT_ARM"
	RegionRightArm        BodyRegion = "RIGHT_ARM"
	RegionLeftThighFront  BodyRegion = "LEFT_THIGH_FRONT"
	RegionLeftThighBack   BodyRegion = "LEFT_THIGH_BACK"
	RegionRightThighFront BodyRegion = "RIGHT_THIGH_FRONT"
	RegionRightThighBack  BodyRegion = "RIGHT_THIGH_BACK"
	RegionLeftCalf        BodyRegion = "LEFT_CALF"
	RegionRightCalf       BodyRegion = "RIGHT_CALF"
	RegionLeftKnee        BodyRegion = "LEFT_KNEE"
	RegionRightKnee       BodyRegion = "RIGHT_KNEE"
)

func (r BodyRegion) IsValid() bool {
	switch r {
	case RegionNeckShoulders, RegionChest, RegionUpperBack, RegionLowerBack, RegionAbs,
		RegionLeftArm, RegionRightArm,
		RegionLeftThighFront, RegionLeftThighBack, RegionRightThighFront, RegionRightThighBack,
		RegionLeftCalf, RegionRightCalf, RegionLeftKnee, RegionRightKnee:
		return true
	default:
		return false
	}
}

// RoundExercise is one planned exercise inside a round, plus the athlete's feedback once completed.
type RoundExercise struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RoundID    primitive.ObjectID `bson:"roundId" json:"roundId"`
	ExerciseID primitive.ObjectID `bson:"exerciseId" json:"exerciseId"`
	Order      int                `bson:"order" json:"order"`

	// Prescription. Which values are present depends on the exercise's RequiredFields.
	PlannedWeight   *float64 `bson:"plannedWeight,omitempty" json:"plannedWeight,omitempty"`     // kg
	PlannedReps     *int     `bson:"plannedReps,omitempty" json:"plannedReps,omitempty"`
	PlannedDistance *float64 `bson:"plannedDistance,omitempty" json:"plannedDistance,omitempty"` // meters
	PlannedTime     *int     `bson:"plannedTime,omitempty" json:"plannedTime,omitempty"`         // seconds
	PlannedRPE      *int     `bson:"plannedRPE,omitempty" json:"plannedRPE,omitempty"`
	TrainerNotes    string   `bson:"trainerNotes,omitempty" json:"trainerNotes,omitempty"`

	// Feedback, written once by the athlete when the round completes.
	Difficulty   *Difficulty  `bson:"difficulty,omitempty" json:"difficulty,omitempty"`
	HadPain      bool         `bson:"hadPain" json:"hadPain"`
	PainRegions  []BodyRegion `bson:"painRegions,omitempty" json:"painRegions,omitempty"`
	AthleteNotes string       `bson:"athleteNotes,omitempty" json:"athleteNotes,omitempty"`
	CompletedAt  *time.Time   `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// Feedback is what the athlete reports for one RoundExercise.
type Feedback struct {
	Difficulty   Difficulty
	HadPain      bool
	PainRegions  []BodyRegion
	AthleteNotes string
}
