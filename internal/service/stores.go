package service

import (
	"time"

	"alcyxob/coach-sessions/internal/repository"
)

// Stores bundles the repositories the services read and write.
// Tx groups multi-record writes into one transaction.
type Stores struct {
	Users          repository.UserRepository
	Exercises      repository.ExerciseRepository
	Sessions       repository.SessionRepository
	Rounds         repository.RoundRepository
	RoundExercises repository.RoundExerciseRepository
	Weights        repository.WeightRepository
	Tx             repository.Transactor
}

func utcNow() time.Time {
	return time.Now().UTC()
}
