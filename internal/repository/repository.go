package repository

import (
	"github.com/veloplan/sync-service/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	User     UserRepository
	Activity ActivityRepository
	Workout  WorkoutRepository
	Job      JobRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:     NewUserRepository(db),
		Activity: NewActivityRepository(db),
		Workout:  NewWorkoutRepository(db),
		Job:      NewJobRepository(db),
	}
}
