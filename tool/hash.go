package tool

import (
	"github.com/google/uuid"
)

func GenerateRandomUUID() string {
	return uuid.New().String()
}

// GenerateAttemptID returns a fresh id for one upload attempt.
func GenerateAttemptID() string {
	return GenerateRandomUUID()
}
