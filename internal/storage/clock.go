package storage

import "time"

//go:generate mockgen -destination=mocks/mock_clock.go -package=mocks github.com/jwebster45206/quest-engine/internal/storage Clock

// Clock stamps session timestamps
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
