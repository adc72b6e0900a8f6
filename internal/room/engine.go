package room

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// tickPeriod is the global countdown resolution.
const tickPeriod = time.Second

// Engine drives the one-second tick across all live rooms. It is the only
// caller of the service's tick path; command traffic never ticks timers.
type Engine struct {
	svc *Service
}

func NewEngine(svc *Service) *Engine {
	return &Engine{svc: svc}
}

// Run blocks until ctx is cancelled, ticking once per second. Rooms with no
// running timers cost one lock acquisition and nothing else.
func (e *Engine) Run(ctx context.Context) {
	ticker := e.svc.clock.NewTicker(tickPeriod)
	defer ticker.Stop()

	log.Info().Dur("period", tickPeriod).Msg("timer engine started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("timer engine stopped")
			return
		case <-ticker.Chan():
			e.svc.tickAll()
		}
	}
}
