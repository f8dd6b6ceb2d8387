package application

import (
	"time"

	"ratelimit-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas lê o relógio,
// consulta o contador e devolve uma decisão.
type Service struct {
	Counter domain.WindowCounter
	Now     func() time.Time
}

func (s Service) Decide(key domain.Key) domain.Decision {
	if s.Counter == nil {
		return domain.Decision{Outcome: domain.Admit}
	}
	if s.Now == nil {
		s.Now = time.Now
	}

	now := s.Now().Unix()
	dec := s.Counter.Admit(key, now)
	if dec.Allowed() {
		return dec
	}

	wait := dec.ResetAt - now
	if wait < 1 {
		wait = 1
	}
	dec.RetryAfter = time.Duration(wait) * time.Second
	return dec
}
