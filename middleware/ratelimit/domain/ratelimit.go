package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

// Key identifica um cliente (IP, API key, usuário...). É opaca para o limiter.
type Key string

// Outcome é o resultado binário de uma requisição.
type Outcome uint8

const (
	Admit Outcome = iota
	Reject
)

func (o Outcome) String() string {
	if o == Reject {
		return "reject"
	}
	return "admit"
}

// ClientState é uma cópia do estado de contagem de um cliente.
//
// WindowStart é em segundos Unix. Count inclui requisições admitidas e rejeitadas
// desde WindowStart.
type ClientState struct {
	WindowStart int64
	Count       int
}

// Decision é a decisão para uma requisição.
//
// Além do Outcome, carrega dados da janela atual para headers/logs.
type Decision struct {
	Outcome Outcome

	Count       int
	Limit       int
	WindowStart int64
	// ResetAt é o primeiro segundo em que a janela será reiniciada.
	ResetAt int64

	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}

func (d Decision) Allowed() bool { return d.Outcome == Admit }

// Remaining retorna quantas requisições ainda cabem na janela atual.
func (d Decision) Remaining() int {
	if d.Count >= d.Limit {
		return 0
	}
	return d.Limit - d.Count
}

// WindowCounter decide se uma requisição de `key` no instante `now` (segundos Unix)
// é admitida.
//
// Implementações devem ser seguras para uso concorrente e nunca falham.
type WindowCounter interface {
	Admit(key Key, now int64) Decision
}
