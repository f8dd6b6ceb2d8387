package domain

import "context"

// SlotPool limita quantas requisições ficam em andamento ao mesmo tempo.
//
// Acquire bloqueia até haver vaga ou até o ctx encerrar. Com ok=true, release
// devolve a vaga e deve ser chamado uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
	Capacity() int
}
