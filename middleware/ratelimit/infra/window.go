package infra

import (
	"context"
	"sync"
	"time"

	"ratelimit-gateway/middleware/ratelimit/domain"

	"github.com/cespare/xxhash/v2"
)

const (
	DefaultWindow      = 60 * time.Second
	DefaultMaxRequests = 10
)

// FixedWindow é o registro de clientes com contagem por janela fixa.
//
// A janela de um cliente começa na primeira requisição após o último reset
// (não é alinhada ao relógio). Uma requisição com now-windowStart > window
// reinicia a contagem antes de incrementar.
//
// O mapa é dividido em shards (xxhash da chave) e cada cliente tem o seu
// próprio mutex, então clientes diferentes não disputam a mesma transição.
type FixedWindow struct {
	shards []windowShard
	mask   uint64

	window      int64 // segundos
	maxRequests int

	idleWindows int64
	sweepEvery  time.Duration
	clock       func() int64
}

type windowShard struct {
	mu      sync.RWMutex
	clients map[string]*clientState
}

type clientState struct {
	mu          sync.Mutex
	windowStart int64
	count       int
	// evicted é marcado pelo Sweep com mu travado. Quem pegar um estado
	// removido precisa buscar de novo no shard.
	evicted bool
}

type WindowOption func(*FixedWindow)

// WithWindow define o tamanho da janela. Frações de segundo são truncadas
// e o mínimo é 1s.
func WithWindow(d time.Duration) WindowOption {
	return func(w *FixedWindow) {
		w.window = int64(d / time.Second)
		if w.window < 1 {
			w.window = 1
		}
	}
}

func WithMaxRequests(n int) WindowOption {
	return func(w *FixedWindow) { w.maxRequests = n }
}

// WithShards define a quantidade de shards (arredondada para potência de 2).
func WithShards(n int) WindowOption {
	return func(w *FixedWindow) {
		if n < 1 {
			n = 1
		}
		size := 1
		for size < n {
			size <<= 1
		}
		w.shards = make([]windowShard, size)
	}
}

// WithIdleWindows define após quantas janelas sem reset um cliente é removido pelo Sweep.
func WithIdleWindows(n int) WindowOption {
	return func(w *FixedWindow) {
		if n < 1 {
			n = 1
		}
		w.idleWindows = int64(n)
	}
}

// WithSweepEvery define o intervalo do janitor. <= 0 desliga.
func WithSweepEvery(d time.Duration) WindowOption {
	return func(w *FixedWindow) { w.sweepEvery = d }
}

// WithClock troca o relógio usado pelo janitor (segundos Unix).
func WithClock(fn func() int64) WindowOption {
	return func(w *FixedWindow) { w.clock = fn }
}

func NewFixedWindow(opts ...WindowOption) *FixedWindow {
	w := &FixedWindow{
		window:      int64(DefaultWindow / time.Second),
		maxRequests: DefaultMaxRequests,
		idleWindows: 5,
		sweepEvery:  time.Minute,
		clock:       func() int64 { return time.Now().Unix() },
	}
	WithShards(32)(w)
	for _, opt := range opts {
		opt(w)
	}
	for i := range w.shards {
		w.shards[i].clients = make(map[string]*clientState)
	}
	w.mask = uint64(len(w.shards) - 1)
	return w
}

func (w *FixedWindow) Window() time.Duration { return time.Duration(w.window) * time.Second }
func (w *FixedWindow) MaxRequests() int      { return w.maxRequests }
func (w *FixedWindow) SweepEvery() time.Duration {
	return w.sweepEvery
}

// Admit implementa domain.WindowCounter.
func (w *FixedWindow) Admit(key domain.Key, now int64) domain.Decision {
	k := string(key)
	for {
		st := w.lookup(k, now)

		st.mu.Lock()
		if st.evicted {
			st.mu.Unlock()
			continue
		}
		if now-st.windowStart > w.window {
			st.windowStart = now
			st.count = 0
		}
		st.count++
		count, start := st.count, st.windowStart
		st.mu.Unlock()

		dec := domain.Decision{
			Outcome:     domain.Admit,
			Count:       count,
			Limit:       w.maxRequests,
			WindowStart: start,
			ResetAt:     start + w.window + 1,
		}
		if count > w.maxRequests {
			dec.Outcome = domain.Reject
		}
		return dec
	}
}

// lookup devolve o estado da chave, criando se não existir.
// Nunca segura o lock do shard enquanto espera o lock do cliente.
func (w *FixedWindow) lookup(key string, now int64) *clientState {
	sh := w.shardFor(key)

	sh.mu.RLock()
	st, ok := sh.clients[key]
	sh.mu.RUnlock()
	if ok {
		return st
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if st, ok = sh.clients[key]; ok {
		return st
	}
	st = &clientState{windowStart: now}
	sh.clients[key] = st
	return st
}

func (w *FixedWindow) shardFor(key string) *windowShard {
	return &w.shards[xxhash.Sum64String(key)&w.mask]
}

// Snapshot devolve uma cópia do estado do cliente, se ele estiver no registro.
func (w *FixedWindow) Snapshot(key domain.Key) (domain.ClientState, bool) {
	sh := w.shardFor(string(key))

	sh.mu.RLock()
	st, ok := sh.clients[string(key)]
	sh.mu.RUnlock()
	if !ok {
		return domain.ClientState{}, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.evicted {
		return domain.ClientState{}, false
	}
	return domain.ClientState{WindowStart: st.windowStart, Count: st.count}, true
}

// Len retorna quantos clientes estão no registro.
func (w *FixedWindow) Len() int {
	n := 0
	for i := range w.shards {
		sh := &w.shards[i]
		sh.mu.RLock()
		n += len(sh.clients)
		sh.mu.RUnlock()
	}
	return n
}

// Sweep remove clientes cuja janela começou há mais de idleWindows janelas.
// Retorna quantos foram removidos.
func (w *FixedWindow) Sweep(now int64) int {
	maxAge := w.window * w.idleWindows
	removed := 0

	for i := range w.shards {
		sh := &w.shards[i]
		sh.mu.Lock()
		for k, st := range sh.clients {
			st.mu.Lock()
			if now-st.windowStart > maxAge {
				st.evicted = true
				delete(sh.clients, k)
				removed++
			}
			st.mu.Unlock()
		}
		sh.mu.Unlock()
	}
	return removed
}

// StartJanitor inicia uma goroutine que chama Sweep periodicamente.
// Pare cancelando o contexto.
func (w *FixedWindow) StartJanitor(ctx context.Context) {
	if w.sweepEvery <= 0 {
		return
	}

	t := time.NewTicker(w.sweepEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				w.Sweep(w.clock())
			}
		}
	}()
}
