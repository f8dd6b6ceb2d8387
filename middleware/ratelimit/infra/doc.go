// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
//   - FixedWindow: registro de clientes com janela fixa, shards e limpeza periódica
//   - stats: memória, Redis, Prometheus e fan-out (MultiStats)
//   - NewSemaphorePool: limite de concorrência sobre x/sync/semaphore
package infra
