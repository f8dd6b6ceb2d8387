// Package domain define contratos e tipos de domínio para rate limit por janela
// fixa e limite de concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas.
// O estado de contagem é sempre local ao processo; não existe contrato para
// limiter distribuído.
package domain
