// Package application contém os casos de uso para rate limit e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(key) lê o relógio, chama o WindowCounter e preenche RetryAfter.
package application
