package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// DefaultFallbackKey é a chave usada quando a requisição não traz nada que identifique o cliente.
// Todos esses clientes dividem a mesma cota.
const DefaultFallbackKey = "unknown"

type KeyFunc func(r *http.Request) string

// DefaultKeyFunc extrai a chave do cliente na ordem:
//
//  1. header keyHeader (se configurado e não vazio)
//  2. primeiro IP do X-Forwarded-For (se trustXFF)
//  3. host do RemoteAddr
//  4. RemoteAddr como veio
//  5. fallback (DefaultFallbackKey se vazio)
func DefaultKeyFunc(keyHeader string, trustXFF bool, fallback string) KeyFunc {
	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultFallbackKey
	}
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
					return ip
				}
			}
		}

		addr := strings.TrimSpace(r.RemoteAddr)
		host, _, err := net.SplitHostPort(addr)
		if err == nil && host != "" {
			return host
		}
		if addr != "" {
			return addr
		}
		return fallback
	}
}
