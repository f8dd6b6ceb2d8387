package infra

import "net/http"

// OtherMethod agrupa métodos fora do conjunto padrão do HTTP.
const OtherMethod = "other"

// methodLabel reduz o método a um conjunto fechado. O servidor HTTP aceita
// qualquer token como método, então o valor cru não pode virar label nem campo.
func methodLabel(m string) string {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodConnect,
		http.MethodOptions, http.MethodTrace:
		return m
	}
	return OtherMethod
}
