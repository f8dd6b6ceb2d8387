// utilitário pequeno para formatação de valores numéricos em headers.

package ratelimit

import "strconv"

func formatInt(v int) string { return strconv.Itoa(v) }

func formatInt64(v int64) string { return strconv.FormatInt(v, 10) }

// formatSeconds arredonda para cima: Retry-After nunca deve mandar voltar cedo demais.
func formatSeconds(secs float64) string {
	n := int64(secs)
	if float64(n) < secs {
		n++
	}
	return formatInt64(n)
}
