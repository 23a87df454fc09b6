// utilitário pequeno para formatar durações em headers (segundos fracionários,
// mesmo formato que o servidor usa em X-RateLimit-Reset-After).

package router

import (
	"strconv"
	"time"
)

func formatSeconds(d time.Duration) string {
	// sem notação científica para valores comuns
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
