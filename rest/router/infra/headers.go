package infra

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rest-gateway/rest/router/domain"
)

// Headers do contrato de rate limit do servidor.
const (
	HeaderBucket      = "X-RateLimit-Bucket"
	HeaderLimit       = "X-RateLimit-Limit"
	HeaderRemaining   = "X-RateLimit-Remaining"
	HeaderReset       = "X-RateLimit-Reset"
	HeaderResetAfter  = "X-RateLimit-Reset-After"
	HeaderGlobal      = "X-RateLimit-Global"
	HeaderScope       = "X-RateLimit-Scope"
	HeaderRetryAfter  = "Retry-After"
	HeaderAuditReason = "X-Audit-Log-Reason"
)

// ParseRateLimit lê os headers de rate limit de uma resposta.
//
// Em 429 o corpo {"retry_after": s, "global": b} também é lido; quando traz
// retry_after ele vence o header Retry-After.
func ParseRateLimit(h http.Header, status int, body []byte, now time.Time) domain.RateLimitInfo {
	info := domain.RateLimitInfo{
		Bucket: strings.TrimSpace(h.Get(HeaderBucket)),
		Scope:  strings.ToLower(strings.TrimSpace(h.Get(HeaderScope))),
		Global: parseBool(h.Get(HeaderGlobal)),
	}

	if v, ok := parseInt(h.Get(HeaderLimit)); ok {
		info.Limit = v
		info.Present = true
	}
	if v, ok := parseInt(h.Get(HeaderRemaining)); ok {
		info.Remaining = v
		info.Present = true
	}
	if d, ok := parseSeconds(h.Get(HeaderResetAfter)); ok {
		info.ResetAfter = d
	}
	if v := strings.TrimSpace(h.Get(HeaderReset)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			sec, frac := math.Modf(f)
			info.ResetAt = time.Unix(int64(sec), int64(frac*1e9))
		}
	}
	if v := strings.TrimSpace(h.Get(HeaderRetryAfter)); v != "" {
		if d, ok := parseSeconds(v); ok {
			info.RetryAfter = d
		} else if t, err := http.ParseTime(v); err == nil && t.After(now) {
			info.RetryAfter = t.Sub(now)
		}
	}

	if status == http.StatusTooManyRequests && len(body) > 0 {
		var payload struct {
			RetryAfter *float64 `json:"retry_after"`
			Global     bool     `json:"global"`
		}
		if json.Unmarshal(body, &payload) == nil {
			if payload.RetryAfter != nil && *payload.RetryAfter > 0 {
				info.RetryAfter = secondsToDuration(*payload.RetryAfter)
			}
			info.Global = info.Global || payload.Global
		}
	}
	return info
}

func parseInt(v string) (int, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

// parseSeconds aceita segundos fracionários ("1.337").
func parseSeconds(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return secondsToDuration(f), true
}

func secondsToDuration(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
