package domain

import "fmt"

const (
	RateLimitScopeIP   = "ip"
	RateLimitScopeUser = "user"
	RateLimitScopeSend = "send"
)

// RateLimitKey строит ключ счетчика, например "ratelimit:send:<user id>"
func RateLimitKey(scope, subject string) string {
	return fmt.Sprintf("ratelimit:%s:%s", scope, subject)
}
