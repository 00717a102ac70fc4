package gateway

import (
	"log"
	"net/http"
	"strconv"
	"time"
)

// Primary rate limit handling. GitHub's secondary (abuse-detection) limits
// arrive as Retry-After responses and are handled below this layer by the
// go-github-ratelimit transport; this guard only watches the X-RateLimit-*
// budget headers on successful responses.
const (
	rateLimitRemainingThreshold = 10
	rateLimitMinSleep           = 60 * time.Second
	rateLimitSleepBuffer        = 5 * time.Second
)

// rateLimitGuard decides whether to pause before the next request based on
// the previous response's rate-limit headers. It never fails the caller:
// missing or malformed headers are a no-op.
type rateLimitGuard struct {
	logger *log.Logger
	now    func() time.Time
	sleep  func(time.Duration)
}

func newRateLimitGuard(logger *log.Logger) *rateLimitGuard {
	return &rateLimitGuard{logger: logger, now: time.Now, sleep: time.Sleep}
}

// wait blocks until the rate-limit window resets when the remaining call
// budget is at or below the low-water mark. Header lookup is
// case-insensitive via http.Header.
func (g *rateLimitGuard) wait(headers http.Header) {
	remaining, err := strconv.Atoi(headers.Get("X-RateLimit-Remaining"))
	if err != nil || remaining > rateLimitRemainingThreshold {
		return
	}

	untilReset := time.Duration(0)
	if reset, err := strconv.ParseInt(headers.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		untilReset = time.Unix(reset, 0).Sub(g.now())
	}
	sleepFor := untilReset
	if sleepFor < rateLimitMinSleep {
		sleepFor = rateLimitMinSleep
	}
	sleepFor += rateLimitSleepBuffer

	g.logger.Printf("rate limit low (%d remaining), sleeping %s", remaining, sleepFor)
	g.sleep(sleepFor)
}
