package telegram

import (
	"time"

	coreconfig "github.com/m3rciful/menubot/core/config"
	"github.com/m3rciful/menubot/core/telegram/dispatch"
	"github.com/m3rciful/menubot/core/telegram/middleware"
)

// DefaultMiddlewares builds the shared middleware chain, outermost first.
// onLimited runs for updates dropped by the rate limit.
func DefaultMiddlewares(cfg *coreconfig.Config, counters *middleware.Counters, onLimited dispatch.HandlerFunc) []dispatch.Middleware {
	mws := []dispatch.Middleware{
		middleware.Recover,
		middleware.Logging(),
	}
	if counters != nil {
		mws = append(mws, middleware.Metrics(counters))
	}
	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			mws = append(mws, middleware.RateLimit(middleware.RateLimitOptions{
				Interval:  interval,
				Exclude:   middleware.ExcludeSet(cfg.RateLimit.ExcludeUpdates),
				OnLimited: onLimited,
			}))
		}
	}
	return mws
}
