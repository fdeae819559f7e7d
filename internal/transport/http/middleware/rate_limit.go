package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/YOGESHBOTCHA965/W/internal/core/port"
	appLogger "github.com/YOGESHBOTCHA965/W/internal/infra/logger"
)

const defaultRateLimitMessage = "Too many requests. Please try again later."

// IdentifierFunc extracts the identifier used to scope rate limits (e.g., client IP).
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule is a sliding window of Limit requests per Window for each identifier.
// Message is returned to callers that exceed the rule.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
	Message    string
}

func (r RateLimitRule) key(identifier string) string {
	return r.Name + ":" + identifier
}

// RateLimiter enforces RateLimitRules against a shared RateLimitStore. Store failures
// let the request through.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// windowState is the outcome of checking one rule for one request.
type windowState struct {
	rule       RateLimitRule
	identifier string
	allowed    bool
	remaining  int
	reset      time.Time
	retryAfter time.Duration
}

func (w windowState) retrySeconds() int {
	return max(int(math.Ceil(w.retryAfter.Seconds())), 0)
}

// tighter reports whether w should be advertised in the headers instead of other:
// a refusal beats an allowance, then fewer remaining, then the earlier reset.
func (w windowState) tighter(other windowState) bool {
	if w.allowed != other.allowed {
		return !w.allowed
	}
	if w.remaining != other.remaining {
		return w.remaining < other.remaining
	}
	return w.reset.Before(other.reset)
}

func (w windowState) writeHeaders(h http.Header) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(w.rule.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(w.remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(w.reset.Unix(), 10))
	if !w.allowed {
		h.Set("Retry-After", strconv.Itoa(w.retrySeconds()))
	}
}

// NewRateLimiter builds a limiter over store. A nil store disables limiting.
func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier scopes a rule by the client IP gin resolved for the request.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// RateLimit returns a Gin middleware enforcing rules in order. The first rule that
// refuses the request answers 429; otherwise the tightest window is advertised.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	active := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		if rule.Message == "" {
			rule.Message = defaultRateLimitMessage
		}
		active = append(active, rule)
	}

	return func(c *gin.Context) {
		if len(active) == 0 || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		var advertised *windowState

		for _, rule := range active {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			state, err := rl.check(c.Request.Context(), rule, identifier, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed, allowing request",
					zap.String("rule", rule.Name),
					zap.String("identifier", appLogger.MaskIP(identifier)),
					zap.Error(err),
				)
				continue
			}

			if !state.allowed {
				state.writeHeaders(c.Writer.Header())
				rl.reject(c, state)
				return
			}
			if advertised == nil || state.tighter(*advertised) {
				advertised = &state
			}
		}

		if advertised != nil {
			advertised.writeHeaders(c.Writer.Header())
		}
		c.Next()
	}
}

// check counts the identifier's requests inside the window ending at now and, when
// there is room, records this one. Refused requests are not recorded.
func (rl *RateLimiter) check(ctx context.Context, rule RateLimitRule, identifier string, now time.Time) (windowState, error) {
	key := rule.key(identifier)

	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return windowState{}, err
	}
	count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return windowState{}, err
	}
	oldest, hasAttempts, err := rl.store.OldestAttempt(ctx, key, rule.Window, now)
	if err != nil {
		return windowState{}, err
	}

	state := windowState{rule: rule, identifier: identifier, allowed: true, reset: now.Add(rule.Window)}
	if hasAttempts {
		state.reset = oldest.Add(rule.Window)
	}
	state.retryAfter = max(state.reset.Sub(now), 0)

	if count >= rule.Limit {
		state.allowed = false
		return state, nil
	}

	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		return windowState{}, err
	}
	state.remaining = max(rule.Limit-count-1, 0)
	return state, nil
}

func (rl *RateLimiter) reject(c *gin.Context, state windowState) {
	retrySeconds := state.retrySeconds()

	rl.logger.Info("rate limit exceeded",
		zap.String("rule", state.rule.Name),
		zap.String("identifier", appLogger.MaskIP(state.identifier)),
		zap.String("path", c.Request.URL.Path),
		zap.Int("retry_after", retrySeconds),
	)

	body := NewErrorResponse(c, state.rule.Message, CodeRateLimited)
	body.RetryAfter = retrySeconds
	c.AbortWithStatusJSON(http.StatusTooManyRequests, body)
}
