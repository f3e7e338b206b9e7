package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/courtmate/tennis-platform/pkg/config"
	redis "github.com/redis/go-redis/v9"
)

// Kind says who a bucket belongs to.
type Kind int

const (
	// KindAnonymous buckets unauthenticated traffic by client IP.
	KindAnonymous Kind = iota
	// KindPlayer buckets authenticated traffic by player ID.
	KindPlayer
	// KindService buckets an upstream quota shared by every API instance.
	// Service buckets are enforced even when request limiting is disabled.
	KindService
)

// Subject identifies the caller a bucket is keyed on.
type Subject struct {
	Kind Kind
	ID   string
}

// Rule is a refill rate of Limit tokens per Window plus Burst headroom.
type Rule struct {
	Limit  int
	Burst  int
	Window time.Duration
}

func (r Rule) capacity() int {
	return max(r.Limit+r.Burst, 1)
}

// Decision is the outcome of taking one token.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAfter time.Duration
}

// Limiter is a token bucket kept in Redis so every instance shares it.
type Limiter struct {
	client redis.Cmdable
	cfg    config.RateLimitConfig
	script *redis.Script
	now    func() time.Time
}

// takeScript refills the bucket for the elapsed time, takes a token if one
// is available and returns {granted, remaining, wait_ms, reset_ms}.
const takeScript = `
local capacity = tonumber(ARGV[1])
local perMs = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call("HMGET", KEYS[1], "tokens", "at")
local tokens = tonumber(state[1]) or capacity
local at = tonumber(state[2]) or now
if now > at then
    tokens = math.min(capacity, tokens + (now - at) * perMs)
end

local granted = 0
local wait = 0
if tokens >= 1 then
    granted = 1
    tokens = tokens - 1
else
    wait = math.ceil((1 - tokens) / perMs)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "at", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {granted, math.floor(tokens), wait, math.ceil((capacity - tokens) / perMs)}
`

// NewLimiter creates a limiter over client.
func NewLimiter(client redis.Cmdable, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		client: client,
		cfg:    cfg,
		script: redis.NewScript(takeScript),
		now:    time.Now,
	}
}

// WithNow overrides the time source.
func (l *Limiter) WithNow(now func() time.Time) {
	l.now = now
}

// RuleFor resolves the limits for endpoint ("METHOD:/route"). Endpoint
// overrides win over the defaults for the caller's kind. A zero Limit means
// the endpoint is unlimited.
func (l *Limiter) RuleFor(endpoint string, kind Kind) Rule {
	rule := Rule{Limit: l.cfg.DefaultLimit, Burst: l.cfg.DefaultBurst, Window: l.cfg.Window()}
	if kind == KindAnonymous {
		rule.Limit, rule.Burst = l.cfg.AnonymousLimit, l.cfg.AnonymousBurst
	}

	if o, ok := l.cfg.EndpointOverrides[endpoint]; ok {
		limit, burst := o.AuthenticatedLimit, o.AuthenticatedBurst
		if kind == KindAnonymous {
			limit, burst = o.AnonymousLimit, o.AnonymousBurst
		}
		if limit > 0 {
			rule.Limit = limit
		}
		if burst >= 0 {
			rule.Burst = burst
		}
		if o.WindowSeconds > 0 {
			rule.Window = time.Duration(o.WindowSeconds) * time.Second
		}
	}

	rule.Limit = max(rule.Limit, 0)
	rule.Burst = max(rule.Burst, 0)
	return rule
}

// Allow takes one token from the bucket for (endpoint, who).
func (l *Limiter) Allow(ctx context.Context, endpoint string, who Subject, rule Rule) (Decision, error) {
	if rule.Limit <= 0 || (!l.cfg.Enabled && who.Kind != KindService) {
		return Decision{Allowed: true, Limit: rule.Limit, Remaining: rule.Limit}, nil
	}

	window := rule.Window
	if window <= 0 {
		window = l.cfg.Window()
	}
	windowMs := max(window.Milliseconds(), 1)
	perMs := float64(rule.Limit) / float64(windowMs)

	key := fmt.Sprintf("%s:%s:%s", l.cfg.RedisPrefix, endpoint, who.ID)
	raw, err := l.script.Run(ctx, l.client, []string{key},
		rule.capacity(), strconv.FormatFloat(perMs, 'f', -1, 64), l.now().UnixMilli(), 2*windowMs,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(raw) != 4 {
		return Decision{}, fmt.Errorf("rate limit script returned %d values", len(raw))
	}

	d := Decision{
		Allowed:    raw[0] == 1,
		Limit:      rule.Limit,
		Remaining:  int(max(raw[1], 0)),
		ResetAfter: time.Duration(raw[3]) * time.Millisecond,
	}
	if !d.Allowed {
		d.RetryAfter = time.Duration(raw[2]) * time.Millisecond
	}
	return d, nil
}

// Wait blocks until the service bucket named key admits one call, or ctx
// ends. Redis failures are returned so callers can fall back to a local
// throttle.
func (l *Limiter) Wait(ctx context.Context, key string, rule Rule) error {
	who := Subject{Kind: KindService, ID: key}
	for {
		d, err := l.Allow(ctx, "wait", who, rule)
		if err != nil {
			return err
		}
		if d.Allowed {
			return nil
		}

		timer := time.NewTimer(max(d.RetryAfter, 10*time.Millisecond))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
