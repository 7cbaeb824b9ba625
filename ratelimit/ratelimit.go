// Package ratelimit implements a Redis-backed token bucket per client and route.
// Without a Redis client the limiter lets every request through.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"docchat-service/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

const keyPrefix = "ratelimit:"

// bucket refills refill tokens per interval up to capacity; returns {allowed, remaining, retry_after_ms}
var bucket = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last = tonumber(state[2])
	if tokens == nil or last == nil then
		tokens = capacity
		last = now_ms
	end

	if interval_ms > 0 and refill > 0 then
		local intervals = math.floor(math.max(0, now_ms - last) / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + intervals * refill)
			last = last + intervals * interval_ms
		end
	end

	local allowed = 0
	local retry_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_ms = interval_ms - (now_ms - last)
		if retry_ms < 0 then retry_ms = 0 end
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last)
	redis.call('EXPIRE', key, ttl)
	return { allowed, tokens, retry_ms }
`)

// Config controls bucket size and refill
type Config struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is honored
	TrustedProxies []string
}

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter applies the bucket script
type Limiter struct {
	rdb     *redis.Client
	cfg     Config
	trusted []*net.IPNet
	now     func() time.Time
}

// New returns a limiter; a nil client or disabled config yields a pass-through limiter
func New(cfg Config, rdb *redis.Client) *Limiter {
	if cfg.RefillTokens <= 0 {
		cfg.RefillTokens = 1
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Duration(cfg.Capacity+1) * cfg.RefillInterval
	}
	if cfg.TTL < time.Second {
		cfg.TTL = time.Second
	}
	trusted, err := ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		logger.Error("Ignoring invalid trusted proxies", zap.Error(err))
		trusted = nil
	}
	return &Limiter{rdb: rdb, cfg: cfg, trusted: trusted, now: time.Now}
}

// ParseTrustedProxies accepts bare IPs and CIDR ranges
func ParseTrustedProxies(entries []string) ([]*net.IPNet, error) {
	var out []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, network, err := net.ParseCIDR(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			out = append(out, network)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("trusted proxy %q is not an IP or CIDR", entry)
		}
		bits := 8 * net.IPv4len
		if ip.To4() == nil {
			bits = 8 * net.IPv6len
		}
		out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return out, nil
}

// Active reports whether requests are actually limited
func (l *Limiter) Active() bool {
	return l != nil && l.cfg.Enabled && l.rdb != nil
}

// Allow takes a token for key. Redis errors are returned with Allowed=true.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	if !l.Active() {
		return Decision{Allowed: true}, nil
	}

	args := []interface{}{
		l.now().UnixMilli(),
		l.cfg.Capacity,
		l.cfg.RefillTokens,
		l.cfg.RefillInterval.Milliseconds(),
		int64(math.Ceil(l.cfg.TTL.Seconds())),
	}
	vals, err := bucket.Run(ctx, l.rdb, []string{keyPrefix + key}, args...).Int64Slice()
	if err != nil {
		return Decision{Allowed: true}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) != 3 {
		return Decision{Allowed: true}, fmt.Errorf("rate limit script returned %d values", len(vals))
	}
	return Decision{
		Allowed:    vals[0] == 1,
		Remaining:  vals[1],
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// Wrap limits next per client IP under scope. Rejected requests get 429 with Retry-After.
func (l *Limiter) Wrap(scope string, next func(context.Context, http.ResponseWriter, *http.Request)) func(context.Context, http.ResponseWriter, *http.Request) {
	if !l.Active() {
		return next
	}
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		decision, err := l.Allow(ctx, scope+":"+l.ClientIP(r))
		if err != nil {
			logger.Error("Rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			next(ctx, w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Capacity))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		if !decision.Allowed {
			secs := int(math.Ceil(decision.RetryAfter.Seconds()))
			metrics.RateLimited.WithLabelValues(scope).Inc()
			logger.Info("Rate limit exceeded", zap.String("scope", scope), zap.Int("retry_after", secs))

			w.Header().Set("Retry-After", strconv.Itoa(secs))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"error":       "too_many_requests",
				"message":     "rate limit exceeded",
				"retry_after": secs,
			})
			return
		}
		next(ctx, w, r)
	}
}

// ClientIP is the connection address unless that address is a trusted proxy.
// Behind a trusted proxy X-Forwarded-For is read right to left and the first
// hop that is not itself trusted is the client.
func (l *Limiter) ClientIP(r *http.Request) string {
	remote := remoteHost(r)
	if !l.isTrusted(remote) {
		return remote
	}

	client := remote
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		client = hop
		if !l.isTrusted(hop) {
			break
		}
	}
	return client
}

func (l *Limiter) isTrusted(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, network := range l.trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
