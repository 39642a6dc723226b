// Package httputil provides the shared HTTP session used by all platform
// clients: a default User-Agent, client-side rate limiting, and retries
// with exponential backoff for transient failures.
package httputil

import (
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

type SessionConfig struct {
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	RequestsPerSec float64
	Burst          int
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		UserAgent:      "vidhost/1.0",
		Timeout:        120 * time.Second,
		MaxRetries:     3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		RequestsPerSec: 4,
		Burst:          4,
	}
}

// Session is shared between platform clients so that one rate limiter
// covers every outbound request.
type Session struct {
	client  *http.Client
	limiter *rate.Limiter
	config  SessionConfig
}

func NewSession(cfg SessionConfig) *Session {
	def := DefaultSessionConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.RequestsPerSec == 0 {
		cfg.RequestsPerSec = def.RequestsPerSec
	}
	if cfg.Burst == 0 {
		cfg.Burst = def.Burst
	}

	return &Session{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		config:  cfg,
	}
}

// UserAgent returns the User-Agent the session stamps on requests.
func (s *Session) UserAgent() string {
	return s.config.UserAgent
}

// Do sends the request, retrying transient failures. Requests with a
// non-rewindable body (GetBody unset) are sent exactly once.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", s.config.UserAgent)
	}

	retries := s.config.MaxRetries
	if req.Body != nil && req.GetBody == nil {
		retries = 0
	}

	var resp *http.Response
	var err error
	delay := s.config.InitialDelay

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			if req.GetBody != nil {
				body, bodyErr := req.GetBody()
				if bodyErr != nil {
					return nil, bodyErr
				}
				req.Body = body
			}

			wait := applyJitter(delay)
			if after := retryAfter(resp); after > wait {
				wait = after
			}
			if sleepErr := sleepCtx(req, wait); sleepErr != nil {
				return nil, sleepErr
			}
			delay = min(time.Duration(float64(delay)*s.config.Multiplier), s.config.MaxDelay)
		}

		if limitErr := s.limiter.Wait(req.Context()); limitErr != nil {
			return nil, limitErr
		}

		resp, err = s.client.Do(req)
		if !shouldRetry(resp, err) {
			return resp, err
		}

		// The exhausted response goes back to the caller with its body
		// intact so error reporting can read it.
		if attempt < retries && resp != nil {
			_ = resp.Body.Close()
		}
	}

	return resp, err
}

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return true
		}
		if _, ok := err.(*net.OpError); ok {
			return true
		}
		if _, ok := err.(*net.DNSError); ok {
			return true
		}
		return false
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}

	return resp.StatusCode >= 500 && resp.StatusCode < 600
}

func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleepCtx(req *http.Request, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}

func applyJitter(delay time.Duration) time.Duration {
	jitterFactor := 0.9 + rand.Float64()*0.2
	return time.Duration(float64(delay) * jitterFactor)
}
