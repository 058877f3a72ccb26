package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"
)

// maxLockout caps the doubling lockout duration.
const maxLockout = 24 * time.Hour

// LoginProtectionConfig holds the login throttling settings. Zero fields
// take the values from DefaultLoginProtectionConfig.
type LoginProtectionConfig struct {
	IPRateLimit       float64       // Login POSTs per second per IP
	IPBurst           int           // Burst allowed per IP
	MaxFailedAttempts int           // Failures within AttemptWindow before a lockout
	LockoutDuration   time.Duration // First lockout; each further lockout doubles it
	AttemptWindow     time.Duration
}

// DefaultLoginProtectionConfig allows one login every two seconds per IP
// and locks an account for 15 minutes after 5 failures.
func DefaultLoginProtectionConfig() LoginProtectionConfig {
	return LoginProtectionConfig{
		IPRateLimit:       0.5,
		IPBurst:           5,
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		AttemptWindow:     15 * time.Minute,
	}
}

func (c LoginProtectionConfig) withDefaults() LoginProtectionConfig {
	d := DefaultLoginProtectionConfig()
	if c.IPRateLimit <= 0 {
		c.IPRateLimit = d.IPRateLimit
	}
	if c.IPBurst <= 0 {
		c.IPBurst = d.IPBurst
	}
	if c.MaxFailedAttempts <= 0 {
		c.MaxFailedAttempts = d.MaxFailedAttempts
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = d.LockoutDuration
	}
	if c.AttemptWindow <= 0 {
		c.AttemptWindow = d.AttemptWindow
	}
	return c
}

// accountState counts failures for one login identifier.
type accountState struct {
	failures    int
	windowStart time.Time
	lockedUntil time.Time
	lockouts    int
}

func (a *accountState) windowOpen(now time.Time, window time.Duration) bool {
	return now.Sub(a.windowStart) <= window
}

// LoginProtection throttles login requests per IP and locks accounts after
// repeated failures.
type LoginProtection struct {
	cfg      LoginProtectionConfig
	ips      *limiterSet[string]
	mu       sync.Mutex
	accounts map[string]*accountState
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoginProtection starts a LoginProtection. Call Stop to end its
// background sweep.
func NewLoginProtection(cfg LoginProtectionConfig) *LoginProtection {
	cfg = cfg.withDefaults()
	lp := &LoginProtection{
		cfg:      cfg,
		ips:      newLimiterSet[string](cfg.IPRateLimit, cfg.IPBurst),
		accounts: make(map[string]*accountState),
		done:     make(chan struct{}),
	}
	go lp.sweep(10 * time.Minute)
	return lp
}

// Stop ends the background sweep.
func (lp *LoginProtection) Stop() {
	lp.stopOnce.Do(func() { close(lp.done) })
}

func accountKey(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

// IsAccountLocked reports whether login is locked and for how much longer.
func (lp *LoginProtection) IsAccountLocked(login string) (bool, time.Duration) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	a, ok := lp.accounts[accountKey(login)]
	if !ok {
		return false, 0
	}
	if left := time.Until(a.lockedUntil); left > 0 {
		return true, left
	}
	return false, 0
}

// RecordFailedAttempt counts a failure for login. When it triggers a
// lockout it returns true and the lockout duration.
func (lp *LoginProtection) RecordFailedAttempt(login string) (bool, time.Duration) {
	key := accountKey(login)
	now := time.Now()

	lp.mu.Lock()
	defer lp.mu.Unlock()

	a, ok := lp.accounts[key]
	if !ok {
		a = &accountState{}
		lp.accounts[key] = a
	}
	if a.failures == 0 || !a.windowOpen(now, lp.cfg.AttemptWindow) {
		a.failures = 0
		a.windowStart = now
	}
	a.failures++
	slog.Debug("failed login recorded", "login", key, "failures", a.failures)

	if a.failures < lp.cfg.MaxFailedAttempts {
		return false, 0
	}

	d := lp.lockoutFor(a.lockouts)
	a.lockedUntil = now.Add(d)
	a.lockouts++
	a.failures = 0
	slog.Warn("account locked after failed logins", "login", key, "lockouts", a.lockouts, "duration", d)
	return true, d
}

// lockoutFor doubles the base duration for every earlier lockout.
func (lp *LoginProtection) lockoutFor(previous int) time.Duration {
	d := lp.cfg.LockoutDuration
	for i := 0; i < previous && d < maxLockout; i++ {
		d *= 2
	}
	return min(d, maxLockout)
}

// RecordSuccessfulLogin forgets the failures recorded for login.
func (lp *LoginProtection) RecordSuccessfulLogin(login string) {
	key := accountKey(login)
	lp.mu.Lock()
	delete(lp.accounts, key)
	lp.mu.Unlock()
}

// GetRemainingAttempts returns how many more failures login may have
// before it is locked.
func (lp *LoginProtection) GetRemainingAttempts(login string) int {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	a, ok := lp.accounts[accountKey(login)]
	if !ok || !a.windowOpen(time.Now(), lp.cfg.AttemptWindow) {
		return lp.cfg.MaxFailedAttempts
	}
	return max(lp.cfg.MaxFailedAttempts-a.failures, 0)
}

func (lp *LoginProtection) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-lp.done:
			return
		case now := <-ticker.C:
			lp.mu.Lock()
			for key, a := range lp.accounts {
				if now.After(a.lockedUntil) && !a.windowOpen(now, lp.cfg.AttemptWindow) {
					delete(lp.accounts, key)
				}
			}
			lp.mu.Unlock()
		}
	}
}

// Middleware throttles POST requests per client IP. Apply it to the login
// route only.
func (lp *LoginProtection) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				if ip := ClientIP(r); !lp.ips.allow(ip) {
					slog.Warn("login rate limit exceeded", "ip", ip, "category", "auth")
					WriteAPIError(w, http.StatusTooManyRequests, CodeRateLimited,
						"Too many login attempts, please try again later.")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LockoutMessage tells a locked-out user how many minutes to wait.
func LockoutMessage(remaining time.Duration) string {
	minutes := max(int(math.Ceil(remaining.Minutes())), 1)
	return fmt.Sprintf("Account temporarily locked, try again in %d minute(s).", minutes)
}
