// Package auth implements C12, the optional local-admin guard in front of
// syncstage's mutating gateway routes. There is exactly one account — the
// admin username/password pair from config — so unlike a multi-user login
// system this package never looks anything up in a user store; it only ever
// compares a request's credentials against the one configured pair.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
	ErrMissingToken       = errors.New("missing authorization token")
	ErrInvalidCredentials = errors.New("invalid admin credentials")
	ErrRateLimited        = errors.New("too many login attempts, please try again later")
)

// Config is the single admin account plus session/throttling knobs. Auth is
// disabled entirely (see internal/engine.New) when Username or Password is
// empty, so Config is only ever constructed with both set.
type Config struct {
	Username  string
	Password  string
	JWTSecret string
	TokenTTL  time.Duration

	// MaxLoginAttempts is the number of failed attempts tolerated per
	// LoginWindowSeconds before an IP is throttled.
	MaxLoginAttempts   int
	LoginWindowSeconds int
}

// jwtHeader is the fixed header for the HS256 session tokens Auth issues.
type jwtHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// Claims is the payload of an admin session token. Sub is always the
// configured admin username — there being only one account, it exists
// mainly so ValidateToken can reject a token whose subject was never set.
type Claims struct {
	Sub string `json:"sub"`
	Iat int64  `json:"iat"`
	Exp int64  `json:"exp"`
}

// failureWindow records recent failed login timestamps for one source IP.
type failureWindow struct {
	timestamps []time.Time
}

// loginThrottle enforces a sliding-window cap on failed login attempts per
// source IP, independent of which username was attempted — there is only
// one admin account, so every failure against it counts the same regardless
// of what username the caller typed.
type loginThrottle struct {
	mu         sync.Mutex
	byIP       map[string]*failureWindow
	maxFails   int
	windowSize time.Duration
}

func newLoginThrottle(maxFails int, windowSize time.Duration) *loginThrottle {
	if maxFails <= 0 {
		maxFails = 5
	}
	if windowSize <= 0 {
		windowSize = 15 * time.Minute
	}
	lt := &loginThrottle{
		byIP:       make(map[string]*failureWindow),
		maxFails:   maxFails,
		windowSize: windowSize,
	}
	go lt.sweep()
	return lt
}

// allowed reports whether ip is still under the failure cap.
func (lt *loginThrottle) allowed(ip string) bool {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	w, ok := lt.byIP[ip]
	if !ok {
		return true
	}
	lt.prune(w)
	return len(w.timestamps) < lt.maxFails
}

func (lt *loginThrottle) recordFailure(ip string) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	w, ok := lt.byIP[ip]
	if !ok {
		w = &failureWindow{}
		lt.byIP[ip] = w
	}
	lt.prune(w)
	w.timestamps = append(w.timestamps, time.Now())
}

// recordSuccess clears ip's failure history once the one admin login
// succeeds from it.
func (lt *loginThrottle) recordSuccess(ip string) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	delete(lt.byIP, ip)
}

// prune drops timestamps that have aged out of the window. Caller holds mu.
func (lt *loginThrottle) prune(w *failureWindow) {
	cutoff := time.Now().Add(-lt.windowSize)
	n := 0
	for _, t := range w.timestamps {
		if t.After(cutoff) {
			w.timestamps[n] = t
			n++
		}
	}
	w.timestamps = w.timestamps[:n]
}

// sweep periodically drops IPs with no remaining timestamps so byIP doesn't
// grow unbounded across the lifetime of a long-running server.
func (lt *loginThrottle) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		lt.mu.Lock()
		for ip, w := range lt.byIP {
			lt.prune(w)
			if len(w.timestamps) == 0 {
				delete(lt.byIP, ip)
			}
		}
		lt.mu.Unlock()
	}
}

// remainingLockout reports how long until ip's oldest failure ages out of
// the window, or zero if ip isn't currently throttled.
func (lt *loginThrottle) remainingLockout(ip string) time.Duration {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	w, ok := lt.byIP[ip]
	if !ok || len(w.timestamps) == 0 {
		return 0
	}
	lt.prune(w)
	if len(w.timestamps) < lt.maxFails {
		return 0
	}
	oldest := w.timestamps[0]
	return time.Until(oldest.Add(lt.windowSize))
}

// Auth is C12's admin guard: it holds the bcrypt hash of the one configured
// admin password and issues/validates the session tokens the gateway's
// AuthRequired middleware checks on every mutating route.
type Auth struct {
	config       Config
	passwordHash []byte
	throttle     *loginThrottle
}

// New builds the guard from cfg, hashing the plaintext admin password with
// bcrypt immediately so it is never retained or compared in the clear.
func New(cfg Config) *Auth {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.MaxLoginAttempts == 0 {
		cfg.MaxLoginAttempts = 5
	}
	if cfg.LoginWindowSeconds == 0 {
		cfg.LoginWindowSeconds = 900
	}

	if len(cfg.JWTSecret) < 32 {
		slog.Warn("auth: JWT secret is shorter than 32 characters — this is insecure in production")
	}
	if cfg.JWTSecret == "change-me-in-production-please" {
		slog.Warn("auth: using the default JWT secret — set JWT_SECRET before exposing the gateway")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		// Practically unreachable for a well-formed password; fall back to a
		// hash nothing can match so the gateway still starts but every login
		// is rejected rather than the admin route panicking on first use.
		slog.Error("auth: failed to hash admin password", "error", err)
		hash = []byte("$2a$10$INVALIDHASHXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX")
	}
	cfg.Password = ""

	return &Auth{
		config:       cfg,
		passwordHash: hash,
		throttle:     newLoginThrottle(cfg.MaxLoginAttempts, time.Duration(cfg.LoginWindowSeconds)*time.Second),
	}
}

// Authenticate checks username/password against the one configured admin
// account and, on success, returns a signed session token. remoteAddr feeds
// the per-IP login throttle.
func (a *Auth) Authenticate(username, password, remoteAddr string) (string, error) {
	ip := remoteIP(remoteAddr)

	if !a.throttle.allowed(ip) {
		remaining := a.throttle.remainingLockout(ip)
		slog.Warn("auth: login throttled", "ip", ip, "retry_after_seconds", int(remaining.Seconds()))
		return "", ErrRateLimited
	}

	// Compare both username and password unconditionally before branching,
	// so a wrong username takes exactly as long as a wrong password — an
	// attacker learns nothing about which one was wrong.
	usernameMatch := constantTimeEqualStrings(username, a.config.Username)
	passwordMatch := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) == nil

	if !usernameMatch || !passwordMatch {
		a.throttle.recordFailure(ip)
		return "", ErrInvalidCredentials
	}

	a.throttle.recordSuccess(ip)
	return a.CreateToken(username)
}

// CreateToken issues a session token for subject, valid for Config.TokenTTL.
func (a *Auth) CreateToken(subject string) (string, error) {
	now := time.Now()
	return a.sign(Claims{
		Sub: subject,
		Iat: now.Unix(),
		Exp: now.Add(a.config.TokenTTL).Unix(),
	})
}

// ValidateToken parses and verifies a session token, rejecting anything
// malformed, mis-signed, expired, or carrying an algorithm other than HS256.
func (a *Auth) ValidateToken(tokenStr string) (*Claims, error) {
	if len(tokenStr) > 4096 {
		return nil, ErrInvalidToken
	}

	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidToken
	}

	headerJSON, err := base64URLDecode(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode header", ErrInvalidToken)
	}
	var header jwtHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("%w: failed to parse header", ErrInvalidToken)
	}
	if header.Alg != "HS256" {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidToken, header.Alg)
	}
	if header.Typ != "JWT" {
		return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidToken, header.Typ)
	}

	signingInput := parts[0] + "." + parts[1]
	if !constantTimeEqualB64(a.computeHMAC(signingInput), parts[2]) {
		return nil, ErrInvalidToken
	}

	claimsJSON, err := base64URLDecode(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode claims", ErrInvalidToken)
	}
	var claims Claims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return nil, fmt.Errorf("%w: failed to parse claims", ErrInvalidToken)
	}

	now := time.Now().Unix()
	if now > claims.Exp {
		return nil, ErrExpiredToken
	}
	if claims.Iat > now+60 {
		return nil, fmt.Errorf("%w: token issued in the future", ErrInvalidToken)
	}
	if claims.Sub == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}

	return &claims, nil
}

// IsRateLimited reports whether remoteAddr is currently throttled.
func (a *Auth) IsRateLimited(remoteAddr string) bool {
	return !a.throttle.allowed(remoteIP(remoteAddr))
}

// RemainingLockout reports how long until remoteAddr may retry.
func (a *Auth) RemainingLockout(remoteAddr string) time.Duration {
	return a.throttle.remainingLockout(remoteIP(remoteAddr))
}

// --- internal helpers ---

func (a *Auth) sign(claims Claims) (string, error) {
	header := jwtHeader{Alg: "HS256", Typ: "JWT"}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("auth: marshal header: %w", err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("auth: marshal claims: %w", err)
	}

	signingInput := base64URLEncode(headerJSON) + "." + base64URLEncode(claimsJSON)
	return signingInput + "." + a.computeHMAC(signingInput), nil
}

func (a *Auth) computeHMAC(input string) string {
	mac := hmac.New(sha256.New, []byte(a.config.JWTSecret))
	mac.Write([]byte(input))
	return base64URLEncode(mac.Sum(nil))
}

// constantTimeEqualB64 compares two base64url-encoded HMAC signatures in
// constant time.
func constantTimeEqualB64(a, b string) bool {
	aDec, errA := base64URLDecode(a)
	bDec, errB := base64URLDecode(b)
	if errA != nil || errB != nil {
		return false
	}
	return hmac.Equal(aDec, bDec)
}

// constantTimeEqualStrings compares two strings in constant time regardless
// of length, so a wrong username can't be distinguished from a right one by
// timing.
func constantTimeEqualStrings(a, b string) bool {
	h1 := sha256.Sum256([]byte(a))
	h2 := sha256.Sum256([]byte(b))
	return hmac.Equal(h1[:], h2[:])
}

func base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func base64URLDecode(s string) ([]byte, error) {
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.URLEncoding.DecodeString(s)
	}
	return data, err
}

// remoteIP strips the port from an address, handling both "1.2.3.4:1234"
// and "[::1]:1234".
func remoteIP(remoteAddr string) string {
	if strings.HasPrefix(remoteAddr, "[") {
		if idx := strings.LastIndex(remoteAddr, "]:"); idx != -1 {
			return remoteAddr[1:idx]
		}
		return strings.Trim(remoteAddr, "[]")
	}
	if idx := strings.LastIndex(remoteAddr, ":"); idx != -1 {
		return remoteAddr[:idx]
	}
	return remoteAddr
}
