// ABOUTME: Admin session authentication: bcrypt password check and signed cookie tokens
// ABOUTME: HS256 JWTs carry a jti so logout can revoke a token before it expires

package backend

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// SessionCookie is the name of the admin session cookie.
const SessionCookie = "admin_session"

// adminSubject is the only principal the backend knows about.
const adminSubject = "admin"

// dummyHash keeps failed logins as slow as successful ones when no hash is set.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrRevokedToken = errors.New("token revoked")
)

// HashPassword returns a bcrypt hash suitable for backend.admin_password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// tokenClaims are the fields read back from a verified session token.
type tokenClaims struct {
	Subject   string
	ID        string
	ExpiresAt time.Time
}

// sessionTokens signs and verifies admin session tokens.
type sessionTokens struct {
	secret  []byte
	ttl     time.Duration
	revoked *revocations
}

func newSessionTokens(secret []byte, ttl time.Duration) *sessionTokens {
	return &sessionTokens{
		secret:  secret,
		ttl:     ttl,
		revoked: newRevocations(ttl, 10000),
	}
}

// issue creates a signed token for the admin principal.
func (t *sessionTokens) issue() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": adminSubject,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(t.ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// verify checks signature, expiry, required claims and revocation.
func (t *sessionTokens) verify(tokenString string) (tokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return tokenClaims{}, ErrExpiredToken
		}
		return tokenClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return tokenClaims{}, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return tokenClaims{}, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return tokenClaims{}, fmt.Errorf("%w: jti", ErrMissingClaim)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return tokenClaims{}, fmt.Errorf("%w: exp", ErrMissingClaim)
	}

	if t.revoked.contains(jti) {
		return tokenClaims{}, ErrRevokedToken
	}
	return tokenClaims{Subject: sub, ID: jti, ExpiresAt: exp.Time}, nil
}

// revoke invalidates a token id for the remainder of its lifetime.
func (t *sessionTokens) revoke(jti string) {
	t.revoked.add(jti)
}

func (t *sessionTokens) close() {
	t.revoked.close()
}

// Authenticator checks the admin password and manages session tokens.
type Authenticator struct {
	hash   []byte
	tokens *sessionTokens
	logins *loginLimiter
}

// DefaultSessionTTL is used when NewAuthenticator is given a non-positive ttl.
const DefaultSessionTTL = 24 * time.Hour

// NewAuthenticator builds an authenticator. passwordHash is a bcrypt hash; when
// it is empty no password is accepted.
func NewAuthenticator(passwordHash string, secret []byte, ttl time.Duration, loginRate float64, loginBurst int) *Authenticator {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Authenticator{
		hash:   []byte(passwordHash),
		tokens: newSessionTokens(secret, ttl),
		logins: newLoginLimiter(rate.Limit(loginRate), loginBurst),
	}
}

// TTL is the lifetime of issued sessions. Cookies share it with the token.
func (a *Authenticator) TTL() time.Duration {
	return a.tokens.ttl
}

// CheckPassword reports whether password matches the configured hash.
func (a *Authenticator) CheckPassword(password string) bool {
	if len(a.hash) == 0 {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(password)) == nil
}

// AllowLogin consumes one login attempt for the client address.
func (a *Authenticator) AllowLogin(r *http.Request) bool {
	return a.logins.allow(clientIP(r))
}

// Authenticated reports whether the request carries a live admin session.
func (a *Authenticator) Authenticated(r *http.Request) bool {
	_, err := a.session(r)
	return err == nil
}

func (a *Authenticator) session(r *http.Request) (tokenClaims, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return tokenClaims{}, ErrInvalidToken
	}
	return a.tokens.verify(c.Value)
}

// Close stops background cleanup.
func (a *Authenticator) Close() {
	a.tokens.close()
	a.logins.stop()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// loginLimiter holds one token bucket per client address.
type loginLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	limit    rate.Limit
	burst    int
	done     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLoginLimiter(limit rate.Limit, burst int) *loginLimiter {
	if burst <= 0 {
		burst = 1
	}
	l := &loginLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		burst:   burst,
		done:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

func (l *loginLimiter) allow(ip string) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = time.Now()
	l.mu.Unlock()
	return b.limiter.Allow()
}

// sweep drops buckets idle for ten minutes.
func (l *loginLimiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			for ip, b := range l.buckets {
				if time.Since(b.lastSeen) > 10*time.Minute {
					delete(l.buckets, ip)
				}
			}
			l.mu.Unlock()
		case <-l.done:
			return
		}
	}
}

func (l *loginLimiter) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}
