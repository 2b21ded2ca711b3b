package httpapi

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hylla/nexus/internal/adapters/server/common"
	"github.com/hylla/nexus/internal/app"
	"github.com/hylla/nexus/internal/domain"
	"golang.org/x/time/rate"
)

// Identity headers trusted in header auth mode.
const (
	HeaderSubject = "X-Nexus-Subject"
	HeaderEmail   = "X-Nexus-Email"
	HeaderName    = "X-Nexus-Name"
)

// Authenticator extracts the external identity a request claims.
type Authenticator interface {
	Authenticate(r *http.Request) (domain.Identity, error)
}

// JWTAuthenticator verifies HS256 bearer tokens.
type JWTAuthenticator struct {
	secret []byte
	issuer string
}

// NewJWTAuthenticator constructs a bearer-token verifier. Issuer is checked when non-empty.
func NewJWTAuthenticator(secret, issuer string) (*JWTAuthenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTAuthenticator{secret: []byte(secret), issuer: strings.TrimSpace(issuer)}, nil
}

// Authenticate parses the Authorization header and maps token claims onto an identity.
func (a *JWTAuthenticator) Authenticate(r *http.Request) (domain.Identity, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return domain.Identity{}, fmt.Errorf("%w: bearer token required", app.ErrUnauthenticated)
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.Parse(strings.TrimSpace(raw), func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", app.ErrUnauthenticated, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Identity{}, fmt.Errorf("%w: unexpected claims", app.ErrUnauthenticated)
	}
	return domain.Identity{
		Subject:     firstClaim(claims, "oid", "sub"),
		Email:       firstClaim(claims, "email", "preferred_username"),
		DisplayName: firstClaim(claims, "name"),
	}, nil
}

// firstClaim returns the first non-empty string claim among keys.
func firstClaim(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		if value, ok := claims[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// HeaderAuthenticator trusts identity headers set by a fronting proxy.
type HeaderAuthenticator struct{}

// Authenticate reads the X-Nexus-* identity headers.
func (HeaderAuthenticator) Authenticate(r *http.Request) (domain.Identity, error) {
	identity := domain.Identity{
		Subject:     strings.TrimSpace(r.Header.Get(HeaderSubject)),
		Email:       strings.TrimSpace(r.Header.Get(HeaderEmail)),
		DisplayName: strings.TrimSpace(r.Header.Get(HeaderName)),
	}
	if identity.Subject == "" {
		return domain.Identity{}, fmt.Errorf("%w: %s header required", app.ErrUnauthenticated, HeaderSubject)
	}
	return identity, nil
}

// RequireCaller authenticates the request, resolves the identity to a user, and
// runs next with that caller in context.
func RequireCaller(svc *app.Service, auth Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := auth.Authenticate(r)
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		user, err := svc.ResolveIdentity(r.Context(), identity)
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		ctx := app.WithCaller(r.Context(), app.Caller{
			UserID:      user.ID,
			Subject:     user.Subject,
			DisplayName: user.DisplayName,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimiter keeps one token bucket per caller.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorIdleTTL bounds how long an idle bucket is kept.
const visitorIdleTTL = 10 * time.Minute

// NewRateLimiter constructs a limiter allowing rps requests per second with burst. rps <= 0 disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		visitors: map[string]*visitor{},
		now:      time.Now,
	}
}

// Allow reports whether key may make another request now.
func (l *RateLimiter) Allow(key string) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	now := l.now()
	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorIdleTTL {
			delete(l.visitors, k)
		}
	}
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}

// Middleware rejects callers over budget with 429. It keys on the caller user id, or the client address.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(rateKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeErrorFrom(w, common.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rateKey(r *http.Request) string {
	if caller, ok := app.CallerFromContext(r.Context()); ok {
		return "user:" + caller.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// Recover converts handler panics into 500 envelopes.
func Recover(logger app.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				if logger != nil {
					logger.Error("panic recovered", "method", r.Method, "path", r.URL.Path, "panic", rec, "stack", string(debug.Stack()))
				}
				writeJSONError(w, http.StatusInternalServerError, APIError{
					Code:    common.CodeInternal,
					Message: "internal error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// LogRequests records one line per request.
func LogRequests(logger app.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if logger != nil {
			logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming MCP responses pass through the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
