package identity

import (
	"context"
	"net/http"
	"strings"
	"time"

	"jusdown/internal/config"
	"jusdown/internal/entity"
)

type ctxKey struct{}

// Resolver extracts the caller identity from a request.
type Resolver struct {
	secret     string
	cookieName string
	now        func() time.Time
}

// NewResolver creates a Resolver. Without a token secret every caller is anonymous.
func NewResolver(cfg config.Auth) *Resolver {
	return &Resolver{
		secret:     cfg.TokenSecret,
		cookieName: cfg.CookieName,
		now:        time.Now,
	}
}

// CookieName is the session cookie the resolver reads.
func (r *Resolver) CookieName() string { return r.cookieName }

// Resolve returns the identity carried by the Authorization bearer token or
// the session cookie. No token yields the anonymous identity and a nil error.
func (r *Resolver) Resolve(req *http.Request) (entity.Identity, error) {
	token := bearer(req.Header.Get("Authorization"))
	if token == "" && r.cookieName != "" {
		if c, err := req.Cookie(r.cookieName); err == nil {
			token = c.Value
		}
	}

	if token == "" || r.secret == "" {
		return entity.Identity{}, nil
	}

	claims, err := Verify(r.secret, token, r.now())
	if err != nil {
		return entity.Identity{}, err
	}

	return entity.Identity{ID: claims.Sub}, nil
}

func bearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id entity.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, or the anonymous identity.
func FromContext(ctx context.Context) entity.Identity {
	if id, ok := ctx.Value(ctxKey{}).(entity.Identity); ok {
		return id
	}

	return entity.Identity{}
}
