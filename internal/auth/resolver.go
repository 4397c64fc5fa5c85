package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "hearthside"

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("invalid token")

// Profile is the application-level account record joined against a verified
// token subject. PersonID links the account to a person row for row scoping
// and may be empty.
type Profile struct {
	UserID   string
	PersonID string
	Role     string
	Active   bool
}

// ProfileLookup exchanges a verified account id for its application profile.
type ProfileLookup interface {
	ProfileByAccount(ctx context.Context, accountID string) (Profile, bool, error)
}

// Credentials are the raw authentication inputs extracted from a request.
type Credentials struct {
	Bearer string
	APIKey string
}

// Resolver turns request credentials into an Identity. It performs no side
// effects beyond the profile lookup.
type Resolver struct {
	serviceKey []byte
	secret     []byte
	profiles   ProfileLookup
	now        func() time.Time
}

// ResolverOption configures Resolver behavior.
type ResolverOption func(*Resolver)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewResolver constructs a Resolver. serviceKey and secret may be empty, in
// which case the corresponding auth path always resolves to invalid.
func NewResolver(serviceKey, secret string, profiles ProfileLookup, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		profiles: profiles,
		now:      time.Now,
	}
	if k := strings.TrimSpace(serviceKey); k != "" {
		r.serviceKey = []byte(k)
	}
	if s := strings.TrimSpace(secret); s != "" {
		r.secret = []byte(s)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve produces the caller identity. The returned error is reserved for
// infrastructure failures in the profile lookup; every credential problem is
// reported as an Identity with LevelInvalid.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (Identity, error) {
	bearer := strings.TrimSpace(creds.Bearer)
	apiKey := strings.TrimSpace(creds.APIKey)

	// The trusted service credential is checked first and does not depend
	// on any external lookup.
	if bearer != "" && len(r.serviceKey) > 0 &&
		subtle.ConstantTimeCompare([]byte(bearer), r.serviceKey) == 1 {
		return Service(), nil
	}

	if bearer != "" {
		claims, err := r.parseToken(bearer)
		if err != nil {
			return Invalid(MethodBearer), nil
		}
		profile, ok, err := r.profiles.ProfileByAccount(ctx, claims.Subject)
		if err != nil {
			return Invalid(MethodBearer), fmt.Errorf("auth: profile lookup: %w", err)
		}
		// A verified token without an application profile is invalid
		// auth, not public.
		if !ok || !profile.Active || !KnownRole(profile.Role) {
			return Invalid(MethodBearer), nil
		}
		return Identity{
			UserID:   profile.UserID,
			PersonID: profile.PersonID,
			Role:     strings.ToLower(profile.Role),
			Level:    LevelForRole(profile.Role),
			Method:   MethodBearer,
		}, nil
	}

	// Accepted syntactically, but no keys table exists yet: always rejected
	// rather than silently treated as public.
	if apiKey != "" {
		return Invalid(MethodAPIKey), nil
	}

	return Public(), nil
}

// Claims represents the JWT claims carried by user tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// GenerateToken signs a user token for the given account using HS256. The
// gateway itself never issues tokens on the wire; this is used by the seed
// tooling and tests.
func (r *Resolver) GenerateToken(accountID string, ttl time.Duration) (string, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", errors.New("accountID is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}
	if len(r.secret) == 0 {
		return "", errors.New("auth secret is not configured")
	}

	now := r.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (r *Resolver) parseToken(token string) (*Claims, error) {
	if len(r.secret) == 0 {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return r.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return r.now() }))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != issuer || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
