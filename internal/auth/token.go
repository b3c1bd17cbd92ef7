package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer             = "eduops"
	maxPrincipalLength = 64
	DefaultTokenTTL    = 24 * time.Hour
)

// Role gates what a principal may do with attachments.
type Role string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSecret     = errors.New("jwt secret is not configured")
)

var principalPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9@._-]*[a-z0-9])?$`)

var roleRank = map[Role]int{
	RoleGuest: 1,
	RoleUser:  2,
	RoleAdmin: 3,
}

// Claims is the JWT payload carried by API callers.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// Principal is an authenticated caller.
type Principal struct {
	Name string
	Role Role
}

// Allows reports whether p holds at least the required role.
func (p Principal) Allows(required Role) bool {
	return roleRank[p.Role] >= roleRank[required]
}

// NormalizePrincipal returns the canonical lowercase principal name.
func NormalizePrincipal(raw string) (string, error) {
	name := strings.TrimSpace(strings.ToLower(raw))
	if name == "" {
		return "", fmt.Errorf("principal is required")
	}
	if len(name) > maxPrincipalLength {
		return "", fmt.Errorf("principal too long")
	}
	if !principalPattern.MatchString(name) {
		return "", fmt.Errorf("invalid principal")
	}
	return name, nil
}

func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := roleRank[role]; !ok {
		return "", fmt.Errorf("invalid role: %q", raw)
	}
	return role, nil
}

// Issuer signs and verifies HS256 tokens with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue mints a token for principal with role.
func (i *Issuer) Issue(principal string, role Role) (string, time.Time, error) {
	name, err := NormalizePrincipal(principal)
	if err != nil {
		return "", time.Time{}, err
	}
	if _, ok := roleRank[role]; !ok {
		return "", time.Time{}, fmt.Errorf("invalid role: %q", role)
	}

	now := i.now().UTC()
	expiresAt := now.Add(i.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   name,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: role,
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses a bearer token and returns its principal.
func (i *Issuer) Verify(tokenString string) (Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	name, err := NormalizePrincipal(claims.Subject)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, ok := roleRank[claims.Role]; !ok {
		return Principal{}, fmt.Errorf("%w: unknown role", ErrInvalidToken)
	}
	return Principal{Name: name, Role: claims.Role}, nil
}
