package auth

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-library-go/pkg/utilities"
)

// TokenIssuer turns a user id into a bearer token and back.
type TokenIssuer interface {
	Issue(userID int64) (string, error)
	Parse(token string) (int64, error)
}

type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// ConfigFromEnv reads JWT_SECRET, JWT_ISSUER and JWT_TTL. Without a secret
// the stub issuer is used.
func ConfigFromEnv() Config {
	ttl := 12 * time.Hour
	if v := os.Getenv("JWT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			ttl = d
		}
	}
	iss := os.Getenv("JWT_ISSUER")
	if iss == "" {
		iss = "library"
	}
	return Config{Secret: os.Getenv("JWT_SECRET"), Issuer: iss, TTL: ttl}
}

// NewIssuer picks the JWT issuer when a secret is configured.
func NewIssuer(cfg Config, clock clockwork.Clock) TokenIssuer {
	if cfg.Secret == "" {
		return StubIssuer{}
	}
	return &JWTIssuer{secret: []byte(cfg.Secret), issuer: cfg.Issuer, ttl: cfg.TTL, clock: clock}
}

const stubPrefix = "Bearer_"

// StubIssuer issues "Bearer_<id>". It authenticates nothing and is meant
// for local development only.
type StubIssuer struct{}

func (StubIssuer) Issue(userID int64) (string, error) {
	return stubPrefix + strconv.FormatInt(userID, 10), nil
}

func (StubIssuer) Parse(token string) (int64, error) {
	if !strings.HasPrefix(token, stubPrefix) {
		return 0, apperr.Unauthorized("malformed token")
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(token, stubPrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Unauthorized("malformed token")
	}
	return id, nil
}

// JWTIssuer signs HS256 tokens whose subject is the user id.
type JWTIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clockwork.Clock
}

func (j *JWTIssuer) Issue(userID int64) (string, error) {
	now := j.clock.Now()
	claims := jwt.RegisteredClaims{
		ID:        utilities.NewSnowflakeID(),
		Issuer:    j.issuer,
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (j *JWTIssuer) Parse(token string) (int64, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) { return j.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.clock.Now),
	)
	if err != nil {
		return 0, apperr.Unauthorized(err.Error())
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Unauthorized("token subject is not a user id")
	}
	return id, nil
}
