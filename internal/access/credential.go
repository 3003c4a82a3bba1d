package access

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

const bearerScheme = "Bearer "

// Verifier issues and verifies HS256 bearer credentials.
type Verifier struct {
	secret []byte
	ttl    time.Duration
	users  UserStore
	clock  Clock
	logger *slog.Logger
}

type VerifierConfig struct {
	Secret string
	TTL    time.Duration
	Users  UserStore
	Clock  Clock
	Logger *slog.Logger
}

func NewVerifier(cfg VerifierConfig) *Verifier {
	v := &Verifier{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		users:  cfg.Users,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}
	if v.ttl <= 0 {
		v.ttl = 7 * 24 * time.Hour
	}
	if v.clock == nil {
		v.clock = realClock{}
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	return v
}

type credentialClaims struct {
	jwt.StandardClaims
}

// Issue signs a credential for u and returns it with its expiry.
func (v *Verifier) Issue(u *User) (string, time.Time, error) {
	now := v.clock.Now()
	exp := now.Add(v.ttl)
	claims := credentialClaims{StandardClaims: jwt.StandardClaims{
		Id:        uuid.NewString(),
		Subject:   u.ID.String(),
		IssuedAt:  now.Unix(),
		ExpiresAt: exp.Unix(),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// BearerToken extracts the credential from an Authorization header value.
// A missing header, another scheme or an empty credential all yield
// ErrMissingCredential.
func BearerToken(header string) (string, error) {
	if len(header) < len(bearerScheme) || !strings.EqualFold(header[:len(bearerScheme)], bearerScheme) {
		return "", ErrMissingCredential
	}
	tok := strings.TrimSpace(header[len(bearerScheme):])
	if tok == "" {
		return "", ErrMissingCredential
	}
	return tok, nil
}

// VerifyHeader verifies the bearer credential carried by an Authorization
// header value.
func (v *Verifier) VerifyHeader(ctx context.Context, header string) (Identity, error) {
	tok, err := BearerToken(header)
	if err != nil {
		return Identity{}, v.reject(ctx, err)
	}
	return v.Verify(ctx, tok)
}

// Verify checks the signature and expiry of token and resolves its subject
// to a registered user. It has no side effects.
func (v *Verifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, v.reject(ctx, ErrMissingCredential)
	}

	var claims credentialClaims
	parser := jwt.Parser{
		ValidMethods:         []string{jwt.SigningMethodHS256.Alg()},
		SkipClaimsValidation: true,
	}
	_, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, v.reject(ctx, ErrInvalidCredential)
	}
	if claims.ExpiresAt == 0 || claims.Subject == "" {
		return Identity{}, v.reject(ctx, ErrInvalidCredential)
	}
	if !claims.VerifyExpiresAt(v.clock.Now().Unix(), true) {
		return Identity{}, v.reject(ctx, ErrExpiredCredential)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, v.reject(ctx, ErrInvalidCredential)
	}

	u, err := v.users.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Identity{}, v.reject(ctx, ErrUnknownSubject)
		}
		return Identity{}, storageError("resolve credential subject", err)
	}
	return u.Identity(), nil
}

func (v *Verifier) reject(ctx context.Context, kind error) error {
	v.logger.WarnContext(ctx, "credential rejected", "kind", kind.Error())
	return kind
}
