package access

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// NormalizeEmail lower-cases and trims an address; uniqueness is defined
// on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterRequest is the validated input of Register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *RegisterRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
}

func (r RegisterRequest) Validate() error {
	if r.Name == "" || len(r.Name) > 100 {
		return invalidInput("name must be 1 to 100 characters")
	}
	if !emailRegex.MatchString(r.Email) {
		return invalidInput("invalid email address")
	}
	return validatePassword(r.Password)
}

// validatePassword requires 8 to 72 bytes with at least one letter and
// one digit. 72 bytes is the bcrypt input limit.
func validatePassword(password string) error {
	if len(password) < 8 {
		return invalidInput("password must be at least 8 characters long")
	}
	if len(password) > 72 {
		return invalidInput("password must be at most 72 bytes")
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return invalidInput("password must contain both letters and numbers")
	}
	return nil
}

// Register creates an account. Emails are unique case-insensitively.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	req.normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:           uuid.New(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, storageError("create user", err)
	}
	s.logger.InfoContext(ctx, "user registered", "user", u.ID)
	s.record(ctx, AuditEntry{Action: AuditUserRegister, ActorID: u.ID, Success: true})
	return u, nil
}

// Login checks an email and password pair. Unknown emails and wrong
// passwords both yield ErrInvalidLogin.
func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalidInput("email and password are required")
	}
	u, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidLogin
		}
		return nil, storageError("load user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidLogin
	}
	return u, nil
}

// Users lists registered identities.
func (s *Service) Users(ctx context.Context) ([]User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, storageError("list users", err)
	}
	return users, nil
}
