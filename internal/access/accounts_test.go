package access_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"secure-file-share/internal/access"
)

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name string
		req  access.RegisterRequest
		ok   bool
	}{
		{"valid", access.RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "password1"}, true},
		{"padded", access.RegisterRequest{Name: "  Ann ", Email: " Ann@Example.com ", Password: "password1"}, true},
		{"empty name", access.RegisterRequest{Name: "  ", Email: "ann@example.com", Password: "password1"}, false},
		{"long name", access.RegisterRequest{Name: strings.Repeat("a", 101), Email: "ann@example.com", Password: "password1"}, false},
		{"bad email", access.RegisterRequest{Name: "Ann", Email: "ann.example.com", Password: "password1"}, false},
		{"short password", access.RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "abc123"}, false},
		{"letters only", access.RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "passwordonly"}, false},
		{"digits only", access.RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "1234567890"}, false},
		{"over bcrypt limit", access.RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: strings.Repeat("a1", 37)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			u, err := e.svc.Register(context.Background(), tt.req)
			if !tt.ok {
				if !errors.Is(err, access.ErrInvalidInput) {
					t.Fatalf("got %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if u.Name != "Ann" || u.Email != "ann@example.com" {
				t.Fatalf("stored %q %q", u.Name, u.Email)
			}
			if u.PasswordHash == "" || u.PasswordHash == tt.req.Password {
				t.Fatal("password not hashed")
			}
		})
	}
}

func TestRegisterDuplicateEmailIgnoresCase(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if _, err := e.svc.Register(ctx, access.RegisterRequest{Name: "A", Email: "a@x.com", Password: "password1"}); err != nil {
		t.Fatal(err)
	}
	_, err := e.svc.Register(ctx, access.RegisterRequest{Name: "B", Email: "A@X.com", Password: "password2"})
	if !errors.Is(err, access.ErrDuplicateEmail) {
		t.Fatalf("got %v, want ErrDuplicateEmail", err)
	}
	users, _ := e.svc.Users(ctx)
	if len(users) != 1 {
		t.Fatalf("%d users after duplicate", len(users))
	}
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ann := e.user("Ann")

	u, err := e.svc.Login(ctx, "  ANN@example.com", "password1")
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != ann.ID {
		t.Fatalf("logged in as %s, want %s", u.ID, ann.ID)
	}

	for _, tc := range []struct{ email, password string }{
		{"ann@example.com", "password2"},
		{"nobody@example.com", "password1"},
	} {
		if _, err := e.svc.Login(ctx, tc.email, tc.password); !errors.Is(err, access.ErrInvalidLogin) {
			t.Errorf("Login(%q): got %v, want ErrInvalidLogin", tc.email, err)
		}
	}
	if _, err := e.svc.Login(ctx, "", ""); !errors.Is(err, access.ErrInvalidInput) {
		t.Errorf("empty login: got %v", err)
	}
}

func TestUsersListsEveryone(t *testing.T) {
	e := newEnv(t)
	e.user("Carol")
	e.user("Ann")
	e.user("Bob")

	users, err := e.svc.Users(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var emails []string
	for _, u := range users {
		emails = append(emails, u.Email)
	}
	if got := strings.Join(emails, ","); got != "ann@example.com,bob@example.com,carol@example.com" {
		t.Fatalf("users = %s", got)
	}
}
