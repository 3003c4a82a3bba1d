package server

import (
	"errors"
	"net/http"
	"time"

	"secure-file-share/internal/access"
)

// authedHandler receives the verified caller.
type authedHandler func(w http.ResponseWriter, r *http.Request, actor access.Identity)

// authed verifies the bearer credential before calling h. Every rejection
// is answered with the same 401; the reason is only logged.
func (s *Server) authed(h authedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := s.verifier.VerifyHeader(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if lrw, ok := w.(*loggingResponseWriter); ok {
			lrw.userID = actor.ID.String()
		}
		h(w, r, actor)
	})
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      access.Identity `json:"user"`
}

func (s *Server) issue(w http.ResponseWriter, r *http.Request, status int, u *access.User, message string) {
	token, exp, err := s.verifier.Issue(u)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, status, authResponse{Token: token, ExpiresAt: exp, User: u.Identity()}, message)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.svc.Register(r.Context(), access.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.issue(w, r, http.StatusCreated, u, "User registered successfully")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, access.ErrInvalidLogin) {
			s.metrics.RecordLogin(false)
		}
		s.fail(w, r, err)
		return
	}
	s.metrics.RecordLogin(true)
	s.issue(w, r, http.StatusOK, u, "Login successful")
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, actor access.Identity) {
	writeData(w, http.StatusOK, actor, "")
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, _ access.Identity) {
	users, err := s.svc.Users(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]access.Identity, len(users))
	for i := range users {
		out[i] = users[i].Identity()
	}
	writeData(w, http.StatusOK, out, "")
}
