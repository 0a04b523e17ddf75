package server

import (
	"fmt"
	"net/http"

	"github.com/Tyrowin/talkroom/internal/apperr"
	"github.com/Tyrowin/talkroom/internal/auth"
)

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Talkroom server is running!")
}

// HomePage renders the landing page, personalized when a session is present.
func (s *Server) HomePage(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, http.StatusOK, pageIndex, PageData{Title: "Home", User: auth.UserFromContext(r.Context())})
}

// ChatPage renders the chat room. Anonymous visitors still get the page.
func (s *Server) ChatPage(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, http.StatusOK, pageChat, PageData{Title: "Chat", User: auth.UserFromContext(r.Context())})
}

func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, http.StatusOK, pageLogin, PageData{Title: "Login"})
}

func (s *Server) RegisterPage(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, http.StatusOK, pageRegister, PageData{Title: "Register"})
}

// Register handles the register form. Every outcome re-renders the form with
// a message.
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.page(w, r, http.StatusBadRequest, pageRegister, PageData{Title: "Register", Message: auth.MsgFillAllFields})
		return
	}

	_, err := s.auth.Register(r.Context(), auth.RegisterInput{
		Name:            r.PostForm.Get("name"),
		Email:           r.PostForm.Get("email"),
		Password:        r.PostForm.Get("password"),
		PasswordConfirm: r.PostForm.Get("passwordConfirm"),
	})
	if err != nil {
		s.page(w, r, statusFor(err), pageRegister, PageData{Title: "Register", Message: apperr.MessageOf(err)})
		return
	}

	s.page(w, r, http.StatusOK, pageRegister, PageData{Title: "Register", Message: auth.MsgRegistered, Success: true})
}

// Login handles the login form. On success the session cookie is set and the
// browser is sent home; otherwise the form is shown again without a cookie.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.page(w, r, http.StatusBadRequest, pageLogin, PageData{Title: "Login", Message: auth.MsgProvideCredentials})
		return
	}

	session, err := s.auth.Login(r.Context(), r.PostForm.Get("email"), r.PostForm.Get("password"))
	if err != nil {
		s.page(w, r, statusFor(err), pageLogin, PageData{Title: "Login", Message: apperr.MessageOf(err)})
		return
	}

	http.SetCookie(w, auth.SessionCookie(session))
	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout replaces the session cookie with a short-lived placeholder.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, auth.LogoutCookie(s.now()))
	http.Redirect(w, r, "/", http.StatusFound)
}

// WebSocket upgrades the request and registers the connection, carrying the
// session user if the guard resolved one. The hub launches the pumps.
func (s *Server) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn(r.Context(), "websocket upgrade failed", "err", err)
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, auth.UserFromContext(r.Context()), s.clientLimits())
	if !s.hub.Register(client) {
		_ = conn.Close()
	}
}

func (s *Server) page(w http.ResponseWriter, r *http.Request, status int, name string, data PageData) {
	if err := s.pages.render(w, status, name, data); err != nil {
		s.log.Error(r.Context(), "page render failed", "page", name, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// statusFor maps an error code to the status of the re-rendered form.
func statusFor(err error) int {
	switch apperr.CodeOf(err) {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
