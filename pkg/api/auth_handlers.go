package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/auth"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/httputil"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/middleware"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/rbac"
	"github.com/DamageLabs/whiskey-canon-sub000/pkg/session"
)

// Client-facing messages for flows that must not reveal whether an address exists.
const (
	msgResendSent = "If an account with that email exists and is unverified, a new verification code has been sent."
	msgForgotSent = "If an account with that email exists, a password reset link has been sent."
)

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	service  *auth.Service
	sessions *session.Manager
	csrf     *middleware.CSRFGuard
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(service *auth.Service, sessions *session.Manager, csrf *middleware.CSRFGuard) *AuthHandlers {
	return &AuthHandlers{service: service, sessions: sessions, csrf: csrf}
}

// RegisterRoutes registers authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router, g gates) {
	authLimit := g.limit(middleware.ClassAuth)
	resetLimit := g.limit(middleware.ClassPasswordReset)
	contactLimit := g.limit(middleware.ClassContact)

	router.HandleFunc("/csrf-token", h.csrfToken).Methods(http.MethodGet)

	router.Handle("/auth/register", route(http.HandlerFunc(h.register), authLimit, g.csrf)).Methods(http.MethodPost)
	router.Handle("/auth/verify-email", route(http.HandlerFunc(h.verifyEmail), authLimit, g.csrf)).Methods(http.MethodPost)
	router.Handle("/auth/resend-verification", route(http.HandlerFunc(h.resendVerification), contactLimit, g.csrf)).Methods(http.MethodPost)
	router.Handle("/auth/login", route(http.HandlerFunc(h.login), authLimit, g.csrf)).Methods(http.MethodPost)
	router.Handle("/auth/logout", route(http.HandlerFunc(h.logout), g.csrf)).Methods(http.MethodPost)
	router.Handle("/auth/me", middleware.Authenticated(h.me)).Methods(http.MethodGet)
	router.Handle("/auth/profile", route(middleware.Authenticated(h.updateProfile), g.csrf)).Methods(http.MethodPut)
	router.Handle("/auth/forgot-password", route(http.HandlerFunc(h.forgotPassword), resetLimit, g.csrf)).Methods(http.MethodPost)
	router.Handle("/auth/reset-password", route(http.HandlerFunc(h.resetPassword), resetLimit, g.csrf)).Methods(http.MethodPost)
}

// csrfToken handles GET /api/csrf-token. A visitor without a session gets
// an anonymous one so the token has something to bind to.
func (h *AuthHandlers) csrfToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFrom(ctx)
	if sess == nil {
		var err error
		if sess, err = h.sessions.New(); err != nil {
			writeError(w, r, err)
			return
		}
	}

	token, err := h.csrf.IssueToken(ctx, w, sess)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"csrfToken": token})
}

type registerRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,max=128"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
}

// register handles POST /api/auth/register
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.service.Register(r.Context(), auth.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	message := "Registration successful. Please check your email for a verification code."
	if !res.EmailSent {
		message = "Registration successful, but the verification email could not be sent. Please request a new code."
	}
	httputil.WriteCreated(w, map[string]interface{}{
		"message":   message,
		"user":      res.Account,
		"emailSent": res.EmailSent,
	})
}

type verifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,max=32"`
}

// verifyEmail handles POST /api/auth/verify-email
func (h *AuthHandlers) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	acct, err := h.service.VerifyEmail(r.Context(), req.Email, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"message": "Email verified successfully. You can now log in.",
		"user":    acct,
	})
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// resendVerification handles POST /api/auth/resend-verification
func (h *AuthHandlers) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.ResendVerification(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteMessage(w, msgResendSent)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// login handles POST /api/auth/login. The session moves to a fresh id and
// a new CSRF token is returned for it.
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	ctx := r.Context()
	acct, err := h.service.Login(ctx, req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sess := middleware.SessionFrom(ctx)
	if sess == nil {
		if sess, err = h.sessions.New(); err != nil {
			writeError(w, r, err)
			return
		}
	}
	sess.AccountID = acct.ID
	if err := h.sessions.Renew(ctx, w, sess); err != nil {
		writeError(w, r, err)
		return
	}
	token, err := h.csrf.IssueToken(ctx, w, sess)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"message":   "Login successful",
		"user":      acct,
		"csrfToken": token,
	})
}

// logout handles POST /api/auth/logout. It succeeds whether or not anyone
// was logged in.
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if principal, ok := middleware.PrincipalFrom(ctx); ok {
		h.service.RecordLogout(ctx, principal)
	}

	if err := h.sessions.Destroy(ctx, w, middleware.SessionFrom(ctx)); err != nil {
		requestLogger(r).WithError(err).Warn("failed to delete session on logout")
	}
	h.csrf.ClearToken(w)
	httputil.WriteMessage(w, "Logged out successfully")
}

// me handles GET /api/auth/me
func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request, principal *auth.Account) {
	httputil.WriteSuccess(w, map[string]interface{}{
		"user":        principal,
		"permissions": rbac.PermissionsFor(principal.Role),
	})
}

type updateProfileRequest struct {
	Email           *string `json:"email" validate:"omitempty,email,max=255"`
	FirstName       *string `json:"firstName" validate:"omitempty,max=100"`
	LastName        *string `json:"lastName" validate:"omitempty,max=100"`
	IsProfilePublic *bool   `json:"isProfilePublic"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     string  `json:"newPassword" validate:"max=128"`
}

// updateProfile handles PUT /api/auth/profile
func (h *AuthHandlers) updateProfile(w http.ResponseWriter, r *http.Request, principal *auth.Account) {
	var req updateProfileRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	acct, err := h.service.UpdateProfile(r.Context(), principal.ID, auth.ProfileUpdate{
		Fields: auth.ProfileFields{
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		},
		IsProfilePublic: req.IsProfilePublic,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"message": "Profile updated successfully",
		"user":    acct,
	})
}

// forgotPassword handles POST /api/auth/forgot-password
func (h *AuthHandlers) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteMessage(w, msgForgotSent)
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=128"`
}

// resetPassword handles POST /api/auth/reset-password
func (h *AuthHandlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Password has been reset successfully. You can now log in.")
}
