// Package web is the thin JSON surface over the auth core: page views gated
// by the route guard and the credential and profile actions.
package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/auth"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/entity"
)

// maxBodyBytes bounds form payloads.
const maxBodyBytes = 1 << 16

// Handler exposes the auth service over HTTP.
type Handler struct {
	svc      *auth.Service
	validate *validator.Validate
	logger   *zap.SugaredLogger
}

func NewHandler(svc *auth.Service, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, validate: newValidator(), logger: logger}
}

type homeView struct {
	Authenticated bool         `json:"authenticated"`
	User          *entity.User `json:"user,omitempty"`
}

// Home renders for everyone and shows who is signed in.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	user := h.svc.CurrentUser(scope(r))
	h.writeJSON(w, http.StatusOK, homeView{Authenticated: user != nil, User: user})
}

type pageView struct {
	Page string `json:"page"`
}

// LoginPage is mounted behind AuthSurface.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, pageView{Page: "login"})
}

// SignUpPage is mounted behind AuthSurface.
func (h *Handler) SignUpPage(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, pageView{Page: "sign-up"})
}

type profileView struct {
	User    *entity.User    `json:"user"`
	Profile *entity.Profile `json:"profile"`
}

// ProfilePage is mounted behind Protected. A missing profile row renders as
// null rather than failing the page.
func (h *Handler) ProfilePage(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		user = h.svc.CurrentUser(sc)
	}
	if user == nil {
		h.writeJSON(w, http.StatusUnauthorized, auth.Fail[auth.Unit](auth.KindRejected, "Not authenticated"))
		return
	}
	h.writeJSON(w, http.StatusOK, profileView{User: user, Profile: h.svc.GetProfile(sc, user.ID)})
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !h.decode(w, r, &req) {
		return
	}
	res := h.svc.SignUp(scope(r), auth.SignUpInput{Email: req.Email, Password: req.Password, FullName: req.FullName})
	writeResult(h, w, res, http.StatusCreated, http.StatusBadRequest)
}

type loginView struct {
	User      *entity.User `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Login keeps the session tokens in cookies; the body only names the user.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	res := h.svc.Login(scope(r), auth.LoginInput{Email: req.Email, Password: req.Password})
	session, ok := res.Value()
	if !ok {
		writeResult(h, w, res, http.StatusOK, http.StatusUnauthorized)
		return
	}
	h.writeJSON(w, http.StatusOK, auth.Ok(loginView{User: session.User, ExpiresAt: session.ExpiresAt}))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	writeResult(h, w, h.svc.Logout(scope(r)), http.StatusOK, http.StatusBadRequest)
}

// UpdateProfile patches the caller's own profile. Keys other than the
// mutable columns are ignored.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	user := h.svc.CurrentUser(sc)
	if user == nil {
		h.writeJSON(w, http.StatusUnauthorized, auth.Fail[auth.Unit](auth.KindRejected, "Not authenticated"))
		return
	}
	var req entity.ProfileUpdate
	if !h.decode(w, r, &req) {
		return
	}
	writeResult(h, w, h.svc.UpdateProfile(sc, user.ID, req), http.StatusOK, http.StatusBadRequest)
}

// decode reads and validates a JSON body, answering the request itself when
// the body is unusable.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.logger.Debugw("invalid payload", "path", r.URL.Path, "err", err)
		h.writeJSON(w, http.StatusBadRequest, auth.Fail[auth.Unit](auth.KindRejected, "Invalid payload"))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeJSON(w, http.StatusUnprocessableEntity, auth.Fail[auth.Unit](auth.KindRejected, validationMessage(err)))
		return false
	}
	return true
}

// writeResult writes res as an envelope. okStatus and rejectedStatus cover the
// success and provider-rejection cases; anomalies and faults are fixed.
func writeResult[T any](h *Handler, w http.ResponseWriter, res auth.Result[T], okStatus, rejectedStatus int) {
	status := okStatus
	if !res.IsOk() {
		switch res.Kind() {
		case auth.KindRejected:
			status = rejectedStatus
		case auth.KindAnomalous:
			status = http.StatusBadGateway
		default:
			status = http.StatusInternalServerError
		}
	}
	h.writeJSON(w, status, res)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warnw("encode response", "err", err)
	}
}
