package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MrEthical07/resumeauth"
	"github.com/MrEthical07/resumeauth/middleware"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 16

// Service is the Engine surface exposed over HTTP.
type Service interface {
	middleware.AccessVerifier

	Register(ctx context.Context, in resumeauth.CreateAccountInput) (*resumeauth.RegisterResult, error)
	Authenticate(ctx context.Context, creds resumeauth.Credentials, device *resumeauth.DeviceInfo) (*resumeauth.AuthResult, error)
	AuthenticateAdmin(ctx context.Context, creds resumeauth.Credentials, device *resumeauth.DeviceInfo) (*resumeauth.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*resumeauth.TokenPair, error)
	SignOut(ctx context.Context, accessToken string) error
	SignOutAll(ctx context.Context, accessToken string) (int, error)
	CurrentUser(ctx context.Context, accessToken string) (*resumeauth.Profile, error)
	ListSessions(ctx context.Context, accessToken string) ([]resumeauth.SessionInfo, error)
	ConfirmEmail(ctx context.Context, tokenHash, verificationType string) (*resumeauth.ConfirmResult, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	CompletePasswordReset(ctx context.Context, tokenHash, newPassword string) error
	SetAccountStatus(ctx context.Context, userID string, status resumeauth.AccountStatus) error
	AccountStatus(ctx context.Context, userID string) (resumeauth.AccountStatus, error)
	DeleteAccount(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
}

var _ Service = (*resumeauth.Engine)(nil)

// Handler holds the HTTP handlers. Every handler translates JSON to one Engine call.
type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type confirmRequest struct {
	TokenHash string `json:"token_hash"`
	Type      string `json:"type"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetCompleteRequest struct {
	TokenHash string `json:"token_hash"`
	Password  string `json:"password"`
}

type statusRequest struct {
	Status resumeauth.AccountStatus `json:"status"`
}

type statusResponse struct {
	UserID string                   `json:"user_id"`
	Status resumeauth.AccountStatus `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in resumeauth.CreateAccountInput
	if !decode(w, r, &in) {
		return
	}
	res, err := h.svc.Register(r.Context(), in)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	h.signIn(w, r, h.svc.Authenticate)
}

func (h *Handler) AdminSignIn(w http.ResponseWriter, r *http.Request) {
	h.signIn(w, r, h.svc.AuthenticateAdmin)
}

type authenticateFunc func(context.Context, resumeauth.Credentials, *resumeauth.DeviceInfo) (*resumeauth.AuthResult, error)

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, fn authenticateFunc) {
	var creds resumeauth.Credentials
	if !decode(w, r, &creds) {
		return
	}
	// Device info comes from the ClientInfo middleware through the context.
	res, err := fn(r.Context(), creds, nil)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, pair)
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SignOut(r.Context(), middleware.AccessTokenFromContext(r.Context())); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SignOutAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.SignOutAll(r.Context(), middleware.AccessTokenFromContext(r.Context()))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"sessions_ended": n})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.CurrentUser(r.Context(), middleware.AccessTokenFromContext(r.Context()))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListSessions(r.Context(), middleware.AccessTokenFromContext(r.Context()))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if list == nil {
		list = []resumeauth.SessionInfo{}
	}
	middleware.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.ConfirmEmail(r.Context(), req.TokenHash, req.Type)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if !res.Verified {
		status = http.StatusBadRequest
	}
	middleware.WriteJSON(w, status, res)
}

func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.svc.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, messageResponse{Message: msg})
}

func (h *Handler) CompletePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetCompleteRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.CompletePasswordReset(r.Context(), req.TokenHash, req.Password); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	status, err := h.svc.AccountStatus(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, statusResponse{UserID: userID, Status: status})
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	userID := chi.URLParam(r, "id")
	if err := h.svc.SetAccountStatus(r.Context(), userID, req.Status); err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, statusResponse{UserID: userID, Status: req.Status})
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAccount(r.Context(), chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body into v. On failure it writes a validation error and
// returns false.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		msg := "request body must be a JSON object"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			msg = "request body is too large"
		} else if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		middleware.WriteError(w, &resumeauth.Error{
			Code:    resumeauth.ErrValidation.Code,
			Kind:    resumeauth.KindValidation,
			Message: msg,
			Err:     err,
		})
		return false
	}
	return true
}
