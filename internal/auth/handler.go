package auth

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dockerx/cms/internal/middleware"
	"github.com/dockerx/cms/internal/response"
)

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc      *Service
	log      *zap.Logger
	validate *validator.Validate
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log, validate: validator.New()}
}

type loginRequest struct {
	Username string `json:"username" validate:"required" example:"admin"`
	Password string `json:"password" validate:"required" example:"admin123"`
}

type validateData struct {
	Valid    bool   `json:"valid"    example:"true"`
	Username string `json:"username" example:"admin"`
}

// Login godoc
//
//	@Summary		Admin login
//	@Description	Exchange the administrator's username and password for a bearer token.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		loginRequest	true	"Credentials"
//	@Success		200		{object}	response.Envelope{data=Token}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		429		{object}	response.Envelope
//	@Router			/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, "username and password are required")
		return
	}

	tok, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if IsAuthError(err) {
			h.log.Info("login rejected", zap.String("username", req.Username))
		}
		response.Err(w, h.log, err)
		return
	}
	response.OK(w, tok)
}

// Validate godoc
//
//	@Summary		Validate token
//	@Description	Reports whether the bearer token is valid.
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=validateData}
//	@Failure		401	{object}	response.Envelope
//	@Router			/auth/validate [post]
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.Username(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	response.OK(w, validateData{Valid: true, Username: username})
}
