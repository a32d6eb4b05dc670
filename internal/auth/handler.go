package auth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/scribe/pkg/handlers"
	"github.com/JaimeStill/scribe/pkg/routes"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Handler struct {
	sys    *System
	logger *slog.Logger
}

func NewHandler(sys *System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "auth"),
	}
}

// Routes exposes login publicly; /me sits behind the bearer middleware.
// Additional middleware applies to the login route, e.g. rate limiting.
func (h *Handler) Routes(loginMW ...routes.Middleware) routes.Group {
	return routes.Group{
		Prefix: "/auth",
		Tags:   []string{"Auth"},
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/login", Handler: h.Login, Middleware: loginMW, OpenAPI: ops.Login},
			{Method: "GET", Pattern: "/me", Handler: h.Me, Middleware: []routes.Middleware{h.sys.Middleware()}, OpenAPI: ops.Me},
		},
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Username == "" || req.Password == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("username and password required"))
		return
	}

	token, err := h.sys.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	h.logger.Info("login succeeded", "username", req.Username)
	handlers.RespondJSON(w, http.StatusOK, token)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := FromContext(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, ErrMissingToken)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, p)
}
