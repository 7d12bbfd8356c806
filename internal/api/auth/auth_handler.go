package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/gearbox-labs/auto-parts-api/app/observability/metrics"
	"github.com/gearbox-labs/auto-parts-api/config"
	"github.com/gearbox-labs/auto-parts-api/internal/api"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	RegisterHandler(w http.ResponseWriter, r *http.Request)
	LoginHandler(w http.ResponseWriter, r *http.Request)
	LogoutHandler(w http.ResponseWriter, r *http.Request)
	IsLoggedInHandler(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	logger  *slog.Logger
	service Service
	cfg     config.AuthConfig
}

func NewHandler(service Service, cfg config.AuthConfig, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		logger:  logger,
		service: service,
		cfg:     cfg,
	}
}

// RegisterHandler godoc
// @Summary      Register a new user
// @Description  Creates a user account. The email must not already be in use.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body body RegisterRequest true "Registration payload"
// @Success      200 {object} UserSummary
// @Failure      400 {object} map[string]interface{} "Validation failure or email already used"
// @Router       /api/auth/register [post]
func (h *HandlerImpl) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Register")
	defer span.End()
	l := h.logger.With(slog.String("handler", "RegisterHandler"))
	start := time.Now()

	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode register request", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	span.SetAttributes(attribute.String("user.email", req.Email))

	user, err := h.service.Register(ctx, req.Name, req.Email, req.Password)
	h.recordAuthMetrics(ctx, "register", start, err)
	if err != nil {
		l.WarnContext(ctx, "Registration failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Registration failed")
		api.RespondError(w, r, err)
		return
	}

	l.InfoContext(ctx, "User registered", slog.String("user_id", user.ID.String()))
	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	span.SetStatus(codes.Ok, "Registered")
	// Register answers the bare summary; only login and isLoggedIn wrap
	// theirs in a "user" envelope.
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

// LoginHandler godoc
// @Summary      Log in
// @Description  Verifies credentials and sets the session cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body body LoginRequest true "Login payload"
// @Success      200 {object} UserSummary
// @Failure      400 {object} map[string]interface{} "Invalid credentials"
// @Router       /api/auth/login [post]
func (h *HandlerImpl) LoginHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Login")
	defer span.End()
	l := h.logger.With(slog.String("handler", "LoginHandler"))
	start := time.Now()

	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode login request", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	token, user, err := h.service.Login(ctx, req.Email, req.Password)
	h.recordAuthMetrics(ctx, "login", start, err)
	if err != nil {
		// Failed logins answer 400, not 401: only a missing/invalid session
		// cookie is a 401 in this API.
		if errors.Is(err, api.ErrUnauthenticated) {
			l.WarnContext(ctx, "Login rejected", slog.String("email", req.Email))
			span.SetStatus(codes.Error, "Invalid credentials")
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid credentials")
			return
		}
		l.ErrorContext(ctx, "Login failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Login failed")
		api.RespondError(w, r, err)
		return
	}

	h.setSessionCookie(w, token)

	l.InfoContext(ctx, "User logged in", slog.String("user_id", user.ID.String()))
	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	span.SetStatus(codes.Ok, "Logged in")
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{"user": user})
}

// LogoutHandler godoc
// @Summary      Log out
// @Description  Clears the session cookie. Tokens are stateless, so a copy of
// @Description  the old cookie stays verifiable until it expires.
// @Tags         auth
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Router       /api/auth/logout [post]
func (h *HandlerImpl) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	_, span := otel.Tracer("AuthHandler").Start(r.Context(), "Logout")
	defer span.End()

	h.clearSessionCookie(w)
	span.SetStatus(codes.Ok, "Logged out")
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{"ok": true})
}

// IsLoggedInHandler godoc
// @Summary      Current session
// @Description  Returns the logged-in user for a valid session cookie.
// @Tags         auth
// @Produce      json
// @Success      200 {object} UserSummary
// @Failure      401 {object} map[string]interface{} "Not authenticated"
// @Router       /api/auth/isLoggedIn [get]
func (h *HandlerImpl) IsLoggedInHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "IsLoggedIn")
	defer span.End()
	l := h.logger.With(slog.String("handler", "IsLoggedInHandler"))

	userIDStr, ok := GetUserIDFromContext(ctx)
	if !ok || userIDStr == "" {
		l.ErrorContext(ctx, "User ID not found in context")
		span.SetStatus(codes.Error, "Unauthorized - User ID missing")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Not authenticated")
		return
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		l.ErrorContext(ctx, "Invalid user ID format", slog.String("userID_str", userIDStr), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid User ID format")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Not authenticated")
		return
	}
	span.SetAttributes(attribute.String("user.id", userID.String()))

	user, err := h.service.CurrentUser(ctx, userID)
	if err != nil {
		l.WarnContext(ctx, "Session user lookup failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Session invalid")
		api.RespondError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Session valid")
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{"user": user})
}

// setSessionCookie writes the session token as an HttpOnly cookie scoped to
// the whole site. SameSite=Lax keeps the cookie on top-level navigations while
// blocking cross-site subresource requests.
func (h *HandlerImpl) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cfg.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *HandlerImpl) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *HandlerImpl) recordAuthMetrics(ctx context.Context, op string, start time.Time, err error) {
	m := metrics.Get()
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	)
	m.AuthRequestsTotal.Add(ctx, 1, attrs)
	m.AuthDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
}
