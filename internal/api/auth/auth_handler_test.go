package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gearbox-labs/auto-parts-api/app/observability/metrics"
	"github.com/gearbox-labs/auto-parts-api/internal/api"
)

func TestMain(m *testing.M) {
	// Instruments register against the default noop meter provider
	metrics.InitAppMetrics()
	m.Run()
}

// MockService is a mock implementation of the Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) Register(ctx context.Context, name, email, password string) (*UserSummary, error) {
	args := m.Called(ctx, name, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*UserSummary), args.Error(1)
}

func (m *MockService) Login(ctx context.Context, email, password string) (string, *UserSummary, error) {
	args := m.Called(ctx, email, password)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*UserSummary), args.Error(2)
}

func (m *MockService) CurrentUser(ctx context.Context, userID uuid.UUID) (*UserSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*UserSummary), args.Error(1)
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRegisterHandler(t *testing.T) {
	cfg := testAuthConfig()

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockService)
		handler := NewHandler(mockService, cfg, slog.Default())
		summary := &UserSummary{ID: uuid.New(), Name: "Jess", Email: "jess@example.com"}

		mockService.On("Register", mock.Anything, "Jess", "jess@example.com", "password123").
			Return(summary, nil).Once()

		body := `{"name":"Jess","email":"jess@example.com","password":"password123"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
		rr := httptest.NewRecorder()
		handler.RegisterHandler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), summary.ID.String())
		mockService.AssertExpectations(t)
	})

	t.Run("ResponseBodyIsTheBareSummary", func(t *testing.T) {
		mockService := new(MockService)
		handler := NewHandler(mockService, cfg, slog.Default())
		summary := &UserSummary{ID: uuid.New(), Name: "Jess", Email: "jess@example.com"}

		mockService.On("Register", mock.Anything, "Jess", "jess@example.com", "password123").
			Return(summary, nil).Once()

		body := `{"name":"Jess","email":"jess@example.com","password":"password123"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
		rr := httptest.NewRecorder()
		handler.RegisterHandler(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, summary.ID.String(), got["id"])
		assert.Equal(t, "Jess", got["name"])
		assert.Equal(t, "jess@example.com", got["email"])
		assert.NotContains(t, got, "user", "register does not wrap the summary like login does")
	})

	t.Run("DuplicateEmailIs400", func(t *testing.T) {
		mockService := new(MockService)
		handler := NewHandler(mockService, cfg, slog.Default())

		mockService.On("Register", mock.Anything, "Jess", "jess@example.com", "password123").
			Return(nil, api.ErrConflict).Once()

		body := `{"name":"Jess","email":"jess@example.com","password":"password123"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
		rr := httptest.NewRecorder()
		handler.RegisterHandler(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Email already used")
		mockService.AssertExpectations(t)
	})

	t.Run("ValidationErrorsItemized", func(t *testing.T) {
		mockService := new(MockService)
		handler := NewHandler(mockService, cfg, slog.Default())

		ve := &api.ValidationError{}
		ve.Add("email", "must be a valid email address").Add("password", "must be at least 6 characters")
		mockService.On("Register", mock.Anything, "Jess", "bad", "x").
			Return(nil, ve).Once()

		body := `{"name":"Jess","email":"bad","password":"x"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
		rr := httptest.NewRecorder()
		handler.RegisterHandler(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), `"field":"email"`)
		assert.Contains(t, rr.Body.String(), `"field":"password"`)
		mockService.AssertExpectations(t)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		mockService := new(MockService)
		handler := NewHandler(mockService, cfg, slog.Default())

		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{not json"))
		rr := httptest.NewRecorder()
		handler.RegisterHandler(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "Register")
	})
}

func TestLoginHandler(t *testing.T) {
	cfg := testAuthConfig()

	t.Run("SuccessSetsCookie", func(t *testing.T) {
		mockService := new(MockService)
		handler := NewHandler(mockService, cfg, slog.Default())
		summary := &UserSummary{ID: uuid.New(), Name: "Jess", Email: "jess@example.com"}

		mockService.On("Login", mock.Anything, "jess@example.com", "password123").
			Return("signed.jwt.token", summary, nil).Once()

		body := `{"email":"jess@example.com","password":"password123"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		rr := httptest.NewRecorder()
		handler.LoginHandler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		cookie := sessionCookie(t, rr, cfg.CookieName)
		require.NotNil(t, cookie, "session cookie must be set")
		assert.Equal(t, "signed.jwt.token", cookie.Value)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
		assert.Equal(t, int(cfg.TokenTTL.Seconds()), cookie.MaxAge)
		mockService.AssertExpectations(t)
	})

	t.Run("BadCredentialsAre400", func(t *testing.T) {
		mockService := new(MockService)
		handler := NewHandler(mockService, cfg, slog.Default())

		mockService.On("Login", mock.Anything, "jess@example.com", "wrong").
			Return("", nil, api.ErrUnauthenticated).Once()

		body := `{"email":"jess@example.com","password":"wrong"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		rr := httptest.NewRecorder()
		handler.LoginHandler(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Invalid credentials")
		assert.Nil(t, sessionCookie(t, rr, cfg.CookieName))
		mockService.AssertExpectations(t)
	})
}

func TestLogoutHandler(t *testing.T) {
	cfg := testAuthConfig()
	handler := NewHandler(new(MockService), cfg, slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	rr := httptest.NewRecorder()
	handler.LogoutHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok":true`)

	cookie := sessionCookie(t, rr, cfg.CookieName)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestIsLoggedInHandler(t *testing.T) {
	cfg := testAuthConfig()

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockService)
		handler := NewHandler(mockService, cfg, slog.Default())
		summary := &UserSummary{ID: uuid.New(), Name: "Jess", Email: "jess@example.com"}

		mockService.On("CurrentUser", mock.Anything, summary.ID).Return(summary, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/auth/isLoggedIn", nil)
		ctx := context.WithValue(req.Context(), UserIDKey, summary.ID.String())
		rr := httptest.NewRecorder()
		handler.IsLoggedInHandler(rr, req.WithContext(ctx))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), summary.Email)
		mockService.AssertExpectations(t)
	})

	t.Run("NoUserInContext", func(t *testing.T) {
		handler := NewHandler(new(MockService), cfg, slog.Default())

		req := httptest.NewRequest(http.MethodGet, "/api/auth/isLoggedIn", nil)
		rr := httptest.NewRecorder()
		handler.IsLoggedInHandler(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("UserDeletedSinceTokenIssued", func(t *testing.T) {
		mockService := new(MockService)
		handler := NewHandler(mockService, cfg, slog.Default())
		id := uuid.New()

		mockService.On("CurrentUser", mock.Anything, id).Return(nil, api.ErrUnauthenticated).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/auth/isLoggedIn", nil)
		ctx := context.WithValue(req.Context(), UserIDKey, id.String())
		rr := httptest.NewRecorder()
		handler.IsLoggedInHandler(rr, req.WithContext(ctx))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		mockService.AssertExpectations(t)
	})
}
