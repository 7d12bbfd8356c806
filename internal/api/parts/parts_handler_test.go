package parts

import (
	"bytes"
	"context"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gearbox-labs/auto-parts-api/app/observability/metrics"
	"github.com/gearbox-labs/auto-parts-api/internal/api"
	"github.com/gearbox-labs/auto-parts-api/internal/api/uploads"
)

func TestMain(m *testing.M) {
	// Instruments register against the default noop meter provider
	metrics.InitAppMetrics()
	m.Run()
}

// MockPartsService is a mock implementation of the Service interface
type MockPartsService struct {
	mock.Mock
}

func (m *MockPartsService) List(ctx context.Context) ([]Part, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Part), args.Error(1)
}

func (m *MockPartsService) Get(ctx context.Context, id uuid.UUID) (*Part, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Part), args.Error(1)
}

func (m *MockPartsService) Create(ctx context.Context, in CreatePartInput, up *uploads.Upload) (*Part, error) {
	args := m.Called(ctx, in, up)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Part), args.Error(1)
}

func (m *MockPartsService) Update(ctx context.Context, id uuid.UUID, in UpdatePartInput, up *uploads.Upload) (*Part, error) {
	args := m.Called(ctx, id, in, up)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Part), args.Error(1)
}

func (m *MockPartsService) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPartsService) Stats(ctx context.Context) (*Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Stats), args.Error(1)
}

// multipartBody builds a request body with the "data" JSON field and an
// optional "image" file.
func multipartBody(t *testing.T, data string, imageName string, imageContent []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	require.NoError(t, w.WriteField("data", data))
	if imageName != "" {
		fw, err := w.CreateFormFile("image", imageName)
		require.NoError(t, err)
		_, err = fw.Write(imageContent)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestListHandler(t *testing.T) {
	mockService := new(MockPartsService)
	handler := NewHandler(mockService, slog.Default())

	mockService.On("List", mock.Anything).Return([]Part{
		{ID: uuid.New(), Name: "Brake pad", Price: decimal.NewFromFloat(49.90), ImageURL: "http://localhost:5000/uploads/placeholder.png"},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/parts", nil)
	rr := httptest.NewRecorder()
	handler.ListHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Brake pad")
	// Decimal prices serialize as JSON numbers, not strings
	assert.Contains(t, rr.Body.String(), `"price":49.9`)
	mockService.AssertExpectations(t)
}

func TestGetHandler(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		mockService := new(MockPartsService)
		handler := NewHandler(mockService, slog.Default())
		id := uuid.New()

		mockService.On("Get", mock.Anything, id).
			Return(&Part{ID: id, Name: "Brake pad"}, nil).Once()

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/parts/"+id.String(), nil), "id", id.String())
		rr := httptest.NewRecorder()
		handler.GetHandler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockService := new(MockPartsService)
		handler := NewHandler(mockService, slog.Default())
		id := uuid.New()

		mockService.On("Get", mock.Anything, id).Return(nil, api.ErrNotFound).Once()

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/parts/"+id.String(), nil), "id", id.String())
		rr := httptest.NewRecorder()
		handler.GetHandler(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("MalformedIDIs404", func(t *testing.T) {
		mockService := new(MockPartsService)
		handler := NewHandler(mockService, slog.Default())

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/parts/not-a-uuid", nil), "id", "not-a-uuid")
		rr := httptest.NewRecorder()
		handler.GetHandler(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertNotCalled(t, "Get")
	})
}

func TestCreateHandler(t *testing.T) {
	t.Run("WithImageIs201", func(t *testing.T) {
		mockService := new(MockPartsService)
		handler := NewHandler(mockService, slog.Default())
		id := uuid.New()

		mockService.On("Create", mock.Anything,
			mock.MatchedBy(func(in CreatePartInput) bool { return in.Name == "Brake pad" }),
			mock.MatchedBy(func(up *uploads.Upload) bool { return up != nil && up.Filename == "pad.png" }),
		).Return(&Part{ID: id, Name: "Brake pad"}, nil).Once()

		body, contentType := multipartBody(t, `{"name":"Brake pad","price":49.90,"stock":12}`, "pad.png", []byte("png-bytes"))
		req := httptest.NewRequest(http.MethodPost, "/api/parts", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		handler.CreateHandler(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Contains(t, rr.Body.String(), id.String())
		mockService.AssertExpectations(t)
	})

	t.Run("WithoutImage", func(t *testing.T) {
		mockService := new(MockPartsService)
		handler := NewHandler(mockService, slog.Default())

		mockService.On("Create", mock.Anything, mock.AnythingOfType("parts.CreatePartInput"), (*uploads.Upload)(nil)).
			Return(&Part{ID: uuid.New(), Name: "Oil filter"}, nil).Once()

		body, contentType := multipartBody(t, `{"name":"Oil filter","price":9.99,"stock":40}`, "", nil)
		req := httptest.NewRequest(http.MethodPost, "/api/parts", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		handler.CreateHandler(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("MissingDataFieldDecodesAsEmptyObject", func(t *testing.T) {
		mockService := new(MockPartsService)
		handler := NewHandler(mockService, slog.Default())

		ve := &api.ValidationError{}
		ve.Add("name", "must not be empty")
		mockService.On("Create", mock.Anything, CreatePartInput{}, (*uploads.Upload)(nil)).
			Return(nil, ve).Once()

		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/parts", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		rr := httptest.NewRecorder()
		handler.CreateHandler(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), `"field":"name"`)
		mockService.AssertExpectations(t)
	})

	t.Run("BadJSONInDataField", func(t *testing.T) {
		mockService := new(MockPartsService)
		handler := NewHandler(mockService, slog.Default())

		body, contentType := multipartBody(t, `{broken`, "", nil)
		req := httptest.NewRequest(http.MethodPost, "/api/parts", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		handler.CreateHandler(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "Create")
	})

	t.Run("ValidationFailure", func(t *testing.T) {
		mockService := new(MockPartsService)
		handler := NewHandler(mockService, slog.Default())

		ve := &api.ValidationError{}
		ve.Add("name", "must not be empty")
		mockService.On("Create", mock.Anything, mock.AnythingOfType("parts.CreatePartInput"), (*uploads.Upload)(nil)).
			Return(nil, ve).Once()

		body, contentType := multipartBody(t, `{"name":"","price":1,"stock":1}`, "", nil)
		req := httptest.NewRequest(http.MethodPost, "/api/parts", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		handler.CreateHandler(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), `"field":"name"`)
		mockService.AssertExpectations(t)
	})
}

func TestUpdateHandler(t *testing.T) {
	t.Run("PartialUpdate", func(t *testing.T) {
		mockService := new(MockPartsService)
		handler := NewHandler(mockService, slog.Default())
		id := uuid.New()

		mockService.On("Update", mock.Anything, id,
			mock.MatchedBy(func(in UpdatePartInput) bool {
				return in.Stock != nil && *in.Stock == 5 && in.Name == nil
			}),
			(*uploads.Upload)(nil),
		).Return(&Part{ID: id, Name: "Brake pad", Stock: 5}, nil).Once()

		body, contentType := multipartBody(t, `{"stock":5}`, "", nil)
		req := withURLParam(httptest.NewRequest(http.MethodPut, "/api/parts/"+id.String(), body), "id", id.String())
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		handler.UpdateHandler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("ImageOnlyUpdateNeedsNoDataField", func(t *testing.T) {
		mockService := new(MockPartsService)
		handler := NewHandler(mockService, slog.Default())
		id := uuid.New()

		mockService.On("Update", mock.Anything, id,
			UpdatePartInput{},
			mock.MatchedBy(func(up *uploads.Upload) bool {
				return up != nil && up.Filename == "new-pad.png"
			}),
		).Return(&Part{ID: id, Name: "Brake pad"}, nil).Once()

		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		fw, err := w.CreateFormFile("image", "new-pad.png")
		require.NoError(t, err)
		_, err = fw.Write([]byte("png-bytes"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := withURLParam(httptest.NewRequest(http.MethodPut, "/api/parts/"+id.String(), &buf), "id", id.String())
		req.Header.Set("Content-Type", w.FormDataContentType())
		rr := httptest.NewRecorder()
		handler.UpdateHandler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockService := new(MockPartsService)
		handler := NewHandler(mockService, slog.Default())
		id := uuid.New()

		mockService.On("Update", mock.Anything, id, mock.AnythingOfType("parts.UpdatePartInput"), (*uploads.Upload)(nil)).
			Return(nil, api.ErrNotFound).Once()

		body, contentType := multipartBody(t, `{"stock":5}`, "", nil)
		req := withURLParam(httptest.NewRequest(http.MethodPut, "/api/parts/"+id.String(), body), "id", id.String())
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		handler.UpdateHandler(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestDeleteHandler(t *testing.T) {
	t.Run("Deleted", func(t *testing.T) {
		mockService := new(MockPartsService)
		handler := NewHandler(mockService, slog.Default())
		id := uuid.New()

		mockService.On("Delete", mock.Anything, id).Return(nil).Once()

		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/parts/"+id.String(), nil), "id", id.String())
		rr := httptest.NewRecorder()
		handler.DeleteHandler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Deleted")
		mockService.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockService := new(MockPartsService)
		handler := NewHandler(mockService, slog.Default())
		id := uuid.New()

		mockService.On("Delete", mock.Anything, id).Return(api.ErrNotFound).Once()

		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/parts/"+id.String(), nil), "id", id.String())
		rr := httptest.NewRecorder()
		handler.DeleteHandler(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestStatsHandler(t *testing.T) {
	mockService := new(MockPartsService)
	handler := NewHandler(mockService, slog.Default())

	mockService.On("Stats", mock.Anything).Return(&Stats{TotalParts: 42, Categories: 5}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/parts/stats", nil)
	rr := httptest.NewRecorder()
	handler.StatsHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"totalParts":42`)
	mockService.AssertExpectations(t)
}
