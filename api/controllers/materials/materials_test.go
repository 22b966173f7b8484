package materials

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/furniture-production-backend/api/middleware"
	"github.com/angelmondragon/furniture-production-backend/internal/forecast"
	"github.com/angelmondragon/furniture-production-backend/internal/inventory"
	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/furniture-production-backend/pkg/errors"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
)

type stubInventoryService struct {
	adjusts []inventory.AdjustInput
	err     error
}

func (s *stubInventoryService) GetMaterial(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Material{ID: id, SKU: "WOOD-OAK"}, nil
}

func (s *stubInventoryService) Adjust(ctx context.Context, input inventory.AdjustInput) (*inventory.AdjustResult, error) {
	s.adjusts = append(s.adjusts, input)
	if s.err != nil {
		return nil, s.err
	}
	return &inventory.AdjustResult{Material: models.Material{ID: input.MaterialID}}, nil
}

type stubForecaster struct {
	report *forecast.Report
	err    error
}

func (s *stubForecaster) Report(ctx context.Context, materialID uuid.UUID) (*forecast.Report, error) {
	return s.report, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func requestFor(method, body string, materialID string) *http.Request {
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/", reader)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("materialId", materialID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestAdjustForwardsSignedQuantity(t *testing.T) {
	svc := &stubInventoryService{}
	materialID := uuid.New()
	userID := uuid.New()
	req := requestFor(http.MethodPost, `{"quantity":"-2.5","reason":"cycle count"}`, materialID.String())
	req = req.WithContext(middleware.WithRole(middleware.WithUserID(req.Context(), userID.String()), enums.RoleStaff))
	resp := httptest.NewRecorder()

	Adjust(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Len(t, svc.adjusts, 1)
	got := svc.adjusts[0]
	assert.Equal(t, materialID, got.MaterialID)
	assert.True(t, got.Quantity.Equal(decimal.RequireFromString("-2.5")))
	assert.Equal(t, "cycle count", got.Reason)
	require.NotNil(t, got.Actor)
	assert.Equal(t, userID, got.Actor.UserID)
}

func TestAdjustRequiresReason(t *testing.T) {
	svc := &stubInventoryService{}
	req := requestFor(http.MethodPost, `{"quantity":3}`, uuid.NewString())
	resp := httptest.NewRecorder()

	Adjust(svc, testLogger())(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, svc.adjusts)
}

func TestAdjustSurfacesInsufficientStock(t *testing.T) {
	svc := &stubInventoryService{err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "adjustment would drive stock negative")}
	req := requestFor(http.MethodPost, `{"quantity":-100,"reason":"scrap"}`, uuid.NewString())
	resp := httptest.NewRecorder()

	Adjust(svc, testLogger())(resp, req)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestForecastReturnsReport(t *testing.T) {
	materialID := uuid.New()
	svc := &stubForecaster{report: &forecast.Report{MaterialID: materialID, NeedsReorder: true}}
	req := requestFor(http.MethodGet, "", materialID.String())
	resp := httptest.NewRecorder()

	Forecast(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var envelope struct {
		Data forecast.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, materialID, envelope.Data.MaterialID)
	assert.True(t, envelope.Data.NeedsReorder)
}

func TestDetailRejectsBadID(t *testing.T) {
	req := requestFor(http.MethodGet, "", "not-a-uuid")
	resp := httptest.NewRecorder()

	Detail(&stubInventoryService{}, testLogger())(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
