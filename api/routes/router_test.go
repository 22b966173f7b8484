package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/furniture-production-backend/api/controllers"
	"github.com/angelmondragon/furniture-production-backend/internal/batches"
	"github.com/angelmondragon/furniture-production-backend/internal/inventory"
	"github.com/angelmondragon/furniture-production-backend/internal/notifications"
	"github.com/angelmondragon/furniture-production-backend/internal/orders"
	"github.com/angelmondragon/furniture-production-backend/internal/production"
	"github.com/angelmondragon/furniture-production-backend/pkg/auth"
	"github.com/angelmondragon/furniture-production-backend/pkg/config"
	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
	"github.com/angelmondragon/furniture-production-backend/pkg/metrics"
	"github.com/angelmondragon/furniture-production-backend/pkg/outbox"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubOrdersService struct {
	accepted int
	owner    uuid.UUID
}

func (s *stubOrdersService) AcceptOrder(ctx context.Context, input orders.AcceptInput) (*orders.OrderSnapshot, error) {
	s.accepted++
	return &orders.OrderSnapshot{ID: input.OrderID, AcceptanceStatus: enums.OrderAcceptanceAccepted}, nil
}

func (s *stubOrdersService) RejectOrder(ctx context.Context, input orders.RejectInput) (*orders.OrderSnapshot, error) {
	return &orders.OrderSnapshot{ID: input.OrderID, AcceptanceStatus: enums.OrderAcceptanceRejected}, nil
}

func (s *stubOrdersService) Get(ctx context.Context, id uuid.UUID) (*orders.OrderSnapshot, error) {
	return &orders.OrderSnapshot{ID: id, CustomerID: s.owner}, nil
}

func (s *stubOrdersService) MaterialCheck(ctx context.Context, id uuid.UUID) (*orders.MaterialCheck, error) {
	return &orders.MaterialCheck{OrderID: id, Sufficient: true}, nil
}

func (s *stubOrdersService) MarkReadyForDelivery(ctx context.Context, input orders.DeliveryInput) (*orders.OrderSnapshot, error) {
	return &orders.OrderSnapshot{ID: input.OrderID, Status: enums.OrderStatusReadyForDelivery}, nil
}

func (s *stubOrdersService) MarkDelivered(ctx context.Context, input orders.DeliveryInput) (*orders.OrderSnapshot, error) {
	return &orders.OrderSnapshot{ID: input.OrderID, Status: enums.OrderStatusDelivered}, nil
}

type stubProductionService struct{}

func (stubProductionService) Create(ctx context.Context, tx *gorm.DB, input production.CreateInput) (*models.ProductionJob, error) {
	return nil, nil
}

func (stubProductionService) Get(ctx context.Context, id uuid.UUID) (*production.Snapshot, error) {
	return &production.Snapshot{ID: id}, nil
}

func (stubProductionService) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]production.Snapshot, error) {
	return nil, nil
}

func (stubProductionService) UpdateProcess(ctx context.Context, input production.UpdateProcessInput) (*production.Snapshot, error) {
	return &production.Snapshot{ID: input.ProductionID}, nil
}

func (stubProductionService) JumpToStage(ctx context.Context, input production.JumpInput) (*production.Snapshot, error) {
	return &production.Snapshot{ID: input.ProductionID, CurrentStage: input.Stage}, nil
}

func (stubProductionService) Hold(ctx context.Context, input production.HoldInput) (*production.Snapshot, error) {
	return &production.Snapshot{ID: input.ProductionID}, nil
}

func (stubProductionService) AutoAdvance(ctx context.Context, id uuid.UUID) (*production.Snapshot, error) {
	return &production.Snapshot{ID: id}, nil
}

func (stubProductionService) AutoAdvanceBatch(ctx context.Context, batchSize int) (production.BatchResult, error) {
	return production.BatchResult{}, nil
}

func (stubProductionService) FinishForDelivery(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *outbox.ActorRef) (int, error) {
	return 0, nil
}

type stubInventoryService struct{}

func (stubInventoryService) GetMaterial(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	return &models.Material{ID: id}, nil
}

func (stubInventoryService) Adjust(ctx context.Context, input inventory.AdjustInput) (*inventory.AdjustResult, error) {
	return &inventory.AdjustResult{}, nil
}

type stubBatchService struct{}

func (stubBatchService) RecordBatchOutput(ctx context.Context, input batches.RecordInput) (*batches.BatchResult, error) {
	return &batches.BatchResult{Batch: batches.BatchSnapshot{ProductID: input.ProductID, Quantity: input.Quantity}}, nil
}

func (stubBatchService) List(ctx context.Context, productID uuid.UUID, limit int) ([]batches.BatchSnapshot, error) {
	return nil, nil
}

type stubNotificationsService struct{}

func (stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotificationsService) MarkRead(ctx context.Context, audience notifications.Audience, notificationID uuid.UUID) error {
	return nil
}

func (stubNotificationsService) MarkAllRead(ctx context.Context, audience notifications.Audience) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config, ordersSvc *stubOrdersService) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	reg := prometheus.NewRegistry()
	metrics.NewProductionMetrics(reg)
	return NewRouter(cfg, logg, Dependencies{
		Health:        map[string]controllers.Pinger{"db": stubPinger{}},
		Gatherer:      reg,
		Orders:        ordersSvc,
		Production:    stubProductionService{},
		Inventory:     stubInventoryService{},
		Batches:       stubBatchService{},
		Notifications: stubNotificationsService{},
	})
}

func buildToken(t *testing.T, cfg *config.Config, userID uuid.UUID, role enums.Role) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{UserID: userID, Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthIsPublic(t *testing.T) {
	router := newTestRouter(testConfig(), &stubOrdersService{})
	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	router := newTestRouter(testConfig(), &stubOrdersService{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestAPIRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), &stubOrdersService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+uuid.NewString()+"/accept", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestAcceptRequiresOperatorRole(t *testing.T) {
	cfg := testConfig()
	svc := &stubOrdersService{}
	router := newTestRouter(cfg, svc)
	orderID := uuid.NewString()

	customer := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID+"/accept", nil)
	customer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, uuid.New(), enums.RoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, customer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", resp.Code)
	}

	for _, role := range []enums.Role{enums.RoleAdmin, enums.RoleStaff} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID+"/accept", nil)
		req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, uuid.New(), role))
		resp = httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s got %d: %s", role, resp.Code, resp.Body.String())
		}
	}
	if svc.accepted != 2 {
		t.Fatalf("expected 2 accepts got %d", svc.accepted)
	}
}

func TestCustomerCanReadOwnOrder(t *testing.T) {
	cfg := testConfig()
	owner := uuid.New()
	router := newTestRouter(cfg, &stubOrdersService{owner: owner})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, owner, enums.RoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestProductionRoutesRequireOperator(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, &stubOrdersService{})
	path := "/api/v1/productions/" + uuid.NewString()

	req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"current_stage":"assembly"}`))
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, uuid.New(), enums.RoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"current_stage":"assembly"}`))
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, uuid.New(), enums.RoleStaff))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestBatchOutputRoutesRequireOperator(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, &stubOrdersService{})
	path := "/api/v1/products/" + uuid.NewString() + "/batch-outputs"

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"quantity":4}`))
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, uuid.New(), enums.RoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"quantity":4}`))
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, uuid.New(), enums.RoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestNotificationsOpenToCustomers(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, &stubOrdersService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, uuid.New(), enums.RoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
