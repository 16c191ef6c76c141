package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	eventapp "github.com/erp/fulfillment/internal/application/event"
	salesapp "github.com/erp/fulfillment/internal/application/sales"
	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/interfaces/http/dto"
	"github.com/erp/fulfillment/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

func newTestRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	return r
}

func serve(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// decode unmarshals the response envelope, leaving data raw for the caller
func decode(t *testing.T, w *httptest.ResponseRecorder) (dto.Response, json.RawMessage) {
	t.Helper()
	var envelope struct {
		dto.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Response, envelope.Data
}

// ==================== Service mocks ====================

type mockDocumentService struct {
	mock.Mock
}

func (m *mockDocumentService) docResult(args mock.Arguments) (*salesapp.DocumentResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*salesapp.DocumentResponse), args.Error(1)
}

func (m *mockDocumentService) CreateDocument(ctx context.Context, req salesapp.CreateDocumentRequest) (*salesapp.DocumentResponse, error) {
	return m.docResult(m.Called(ctx, req))
}

func (m *mockDocumentService) UpdateDocument(ctx context.Context, id uuid.UUID, req salesapp.UpdateDocumentRequest) (*salesapp.DocumentResponse, error) {
	return m.docResult(m.Called(ctx, id, req))
}

func (m *mockDocumentService) Open(ctx context.Context, id uuid.UUID) (*salesapp.DocumentResponse, error) {
	return m.docResult(m.Called(ctx, id))
}

func (m *mockDocumentService) Cancel(ctx context.Context, id uuid.UUID) (*salesapp.DocumentResponse, error) {
	return m.docResult(m.Called(ctx, id))
}

func (m *mockDocumentService) Close(ctx context.Context, id uuid.UUID) (*salesapp.DocumentResponse, error) {
	return m.docResult(m.Called(ctx, id))
}

func (m *mockDocumentService) Transition(ctx context.Context, id uuid.UUID, req salesapp.TransitionDocumentRequest) (*salesapp.DocumentResponse, error) {
	return m.docResult(m.Called(ctx, id, req))
}

func (m *mockDocumentService) RecordPayment(ctx context.Context, id uuid.UUID, req salesapp.RecordPaymentRequest) (*salesapp.DocumentResponse, error) {
	return m.docResult(m.Called(ctx, id, req))
}

func (m *mockDocumentService) GetByID(ctx context.Context, id uuid.UUID) (*salesapp.DocumentResponse, error) {
	return m.docResult(m.Called(ctx, id))
}

func (m *mockDocumentService) GetByNumber(ctx context.Context, number string) (*salesapp.DocumentResponse, error) {
	return m.docResult(m.Called(ctx, number))
}

func (m *mockDocumentService) List(ctx context.Context, filter salesapp.DocumentListFilter) ([]salesapp.DocumentResponse, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]salesapp.DocumentResponse), args.Get(1).(int64), args.Error(2)
}

type mockConversionService struct {
	mock.Mock
}

func (m *mockConversionService) PrepareConversion(ctx context.Context, sourceID uuid.UUID, targetType sales.DocumentType) (*salesapp.ConversionPayload, error) {
	args := m.Called(ctx, sourceID, targetType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*salesapp.ConversionPayload), args.Error(1)
}

func (m *mockConversionService) CommitConversion(ctx context.Context, payload salesapp.ConversionPayload) (*salesapp.DocumentResponse, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*salesapp.DocumentResponse), args.Error(1)
}

func (m *mockConversionService) ConversionTargets(ctx context.Context, sourceID uuid.UUID) ([]sales.DocumentType, error) {
	args := m.Called(ctx, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]sales.DocumentType), args.Error(1)
}

type mockAvailabilityService struct {
	mock.Mock
}

func (m *mockAvailabilityService) rowResult(args mock.Arguments) (*salesapp.AvailabilityResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*salesapp.AvailabilityResponse), args.Error(1)
}

func (m *mockAvailabilityService) rowsResult(args mock.Arguments) ([]salesapp.AvailabilityResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]salesapp.AvailabilityResponse), args.Error(1)
}

func (m *mockAvailabilityService) Get(ctx context.Context, itemCode, warehouse string) (*salesapp.AvailabilityResponse, error) {
	return m.rowResult(m.Called(ctx, itemCode, warehouse))
}

func (m *mockAvailabilityService) ListByItem(ctx context.Context, itemCode string) ([]salesapp.AvailabilityResponse, error) {
	return m.rowsResult(m.Called(ctx, itemCode))
}

func (m *mockAvailabilityService) ListBelowReorderLevel(ctx context.Context, filter shared.Filter) ([]salesapp.AvailabilityResponse, error) {
	return m.rowsResult(m.Called(ctx, filter))
}

func (m *mockAvailabilityService) AdjustStock(ctx context.Context, req salesapp.AdjustStockRequest) (*salesapp.AvailabilityResponse, error) {
	return m.rowResult(m.Called(ctx, req))
}

func (m *mockAvailabilityService) SetThresholds(ctx context.Context, itemCode, warehouse string, req salesapp.SetThresholdsRequest) (*salesapp.AvailabilityResponse, error) {
	return m.rowResult(m.Called(ctx, itemCode, warehouse, req))
}

func (m *mockAvailabilityService) Journal(ctx context.Context, itemCode, warehouse string, filter shared.Filter) ([]salesapp.InventoryTransactionResponse, error) {
	args := m.Called(ctx, itemCode, warehouse, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]salesapp.InventoryTransactionResponse), args.Error(1)
}

type mockRuleService struct {
	mock.Mock
}

func (m *mockRuleService) Create(ctx context.Context, req salesapp.CreateFreeItemRuleRequest) (*salesapp.FreeItemRuleResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*salesapp.FreeItemRuleResponse), args.Error(1)
}

func (m *mockRuleService) List(ctx context.Context, activeOnly bool) ([]salesapp.FreeItemRuleResponse, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]salesapp.FreeItemRuleResponse), args.Error(1)
}

func (m *mockRuleService) Deactivate(ctx context.Context, id uuid.UUID) (*salesapp.FreeItemRuleResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*salesapp.FreeItemRuleResponse), args.Error(1)
}

type mockItemService struct {
	mock.Mock
}

func (m *mockItemService) Save(ctx context.Context, req salesapp.SaveItemRequest) (*salesapp.ItemResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*salesapp.ItemResponse), args.Error(1)
}

func (m *mockItemService) Get(ctx context.Context, code string) (*salesapp.ItemResponse, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*salesapp.ItemResponse), args.Error(1)
}

type mockHistoryService struct {
	mock.Mock
}

func (m *mockHistoryService) ListByAggregate(ctx context.Context, aggregateID uuid.UUID, eventType string) (*eventapp.HistoryResult, error) {
	args := m.Called(ctx, aggregateID, eventType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*eventapp.HistoryResult), args.Error(1)
}
