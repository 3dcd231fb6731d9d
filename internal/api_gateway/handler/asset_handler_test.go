package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hospital-accounting-ledger/internal/api_gateway/service"
	"github.com/hospital-accounting-ledger/internal/domain/asset"
	"github.com/hospital-accounting-ledger/internal/domain/currency"
	"github.com/hospital-accounting-ledger/internal/domain/rule"
)

type MockAdminService struct {
	mock.Mock
}

func (m *MockAdminService) UpsertCurrency(ctx context.Context, c *currency.Currency, actor string) error {
	args := m.Called(ctx, c, actor)
	return args.Error(0)
}

func (m *MockAdminService) UpsertRule(ctx context.Context, r *rule.Rule, actor string) error {
	args := m.Called(ctx, r, actor)
	return args.Error(0)
}

func (m *MockAdminService) ListRules(ctx context.Context, hospitalID uuid.UUID) ([]*rule.Rule, error) {
	args := m.Called(ctx, hospitalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*rule.Rule), args.Error(1)
}

func (m *MockAdminService) RegisterAsset(ctx context.Context, a *asset.FixedAsset, actor string) error {
	args := m.Called(ctx, a, actor)
	return args.Error(0)
}

func (m *MockAdminService) RetireAsset(ctx context.Context, hospitalID, assetID uuid.UUID, actor string) (*asset.FixedAsset, error) {
	args := m.Called(ctx, hospitalID, assetID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asset.FixedAsset), args.Error(1)
}

func (m *MockAdminService) ListAssets(ctx context.Context, hospitalID uuid.UUID) ([]*asset.FixedAsset, error) {
	args := m.Called(ctx, hospitalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*asset.FixedAsset), args.Error(1)
}

var _ service.AdminService = (*MockAdminService)(nil)

func TestAssetHandler_Register(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAdminService)
		handler := NewAssetHandler(logger, mockService)

		hospitalID := uuid.New()
		mockService.On("RegisterAsset", mock.Anything, mock.MatchedBy(func(a *asset.FixedAsset) bool {
			return a.HospitalID == hospitalID &&
				a.Name == "MRI Scanner" &&
				a.CostCenter == "RADIOLOGY" &&
				a.PurchaseCostCents == int64(120_000_000) &&
				a.SalvageValueCents == int64(12_000_000) &&
				a.UsefulLifeYears == 10 &&
				a.DepreciationMethod == asset.MethodStraightLine &&
				a.CurrentBookValueCents == int64(120_000_000) &&
				!a.Retired
		}), "cfo@stmarys").Return(nil)

		router := setupTestRouter()
		router.POST("/hospitals/:hospital_id/assets", handler.Register)

		reqBody := RegisterAssetRequest{
			Name:              "MRI Scanner",
			CostCenter:        "RADIOLOGY",
			PurchaseCostCents: 120_000_000,
			SalvageValueCents: 12_000_000,
			UsefulLifeYears:   10,
			AcquiredAt:        "2026-02-01",
		}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/hospitals/"+hospitalID.String()+"/assets", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(ActorHeader, "cfo@stmarys")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var topLevelResponse Response
		err := json.Unmarshal(rr.Body.Bytes(), &topLevelResponse)
		assert.NoError(t, err)
		require.NotNil(t, topLevelResponse.Data)

		var responseBody asset.FixedAsset
		dataBytes, marshalErr := json.Marshal(topLevelResponse.Data)
		require.NoError(t, marshalErr)
		require.NoError(t, json.Unmarshal(dataBytes, &responseBody))

		assert.Equal(t, "MRI Scanner", responseBody.Name)
		assert.Equal(t, int64(120_000_000), responseBody.CurrentBookValueCents)
		assert.False(t, responseBody.Retired)

		mockService.AssertExpectations(t)
	})

	t.Run("MissingActorHeader", func(t *testing.T) {
		mockService := new(MockAdminService)
		handler := NewAssetHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/hospitals/:hospital_id/assets", handler.Register)

		reqBody := RegisterAssetRequest{Name: "MRI Scanner", PurchaseCostCents: 100, UsefulLifeYears: 5, AcquiredAt: "2026-02-01"}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/hospitals/"+uuid.New().String()+"/assets", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("SalvageAboveCost", func(t *testing.T) {
		mockService := new(MockAdminService)
		handler := NewAssetHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/hospitals/:hospital_id/assets", handler.Register)

		reqBody := RegisterAssetRequest{
			Name:              "Ultrasound Unit",
			PurchaseCostCents: 1_000_000,
			SalvageValueCents: 2_000_000,
			UsefulLifeYears:   5,
			AcquiredAt:        "2026-02-01",
		}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/hospitals/"+uuid.New().String()+"/assets", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(ActorHeader, "cfo@stmarys")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidAcquiredAt", func(t *testing.T) {
		mockService := new(MockAdminService)
		handler := NewAssetHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/hospitals/:hospital_id/assets", handler.Register)

		reqBody := RegisterAssetRequest{
			Name:              "Ultrasound Unit",
			PurchaseCostCents: 1_000_000,
			UsefulLifeYears:   5,
			AcquiredAt:        "01/02/2026",
		}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/hospitals/"+uuid.New().String()+"/assets", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(ActorHeader, "cfo@stmarys")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockAdminService)
		handler := NewAssetHandler(logger, mockService)

		hospitalID := uuid.New()
		mockService.On("RegisterAsset", mock.Anything, mock.Anything, "cfo@stmarys").
			Return(errors.New("database connection lost"))

		router := setupTestRouter()
		router.POST("/hospitals/:hospital_id/assets", handler.Register)

		reqBody := RegisterAssetRequest{
			Name:              "MRI Scanner",
			PurchaseCostCents: 120_000_000,
			UsefulLifeYears:   10,
			AcquiredAt:        "2026-02-01",
		}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/hospitals/"+hospitalID.String()+"/assets", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(ActorHeader, "cfo@stmarys")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestAssetHandler_Retire(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAdminService)
		handler := NewAssetHandler(logger, mockService)

		hospitalID := uuid.New()
		assetID := uuid.New()
		retired := &asset.FixedAsset{
			ID:                    assetID,
			HospitalID:            hospitalID,
			Name:                  "MRI Scanner",
			CurrentBookValueCents: 12_000_000,
			Retired:               true,
			UpdatedAt:             time.Now(),
		}
		mockService.On("RetireAsset", mock.Anything, hospitalID, assetID, "cfo@stmarys").Return(retired, nil)

		router := setupTestRouter()
		router.POST("/hospitals/:hospital_id/assets/:asset_id/retire", handler.Retire)

		req, _ := http.NewRequest(http.MethodPost, "/hospitals/"+hospitalID.String()+"/assets/"+assetID.String()+"/retire", nil)
		req.Header.Set(ActorHeader, "cfo@stmarys")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var topLevelResponse Response
		err := json.Unmarshal(rr.Body.Bytes(), &topLevelResponse)
		assert.NoError(t, err)
		require.NotNil(t, topLevelResponse.Data)

		var responseBody asset.FixedAsset
		dataBytes, marshalErr := json.Marshal(topLevelResponse.Data)
		require.NoError(t, marshalErr)
		require.NoError(t, json.Unmarshal(dataBytes, &responseBody))

		assert.True(t, responseBody.Retired)
		assert.Equal(t, int64(12_000_000), responseBody.CurrentBookValueCents)

		mockService.AssertExpectations(t)
	})

	t.Run("InvalidAssetID", func(t *testing.T) {
		mockService := new(MockAdminService)
		handler := NewAssetHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/hospitals/:hospital_id/assets/:asset_id/retire", handler.Retire)

		req, _ := http.NewRequest(http.MethodPost, "/hospitals/"+uuid.New().String()+"/assets/not-a-uuid/retire", nil)
		req.Header.Set(ActorHeader, "cfo@stmarys")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("AssetNotFound", func(t *testing.T) {
		mockService := new(MockAdminService)
		handler := NewAssetHandler(logger, mockService)

		hospitalID := uuid.New()
		assetID := uuid.New()
		mockService.On("RetireAsset", mock.Anything, hospitalID, assetID, "cfo@stmarys").
			Return(nil, asset.ErrAssetNotFound{AssetID: assetID})

		router := setupTestRouter()
		router.POST("/hospitals/:hospital_id/assets/:asset_id/retire", handler.Retire)

		req, _ := http.NewRequest(http.MethodPost, "/hospitals/"+hospitalID.String()+"/assets/"+assetID.String()+"/retire", nil)
		req.Header.Set(ActorHeader, "cfo@stmarys")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestAssetHandler_List(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAdminService)
		handler := NewAssetHandler(logger, mockService)

		hospitalID := uuid.New()
		assets := []*asset.FixedAsset{
			{ID: uuid.New(), HospitalID: hospitalID, Name: "MRI Scanner", CurrentBookValueCents: 90_000_000},
			{ID: uuid.New(), HospitalID: hospitalID, Name: "Ambulance", CurrentBookValueCents: 4_500_000},
		}
		mockService.On("ListAssets", mock.Anything, hospitalID).Return(assets, nil)

		router := setupTestRouter()
		router.GET("/hospitals/:hospital_id/assets", handler.List)

		req, _ := http.NewRequest(http.MethodGet, "/hospitals/"+hospitalID.String()+"/assets", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var topLevelResponse Response
		err := json.Unmarshal(rr.Body.Bytes(), &topLevelResponse)
		assert.NoError(t, err)
		require.NotNil(t, topLevelResponse.Data)

		var responseBody []asset.FixedAsset
		dataBytes, marshalErr := json.Marshal(topLevelResponse.Data)
		require.NoError(t, marshalErr)
		require.NoError(t, json.Unmarshal(dataBytes, &responseBody))

		require.Len(t, responseBody, 2)
		assert.Equal(t, "MRI Scanner", responseBody[0].Name)
		assert.Equal(t, "Ambulance", responseBody[1].Name)

		mockService.AssertExpectations(t)
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockAdminService)
		handler := NewAssetHandler(logger, mockService)

		hospitalID := uuid.New()
		mockService.On("ListAssets", mock.Anything, hospitalID).Return(nil, errors.New("database connection lost"))

		router := setupTestRouter()
		router.GET("/hospitals/:hospital_id/assets", handler.List)

		req, _ := http.NewRequest(http.MethodGet, "/hospitals/"+hospitalID.String()+"/assets", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		mockService.AssertExpectations(t)
	})
}
