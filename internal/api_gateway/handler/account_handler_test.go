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

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hospital-accounting-ledger/internal/api_gateway/service"
	"github.com/hospital-accounting-ledger/internal/domain/account"
)

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) CreateAccount(ctx context.Context, hospitalID uuid.UUID, code, name string, accountType account.Type, actor string) (*account.Account, error) {
	args := m.Called(ctx, hospitalID, code, name, accountType, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountService) GetAccount(ctx context.Context, hospitalID uuid.UUID, code string) (*account.Account, error) {
	args := m.Called(ctx, hospitalID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountService) ListAccounts(ctx context.Context, hospitalID uuid.UUID) ([]*account.Account, error) {
	args := m.Called(ctx, hospitalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.Account), args.Error(1)
}

var _ service.AccountService = (*MockAccountService)(nil)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.Default()
	return r
}

func TestAccountHandler_Create(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAccountHandler(logger, mockService)

		hospitalID := uuid.New()
		now := time.Now()
		expectedAccount := &account.Account{
			ID:         uuid.New(),
			HospitalID: hospitalID,
			Code:       "1100",
			Name:       "Patient Receivables",
			Type:       account.TypeAsset,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		mockService.On("CreateAccount", mock.Anything, hospitalID, "1100", "Patient Receivables", account.TypeAsset, "cfo@stmarys").
			Return(expectedAccount, nil)

		router := setupTestRouter()
		router.POST("/hospitals/:hospital_id/accounts", handler.Create)

		reqBody := CreateAccountRequest{
			Code: "1100",
			Name: "Patient Receivables",
			Type: "ASSET",
		}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/hospitals/"+hospitalID.String()+"/accounts", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(ActorHeader, "cfo@stmarys")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var topLevelResponse Response
		err := json.Unmarshal(rr.Body.Bytes(), &topLevelResponse)
		assert.NoError(t, err, "Failed to unmarshal top-level response")
		require.NotNil(t, topLevelResponse.Data, "'data' field should not be nil")

		var responseBody AccountResponse
		dataBytes, marshalErr := json.Marshal(topLevelResponse.Data)
		require.NoError(t, marshalErr)
		require.NoError(t, json.Unmarshal(dataBytes, &responseBody))

		assert.Equal(t, expectedAccount.ID.String(), responseBody.ID)
		assert.Equal(t, "1100", responseBody.Code)
		assert.Equal(t, "ASSET", responseBody.Type)
		assert.Equal(t, "DEBIT", responseBody.NormalBalance)
		assert.Equal(t, int64(0), responseBody.BalanceCents)

		mockService.AssertExpectations(t)
	})

	t.Run("MissingActorHeader", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAccountHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/hospitals/:hospital_id/accounts", handler.Create)

		reqBody := CreateAccountRequest{Code: "1100", Name: "Patient Receivables", Type: "ASSET"}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/hospitals/"+uuid.New().String()+"/accounts", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidRequestBody", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAccountHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/hospitals/:hospital_id/accounts", handler.Create)

		req, _ := http.NewRequest(http.MethodPost, "/hospitals/"+uuid.New().String()+"/accounts", bytes.NewBufferString(`{"invalid`)) // Malformed JSON
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(ActorHeader, "cfo@stmarys")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t) // Ensure no service methods were called
	})

	t.Run("InvalidAccountType", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAccountHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/hospitals/:hospital_id/accounts", handler.Create)

		jsonBody, _ := json.Marshal(map[string]string{"code": "1100", "name": "Receivables", "type": "REVENUE"})

		req, _ := http.NewRequest(http.MethodPost, "/hospitals/"+uuid.New().String()+"/accounts", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(ActorHeader, "cfo@stmarys")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("DuplicateCode", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAccountHandler(logger, mockService)

		hospitalID := uuid.New()
		mockService.On("CreateAccount", mock.Anything, hospitalID, "1100", "Patient Receivables", account.TypeAsset, "cfo@stmarys").
			Return(nil, account.ErrDuplicateCode{Code: "1100"})

		router := setupTestRouter()
		router.POST("/hospitals/:hospital_id/accounts", handler.Create)

		reqBody := CreateAccountRequest{Code: "1100", Name: "Patient Receivables", Type: "ASSET"}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/hospitals/"+hospitalID.String()+"/accounts", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(ActorHeader, "cfo@stmarys")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)

		var response Response
		err := json.Unmarshal(rr.Body.Bytes(), &response)
		assert.NoError(t, err)
		require.NotNil(t, response.Error, "Error field in response should not be nil")
		assert.Equal(t, "Account with this code already exists", response.Error.Message)
		mockService.AssertExpectations(t)
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAccountHandler(logger, mockService)

		hospitalID := uuid.New()
		mockService.On("CreateAccount", mock.Anything, hospitalID, "5100", "Medical Supplies Expense", account.TypeExpense, "cfo@stmarys").
			Return(nil, errors.New("service unavailable"))

		router := setupTestRouter()
		router.POST("/hospitals/:hospital_id/accounts", handler.Create)

		reqBody := CreateAccountRequest{Code: "5100", Name: "Medical Supplies Expense", Type: "EXPENSE"}
		jsonBody, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/hospitals/"+hospitalID.String()+"/accounts", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(ActorHeader, "cfo@stmarys")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestAccountHandler_GetByCode(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAccountHandler(logger, mockService)

		hospitalID := uuid.New()
		now := time.Now()
		expectedAccount := &account.Account{
			ID:           uuid.New(),
			HospitalID:   hospitalID,
			Code:         "2100",
			Name:         "Accounts Payable",
			Type:         account.TypeLiability,
			BalanceCents: 425000,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		mockService.On("GetAccount", mock.Anything, hospitalID, "2100").Return(expectedAccount, nil)

		router := setupTestRouter()
		router.GET("/hospitals/:hospital_id/accounts/:code", handler.GetByCode)

		req, _ := http.NewRequest(http.MethodGet, "/hospitals/"+hospitalID.String()+"/accounts/2100", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var topLevelResponse Response
		err := json.Unmarshal(rr.Body.Bytes(), &topLevelResponse)
		assert.NoError(t, err)
		require.NotNil(t, topLevelResponse.Data)

		var responseBody AccountResponse
		dataBytes, marshalErr := json.Marshal(topLevelResponse.Data)
		require.NoError(t, marshalErr)
		require.NoError(t, json.Unmarshal(dataBytes, &responseBody))

		assert.Equal(t, "2100", responseBody.Code)
		assert.Equal(t, "CREDIT", responseBody.NormalBalance)
		assert.Equal(t, int64(425000), responseBody.BalanceCents)

		mockService.AssertExpectations(t)
	})

	t.Run("InvalidHospitalID", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAccountHandler(logger, mockService)

		router := setupTestRouter()
		router.GET("/hospitals/:hospital_id/accounts/:code", handler.GetByCode)

		req, _ := http.NewRequest(http.MethodGet, "/hospitals/not-a-uuid/accounts/2100", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t) // No service calls expected
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAccountHandler(logger, mockService)

		hospitalID := uuid.New()
		mockService.On("GetAccount", mock.Anything, hospitalID, "9999").
			Return(nil, account.ErrAccountNotFound{Code: "9999"})

		router := setupTestRouter()
		router.GET("/hospitals/:hospital_id/accounts/:code", handler.GetByCode)

		req, _ := http.NewRequest(http.MethodGet, "/hospitals/"+hospitalID.String()+"/accounts/9999", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestAccountHandler_List(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAccountHandler(logger, mockService)

		hospitalID := uuid.New()
		accounts := []*account.Account{
			{ID: uuid.New(), HospitalID: hospitalID, Code: "1000", Name: "Cash", Type: account.TypeAsset},
			{ID: uuid.New(), HospitalID: hospitalID, Code: "4100", Name: "Patient Service Revenue", Type: account.TypeIncome},
		}
		mockService.On("ListAccounts", mock.Anything, hospitalID).Return(accounts, nil)

		router := setupTestRouter()
		router.GET("/hospitals/:hospital_id/accounts", handler.List)

		req, _ := http.NewRequest(http.MethodGet, "/hospitals/"+hospitalID.String()+"/accounts", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var topLevelResponse Response
		err := json.Unmarshal(rr.Body.Bytes(), &topLevelResponse)
		assert.NoError(t, err)
		require.NotNil(t, topLevelResponse.Data)

		var responseBody []AccountResponse
		dataBytes, marshalErr := json.Marshal(topLevelResponse.Data)
		require.NoError(t, marshalErr)
		require.NoError(t, json.Unmarshal(dataBytes, &responseBody))

		require.Len(t, responseBody, 2)
		assert.Equal(t, "1000", responseBody[0].Code)
		assert.Equal(t, "4100", responseBody[1].Code)

		mockService.AssertExpectations(t)
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAccountHandler(logger, mockService)

		hospitalID := uuid.New()
		mockService.On("ListAccounts", mock.Anything, hospitalID).Return(nil, errors.New("database connection lost"))

		router := setupTestRouter()
		router.GET("/hospitals/:hospital_id/accounts", handler.List)

		req, _ := http.NewRequest(http.MethodGet, "/hospitals/"+hospitalID.String()+"/accounts", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		mockService.AssertExpectations(t)
	})
}
