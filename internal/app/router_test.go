package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tuition/internal/config"
	"tuition/internal/handler"
	"tuition/internal/metrics"
	"tuition/internal/middleware"
	internalRedis "tuition/internal/redis"
	"tuition/internal/repository/sqlstore"
	"tuition/internal/repository/sqlstore/sqlstoretest"
	"tuition/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFixture struct {
	router *gin.Engine
	fx     *sqlstoretest.Fixture
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()

	db := sqlstoretest.NewDB(t)
	fx := sqlstoretest.Seed(t, db)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	creds, err := middleware.NewAdminCredentials(config.AdminConfig{Username: "admin", PasswordHash: string(hash)})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()

	paymentService := service.NewPaymentService(service.PaymentServiceDeps{
		TxManager:    sqlstore.NewStore(db, sqlstore.DialectSQLite),
		Ledger:       sqlstore.NewLedger(db),
		Payments:     sqlstore.NewPaymentRepository(db),
		Policy:       service.DefaultSurchargePolicy(),
		Notification: service.NewNotificationService(logger),
		Metrics:      m,
		Logger:       logger,
	})

	router := NewRouter(RouterDeps{
		PaymentHandler: handler.NewPaymentHandler(paymentService),
		StudentHandler: handler.NewStudentHandler(service.NewStudentService(sqlstore.NewStudentRepository(db, sqlstore.DialectSQLite))),
		Credentials:    creds,
		ResponseCache:  internalRedis.NewCacheStore(client),
		LockStore:      internalRedis.NewLockStore(client),
		Metrics:        m,
		Logger:         logger,
	})

	return &apiFixture{router: router, fx: fx}
}

func (a *apiFixture) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.SetBasicAuth("admin", "s3cret")
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func paymentBody(parentID, studentID int64, amount string) string {
	return fmt.Sprintf(`{"parent_id":%d,"student_id":%d,"amount":%s}`, parentID, studentID, amount)
}

func TestPublicRoutes(t *testing.T) {
	api := newAPI(t)

	for path, want := range map[string]string{
		"/":        "Payment Service is running",
		"/health":  `"status":"ok"`,
		"/metrics": "go_goroutines",
	} {
		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), want, path)
	}
}

func TestV1RequiresAdmin(t *testing.T) {
	api := newAPI(t)

	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/students", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProcessPayment_Success(t *testing.T) {
	api := newAPI(t)

	rec := api.do(t, http.MethodPost, "/v1/payments", paymentBody(api.fx.ParentA.ID, api.fx.SharedStudent.ID, "100"), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp handler.PaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "SUCCESS", resp.Status)
	assert.Equal(t, "105", resp.ChargedAmount.String())
	assert.Equal(t, "Payment processed successfully.", resp.Description)

	rec = api.do(t, http.MethodGet, "/v1/students", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var students []handler.StudentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &students))
	require.Len(t, students, 3)
	assert.Equal(t, "100", students[0].Balance.String())
	assert.ElementsMatch(t, []int64{api.fx.ParentA.ID, api.fx.ParentB.ID}, students[0].ParentIDs)

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/v1/payments/%d/receipt", resp.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CHARGED:          $105.00")
}

func TestProcessPayment_ErrorMapping(t *testing.T) {
	api := newAPI(t)

	tests := []struct {
		name       string
		body       string
		wantCode   int
		wantReason string
	}{
		{"unknown parent", paymentBody(9999, api.fx.StudentA.ID, "10"), http.StatusNotFound, "PARENT_NOT_FOUND"},
		{"unknown student", paymentBody(api.fx.ParentA.ID, 9999, "10"), http.StatusNotFound, "STUDENT_NOT_FOUND"},
		{"not associated", paymentBody(api.fx.ParentA.ID, api.fx.StudentB.ID, "10"), http.StatusForbidden, "NOT_ASSOCIATED"},
		{"insufficient", paymentBody(api.fx.ParentA.ID, api.fx.StudentA.ID, "1000"), http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"},
		{"zero amount", paymentBody(api.fx.ParentA.ID, api.fx.StudentA.ID, "0"), http.StatusBadRequest, "INVALID_AMOUNT"},
		{"string amount accepted", paymentBody(api.fx.ParentA.ID, api.fx.StudentA.ID, `"-1.50"`), http.StatusBadRequest, "INVALID_AMOUNT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/v1/payments", tt.body, nil)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			var resp handler.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantReason, string(resp.Reason))
			assert.NotZero(t, resp.PaymentID)
			assert.NotEmpty(t, resp.Error)
		})
	}

	rec := api.do(t, http.MethodGet, "/v1/payments", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ledger []handler.PaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ledger))
	assert.Len(t, ledger, len(tests))
	for _, record := range ledger {
		assert.Equal(t, "FAILED", record.Status)
	}
}

func TestProcessPayment_MalformedBody(t *testing.T) {
	api := newAPI(t)

	for _, body := range []string{`not json`, `{"parent_id":1,"student_id":2}`, `{"student_id":2,"amount":10}`} {
		rec := api.do(t, http.MethodPost, "/v1/payments", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec := api.do(t, http.MethodGet, "/v1/payments", "", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestProcessPayment_IdempotencyKey(t *testing.T) {
	api := newAPI(t)
	headers := map[string]string{"Idempotency-Key": "retry-1"}
	body := paymentBody(api.fx.ParentA.ID, api.fx.StudentA.ID, "100")

	first := api.do(t, http.MethodPost, "/v1/payments", body, headers)
	second := api.do(t, http.MethodPost, "/v1/payments", body, headers)

	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	rec := api.do(t, http.MethodGet, fmt.Sprintf("/v1/payments?parent_id=%d", api.fx.ParentA.ID), "", nil)
	var ledger []handler.PaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ledger))
	assert.Len(t, ledger, 1)
}

func TestGetPayment_Errors(t *testing.T) {
	api := newAPI(t)

	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodGet, "/v1/payments/abc", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodGet, "/v1/payments/0", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/v1/payments/42", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/v1/payments/42/receipt", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodGet, "/v1/payments?parent_id=x", "", nil).Code)
}
