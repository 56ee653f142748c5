package lambda

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zms-erp/ledgertree/cache"
	"github.com/zms-erp/ledgertree/client"
	"github.com/zms-erp/ledgertree/config"
	"github.com/zms-erp/ledgertree/handlers"
	"github.com/zms-erp/ledgertree/internal/fakebackend"
	"github.com/zms-erp/ledgertree/internal/logging"
	"github.com/zms-erp/ledgertree/models"
	"github.com/zms-erp/ledgertree/repository"
	"github.com/zms-erp/ledgertree/service"
)

func setupHandler(t *testing.T) (*Handler, *fakebackend.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := fakebackend.New()
	t.Cleanup(backend.Close)
	backend.Seed("liabilities",
		models.Account{ID: "7", ListID: "20", Description: "Loans"},
		models.Account{ID: "8", ListID: "20.1", Description: "Bank Loan", ParentAccountID: models.StringPtr("7")},
	)

	cache.ResetProvider()
	require.NoError(t, cache.SetProvider(cache.NewMemoryCache()))
	t.Cleanup(cache.ResetProvider)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	c := client.New(&config.BackendConfig{
		BaseURL:    backend.URL,
		PageSize:   10,
		PagePolicy: config.PagePolicyOffset,
		Timeout:    5 * time.Second,
	}, client.WithLogger(logger))
	svc := service.NewAccountService(c, repository.NewMemoryRepository(), models.DefaultCategories, service.WithLogger(logger))

	router := gin.New()
	router.Use(logging.RequestID())
	handlers.NewAccountHandler(svc).RegisterRoutes(router)
	return NewHandler(router, logger), backend
}

func TestHandleGetTree(t *testing.T) {
	h, backend := setupHandler(t)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:     http.MethodGet,
		Path:           "/api/categories/liabilities/tree",
		RequestContext: events.APIGatewayProxyRequestContext{RequestID: "gw-1"},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, resp.IsBase64Encoded)

	var view service.TreeView
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &view))
	require.Len(t, view.Roots, 1)
	assert.Equal(t, "Loans", view.Roots[0].Children[0].Description)
	assert.Equal(t, "gw-1", resp.Headers[http.CanonicalHeaderKey(client.RequestIDHeader)])
	assert.Equal(t, "gw-1", backend.LastRequestID())
}

func TestHandleQueryAndBody(t *testing.T) {
	h, backend := setupHandler(t)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:            http.MethodGet,
		Path:                  "/api/ledger/search",
		QueryStringParameters: map[string]string{"q": "bank"},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Body, "Loans → Bank Loan")

	body := base64.StdEncoding.EncodeToString([]byte(`{"description":"Overdraft","parentAccountId":"7"}`))
	resp, err = h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            "/api/categories/liabilities/accounts",
		Headers:         map[string]string{"Content-Type": "application/json"},
		Body:            body,
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Len(t, backend.Accounts("liabilities"), 3)
}

func TestHandleBinaryAndErrors(t *testing.T) {
	h, _ := setupHandler(t)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       "/api/categories/liabilities/export",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.IsBase64Encoded)
	data, err := base64.StdEncoding.DecodeString(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "PK", string(data[:2]), "xlsx is a zip archive")

	resp, err = h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       "/api/categories/equity/tree",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            "/api/opening-balances",
		Body:            "%%%",
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
