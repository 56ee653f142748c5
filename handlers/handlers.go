package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/zms-erp/ledgertree/client"
	"github.com/zms-erp/ledgertree/hierarchy"
	"github.com/zms-erp/ledgertree/service"
)

// AccountHandler handles chart-of-accounts HTTP requests
type AccountHandler struct {
	svc *service.AccountService
}

// NewAccountHandler creates a new AccountHandler instance
func NewAccountHandler(svc *service.AccountService) *AccountHandler {
	return &AccountHandler{
		svc: svc,
	}
}

// RegisterRoutes mounts every route under /api
func (h *AccountHandler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")
	{
		api.GET("/categories", h.ListCategories)
		api.GET("/categories/:category/tree", h.GetTree)
		api.POST("/categories/:category/refresh", h.RefreshCategory)
		api.GET("/categories/:category/export", h.ExportTree)
		api.POST("/categories/:category/accounts", h.CreateAccount)
		api.PUT("/categories/:category/accounts/:id", h.UpdateAccount)
		api.DELETE("/categories/:category/accounts/:id", h.DeleteAccount)

		api.GET("/ledger/search", h.SearchLedger)
		api.GET("/ledger/drilldown", h.DrillDown)
		api.GET("/ledger/accounts/:id/path", h.LedgerPath)
		api.POST("/opening-balances", h.CreateOpeningBalance)

		api.PATCH("/resources/:resource/status", h.UpdateStatus)
	}
}

// statusFor maps service and backend errors to HTTP status codes
func statusFor(err error) int {
	var apiErr *client.APIError
	var urlErr *url.Error
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrCategoryHeader),
		errors.Is(err, service.ErrNotLeaf):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnknownCategory),
		errors.Is(err, hierarchy.ErrNodeNotFound),
		errors.Is(err, client.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &apiErr), errors.As(err, &urlErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
