package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zms-erp/ledgertree/models"
)

// SearchLedger searches leaf accounts across every category
func (h *AccountHandler) SearchLedger(c *gin.Context) {
	results, err := h.svc.SearchLedger(c.Request.Context(), c.Query("q"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": results})
}

// DrillDown replays the picks in the comma separated path parameter and
// returns the next level of options
func (h *AccountHandler) DrillDown(c *gin.Context) {
	var keys []string
	if path := c.Query("path"); path != "" {
		keys = strings.Split(path, ",")
	}
	sel, err := h.svc.DrillDown(c.Request.Context(), keys)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sel)
}

// LedgerPath restores the picker for a stored account id
func (h *AccountHandler) LedgerPath(c *gin.Context) {
	sel, err := h.svc.LedgerPath(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sel)
}

// CreateOpeningBalance posts the opening entry of a leaf account
func (h *AccountHandler) CreateOpeningBalance(c *gin.Context) {
	var balance models.OpeningBalance
	if err := c.ShouldBindJSON(&balance); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.PostOpeningBalance(c.Request.Context(), balance); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": balance})
}

// UpdateStatus changes the status of many records of a resource. Each id
// gets its own outcome.
func (h *AccountHandler) UpdateStatus(c *gin.Context) {
	var req models.StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	outcomes, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("resource"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	failed := 0
	for _, o := range outcomes {
		if !o.OK {
			failed++
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": outcomes, "failed": failed})
}
