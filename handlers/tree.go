package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zms-erp/ledgertree/export"
	"github.com/zms-erp/ledgertree/hierarchy"
	"github.com/zms-erp/ledgertree/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// RowResponse is one visible line of a rendered tree
type RowResponse struct {
	Key         string          `json:"key"`
	ID          string          `json:"id,omitempty"`
	ListID      string          `json:"listid"`
	Description string          `json:"description"`
	Kind        models.NodeKind `json:"kind"`
	Level       int             `json:"level"`
	HasChildren bool            `json:"hasChildren"`
	Expanded    bool            `json:"expanded"`
}

// ListCategories returns the configured categories
func (h *AccountHandler) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.svc.Categories()})
}

// GetTree returns the tree of a category.
//
// Query parameters:
//   - q: keep only roots whose list id or description contains q
//   - expanded: comma separated node keys, or "all"; when present the
//     response holds the visible rows instead of the nested tree
//   - format: "text" renders the visible rows as indented text
func (h *AccountHandler) GetTree(c *gin.Context) {
	category := models.Category(c.Param("category"))
	view, err := h.svc.Tree(c.Request.Context(), category, c.Query("q"))
	if err != nil {
		writeError(c, err)
		return
	}

	expanded, hasExpanded := c.GetQuery("expanded")
	format := c.Query("format")
	if !hasExpanded && format != "text" {
		c.JSON(http.StatusOK, view)
		return
	}

	var state *hierarchy.ExpandState
	if expanded == "all" {
		state = hierarchy.NewExpandState()
		state.ExpandAll(view.Roots)
	} else {
		keys := strings.Split(expanded, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
		state = hierarchy.NewExpandState(keys...)
	}
	rows := hierarchy.Render(view.Roots, state)

	if format == "text" {
		c.String(http.StatusOK, hierarchy.RenderText(rows))
		return
	}

	out := make([]RowResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, RowResponse{
			Key:         hierarchy.NodeKey(r.Node),
			ID:          r.Node.ID,
			ListID:      r.Node.ListID,
			Description: r.Node.Description,
			Kind:        r.Node.Kind,
			Level:       r.Level,
			HasChildren: r.HasChildren,
			Expanded:    r.Expanded,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"category": view.Category,
		"stale":    view.Stale,
		"expanded": state.Keys(),
		"rows":     out,
	})
}

// RefreshCategory refetches a category from the backend
func (h *AccountHandler) RefreshCategory(c *gin.Context) {
	category := models.Category(c.Param("category"))
	if err := h.svc.Refresh(c.Request.Context(), category); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportTree returns the tree of a category as an Excel workbook
func (h *AccountHandler) ExportTree(c *gin.Context) {
	ctx := c.Request.Context()
	category := models.Category(c.Param("category"))
	def, err := h.svc.Category(category)
	if err != nil {
		writeError(c, err)
		return
	}
	view, err := h.svc.Tree(ctx, category, c.Query("q"))
	if err != nil {
		writeError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteTree(&buf, def, view.Roots); err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, def.Category))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// CreateAccount creates a top-level account, or a child when
// parentAccountId is set
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req models.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	category := models.Category(c.Param("category"))
	var (
		created models.Account
		err     error
	)
	if req.ParentAccountID == nil {
		created, err = h.svc.Add(ctx, category, req.Description)
	} else {
		created, err = h.svc.AddChild(ctx, category, *req.ParentAccountID, req.Description)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": created})
}

// UpdateAccount renames an account
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	var req models.UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category := models.Category(c.Param("category"))
	updated, err := h.svc.Edit(c.Request.Context(), category, c.Param("id"), req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": updated})
}

// DeleteAccount deletes an account with its descendants
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	category := models.Category(c.Param("category"))
	if err := h.svc.Delete(c.Request.Context(), category, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
