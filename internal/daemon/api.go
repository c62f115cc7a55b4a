package daemon

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/theirongolddev/restock/internal/pipeline"
)

func (s *Service) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := r.Group("/v1")
	v1.GET("/status", s.handleStatus)
	v1.GET("/events", s.handleEvents)
	v1.GET("/sse", s.handleSSE)
	v1.GET("/stream", s.handleWebSocket)
	v1.GET("/summary", s.handleSummary)

	items := v1.Group("/items")
	items.GET("", s.handleListItems)
	items.POST("", s.handleAddItem)
	items.GET("/:id", s.handleGetItem)
	items.PATCH("/:id", s.handleUpdateItem)
	items.DELETE("/:id", s.handleDeleteItem)
	items.GET("/:id/history", s.handleHistory)
	items.POST("/:id/quantity", s.handleRecordQuantity)
	items.POST("/:id/consume", s.handleConsume)

	receipts := v1.Group("/receipts")
	receipts.GET("", s.handleListReceipts)
	receipts.POST("", s.handleSubmitReceipt)
	receipts.GET("/:id", s.handleGetReceipt)
	receipts.POST("/:id/reconcile", s.handleReconcileReceipt)

	shopping := v1.Group("/shopping-list")
	shopping.GET("", s.handleShoppingList)
	shopping.POST("/refresh", s.handleRefreshShoppingList)
	shopping.POST("/:id/purchase", s.handlePurchase)

	return r
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeError maps engine errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	var verr *pipeline.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Fields: verr.Fields})
	case errors.Is(err, pipeline.ErrValidation):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, pipeline.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, pipeline.ErrReceiptAlreadyProcessed), errors.Is(err, pipeline.ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
		return false
	}
	return true
}

func (s *Service) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok\n")
}

func (s *Service) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshotStatus())
}

func (s *Service) handleEvents(c *gin.Context) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	c.JSON(http.StatusOK, events)
}

func (s *Service) handleSummary(c *gin.Context) {
	sum, err := s.engine.Summary(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Service) handleListItems(c *gin.Context) {
	items, err := s.engine.Items(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Service) handleAddItem(c *gin.Context) {
	var req pipeline.NewItem
	if !bindJSON(c, &req) {
		return
	}
	v, err := s.engine.AddItem(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (s *Service) handleGetItem(c *gin.Context) {
	v, err := s.engine.Item(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Service) handleUpdateItem(c *gin.Context) {
	var req pipeline.ItemSettings
	if !bindJSON(c, &req) {
		return
	}
	v, err := s.engine.UpdateItemSettings(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Service) handleDeleteItem(c *gin.Context) {
	if err := s.engine.DeleteItem(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Service) handleHistory(c *gin.Context) {
	h, err := s.engine.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

type quantityRequest struct {
	Quantity *float64 `json:"quantity"`
}

func (s *Service) handleRecordQuantity(c *gin.Context) {
	var req quantityRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Quantity == nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "quantity is required"})
		return
	}
	v, err := s.engine.RecordQuantity(c.Request.Context(), c.Param("id"), *req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type consumeRequest struct {
	Amount float64 `json:"amount"`
}

func (s *Service) handleConsume(c *gin.Context) {
	req := consumeRequest{Amount: 1}
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	v, err := s.engine.Consume(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Service) handleListReceipts(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	list, err := s.engine.Receipts(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Service) handleSubmitReceipt(c *gin.Context) {
	var req pipeline.ReceiptSubmission
	if !bindJSON(c, &req) {
		return
	}
	rep, err := s.engine.SubmitReceipt(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rep)
}

func (s *Service) handleGetReceipt(c *gin.Context) {
	r, err := s.engine.Receipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Service) handleReconcileReceipt(c *gin.Context) {
	rep, err := s.engine.ReconcileReceipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *Service) handleShoppingList(c *gin.Context) {
	all := c.Query("all") == "true"
	list, err := s.engine.ShoppingList(c.Request.Context(), all)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Service) handleRefreshShoppingList(c *gin.Context) {
	changes, err := s.engine.RefreshShoppingList(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if changes == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	c.JSON(http.StatusOK, changes)
}

func (s *Service) handlePurchase(c *gin.Context) {
	en, err := s.engine.MarkPurchased(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, en)
}
