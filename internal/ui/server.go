package ui

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tablesender/internal/models"
	"tablesender/internal/protocol"
	"tablesender/internal/state"
	"tablesender/internal/transport"
)

// Connectivity is the slice of the connection manager the facade needs.
type Connectivity interface {
	State() transport.State
	Endpoint() *transport.Endpoint
	Rescan()
}

// Server is the local HTTP facade the presentation layer talks to. It only
// consumes derived state and forwards user intents; all authoritative state
// lives on the backend and arrives through snapshots.
type Server struct {
	router  *gin.Engine
	store   *state.Store
	conn    Connectivity
	encoder *protocol.Encoder

	mu      sync.Mutex
	lastErr string
}

// NewServer creates the facade and configures its routes.
func NewServer(store *state.Store, conn Connectivity, encoder *protocol.Encoder) *Server {
	s := &Server{
		router:  gin.Default(),
		store:   store,
		conn:    conn,
		encoder: encoder,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/menu", s.handleMenu)
		api.GET("/ingredients", s.handleIngredients)
		api.GET("/tables", s.handleTables)
		api.GET("/tables/:table/order", s.handleTableOrder)
		api.POST("/tables/:table/items", s.handleAddItem)
		api.POST("/tables/:table/items/:index/remove", s.handleRemoveItem)
		api.POST("/tables/:table/items/:index/modify", s.handleModifyItem)
		api.POST("/refresh", s.handleRefresh)
		api.POST("/rescan", s.handleRescan)
	}
}

// Router returns the Gin router.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// SetAppError records the latest application-level error frame so the
// presentation layer can surface it. It does not affect connection state or
// stored collections.
func (s *Server) SetAppError(message string) {
	s.mu.Lock()
	s.lastErr = message
	s.mu.Unlock()
}

func (s *Server) handleStatus(c *gin.Context) {
	s.mu.Lock()
	lastErr := s.lastErr
	s.mu.Unlock()

	status := gin.H{
		"state":       s.conn.State().String(),
		"connected":   s.conn.State() == transport.StateConnected,
		"totalTables": s.store.TableCount(),
	}
	if ep := s.conn.Endpoint(); ep != nil {
		status["endpoint"] = ep.URL()
	}
	if lastErr != "" {
		status["lastError"] = lastErr
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleMenu(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"menu": s.store.Menu()})
}

func (s *Server) handleIngredients(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ingredients": s.store.Ingredients()})
}

func (s *Server) handleTables(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"totalTables": s.store.TableCount(),
		"occupied":    s.store.TablesWithOrders(),
	})
}

func (s *Server) handleTableOrder(c *gin.Context) {
	table, ok := s.tableParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order": s.store.AggregatedOrder(table),
		"total": s.store.OrderTotal(table),
	})
}

// AddItemRequest selects a menu item and optional supplements for a table.
type AddItemRequest struct {
	ID          string   `json:"id" binding:"required"`
	Supplements []string `json:"supplements"`
}

func (s *Server) handleAddItem(c *gin.Context) {
	table, ok := s.tableParam(c)
	if !ok {
		return
	}

	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	menuItem, found := s.store.MenuItem(req.ID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown menu item: " + req.ID})
		return
	}

	item := orderItemFromMenu(menuItem, req.Supplements)
	if !s.encoder.AddItem(table, item) {
		s.replyNotConnected(c)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sent": true})
}

func (s *Server) handleRemoveItem(c *gin.Context) {
	table, item, _, ok := s.itemAt(c)
	if !ok {
		return
	}
	if !s.encoder.RemoveItem(table, item) {
		s.replyNotConnected(c)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sent": true})
}

// ModifyItemRequest carries ingredient deltas and supplement selection for an
// already-ordered item.
type ModifyItemRequest struct {
	IngredientsRemoved []string `json:"ingredientsRemoved"`
	IngredientsAdded   []string `json:"ingredientsAdded"`
	Supplements        []string `json:"supplements"`
}

func (s *Server) handleModifyItem(c *gin.Context) {
	table, item, index, ok := s.itemAt(c)
	if !ok {
		return
	}

	var req ModifyItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	parent, found := s.store.FindParentOrder(table, index)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no order owns that item"})
		return
	}

	sent, err := s.encoder.ModifyItem(parent, item, req.IngredientsRemoved, req.IngredientsAdded, req.Supplements)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if !sent {
		s.replyNotConnected(c)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sent": true})
}

func (s *Server) handleRefresh(c *gin.Context) {
	if !s.encoder.RequestState() {
		s.replyNotConnected(c)
		return
	}
	s.encoder.RequestMenu()
	s.encoder.RequestIngredients()
	c.JSON(http.StatusAccepted, gin.H{"sent": true})
}

func (s *Server) handleRescan(c *gin.Context) {
	s.conn.Rescan()
	c.JSON(http.StatusAccepted, gin.H{"state": s.conn.State().String()})
}

func (s *Server) tableParam(c *gin.Context) (int, bool) {
	table, err := strconv.Atoi(c.Param("table"))
	if err != nil || table < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid table number"})
		return 0, false
	}
	return table, true
}

// itemAt resolves the :table/:index pair to the item in the flattened
// aggregated order.
func (s *Server) itemAt(c *gin.Context) (int, models.OrderItem, int, bool) {
	table, ok := s.tableParam(c)
	if !ok {
		return 0, models.OrderItem{}, 0, false
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item index"})
		return 0, models.OrderItem{}, 0, false
	}

	agg := s.store.AggregatedOrder(table)
	if index >= len(agg.Items) {
		c.JSON(http.StatusNotFound, gin.H{"error": "item index out of range"})
		return 0, models.OrderItem{}, 0, false
	}
	return table, agg.Items[index], index, true
}

func (s *Server) replyNotConnected(c *gin.Context) {
	c.JSON(http.StatusBadGateway, gin.H{"error": "not connected to backend"})
}

// orderItemFromMenu builds the intent item for a menu selection. The price is
// provisional (menu price plus selected supplements); the server-confirmed
// price arriving in the next snapshot is the billing truth.
func orderItemFromMenu(menuItem models.MenuItem, supplements []string) models.OrderItem {
	price := menuItem.Price
	for _, id := range supplements {
		for _, sup := range menuItem.Supplements {
			if sup.ID == id {
				price += sup.Price
				break
			}
		}
	}
	return models.OrderItem{
		ID:          menuItem.ID,
		Name:        menuItem.Name,
		Price:       price,
		Ingredients: menuItem.Ingredients,
		Supplements: supplements,
	}
}
