package livehttp

import (
	"context"
	"net/http"
	"strconv"

	"gridbot/internal/engine"
	"gridbot/internal/filter"
	"gridbot/internal/store"

	"github.com/gin-gonic/gin"
)

// StatusProvider 由 engine.Engine 实现。
type StatusProvider interface {
	Status() engine.Status
	LastVerdict() (filter.Verdict, bool)
}

// HistoryReader 为交易历史的只读视图。
type HistoryReader interface {
	ListEntries(ctx context.Context, limit int) ([]store.EntryRecord, error)
	ListCloses(ctx context.Context, limit int) ([]store.CloseRecord, error)
	ListRiskEvents(ctx context.Context, limit int) ([]store.RiskEventRecord, error)
}

type Router struct {
	engine  StatusProvider
	history HistoryReader
}

func NewRouter(e StatusProvider, history HistoryReader) *Router {
	return &Router{engine: e, history: history}
}

// Register 将接口挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.GET("/verdict", r.handleVerdict)
	group.GET("/entries", r.handleEntries)
	group.GET("/closes", r.handleCloses)
	group.GET("/risk-events", r.handleRiskEvents)
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.engine.Status())
}

func (r *Router) handleVerdict(c *gin.Context) {
	v, ok := r.engine.LastVerdict()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no verdict yet"})
		return
	}
	denials := v.Denials()
	if denials == nil {
		denials = []filter.Result{}
	}
	c.JSON(http.StatusOK, gin.H{
		"variant": v.Variant,
		"at":      v.At,
		"allowed": v.Allowed(),
		"summary": v.String(),
		"results": v.Results,
		"denials": denials,
	})
}

func (r *Router) handleEntries(c *gin.Context) {
	if !r.historyEnabled(c) {
		return
	}
	rows, err := r.history.ListEntries(c.Request.Context(), queryLimit(c))
	respondList(c, rows, err)
}

func (r *Router) handleCloses(c *gin.Context) {
	if !r.historyEnabled(c) {
		return
	}
	rows, err := r.history.ListCloses(c.Request.Context(), queryLimit(c))
	respondList(c, rows, err)
}

func (r *Router) handleRiskEvents(c *gin.Context) {
	if !r.historyEnabled(c) {
		return
	}
	rows, err := r.history.ListRiskEvents(c.Request.Context(), queryLimit(c))
	respondList(c, rows, err)
}

func (r *Router) historyEnabled(c *gin.Context) bool {
	if r.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "交易历史未启用"})
		return false
	}
	return true
}

func respondList[T any](c *gin.Context, rows []T, err error) {
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rows == nil {
		rows = []T{}
	}
	c.JSON(http.StatusOK, gin.H{"items": rows, "count": len(rows)})
}

func queryLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return limit
}
