package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"riskadmin/internal/db"
)

var (
	routerMu sync.RWMutex
	router   *gin.Engine
)

// SetRouter stores the active gin engine for later inspection (e.g., /api/routes).
func SetRouter(r *gin.Engine) {
	routerMu.Lock()
	defer routerMu.Unlock()
	router = r
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DBCheck pings the store and reports whether the workflow tables exist.
func DBCheck(database *db.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if database == nil {
			respondError(c, http.StatusServiceUnavailable, "db_unavailable", "database not connected", nil)
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := database.Ping(ctx); err != nil {
			respondError(c, http.StatusServiceUnavailable, "db_unavailable", "database ping failed: "+err.Error(), nil)
			return
		}
		tables := gin.H{}
		for _, t := range []string{"workflow_audit", "outbox_events"} {
			ok, err := database.HasTable(ctx, t)
			if err != nil {
				RespondDomainError(c, err)
				return
			}
			tables[t] = ok
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "driver": database.Dialect.Name(), "tables": tables})
	}
}

func Routes(c *gin.Context) {
	routerMu.RLock()
	r := router
	routerMu.RUnlock()
	if r == nil {
		respondError(c, http.StatusServiceUnavailable, "not_ready", "router not ready", nil)
		return
	}

	routes := r.Routes()
	out := make([]gin.H, 0, len(routes))
	for _, rt := range routes {
		out = append(out, gin.H{
			"method": rt.Method,
			"path":   rt.Path,
		})
	}
	c.JSON(http.StatusOK, gin.H{"routes": out})
}
