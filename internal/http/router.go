package api

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"

	intconfig "riskadmin/internal/config"
	"riskadmin/internal/db"
	h "riskadmin/internal/http/handlers"
	"riskadmin/internal/http/middleware"
	"riskadmin/internal/repositories"
	"riskadmin/internal/services"
	"riskadmin/internal/utils"
)

// mounter is an entity handler of any model type.
type mounter interface {
	Mount(g *gin.RouterGroup, mutate ...gin.HandlerFunc)
}

func entityHandler[T any](repo *repositories.Repository[T]) mounter {
	return h.NewEntityHandler(services.NewEntityService(repo))
}

func NewRouter(env intconfig.Env, database *db.Database, repos *repositories.Set) *gin.Engine {
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(),
		gin.Recovery(),
		middleware.CORS(env.CORSAllowedOrigins),
		middleware.Actor(env.JWTSecret),
	)

	if err := r.SetTrustedProxies(nil); err != nil {
		utils.LogEvent("", "http", "trusted_proxies", "failed to set trusted proxies: "+err.Error())
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/db-check", h.DBCheck(database))
		api.GET("/routes", h.Routes)

		entities := map[string]mounter{
			"clients":         entityHandler(repos.Clients),
			"brokers":         entityHandler(repos.Brokers),
			"exchanges":       entityHandler(repos.Exchanges),
			"stocks":          entityHandler(repos.Stocks),
			"traders":         entityHandler(repos.Traders),
			"users":           entityHandler(repos.Users),
			"exposure-limits": entityHandler(repos.ExposureLimits),
			"order-groups":    entityHandler(repos.OrderGroups),
		}
		for path, handler := range entities {
			handler.Mount(api.Group("/"+path), middleware.RequireActor())
		}
	}

	h.SetRouter(r)
	return r
}
