package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"riskadmin/internal/domain"
	"riskadmin/internal/services"
	"riskadmin/internal/workflow"
)

// reservedQuery are list parameters that are not field filters.
var reservedQuery = map[string]bool{
	"pageNumber": true, "pageSize": true, "sort": true, "order": true, "authState": true,
}

// EntityHandler serves the maker-checker endpoints of one entity.
type EntityHandler[T any] struct {
	Service *services.EntityService[T]
}

func NewEntityHandler[T any](svc *services.EntityService[T]) *EntityHandler[T] {
	return &EntityHandler[T]{Service: svc}
}

// Mount registers the entity routes on g.
func (h *EntityHandler[T]) Mount(g *gin.RouterGroup, mutate ...gin.HandlerFunc) {
	g.GET("", h.List)
	g.GET("/:key", h.Get)
	g.GET("/:key/history", h.History)

	w := g.Group("", mutate...)
	w.POST("", h.Create)
	w.PUT("/:key", h.Update)
	w.DELETE("/:key", h.Delete)
	w.PUT("/:key/authorize", h.Authorize)
}

func parsePage(c *gin.Context) (domain.PageRequest, bool) {
	var page domain.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_argument", "invalid paging parameters: "+err.Error(), nil)
		return page, false
	}
	return page, true
}

// parseList reads paging, sort and filters. A filter value "abc*" is a prefix match.
func parseList(c *gin.Context) (workflow.ListRequest, bool) {
	page, ok := parsePage(c)
	if !ok {
		return workflow.ListRequest{}, false
	}
	req := workflow.ListRequest{Page: page}
	if raw := c.Query("authState"); raw != "" {
		var state domain.AuthState
		switch strings.ToLower(raw) {
		case "0", "unauthorized":
			state = domain.Unauthorized
		case "1", "approved":
			state = domain.Approved
		case "2", "denied":
			state = domain.Denied
		default:
			respondError(c, http.StatusBadRequest, "invalid_argument", "unknown authState "+raw, nil)
			return workflow.ListRequest{}, false
		}
		req.AuthState = &state
	}
	for name, vals := range c.Request.URL.Query() {
		if reservedQuery[name] || len(vals) == 0 {
			continue
		}
		v := vals[0]
		f := domain.Filter{Field: name, Op: domain.FilterEq, Value: v}
		if strings.HasSuffix(v, "*") {
			f.Op, f.Value = domain.FilterPrefix, strings.TrimSuffix(v, "*")
		}
		req.Filters = append(req.Filters, f)
	}
	return req, true
}

func (h *EntityHandler[T]) List(c *gin.Context) {
	req, ok := parseList(c)
	if !ok {
		return
	}
	page, err := h.Service.List(c.Request.Context(), req)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *EntityHandler[T]) Get(c *gin.Context) {
	entry, err := h.Service.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *EntityHandler[T]) History(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	out, err := h.Service.History(c.Request.Context(), c.Param("key"), page)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *EntityHandler[T]) Create(c *gin.Context) {
	var item T
	if !BindJSONOrError(c, &item) {
		return
	}
	entry, err := h.Service.Create(c.Request.Context(), item)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *EntityHandler[T]) Update(c *gin.Context) {
	var item T
	if !BindJSONOrError(c, &item) {
		return
	}
	entry, err := h.Service.Update(c.Request.Context(), c.Param("key"), item)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *EntityHandler[T]) Delete(c *gin.Context) {
	entry, err := h.Service.Delete(c.Request.Context(), c.Param("key"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, entry)
}

func (h *EntityHandler[T]) Authorize(c *gin.Context) {
	var in services.AuthorizeInput
	if !BindJSONOrError(c, &in) {
		return
	}
	entry, err := h.Service.Authorize(c.Request.Context(), c.Param("key"), in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}
