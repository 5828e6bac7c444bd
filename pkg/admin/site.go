// Package admin exposes CRUD endpoints for registered storefront entities.
package admin

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/example/storefront/pkg/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Resource describes how one entity is listed, read and written. Nil
// operations are not routed.
type Resource[T any] struct {
	Name       string
	List       func(ctx context.Context, p store.Page) ([]T, int64, error)
	Get        func(ctx context.Context, id uuid.UUID) (*T, error)
	Create     func(ctx context.Context, v *T) error
	Update     func(ctx context.Context, id uuid.UUID, v *T) error
	Delete     func(ctx context.Context, id uuid.UUID) error
	Deactivate func(ctx context.Context, id uuid.UUID) error
}

type route struct {
	method  string
	path    string
	handler gin.HandlerFunc
}

// Site collects resources and mounts them on a router group.
type Site struct {
	logger *zap.Logger
	names  []string
	mounts map[string]func(rg *gin.RouterGroup)
	extra  []route
}

func NewSite(logger *zap.Logger) *Site {
	return &Site{
		logger: logger,
		mounts: make(map[string]func(rg *gin.RouterGroup)),
	}
}

// Register adds r to the site. Names must be unique.
func Register[T any](site *Site, r Resource[T]) error {
	if r.Name == "" {
		return fmt.Errorf("admin: resource name is required")
	}
	if _, ok := site.mounts[r.Name]; ok {
		return fmt.Errorf("admin: resource %q already registered", r.Name)
	}
	h := &handlers[T]{site: site, res: r}
	site.names = append(site.names, r.Name)
	site.mounts[r.Name] = h.mount
	return nil
}

// Handle routes an extra endpoint relative to the admin root.
func (s *Site) Handle(method, path string, handler gin.HandlerFunc) {
	s.extra = append(s.extra, route{method: method, path: path, handler: handler})
}

// Names lists registered resources in registration order.
func (s *Site) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *Site) Mount(rg *gin.RouterGroup) {
	rg.GET("/", s.index)
	for _, name := range s.names {
		s.mounts[name](rg.Group("/" + name))
	}
	for _, r := range s.extra {
		rg.Handle(r.method, r.path, r.handler)
	}
}

func (s *Site) index(c *gin.Context) {
	entries := make([]gin.H, 0, len(s.names))
	for _, name := range s.names {
		entries = append(entries, gin.H{"name": name, "path": c.FullPath() + name})
	}
	c.JSON(http.StatusOK, gin.H{"models": entries})
}

type handlers[T any] struct {
	site *Site
	res  Resource[T]
}

func (h *handlers[T]) mount(rg *gin.RouterGroup) {
	if h.res.List != nil {
		rg.GET("", h.list)
	}
	if h.res.Create != nil {
		rg.POST("", h.create)
	}
	if h.res.Get != nil {
		rg.GET("/:uuid", h.get)
	}
	if h.res.Update != nil && h.res.Get != nil {
		rg.PUT("/:uuid", h.update)
	}
	if h.res.Delete != nil {
		rg.DELETE("/:uuid", h.delete)
	}
	if h.res.Deactivate != nil && h.res.Get != nil {
		rg.POST("/:uuid/deactivate", h.deactivate)
	}
}

func (h *handlers[T]) list(c *gin.Context) {
	page, err := pageFromQuery(c)
	if err != nil {
		h.site.writeError(c, err)
		return
	}
	items, total, err := h.res.List(c.Request.Context(), page)
	if err != nil {
		h.site.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":     items,
		"total":     total,
		"page":      page.Page,
		"page_size": page.PageSize,
	})
}

func (h *handlers[T]) get(c *gin.Context) {
	id, err := uuidParam(c)
	if err != nil {
		h.site.writeError(c, err)
		return
	}
	v, err := h.res.Get(c.Request.Context(), id)
	if err != nil {
		h.site.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// identityResetter is implemented by models embedding models.Base. Clients
// never choose the keys of a new row.
type identityResetter interface {
	ResetIdentity()
}

func (h *handlers[T]) create(c *gin.Context) {
	v := new(T)
	if err := bindBody(c, v); err != nil {
		h.site.writeError(c, err)
		return
	}
	if r, ok := any(v).(identityResetter); ok {
		r.ResetIdentity()
	}
	if err := h.res.Create(c.Request.Context(), v); err != nil {
		h.site.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (h *handlers[T]) update(c *gin.Context) {
	id, err := uuidParam(c)
	if err != nil {
		h.site.writeError(c, err)
		return
	}
	v := new(T)
	if err := bindBody(c, v); err != nil {
		h.site.writeError(c, err)
		return
	}
	if err := h.res.Update(c.Request.Context(), id, v); err != nil {
		h.site.writeError(c, err)
		return
	}
	h.respondFresh(c, id)
}

func (h *handlers[T]) delete(c *gin.Context) {
	id, err := uuidParam(c)
	if err != nil {
		h.site.writeError(c, err)
		return
	}
	if err := h.res.Delete(c.Request.Context(), id); err != nil {
		h.site.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers[T]) deactivate(c *gin.Context) {
	id, err := uuidParam(c)
	if err != nil {
		h.site.writeError(c, err)
		return
	}
	if err := h.res.Deactivate(c.Request.Context(), id); err != nil {
		h.site.writeError(c, err)
		return
	}
	h.respondFresh(c, id)
}

func (h *handlers[T]) respondFresh(c *gin.Context, id uuid.UUID) {
	v, err := h.res.Get(c.Request.Context(), id)
	if err != nil {
		h.site.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func pageFromQuery(c *gin.Context) (store.Page, error) {
	p := store.Page{Page: 1, PageSize: 20}
	for _, q := range []struct {
		name string
		dst  *int
	}{{"page", &p.Page}, {"page_size", &p.PageSize}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, badRequest(q.name, "must be a positive integer")
		}
		*q.dst = n
	}
	return p, nil
}
