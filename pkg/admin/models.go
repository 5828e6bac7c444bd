package admin

import (
	"context"
	"net/http"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func deactivator[T any](st *store.Store, entity string) func(context.Context, uuid.UUID) error {
	return func(ctx context.Context, id uuid.UUID) error {
		return st.Deactivate(ctx, new(T), entity, id)
	}
}

// RegisterModels registers every storefront entity with site. Call it once at
// startup.
func RegisterModels(site *Site, st *store.Store) error {
	regs := []func() error{
		func() error {
			return Register(site, Resource[models.User]{
				Name:       "users",
				List:       st.ListUsers,
				Get:        st.GetUser,
				Create:     st.CreateUser,
				Update:     st.UpdateUser,
				Delete:     st.DeleteUser,
				Deactivate: deactivator[models.User](st, "user"),
			})
		},
		func() error {
			return Register(site, Resource[models.UserAddress]{
				Name:       "addresses",
				List:       st.ListAddresses,
				Get:        st.GetAddress,
				Create:     st.CreateAddress,
				Update:     st.UpdateAddress,
				Delete:     st.DeleteAddress,
				Deactivate: deactivator[models.UserAddress](st, "user address"),
			})
		},
		func() error {
			return Register(site, Resource[models.Organization]{
				Name:       "organizations",
				List:       st.ListOrganizations,
				Get:        st.GetOrganization,
				Create:     st.CreateOrganization,
				Update:     st.UpdateOrganization,
				Delete:     st.DeleteOrganization,
				Deactivate: deactivator[models.Organization](st, "organization"),
			})
		},
		func() error {
			return Register(site, Resource[models.ProductStatus]{
				Name:       "product-statuses",
				List:       st.ListStatuses,
				Get:        st.GetStatus,
				Create:     st.CreateStatus,
				Update:     st.UpdateStatus,
				Delete:     st.DeleteStatus,
				Deactivate: deactivator[models.ProductStatus](st, "product status"),
			})
		},
		func() error {
			return Register(site, Resource[models.Hashtag]{
				Name:       "hashtags",
				List:       st.ListHashtags,
				Get:        st.GetHashtag,
				Create:     st.CreateHashtag,
				Update:     st.UpdateHashtag,
				Delete:     st.DeleteHashtag,
				Deactivate: deactivator[models.Hashtag](st, "hashtag"),
			})
		},
		func() error {
			return Register(site, Resource[models.Product]{
				Name:       "products",
				List:       st.ListProducts,
				Get:        st.GetProduct,
				Create:     st.CreateProduct,
				Update:     st.UpdateProduct,
				Delete:     st.DeleteProduct,
				Deactivate: deactivator[models.Product](st, "product"),
			})
		},
		func() error {
			return Register(site, Resource[models.ProductImage]{
				Name:       "product-images",
				List:       st.ListProductImages,
				Get:        st.GetProductImage,
				Create:     st.CreateProductImage,
				Update:     st.UpdateProductImage,
				Delete:     st.DeleteProductImage,
				Deactivate: deactivator[models.ProductImage](st, "product image"),
			})
		},
		func() error {
			return Register(site, Resource[models.SalesHistory]{
				Name:       "sales",
				List:       st.ListSales,
				Get:        st.GetSale,
				Create:     st.CreateSale,
				Update:     st.UpdateSale,
				Delete:     st.DeleteSale,
				Deactivate: deactivator[models.SalesHistory](st, "sale"),
			})
		},
		func() error {
			return Register(site, Resource[models.Cart]{
				Name:       "carts",
				List:       st.ListCarts,
				Get:        st.GetCart,
				Create:     st.CreateCart,
				Update:     st.UpdateCart,
				Delete:     st.DeleteCart,
				Deactivate: deactivator[models.Cart](st, "cart"),
			})
		},
	}
	for _, reg := range regs {
		if err := reg(); err != nil {
			return err
		}
	}

	site.Handle(http.MethodGet, "/products/:uuid/sales-total", func(c *gin.Context) {
		id, err := uuidParam(c)
		if err != nil {
			site.writeError(c, err)
			return
		}
		total, err := st.SalesTotal(c.Request.Context(), id)
		if err != nil {
			site.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": id, "total": total})
	})

	site.Handle(http.MethodGet, "/products/:uuid/images", func(c *gin.Context) {
		id, err := uuidParam(c)
		if err != nil {
			site.writeError(c, err)
			return
		}
		images, err := st.ImagesForProduct(c.Request.Context(), id)
		if err != nil {
			site.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": images})
	})

	site.Handle(http.MethodGet, "/users/:uuid/cart", func(c *gin.Context) {
		id, err := uuidParam(c)
		if err != nil {
			site.writeError(c, err)
			return
		}
		lines, err := st.ListCart(c.Request.Context(), id)
		if err != nil {
			site.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": lines})
	})
	return nil
}

// AuditReader returns stored audit entries for an entity.
type AuditReader interface {
	GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*repository.AuditLog, error)
}

// RegisterAuditLog exposes GET /audit/:uuid listing the newest audit entries of
// any entity.
func RegisterAuditLog(site *Site, reader AuditReader) {
	site.Handle(http.MethodGet, "/audit/:uuid", func(c *gin.Context) {
		id, err := uuidParam(c)
		if err != nil {
			site.writeError(c, err)
			return
		}
		page, err := pageFromQuery(c)
		if err != nil {
			site.writeError(c, err)
			return
		}
		logs, err := reader.GetAuditLogs(c.Request.Context(), id.String(), int64(page.PageSize))
		if err != nil {
			site.writeError(c, err)
			return
		}
		if logs == nil {
			logs = []*repository.AuditLog{}
		}
		c.JSON(http.StatusOK, gin.H{"items": logs})
	})
}
