package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/store"
)

func (s *Server) listProducts(c *gin.Context) {
	filter, err := productFilter(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	page, err := store.ListProducts(c.Request.Context(), s.db, filter)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (s *Server) getProduct(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		s.respondError(c, err)
		return
	}
	activeOnly, err := queryBool(c, "active_only", true)
	if err != nil {
		s.respondError(c, err)
		return
	}

	product, err := store.GetProduct(c.Request.Context(), s.db, id, activeOnly)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func productFilter(c *gin.Context) (store.ProductFilter, error) {
	var f store.ProductFilter
	var err error

	if f.Page, err = queryInt(c, "page", 1); err != nil {
		return f, err
	}
	if f.Page < 1 {
		return f, database.Validation("page must be at least 1")
	}
	if f.PageSize, err = queryInt(c, "page_size", store.DefaultProductPageSize); err != nil {
		return f, err
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		return f, database.Validation("page_size must be between 1 and 100")
	}
	if f.ActiveOnly, err = queryBool(c, "active_only", true); err != nil {
		return f, err
	}
	if f.InStockOnly, err = queryBool(c, "in_stock_only", false); err != nil {
		return f, err
	}
	if f.SellerID, err = queryUUID(c, "user_id"); err != nil {
		return f, err
	}
	if f.MinPrice, err = queryPrice(c, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = queryPrice(c, "max_price"); err != nil {
		return f, err
	}

	f.Query = c.Query("q")
	f.Colour = strings.TrimSpace(c.Query("colour"))
	f.Size = strings.TrimSpace(c.Query("size"))

	f.SortBy = c.DefaultQuery("sort_by", store.SortByCreatedAt)
	switch f.SortBy {
	case store.SortByCreatedAt, store.SortByName, store.SortByPrice:
	default:
		return f, database.Validation("sort_by must be one of: created_at, name, price")
	}

	f.SortDir = strings.ToLower(c.DefaultQuery("sort_dir", store.SortDesc))
	if f.SortDir != store.SortAsc && f.SortDir != store.SortDesc {
		return f, database.Validation("sort_dir must be asc or desc")
	}

	return f, nil
}
