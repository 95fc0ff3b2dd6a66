package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
)

type productRequest struct {
	Name        string  `json:"name" binding:"required,min=1,max=200"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
}

type productUpdateRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
}

type activeRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

type variantRequest struct {
	Colour    string          `json:"colour" binding:"required,min=1,max=50"`
	Size      string          `json:"size" binding:"required,min=1,max=30"`
	SKU       *string         `json:"sku" binding:"omitempty,max=100"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Stock     int             `json:"stock" binding:"gte=0"`
}

type variantUpdateRequest struct {
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Stock     *int             `json:"stock" binding:"omitempty,gte=0"`
	IsActive  *bool            `json:"is_active"`
	Version   int              `json:"version" binding:"required,gte=1"`
}

// managedProduct loads the :id product and checks the caller may change it.
func (s *Server) managedProduct(c *gin.Context) (*models.Product, error) {
	id, err := uuidParam(c, "id")
	if err != nil {
		return nil, err
	}

	product, err := store.GetProductRecord(c.Request.Context(), s.db, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanManageProduct(mustUser(c), product) {
		return nil, database.ErrForbidden
	}
	return product, nil
}

// listSellerProducts includes products without variants, so only the
// product-level filters (q, page, sort) apply; variant filters are rejected.
func (s *Server) listSellerProducts(c *gin.Context) {
	filter, err := productFilter(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	user := mustUser(c)
	filter.ActiveOnly = false
	filter.IncludeEmpty = true
	if user.Role != models.RoleAdmin {
		filter.SellerID = &user.ID
	}

	page, err := store.ListProducts(c.Request.Context(), s.db, filter)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (s *Server) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	product, err := store.CreateProduct(c.Request.Context(), s.db, mustUser(c).ID, req.Name, req.Description)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (s *Server) updateProduct(c *gin.Context) {
	var req productUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	product, err := s.managedProduct(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	updated, err := store.UpdateProduct(c.Request.Context(), s.db, product.ID, req.Name, req.Description)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (s *Server) setProductActive(c *gin.Context) {
	var req activeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	product, err := s.managedProduct(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if err := store.SetProductActive(c.Request.Context(), s.db, product.ID, *req.IsActive); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": product.ID, "is_active": *req.IsActive})
}

func (s *Server) deleteProduct(c *gin.Context) {
	product, err := s.managedProduct(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if err := store.SoftDeleteProduct(c.Request.Context(), s.db, product.ID); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
}

func (s *Server) createVariant(c *gin.Context) {
	var req variantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	product, err := s.managedProduct(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	variant, err := store.CreateVariant(c.Request.Context(), s.db, product.ID, store.VariantInput{
		Colour:    req.Colour,
		Size:      req.Size,
		SKU:       req.SKU,
		UnitPrice: req.UnitPrice,
		Stock:     req.Stock,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, variant)
}

func (s *Server) updateVariant(c *gin.Context) {
	var req variantUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	product, err := s.managedProduct(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	variantID, err := uuidParam(c, "variant")
	if err != nil {
		s.respondError(c, err)
		return
	}

	variant, err := store.UpdateVariantOptimistic(c.Request.Context(), s.db, product.ID, variantID, store.VariantUpdate{
		UnitPrice: req.UnitPrice,
		Stock:     req.Stock,
		IsActive:  req.IsActive,
	}, req.Version)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, variant)
}

func (s *Server) listOrdersByStatus(c *gin.Context) {
	status, err := models.ParseOrderStatus(c.DefaultQuery("status", string(models.OrderStatusPaid)))
	if err != nil {
		s.respondError(c, database.Validation(err.Error()))
		return
	}
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		s.respondError(c, err)
		return
	}

	page, err := store.ListOrdersByStatusCursor(c.Request.Context(), s.db, status, c.Query("cursor"), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}
