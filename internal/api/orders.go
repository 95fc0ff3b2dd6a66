package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/metrics"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

type addItemRequest struct {
	ProductID uuid.UUID  `json:"product_id" binding:"required"`
	VariantID *uuid.UUID `json:"variant_id"`
	Quantity  int        `json:"quantity" binding:"gte=1"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) createCart(c *gin.Context) {
	order, err := store.CreateCart(c.Request.Context(), s.db, mustUser(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": order.ID, "status": order.Status})
}

func (s *Server) addItem(c *gin.Context) {
	orderID, err := uuidParam(c, "id")
	if err != nil {
		s.respondError(c, err)
		return
	}

	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	item, err := store.AddItem(c.Request.Context(), s.db, store.AddItemRequest{
		OrderID:   orderID,
		UserID:    mustUser(c).ID,
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

func (s *Server) removeItem(c *gin.Context) {
	orderID, err := uuidParam(c, "id")
	if err != nil {
		s.respondError(c, err)
		return
	}
	itemID, err := uuidParam(c, "item")
	if err != nil {
		s.respondError(c, err)
		return
	}

	if err := store.RemoveItem(c.Request.Context(), s.db, orderID, mustUser(c).ID, itemID); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "item removed"})
}

func (s *Server) listMyOrders(c *gin.Context) {
	orders, err := store.ListUserOrders(c.Request.Context(), s.db, mustUser(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, orders)
}

func (s *Server) getOrder(c *gin.Context) {
	orderID, err := uuidParam(c, "id")
	if err != nil {
		s.respondError(c, err)
		return
	}

	detail, err := store.GetOrderDetail(c.Request.Context(), s.db, orderID, mustUser(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": detail.Order,
		"items": detail.Items,
		"total": detail.Total.StringFixed(2),
	})
}

func (s *Server) checkout(c *gin.Context) {
	orderID, err := uuidParam(c, "id")
	if err != nil {
		s.respondError(c, err)
		return
	}

	order, err := store.Checkout(c.Request.Context(), s.db, orderID, mustUser(c).ID)
	s.metrics.ObserveCheckout(checkoutResult(err))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "checked out", "order_id": order.ID})
}

func checkoutResult(err error) string {
	if err == nil {
		return metrics.CheckoutSucceeded
	}
	switch database.KindOf(err) {
	case database.KindConflict:
		return metrics.CheckoutConflict
	case database.KindInternal:
		return metrics.CheckoutFailed
	default:
		return metrics.CheckoutRejected
	}
}

func (s *Server) updateOrderStatus(c *gin.Context) {
	orderID, err := uuidParam(c, "id")
	if err != nil {
		s.respondError(c, err)
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}
	target, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		s.respondError(c, database.ErrInvalidStatus)
		return
	}

	order, err := store.UpdateOrderStatus(c.Request.Context(), s.db, orderID, target)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}
