package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/checkoutapi/internal/domain"
	"github.com/jafarshop/checkoutapi/internal/repository"
)

// AdminService is the read side of the ledger plus maintenance operations
type AdminService interface {
	ListOrders(ctx context.Context, filter repository.OrderFilter) ([]*domain.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListPendingOrders(ctx context.Context, filter repository.PendingOrderFilter) ([]*domain.PendingOrder, error)
	ExpireStale(ctx context.Context) (int64, error)
}

// HandleListOrders handles GET /v1/admin/orders
func HandleListOrders(svc AdminService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pagination(c)

		filter := repository.OrderFilter{Limit: limit, Offset: offset}
		if statusStr := c.Query("status"); statusStr != "" {
			status := domain.OrderStatus(statusStr)
			if !status.IsValid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
			filter.Status = status
		}
		if methodStr := c.Query("payment_method"); methodStr != "" {
			method := domain.PaymentMethod(methodStr)
			if !method.IsValid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment method"})
				return
			}
			filter.PaymentMethod = method
		}

		orders, err := svc.ListOrders(c.Request.Context(), filter)
		if err != nil {
			respondError(c, logger, "error", err)
			return
		}

		orderResponses := make([]gin.H, len(orders))
		for i, order := range orders {
			orderResponses[i] = orderSummary(order)
		}

		c.JSON(http.StatusOK, gin.H{
			"orders": orderResponses,
			"limit":  limit,
			"offset": offset,
		})
	}
}

// HandleGetOrder handles GET /v1/admin/orders/:id
func HandleGetOrder(svc AdminService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
			return
		}

		order, err := svc.GetOrder(c.Request.Context(), orderID)
		if err != nil {
			respondError(c, logger, "error", err)
			return
		}

		items := make([]gin.H, len(order.Items))
		for i, item := range order.Items {
			items[i] = gin.H{
				"product_id": item.ProductID,
				"name":       item.Name,
				"unit_price": item.UnitPrice,
				"quantity":   item.Quantity,
			}
		}

		response := orderSummary(order)
		response["first_name"] = order.FirstName
		response["last_name"] = order.LastName
		response["address"] = order.Address
		response["city"] = order.City
		response["country"] = order.Country
		response["zip_code"] = order.ZipCode
		response["phone"] = order.Phone
		response["items"] = items

		c.JSON(http.StatusOK, response)
	}
}

// HandleListPendingOrders handles GET /v1/admin/pending-orders
func HandleListPendingOrders(svc AdminService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pagination(c)

		pendings, err := svc.ListPendingOrders(c.Request.Context(), repository.PendingOrderFilter{
			Provider: domain.Provider(c.Query("provider")),
			Status:   domain.PendingStatus(c.Query("status")),
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			respondError(c, logger, "error", err)
			return
		}

		responses := make([]gin.H, len(pendings))
		for i, p := range pendings {
			responses[i] = gin.H{
				"id":             p.ID.String(),
				"provider":       p.Provider,
				"transaction_id": p.TransactionID,
				"status":         p.Status,
				"total_cfa":      p.TotalCFA,
				"currency":       p.Currency,
				"email":          p.BillingSnapshot.Email,
				"created_at":     p.CreatedAt.Format(time.RFC3339),
				"updated_at":     p.UpdatedAt.Format(time.RFC3339),
			}
			if p.AmountValue.Valid {
				responses[i]["amount_value"] = p.AmountValue.Decimal.StringFixed(2)
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"pending_orders": responses,
			"limit":          limit,
			"offset":         offset,
		})
	}
}

// HandleExpirePendingOrders handles POST /v1/admin/pending-orders/expire
func HandleExpirePendingOrders(svc AdminService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		expired, err := svc.ExpireStale(c.Request.Context())
		if err != nil {
			respondError(c, logger, "error", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"expired": expired})
	}
}

func orderSummary(order *domain.Order) gin.H {
	return gin.H{
		"id":             order.ID.String(),
		"status":         order.Status,
		"payment_method": order.PaymentMethod,
		"transaction_id": order.TransactionID(),
		"email":          order.Email,
		"total_cfa":      order.TotalCFA,
		"created_at":     order.CreatedAt.Format(time.RFC3339),
		"updated_at":     order.UpdatedAt.Format(time.RFC3339),
	}
}

func pagination(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 200 {
		limit = 50
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
