package handlers

import (
	"errors"
	"net/http"

	"github.com/fatflowers/membership/internal/app/service/billingconfig"
	"github.com/fatflowers/membership/internal/app/service/entitlement"
	"github.com/fatflowers/membership/internal/app/service/eventlog"
	"github.com/fatflowers/membership/internal/app/service/statistics"
	subsvc "github.com/fatflowers/membership/internal/app/service/subscription"
	models "github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/response"
	"github.com/fatflowers/membership/pkg/types"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// AdminDeps groups the services behind the admin API.
type AdminDeps struct {
	Subscriptions *subsvc.Service
	Entitlements  *entitlement.Service
	Stats         *statistics.Service
	Config        *billingconfig.Resolver
	Events        *eventlog.Service
}

func scanError(c *gin.Context, err error) {
	code := response.APIResponseCodeError
	if errors.Is(err, subsvc.ErrInvalidScanRequest) {
		code = response.APIResponseCodeBadRequest
	}
	c.JSON(http.StatusOK, response.ErrorMsg(code, err.Error()))
}

// @Summary      List Subscriptions (Admin)
// @Description  Retrieves a paginated and filterable list of subscription rows.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body subscription.ScanRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespListSubscriptions
// @Router       /api/v1/admin/list_subscriptions [post]
func ApiListSubscriptions(sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subsvc.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := sub.ScanSubscriptions(c.Request.Context(), &req)
		if err != nil {
			scanError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      List Payment Transactions (Admin)
// @Description  Retrieves a paginated and filterable list of payment transactions.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body subscription.ScanRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespListPayments
// @Router       /api/v1/admin/list_payment_transactions [post]
func ApiListPaymentTransactions(sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subsvc.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := sub.ScanPayments(c.Request.Context(), &req)
		if err != nil {
			scanError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Get Billing Statistics (Admin)
// @Description  Retrieves daily payment, revenue and subscription statistics.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.BillingStatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespBillingStatistic
// @Router       /api/v1/admin/get_billing_statistic [post]
func ApiGetBillingStatistic(svc *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.BillingStatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusOK, response.ErrorMsg(response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.GetBillingStatistic(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type UserEntitlementResponse struct {
	Decision      *entitlement.Decision  `json:"decision"`
	CachedTier    types.Tier             `json:"cached_tier"`
	Subscriptions []*models.Subscription `json:"subscriptions"`
}

// @Summary      Get User Entitlement (Admin)
// @Description  Returns a user's entitlement decision, cached tier and every subscription row.
// @Tags         Admin
// @Produce      json
// @Param        user_id path string true "User ID"
// @Success      200  {object}  handlers.RespUserEntitlement
// @Router       /api/v1/admin/entitlement/{user_id} [get]
func ApiGetUserEntitlement(d AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("user_id")
		ctx := c.Request.Context()
		decision, err := d.Entitlements.Decide(ctx, userID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		tier, err := d.Subscriptions.GetCachedTier(ctx, userID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		rows, err := d.Subscriptions.ListByUserID(ctx, userID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&UserEntitlementResponse{Decision: decision, CachedTier: tier, Subscriptions: rows}))
	}
}

// @Summary      Get Subscription History (Admin)
// @Description  Returns the change log of one processor subscription, oldest first.
// @Tags         Admin
// @Produce      json
// @Param        external_id path string true "Processor subscription ID"
// @Success      200  {object}  handlers.RespSubscriptionLogs
// @Router       /api/v1/admin/subscription_logs/{external_id} [get]
func ApiListSubscriptionLogs(sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		logs, err := sub.ListLogs(c.Request.Context(), c.Param("external_id"))
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(logs))
	}
}

// @Summary      Get Billing Event (Admin)
// @Description  Returns the log rows of one processor event.
// @Tags         Admin
// @Produce      json
// @Param        event_id path string true "Processor event ID"
// @Success      200  {object}  handlers.RespBillingEvents
// @Router       /api/v1/admin/billing_events/{event_id} [get]
func ApiListBillingEvents(events *eventlog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := events.ListByEventID(c.Request.Context(), c.Param("event_id"))
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		if len(rows) == 0 {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, nil))
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

type InvalidateConfigRequest struct {
	// Keys to drop; empty drops every cached value.
	Keys []string `json:"keys"`
}

var invalidatableKeys = []string{models.BillingSettingStripeSecretKey, models.BillingSettingStripeWebhookSecret}

// @Summary      Invalidate Billing Config Cache (Admin)
// @Description  Drops cached billing secrets so the next request reads the settings table again.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.InvalidateConfigRequest false "Keys to invalidate"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/invalidate_billing_config [post]
func ApiInvalidateBillingConfig(r *billingconfig.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req InvalidateConfigRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
		}
		if unknown, _ := lo.Difference(req.Keys, invalidatableKeys); len(unknown) > 0 {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, unknown))
			return
		}
		r.Invalidate(req.Keys...)
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

func RegisterAdminRoutes(r gin.IRouter, d AdminDeps) {
	r.POST("/list_subscriptions", ApiListSubscriptions(d.Subscriptions))
	r.POST("/list_payment_transactions", ApiListPaymentTransactions(d.Subscriptions))
	r.POST("/get_billing_statistic", ApiGetBillingStatistic(d.Stats))
	r.GET("/entitlement/:user_id", ApiGetUserEntitlement(d))
	r.GET("/subscription_logs/:external_id", ApiListSubscriptionLogs(d.Subscriptions))
	r.GET("/billing_events/:event_id", ApiListBillingEvents(d.Events))
	r.POST("/invalidate_billing_config", ApiInvalidateBillingConfig(d.Config))
}
