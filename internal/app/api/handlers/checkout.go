package handlers

import (
	"context"
	"errors"
	"net/http"

	mw "github.com/fatflowers/membership/internal/app/api/middleware"
	"github.com/fatflowers/membership/internal/app/service/billingconfig"
	"github.com/fatflowers/membership/internal/app/service/checkout"
	"github.com/fatflowers/membership/internal/platform/stripe"

	"github.com/gin-gonic/gin"
)

// CheckoutCreator is implemented by checkout.Service.
type CheckoutCreator interface {
	Create(ctx context.Context, id checkout.Identity, req *checkout.Request) (*checkout.Session, error)
}

type CheckoutResponse struct {
	URL string `json:"url"`
}

// @Summary      Create checkout session
// @Description  Starts a subscription purchase for the authenticated user and returns the processor redirect URL.
// @Tags         Billing
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body checkout.Request true "Price and optional redirects"
// @Success      200  {object}  handlers.CheckoutResponse
// @Failure      400  {object}  handlers.ErrorBody
// @Failure      401  {object}  handlers.ErrorBody
// @Failure      429  {object}  handlers.ErrorBody
// @Failure      500  {object}  handlers.ErrorBody
// @Router       /api/v1/billing/checkout [post]
func ApiCreateCheckout(svc CheckoutCreator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := mw.IdentityFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, ErrorBody{Error: "unauthorized"})
			return
		}
		var req checkout.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorBody{Error: "invalid request body"})
			return
		}

		sess, err := svc.Create(c.Request.Context(), checkout.Identity{UserID: id.UserID, Email: id.Email}, &req)
		if err != nil {
			switch {
			case errors.Is(err, checkout.ErrInvalidRequest):
				c.JSON(http.StatusBadRequest, ErrorBody{Error: err.Error()})
			case errors.Is(err, billingconfig.ErrConfigMissing):
				c.JSON(http.StatusInternalServerError, ErrorBody{Error: "billing is not configured"})
			case errors.Is(err, stripe.ErrUpstream):
				c.JSON(http.StatusInternalServerError, ErrorBody{Error: err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, ErrorBody{Error: "checkout failed"})
			}
			return
		}
		c.JSON(http.StatusOK, CheckoutResponse{URL: sess.URL})
	}
}

func RegisterCheckoutRoutes(r gin.IRouter, svc CheckoutCreator) {
	r.POST("/checkout", ApiCreateCheckout(svc))
}
