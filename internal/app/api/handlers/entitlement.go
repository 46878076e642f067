package handlers

import (
	"context"
	"net/http"

	mw "github.com/fatflowers/membership/internal/app/api/middleware"
	"github.com/fatflowers/membership/internal/app/service/entitlement"
	"github.com/fatflowers/membership/pkg/response"
	"github.com/fatflowers/membership/pkg/types"

	"github.com/gin-gonic/gin"
)

// EntitlementReader is implemented by entitlement.Service.
type EntitlementReader interface {
	Decide(ctx context.Context, userID string) (*entitlement.Decision, error)
	Check(ctx context.Context, userID string, required types.Tier) (bool, error)
}

type TierCheckResponse struct {
	Tier    types.Tier `json:"tier"`
	Allowed bool       `json:"allowed"`
}

// @Summary      Get my entitlement
// @Description  Returns the entitlement decision computed from the caller's latest subscription.
// @Tags         Entitlement
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespEntitlement
// @Failure      401  {object}  handlers.ErrorBody
// @Router       /api/v1/entitlement [get]
func ApiGetEntitlement(svc EntitlementReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := mw.IdentityFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, ErrorBody{Error: "unauthorized"})
			return
		}
		d, err := svc.Decide(c.Request.Context(), id.UserID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(d))
	}
}

// @Summary      Check required tier
// @Description  Reports whether the caller's subscription meets the required tier (core < daily < max).
// @Tags         Entitlement
// @Produce      json
// @Security     BearerAuth
// @Param        tier query string true "Required tier" Enums(core, daily, max)
// @Success      200  {object}  handlers.RespTierCheck
// @Failure      401  {object}  handlers.ErrorBody
// @Router       /api/v1/entitlement/check [get]
func ApiCheckEntitlement(svc EntitlementReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := mw.IdentityFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, ErrorBody{Error: "unauthorized"})
			return
		}
		required := types.ParseTier(c.Query("tier"))
		if required.Rank() == 0 {
			c.JSON(http.StatusOK, response.ErrorMsg(response.APIResponseCodeBadRequest, "tier must be one of core, daily, max"))
			return
		}
		allowed, err := svc.Check(c.Request.Context(), id.UserID, required)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&TierCheckResponse{Tier: required, Allowed: allowed}))
	}
}

func RegisterEntitlementRoutes(r gin.IRouter, svc EntitlementReader) {
	r.GET("", ApiGetEntitlement(svc))
	r.GET("/check", ApiCheckEntitlement(svc))
}
