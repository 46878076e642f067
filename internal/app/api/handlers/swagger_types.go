package handlers

import (
	"github.com/fatflowers/membership/internal/app/service/entitlement"
	"github.com/fatflowers/membership/internal/app/service/statistics"
	subsvc "github.com/fatflowers/membership/internal/app/service/subscription"
	models "github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespEntitlement wraps entitlement.Decision in the standard envelope.
type RespEntitlement struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    entitlement.Decision     `json:"data"`
}

type RespTierCheck struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    TierCheckResponse        `json:"data"`
}

type RespListSubscriptions struct {
	Code    response.APIResponseCode                 `json:"code"`
	Message string                                   `json:"message"`
	Data    subsvc.ScanResponse[models.Subscription] `json:"data"`
}

type RespListPayments struct {
	Code    response.APIResponseCode                       `json:"code"`
	Message string                                         `json:"message"`
	Data    subsvc.ScanResponse[models.PaymentTransaction] `json:"data"`
}

// RespBillingStatistic wraps BillingStatisticResponse in the standard envelope.
type RespBillingStatistic struct {
	Code    response.APIResponseCode            `json:"code"`
	Message string                              `json:"message"`
	Data    statistics.BillingStatisticResponse `json:"data"`
}

type RespUserEntitlement struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    UserEntitlementResponse  `json:"data"`
}

type RespSubscriptionLogs struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    []*models.SubscriptionLog `json:"data"`
}

type RespBillingEvents struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    []*models.BillingEventLog `json:"data"`
}
