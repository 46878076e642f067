package app

import (
	"time"

	"github.com/fatflowers/membership/internal/app/api/server"
	"github.com/fatflowers/membership/internal/app/service/billingconfig"
	"github.com/fatflowers/membership/internal/app/service/checkout"
	"github.com/fatflowers/membership/internal/app/service/entitlement"
	"github.com/fatflowers/membership/internal/app/service/eventledger"
	"github.com/fatflowers/membership/internal/app/service/eventlog"
	"github.com/fatflowers/membership/internal/app/service/reconciler"
	"github.com/fatflowers/membership/internal/app/service/statistics"
	"github.com/fatflowers/membership/internal/app/service/subscription"
	"github.com/fatflowers/membership/internal/platform/auth"
	"github.com/fatflowers/membership/internal/platform/db"
	"github.com/fatflowers/membership/internal/platform/redis"
	"github.com/fatflowers/membership/internal/platform/stripe"
	"github.com/fatflowers/membership/pkg/config"
	"github.com/fatflowers/membership/pkg/logger"
	"github.com/fatflowers/membership/pkg/metrics"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	db.Module,
	redis.Module,
	auth.Module,
	stripe.Module,
	server.Module,
	billingconfig.Module,
	subscription.Module,
	entitlement.Module,
	checkout.Module,
	eventlog.Module,
	eventledger.Module,
	reconciler.Module,
	statistics.Module,
)
