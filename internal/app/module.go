package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/clinicbilling/internal/app/api/server"
	"github.com/fatflowers/clinicbilling/internal/app/service/billing"
	notificationhandler "github.com/fatflowers/clinicbilling/internal/app/service/notification_handler"
	notificationlog "github.com/fatflowers/clinicbilling/internal/app/service/notification_log"
	"github.com/fatflowers/clinicbilling/internal/app/service/ratelimit"
	"github.com/fatflowers/clinicbilling/internal/app/service/resolver"
	"github.com/fatflowers/clinicbilling/internal/app/service/signature"
	"github.com/fatflowers/clinicbilling/internal/app/service/subscription"
	"github.com/fatflowers/clinicbilling/internal/platform/db"
	"github.com/fatflowers/clinicbilling/internal/platform/mercadopago"
	"github.com/fatflowers/clinicbilling/pkg/config"
	"github.com/fatflowers/clinicbilling/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	mercadopago.Module,
	server.Module,
	signature.Module,
	resolver.Module,
	subscription.Module,
	billing.Module,
	ratelimit.Module,
	notificationlog.Module,
	notificationhandler.Module,
)
