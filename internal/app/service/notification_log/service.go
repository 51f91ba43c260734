package notification_log

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/clinicbilling/internal/app/store"
	"github.com/fatflowers/clinicbilling/internal/models"
	"github.com/fatflowers/clinicbilling/pkg/logctx"
	"github.com/fatflowers/clinicbilling/pkg/tool"
)

type Service struct {
	store store.Store
	log   *zap.SugaredLogger
}

func New(s store.Store, log *zap.SugaredLogger) *Service { return &Service{store: s, log: log} }

var Module = fx.Options(
	fx.Provide(New),
)

// Save asynchronously persists a payment notification log. Nil input is ignored.
// The write outlives the request: ctx cancellation is dropped.
func (s *Service) Save(ctx context.Context, entry *models.PaymentNotificationLog) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = tool.GenerateUUIDV7()
	}
	if entry.TraceID == "" {
		entry.TraceID = logctx.TraceID(ctx)
	}
	if entry.NotificationTime.IsZero() {
		entry.NotificationTime = time.Now()
	}
	cp := *entry
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := s.store.SaveNotificationLog(ctx, &cp); err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save notification log: %v", err)
		}
	}()
}
