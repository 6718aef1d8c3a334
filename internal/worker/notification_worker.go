package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/itconnect/internal/config"
	"github.com/spec-kit/itconnect/internal/events"
	"github.com/spec-kit/itconnect/internal/service"
)

// StartNotificationWorker subscribes the notification stubs to complaint and
// role-upgrade events. It is a no-op without a dispatcher.
func StartNotificationWorker(dispatcher events.Dispatcher, cfg config.NotificationConfig, logger *zap.Logger) *service.NotificationService {
	if dispatcher == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	notifications := service.NewNotificationService(dispatcher, logger, cfg)
	notifications.RegisterHandlers()
	logger.Info("notification worker started",
		zap.Bool("email_enabled", cfg.EmailFrom != ""),
		zap.Bool("webhook_enabled", cfg.WebhookURL != ""))
	return notifications
}
