package worker

import (
	"go.uber.org/zap"

	"github.com/gsg-it/it4u/internal/config"
	"github.com/gsg-it/it4u/internal/events"
	"github.com/gsg-it/it4u/internal/mail"
	"github.com/gsg-it/it4u/internal/repository"
	"github.com/gsg-it/it4u/internal/service"
)

// StartNotificationPipeline builds the event bus and wires the mail
// consumer onto it. Returns the bus for publishers; Close drains the
// queue on shutdown. When notifications are disabled the bus still
// exists so publishers need no special casing, events are simply
// consumed by nothing.
func StartNotificationPipeline(store *repository.Store, cfg *config.Config, logger *zap.Logger) events.Bus {
	bus := events.NewBus(cfg.Notification.Workers, cfg.Notification.QueueSize, logger)
	if !cfg.Notification.Enabled {
		logger.Info("notification pipeline disabled")
		return bus
	}

	var transport mail.Transport
	if cfg.Mail.Enabled && cfg.Mail.SMTPHost != "" {
		transport = mail.NewSMTPTransport(cfg.Mail)
	} else {
		logger.Warn("mail disabled or SMTP host missing; notifications will be skipped")
	}

	notifier := service.NewNotificationService(store, transport, cfg.Mail, cfg.App.BaseURL, logger, nil)
	notifier.Register(bus)
	logger.Info("notification pipeline started",
		zap.Int("workers", cfg.Notification.Workers),
		zap.Int("queue_size", cfg.Notification.QueueSize))
	return bus
}
