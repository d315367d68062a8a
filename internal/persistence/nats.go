package persistence

import (
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/config"
)

// NewNATS connects to the notification broker. It returns nil when no URL
// is configured.
func NewNATS(cfg config.NotificationConfig, logger *zap.Logger) (*nats.Conn, error) {
	if cfg.NATSURL == "" {
		logger.Info("NOTIFY_NATS_URL not provided; notifications stay in-process")
		return nil, nil
	}

	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("incident-service"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("connected to nats", zap.String("url", conn.ConnectedUrl()))
	return conn, nil
}
