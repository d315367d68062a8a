package observability

import (
	"fmt"
	"sort"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/config"
)

// InitErrorReporting configures Sentry. An empty DSN leaves reporting off.
// The returned func flushes buffered events and must be called on shutdown.
func InitErrorReporting(cfg config.SentryConfig, app config.AppConfig, logger *zap.Logger) (func(), error) {
	if cfg.DSN == "" {
		logger.Info("SENTRY_DSN not provided; error reporting disabled")
		return func() {}, nil
	}

	env := cfg.Environment
	if env == "" {
		env = app.Env
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: env,
		Release:     app.Name + "@" + app.Version,
	}); err != nil {
		return nil, fmt.Errorf("init sentry: %w", err)
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// ReportError logs err at error level and forwards it to Sentry tagged with tags.
func ReportError(logger *zap.Logger, err error, msg string, tags map[string]string) {
	if err == nil {
		return
	}

	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
	})
	eventID := hub.CaptureException(err)

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(tags)+2)
	fields = append(fields, zap.Error(err))
	for _, k := range keys {
		fields = append(fields, zap.String(k, tags[k]))
	}
	if eventID != nil {
		fields = append(fields, zap.String("sentry_id", string(*eventID)))
	}
	logger.Error(msg, fields...)
}
