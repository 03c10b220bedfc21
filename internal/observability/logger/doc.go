// Package logger provides the process-wide structured logger.
//
// It wraps go.uber.org/zap behind a small API:
//
//	logger.Init(logger.Config{Env: "prod", Level: "info"})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Op("callback"))
//	log.Info("account linked", logger.Platform("twitter"))
//
// Middlewares inject a request-scoped logger into the context; From(ctx)
// falls back to the singleton when none was injected.
package logger
