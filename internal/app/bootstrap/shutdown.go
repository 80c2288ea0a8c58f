// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"go.uber.org/zap"
)

// Shutdown stops background work, ends every live session and closes the
// DB connection.
func Shutdown(ctx context.Context, a *App, deps DBDeps, logger *zap.Logger) error {
	if a != nil {
		a.Stop()
		a.Contexts.Shutdown(ctx)
	}
	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
