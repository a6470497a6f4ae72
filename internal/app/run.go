package app

import (
	"context"
	"errors"
)

// Run builds the project once and, in watch mode, keeps rebuilding until
// ctx is cancelled. In watch mode an initial build failure is logged but
// not returned, so the user can fix the sources while the app runs.
func (a *App) Run(ctx context.Context) error {
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer()
	defer func() { _ = a.closeHealthCheckServer() }()

	buildErr := a.Build(ctx)
	if !a.config.Watch {
		a.logger.Debug("App.Run method finished.")
		return buildErr
	}

	if err := a.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}
