package server

import (
	"context"
	"fmt"

	"truthlens-api/logging"

	"github.com/robfig/cron/v3"
)

// newScheduler registers the background jobs. The returned scheduler is not
// started. A panicking job is logged and does not stop the process.
func (a *App) newScheduler(ctx context.Context) (*cron.Cron, error) {
	logger := cronLogger{a.Logger}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger)))

	if spec := a.Config.Feed.RefreshSpec; spec != "" {
		_, err := c.AddFunc(spec, func() {
			items := a.Feed.Refresh(ctx)
			a.Logger.WithField("items", len(items)).Debug("News feed cache refreshed")
		})
		if err != nil {
			return nil, fmt.Errorf("news feed schedule %q: %w", spec, err)
		}
		a.Logger.WithField("schedule", spec).Info("Scheduled news feed refresh")
	}

	return c, nil
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(pairs(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithError(err).WithFields(pairs(keysAndValues)).Error(msg)
}

func pairs(keysAndValues []interface{}) logging.Fields {
	fields := logging.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
