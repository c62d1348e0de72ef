package stripe

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// leveledLogger routes stripe-go's request logging into the service logger.
// Per-request info lines are demoted to debug.
type leveledLogger struct {
	logg *logger.Logger
}

func (l leveledLogger) ctx() context.Context {
	return l.logg.WithField(context.Background(), "component", "stripe")
}

func (l leveledLogger) Debugf(format string, v ...interface{}) {
	l.logg.Debug(l.ctx(), fmt.Sprintf(format, v...))
}

func (l leveledLogger) Infof(format string, v ...interface{}) {
	l.logg.Debug(l.ctx(), fmt.Sprintf(format, v...))
}

func (l leveledLogger) Warnf(format string, v ...interface{}) {
	l.logg.Warn(l.ctx(), fmt.Sprintf(format, v...))
}

func (l leveledLogger) Errorf(format string, v ...interface{}) {
	l.logg.Error(l.ctx(), fmt.Sprintf(format, v...), nil)
}
