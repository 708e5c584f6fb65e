package logger

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

type cronLogger struct {
	l *Logger
}

// CronLogger adapts the logger to cron.Logger. Routine scheduler chatter is logged at debug level.
func (l *Logger) CronLogger() cron.Logger {
	return cronLogger{l: l}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("[Cron] "+msg, kvToFields(keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := kvToFields(keysAndValues)
	fields["error"] = err.Error()
	c.l.Error("[Cron] "+msg, fields)
}

func kvToFields(keysAndValues []interface{}) map[string]string {
	fields := make(map[string]string, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = fmt.Sprint(keysAndValues[i+1])
	}
	return fields
}
