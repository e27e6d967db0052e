package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger writes diagnostics to w. Command results go to stdout through
// the printers; the logger only carries timings and debug detail.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Level:           level,
	})
}

// stepTimer logs the completion of one long-running command step, such as a
// CSV import or a graph render.
type stepTimer struct {
	logger *log.Logger
	step   string
	start  time.Time
}

func startStep(l *log.Logger, step string) *stepTimer {
	return &stepTimer{logger: l, step: step, start: time.Now()}
}

// done logs msg with keyvals plus the step name and elapsed time:
//
//	bom: INFO Imported parts step=import file=parts.csv created=3 elapsed=12ms
func (s *stepTimer) done(msg string, keyvals ...any) {
	keyvals = append(keyvals, "step", s.step, "elapsed", time.Since(s.start).Round(time.Millisecond))
	s.logger.Info(msg, keyvals...)
}
