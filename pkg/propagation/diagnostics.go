package propagation

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// DiagnosticSink is the platform diagnostic sink referenced by spec §4.6/§4.8:
// the place a PluginException or HandlerException is logged so that a
// buggy user updater or handler can never crash the tracing hot path.
type DiagnosticSink interface {
	Warn(component, operation string, fields map[string]interface{}, err any)
}

// logrusDiagnosticSink adapts a *logrus.Logger to DiagnosticSink, matching
// the teacher's convention of threading one process-wide *logrus.Logger
// through every component (pkg/tracing.TracingManager.logger).
type logrusDiagnosticSink struct {
	logger *logrus.Logger
}

func (s *logrusDiagnosticSink) Warn(component, operation string, fields map[string]interface{}, err any) {
	f := logrus.Fields{"component": component, "operation": operation, "panic": err}
	for k, v := range fields {
		f[k] = v
	}
	s.logger.WithFields(f).Warn("propagation: recovered from plugin failure")
}

var defaultSink atomic.Value // DiagnosticSink

var defaultSinkInit sync.Once

func init() {
	defaultSinkInit.Do(func() {
		l := logrus.New()
		defaultSink.Store(&logrusDiagnosticSink{logger: l})
	})
}

// SetDiagnosticSink replaces the process-wide diagnostic sink, e.g. to bind
// it to the application's configured *logrus.Logger instead of a bare
// default one.
func SetDiagnosticSink(sink DiagnosticSink) {
	if sink == nil {
		return
	}
	defaultSink.Store(sink)
}

func diagnosticSink() DiagnosticSink {
	return defaultSink.Load().(DiagnosticSink)
}

// safeUpdater wraps upd so a panic inside it is logged and treated as if
// the updater had returned its input unchanged (spec §7 "PluginException at
// extract/inject"), instead of propagating out of the hot path.
func safeUpdater(upd Updater) Updater {
	if upd == nil {
		return passthroughUpdater
	}
	return UpdaterFunc(func(name, value string, ok bool) (out string, outOk bool) {
		out, outOk = value, ok
		defer func() {
			if r := recover(); r != nil {
				diagnosticSink().Warn("propagation", "updater", map[string]interface{}{"field": name}, r)
				out, outOk = value, ok
			}
		}()
		return upd.Update(name, value, ok)
	})
}
