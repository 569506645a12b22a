package global

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/strataledger/strata/util"
	"github.com/strataledger/strata/util/set"
)

type (
	Logging interface {
		Log() *zap.SugaredLogger
		Tracef(tag string, format string, args ...any)
	}

	// NodeGlobal the environment interface components receive: logging plus metrics
	NodeGlobal interface {
		Logging
		MetricsRegistry() *prometheus.Registry
	}

	Global struct {
		*zap.SugaredLogger
		metricsRegistry *prometheus.Registry
		enabledTrace    atomic.Bool
		traceTagsMutex  sync.RWMutex
		traceTags       set.Set[string]
	}
)

func New(name string, lvl zapcore.Level, outputs []string) *Global {
	return &Global{
		SugaredLogger:   NewLogger(name, lvl, outputs, ""),
		metricsRegistry: prometheus.NewRegistry(),
		traceTags:       set.New[string](),
	}
}

// NewDefault an environment suitable for tests and tools
func NewDefault() *Global {
	return New("strata", zapcore.InfoLevel, nil)
}

func (l *Global) Log() *zap.SugaredLogger {
	return l.SugaredLogger
}

func (l *Global) MetricsRegistry() *prometheus.Registry {
	return l.metricsRegistry
}

func (l *Global) EnableTrace(enable bool) {
	l.enabledTrace.Store(enable)
}

func (l *Global) EnableTraceTags(tags ...string) {
	l.traceTagsMutex.Lock()
	for _, t := range tags {
		for _, t1 := range strings.Split(t, ",") {
			l.traceTags.Insert(strings.TrimSpace(t1))
		}
		l.enabledTrace.Store(true)
	}
	l.traceTagsMutex.Unlock()
	for _, tag := range tags {
		l.Tracef(tag, "trace tag enabled")
	}
}

func (l *Global) TraceLog(log *zap.SugaredLogger, tag string, format string, args ...any) {
	if !l.enabledTrace.Load() {
		return
	}

	l.traceTagsMutex.RLock()
	defer l.traceTagsMutex.RUnlock()

	for _, t := range strings.Split(tag, ",") {
		if l.traceTags.Contains(t) {
			log.Infof("TRACE(%s) %s", t, fmt.Sprintf(format, util.EvalLazyArgs(args...)...))
			return
		}
	}
}

func (l *Global) Tracef(tag string, format string, args ...any) {
	l.TraceLog(l.Log(), tag, format, args...)
}
