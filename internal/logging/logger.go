package logging

import "go.uber.org/zap"

// Logger is the small logging surface the rest of the client depends on.
// Production wiring hands in a zap-backed implementation; tests use Nop.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger wraps a sugared zap logger in the Logger interface.
func NewZapLogger(s *zap.SugaredLogger) Logger {
	return &zapLogger{s: s}
}

// New builds a production zap logger at the given level ("debug", "info",
// "warn", "error"; anything else falls back to info).
func New(level string) (Logger, error) {
	cfg := zap.NewProductionConfig()
	if parsed, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = parsed
	}
	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return NewZapLogger(base.Sugar()), nil
}

// Nop returns a logger that discards everything. Intended for tests.
func Nop() Logger {
	return NewZapLogger(zap.NewNop().Sugar())
}

func (l *zapLogger) Debugf(format string, args ...interface{}) { l.s.Debugf(format, args...) }
func (l *zapLogger) Infof(format string, args ...interface{})  { l.s.Infof(format, args...) }
func (l *zapLogger) Warnf(format string, args ...interface{})  { l.s.Warnf(format, args...) }
func (l *zapLogger) Errorf(format string, args ...interface{}) { l.s.Errorf(format, args...) }
