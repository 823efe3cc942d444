// Package logger defines the injected-logger contract every error is
// reported through at an appropriate severity, with a zap-backed
// default implementation modeled on ignite's constructor-injected
// *zap.SugaredLogger field.
package logger

import "go.uber.org/zap"

// Logger is the minimal structured-logging surface shmop depends on.
type Logger interface {
	Debugf(template string, args ...any)
	Infof(template string, args ...any)
	Warnf(template string, args ...any)
	Errorf(template string, args ...any)
}

// zapLogger adapts a *zap.SugaredLogger to Logger.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZap builds the default production Logger over a zap production
// config. Callers that need a custom zap.Logger should use NewFromZap.
func NewZap() (Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	return NewFromZap(z), nil
}

// NewFromZap adapts an already-configured *zap.Logger.
func NewFromZap(z *zap.Logger) Logger {
	return &zapLogger{sugar: z.Sugar()}
}

func (l *zapLogger) Debugf(template string, args ...any) { l.sugar.Debugf(template, args...) }
func (l *zapLogger) Infof(template string, args ...any)  { l.sugar.Infof(template, args...) }
func (l *zapLogger) Warnf(template string, args ...any)  { l.sugar.Warnf(template, args...) }
func (l *zapLogger) Errorf(template string, args ...any) { l.sugar.Errorf(template, args...) }

// Nop is a Logger that discards everything, used by default in tests
// and by callers that have no logging sink wired up.
type Nop struct{}

func (Nop) Debugf(string, ...any) {}
func (Nop) Infof(string, ...any)  {}
func (Nop) Warnf(string, ...any)  {}
func (Nop) Errorf(string, ...any) {}
