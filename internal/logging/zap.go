package logging

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// ZapLogger adapts a *zap.Logger to the Logger interface.
//
// Messages keep their namespace prefix (e.g. "[reader] ") so output stays
// greppable the same way as DefaultLogger output. Fatalf logs at error level
// with a "fatal" field instead of calling zap's Fatal, which would exit.
type ZapLogger struct {
	sugar        *zap.SugaredLogger
	fatalHandler atomic.Pointer[FatalHandler]
}

// NewZapLogger wraps l. A nil l is replaced by zap.NewNop().
func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{sugar: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// SetFatalHandler sets the handler called when Fatalf is invoked.
func (l *ZapLogger) SetFatalHandler(h FatalHandler) {
	l.fatalHandler.Store(&h)
}

// Errorf implements Logger.
func (l *ZapLogger) Errorf(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}

// Warnf implements Logger.
func (l *ZapLogger) Warnf(format string, args ...any) {
	l.sugar.Warnf(format, args...)
}

// Infof implements Logger.
func (l *ZapLogger) Infof(format string, args ...any) {
	l.sugar.Infof(format, args...)
}

// Debugf implements Logger.
func (l *ZapLogger) Debugf(format string, args ...any) {
	l.sugar.Debugf(format, args...)
}

// Fatalf implements Logger.
func (l *ZapLogger) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.sugar.Errorw(msg, "fatal", true)
	if h := l.fatalHandler.Load(); h != nil {
		(*h)(msg)
	}
}

// Sync flushes any buffered log entries.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}
