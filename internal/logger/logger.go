package logger

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps the underlying zap logger with additional functionality
type Logger struct {
	*zap.SugaredLogger
}

// Config represents logger configuration
type Config struct {
	Level  string
	Format string
	Debug  bool
}

// New builds a logger from config. Debug gets the development encoder,
// everything else logs JSON.
func New(cfg Config) (*Logger, error) {
	var zapCfg zap.Config
	if cfg.Debug || cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	base, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &Logger{SugaredLogger: base.Sugar()}, nil
}

// NewNop returns a logger that discards everything; used by tests.
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// WithFields returns a logger with the fields attached to every entry.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(fieldsToArgs(fields)...)}
}

// LogVendorRequest logs outbound vendor API calls
func (l *Logger) LogVendorRequest(operation string, attempt int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"operation": operation,
		"attempt":   attempt,
		"duration":  duration.Milliseconds(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.WithFields(fields).Warn("Vendor request failed")
	} else {
		l.WithFields(fields).Debug("Vendor request completed")
	}
}

// LogCircuitTransition logs circuit breaker state changes
func (l *Logger) LogCircuitTransition(operation, from, to string) {
	entry := l.WithFields(map[string]interface{}{
		"operation": operation,
		"from":      from,
		"to":        to,
	})

	if to == "OPEN" {
		entry.Warn("Circuit opened")
	} else {
		entry.Info("Circuit state changed")
	}
}

// LogTradeOperation logs buy-pipeline steps per user and symbol
func (l *Logger) LogTradeOperation(userID, symbol, step string, err error) {
	fields := map[string]interface{}{
		"user_id": userID,
		"symbol":  symbol,
		"step":    step,
	}

	if err != nil {
		fields["error"] = err.Error()
		l.WithFields(fields).Error("Trade step failed")
	} else {
		l.WithFields(fields).Info("Trade step completed")
	}
}

// LogInconsistency logs a vendor-confirmed fill that could not be recorded.
// Highest severity short of exiting: this is money moved without a record.
func (l *Logger) LogInconsistency(userID, symbol, orderID string, err error) {
	l.WithFields(map[string]interface{}{
		"user_id":  userID,
		"symbol":   symbol,
		"order_id": orderID,
		"error":    err.Error(),
	}).Error("INCONSISTENCY: vendor-confirmed fill without matching ledger record")
}

// Helper functions
func fieldsToArgs(fields map[string]interface{}) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}
