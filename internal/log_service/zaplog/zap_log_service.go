package zaplog

import (
	"fmt"

	"github.com/AnishMulay/hdfswindow/internal/log_service"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogService writes events to a zap logger. It backs the console sink used
// by the CLI for operational messages.
type ZapLogService struct {
	logger    *zap.Logger
	sessionID string
}

// NewConsoleLogService builds a console-encoded zap logger writing to the given
// output paths (stderr when none are provided).
func NewConsoleLogService(sessionID string, minLevel string, outputPaths ...string) (*ZapLogService, error) {
	if len(outputPaths) == 0 {
		outputPaths = []string{"stderr"}
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(toZapLevel(minLevel))
	cfg.OutputPaths = outputPaths
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}

	return NewZapLogService(logger, sessionID), nil
}

func NewZapLogService(logger *zap.Logger, sessionID string) *ZapLogService {
	return &ZapLogService{logger: logger, sessionID: sessionID}
}

func toZapLevel(level string) zapcore.Level {
	switch log_service.GetLevelValue(level) {
	case log_service.InfoLevelValue:
		return zapcore.InfoLevel
	case log_service.WarnLevelValue:
		return zapcore.WarnLevel
	case log_service.ErrorLevelValue:
		return zapcore.ErrorLevel
	default:
		return zapcore.DebugLevel
	}
}

func (z *ZapLogService) fields(event log_service.LogEvent) []zap.Field {
	fields := make([]zap.Field, 0, len(event.Metadata)+1)
	if z.sessionID != "" {
		fields = append(fields, zap.String("session", z.sessionID))
	}
	for k, v := range event.Metadata {
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}

func (z *ZapLogService) Sync() error {
	return z.logger.Sync()
}

func (z *ZapLogService) Debug(event log_service.LogEvent) {
	z.logger.Debug(event.Message, z.fields(event)...)
}

func (z *ZapLogService) Info(event log_service.LogEvent) {
	z.logger.Info(event.Message, z.fields(event)...)
}

func (z *ZapLogService) Warn(event log_service.LogEvent) {
	z.logger.Warn(event.Message, z.fields(event)...)
}

func (z *ZapLogService) Error(event log_service.LogEvent) {
	z.logger.Error(event.Message, z.fields(event)...)
}

var _ log_service.LogService = (*ZapLogService)(nil)
