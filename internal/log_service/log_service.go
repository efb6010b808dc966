package log_service

import (
	"strings"
	"time"
)

const (
	DebugLevel = "DEBUG"
	InfoLevel  = "INFO"
	WarnLevel  = "WARN"
	ErrorLevel = "ERROR"
)

const (
	DebugLevelValue = iota
	InfoLevelValue
	WarnLevelValue
	ErrorLevelValue
)

type LogEvent struct {
	Timestamp time.Time
	SessionID string
	Message   string
	Metadata  map[string]any
}

type LogService interface {
	Debug(event LogEvent)
	Info(event LogEvent)
	Warn(event LogEvent)
	Error(event LogEvent)
}

// GetLevelValue maps a level name to its ordinal. Unknown names map to DEBUG.
func GetLevelValue(level string) int {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case InfoLevel:
		return InfoLevelValue
	case WarnLevel, "WARNING":
		return WarnLevelValue
	case ErrorLevel:
		return ErrorLevelValue
	default:
		return DebugLevelValue
	}
}

type multiLogService struct {
	sinks []LogService
}

// Multi returns a LogService that forwards every event to each non-nil sink.
func Multi(sinks ...LogService) LogService {
	filtered := make([]LogService, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &multiLogService{sinks: filtered}
}

func (m *multiLogService) Debug(event LogEvent) {
	for _, s := range m.sinks {
		s.Debug(event)
	}
}

func (m *multiLogService) Info(event LogEvent) {
	for _, s := range m.sinks {
		s.Info(event)
	}
}

func (m *multiLogService) Warn(event LogEvent) {
	for _, s := range m.sinks {
		s.Warn(event)
	}
}

func (m *multiLogService) Error(event LogEvent) {
	for _, s := range m.sinks {
		s.Error(event)
	}
}

type discardLogService struct{}

// Discard drops every event.
func Discard() LogService { return discardLogService{} }

func (discardLogService) Debug(LogEvent) {}
func (discardLogService) Info(LogEvent)  {}
func (discardLogService) Warn(LogEvent)  {}
func (discardLogService) Error(LogEvent) {}
