package mcp

import (
	"context"
	"encoding/json"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel string

const (
	LogLevelDebug     LogLevel = "debug"
	LogLevelInfo      LogLevel = "info"
	LogLevelNotice    LogLevel = "notice"
	LogLevelWarning   LogLevel = "warning"
	LogLevelError     LogLevel = "error"
	LogLevelCritical  LogLevel = "critical"
	LogLevelAlert     LogLevel = "alert"
	LogLevelEmergency LogLevel = "emergency"
)

// LogData represents structured data for a log message
type LogData map[string]any

// handleSetLoggingLevel handles logging level configuration
func (s *Server) handleSetLoggingLevel(_ context.Context, req Request) Response {
	var params struct {
		Level LogLevel `json:"level"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return ErrorResponse(req.ID, InvalidParams, "Invalid logging level parameters")
	}

	s.logLevelMu.Lock()
	s.logLevel = params.Level
	s.logLevelMu.Unlock()

	s.logger.Debug("logging level set", "level", string(params.Level))
	return SuccessResponse(req.ID, map[string]any{})
}

// sendLogNotification sends a log message notification to the client
func (s *Server) sendLogNotification(level LogLevel, message string, data LogData) {
	s.logLevelMu.Lock()
	min := s.logLevel
	s.logLevelMu.Unlock()

	if !shouldEmitLog(min, level) {
		return
	}

	if data == nil {
		data = make(LogData)
	}
	data["message"] = message
	data["timestamp"] = time.Now().Format(time.RFC3339)

	s.emitNotification(map[string]any{
		"method": "notifications/message",
		"params": map[string]any{
			"level":  level,
			"data":   data,
			"logger": s.config.ServerName,
		},
	})
}

// LogInfo sends an info level log notification
func (s *Server) LogInfo(message string, data ...LogData) {
	s.sendLogNotification(LogLevelInfo, message, firstLogData(data))
}

// LogWarning sends a warning level log notification
func (s *Server) LogWarning(message string, data ...LogData) {
	s.sendLogNotification(LogLevelWarning, message, firstLogData(data))
}

// LogError sends an error level log notification
func (s *Server) LogError(message string, data ...LogData) {
	s.sendLogNotification(LogLevelError, message, firstLogData(data))
}

func firstLogData(data []LogData) LogData {
	if len(data) > 0 {
		return data[0]
	}
	return nil
}

// sendProgressNotification sends a progress notification for long-running
// operations.
func (s *Server) sendProgressNotification(progressToken string, progress, total float64, message string) {
	params := map[string]any{
		"progressToken": progressToken,
		"progress":      progress,
		"total":         total,
	}
	if message != "" {
		params["message"] = message
	}

	s.emitNotification(map[string]any{
		"method": "notifications/progress",
		"params": params,
	})
}

func shouldEmitLog(min LogLevel, level LogLevel) bool {
	order := map[LogLevel]int{
		LogLevelDebug:     0,
		LogLevelInfo:      1,
		LogLevelNotice:    2,
		LogLevelWarning:   3,
		LogLevelError:     4,
		LogLevelCritical:  5,
		LogLevelAlert:     6,
		LogLevelEmergency: 7,
	}
	// Default to info if unknown
	minRank, ok := order[min]
	if !ok {
		minRank = order[LogLevelInfo]
	}
	levelRank, ok := order[level]
	if !ok {
		levelRank = order[LogLevelInfo]
	}
	return levelRank >= minRank
}

func (s *Server) emitNotification(payload map[string]any) {
	payload["jsonrpc"] = JSONRPCVersion
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal notification", "error", err.Error())
		return
	}
	s.writeFrame(data)
}
