package utils

import (
	"go.uber.org/zap"
)

// HandleFatalError завершает процесс через logger.Fatal, если err не nil.
// Если логгер nil, вызывает panic.
func HandleFatalError(err error, logger *zap.Logger, msg string, fields ...zap.Field) {
	if err == nil {
		return
	}
	if logger == nil {
		panic(msg + ": " + err.Error())
	}
	logger.Fatal(msg, append(fields, zap.Error(err))...)
}
