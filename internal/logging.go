package internal

import (
	"log"
	"os"
)

// NewLogger returns a stdout logger with the shared service prefix.
// Component names are appended as "gitfeed/<component>".
func NewLogger(component string) *log.Logger {
	prefix := "gitfeed"
	if component != "" {
		prefix = prefix + "/" + component
	}
	return log.New(os.Stdout, prefix+" ", log.LstdFlags|log.Lmicroseconds)
}

// WithRequestID derives a logger whose prefix carries the request id, so
// every line written while serving one delivery can be correlated.
func WithRequestID(logger *log.Logger, requestID string) *log.Logger {
	if logger == nil {
		logger = log.Default()
	}
	if requestID == "" {
		return logger
	}
	return log.New(logger.Writer(), logger.Prefix()+"["+requestID+"] ", logger.Flags())
}
