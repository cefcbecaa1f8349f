// Package logger constrói o logger estruturado usado por todo o processo.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New cria um logger zap. Em modo debug usa saída de console legível.
func New(level string, debug bool) (*zap.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
		lvl = zapcore.DebugLevel
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("erro ao criar logger: %w", err)
	}
	return log, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("nível de log inválido: %q", level)
	}
}

// CronLogger adapta o zap à interface de logger do robfig/cron
type CronLogger struct {
	log *zap.SugaredLogger
}

// NewCronLogger cria o adaptador do logger para o cron
func NewCronLogger(log *zap.Logger) CronLogger {
	return CronLogger{log: log.Named("cron").Sugar()}
}

// Info registra eventos rotineiros do cron em nível debug
func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debugw(msg, keysAndValues...)
}

// Error registra falhas e panics dos jobs
func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
