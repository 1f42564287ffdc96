package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger = zap.NewNop()

// Init inicializa el logger global con el nivel indicado ("debug", "info", ...).
// Un nivel desconocido cae a info.
func Init(level string) {
	var err error
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"            // Logs estructurados en JSON
	cfg.EncoderConfig.TimeKey = "ts" // timestamp
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl, lvlErr := zapcore.ParseLevel(level)
	if lvlErr != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	log, err = cfg.Build()
	if err != nil {
		panic(err)
	}
	if lvlErr != nil {
		log.Warn("⚠️ LOG_LEVEL desconocido, usando info", zap.String("level", level))
	}
}

// Logger retorna el logger estructurado
func Logger() *zap.Logger {
	return log
}
