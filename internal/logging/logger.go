package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger writes JSON logs to a rotated file under logDir at the given
// level ("" means info), and also to stdout when console is set.
func NewLogger(logDir, level string, console bool) (*zap.Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	lvl := zap.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}

	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, "netprobe.log"),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(cfg)

	core := zapcore.NewCore(enc, w, lvl)
	if console {
		core = zapcore.NewTee(core, zapcore.NewCore(enc, zapcore.Lock(os.Stdout), lvl))
	}
	return zap.New(core, zap.AddCaller()), nil
}
