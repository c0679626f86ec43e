package kit

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions tunes NewLogger. The zero value logs JSON at info level to stdout.
type LogOptions struct {
	Level string
	// File enables a rotating JSON log file next to stdout.
	File string
}

func NewLogger(service string, opts LogOptions) *zap.Logger {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if opts.Level != "" {
		if lvl, err := zapcore.ParseLevel(opts.Level); err == nil {
			level.SetLevel(lvl)
		}
	}

	if opts.File == "" {
		cfg := zap.NewProductionConfig()
		cfg.Level = level
		cfg.InitialFields = map[string]any{"service": service}
		l, err := cfg.Build()
		if err != nil {
			return zap.NewNop()
		}
		return l
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    64,
		MaxBackups: 7,
		MaxAge:     7,
	}
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), level),
		zapcore.NewCore(enc.Clone(), zapcore.AddSync(rotator), level),
	)
	return zap.New(core, zap.AddCaller()).With(zap.String("service", service))
}
