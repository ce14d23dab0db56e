package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps a level name to a LogLevel. Unknown names yield INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// Logger wraps a zap SugaredLogger behind the printf-style API used across
// the module.
type Logger struct {
	mu     sync.Mutex
	cfg    Config
	level  zap.AtomicLevel
	sugar  *zap.SugaredLogger
	fields []any
}

var (
	defaultLogger *Logger
	once          sync.Once
)

type Config struct {
	Level      LogLevel
	Format     string // console or json
	Colorize   bool
	ShowCaller bool
	TimeFormat string
	Output     io.Writer
}

func DefaultConfig() Config {
	return Config{
		Level:      INFO,
		Format:     "console",
		Colorize:   isatty.IsTerminal(os.Stderr.Fd()),
		ShowCaller: false,
		TimeFormat: "2006-01-02 15:04:05",
		Output:     os.Stderr,
	}
}

func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = "2006-01-02 15:04:05"
	}
	l := &Logger{cfg: cfg, level: zap.NewAtomicLevelAt(cfg.Level.zapLevel())}
	l.build()
	return l
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return &Logger{level: zap.NewAtomicLevel(), sugar: zap.NewNop().Sugar()}
}

func (l *Logger) build() {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(l.cfg.TimeFormat)
	encCfg.TimeKey = "time"

	var enc zapcore.Encoder
	if l.cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		if l.cfg.Colorize {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		encCfg.ConsoleSeparator = " "
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(l.cfg.Output), l.level)
	opts := []zap.Option{zap.AddCallerSkip(1)}
	if l.cfg.ShowCaller {
		opts = append(opts, zap.AddCaller())
	}
	l.sugar = zap.New(core, opts...).Sugar().With(l.fields...)
}

func GetLogger() *Logger {
	once.Do(func() {
		cfg := DefaultConfig()
		if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
			cfg.Level = ParseLevel(envLevel)
		}
		defaultLogger = New(cfg)
	})
	return defaultLogger
}

// Configure replaces the default logger's settings.
func Configure(cfg Config) *Logger {
	l := GetLogger()
	l.mu.Lock()
	defer l.mu.Unlock()
	if cfg.Output == nil {
		cfg.Output = l.cfg.Output
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = l.cfg.TimeFormat
	}
	l.cfg = cfg
	l.level.SetLevel(cfg.Level.zapLevel())
	l.build()
	return l
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(kv ...any) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	child := &Logger{cfg: l.cfg, level: l.level, fields: append(append([]any{}, l.fields...), kv...)}
	child.sugar = l.sugar.With(kv...)
	return child
}

func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg.Output = w
	l.build()
}

func (l *Logger) SetColorize(colorize bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg.Colorize = colorize
	l.build()
}

func (l *Logger) SetShowCaller(show bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg.ShowCaller = show
	l.build()
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.current().Sync()
}

// Zap exposes the underlying logger for libraries that want one.
func (l *Logger) Zap() *zap.Logger {
	return l.current().Desugar()
}

func (l *Logger) current() *zap.SugaredLogger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sugar
}

func (l *Logger) Debugf(format string, args ...any) { l.current().Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.current().Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.current().Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.current().Errorf(format, args...) }

// Fatalf logs and exits the program.
func (l *Logger) Fatalf(format string, args ...any) { l.current().Fatalf(format, args...) }

// Warningf satisfies badger's logger interface.
func (l *Logger) Warningf(format string, args ...any) { l.current().Warnf(format, args...) }

// Package-level convenience functions using the default logger

func Debugf(format string, args ...any) { GetLogger().Debugf(format, args...) }
func Infof(format string, args ...any)  { GetLogger().Infof(format, args...) }
func Warnf(format string, args ...any)  { GetLogger().Warnf(format, args...) }
func Errorf(format string, args ...any) { GetLogger().Errorf(format, args...) }
func Fatalf(format string, args ...any) { GetLogger().Fatalf(format, args...) }

func SetLevel(level LogLevel) { GetLogger().SetLevel(level) }
func SetOutput(w io.Writer)   { GetLogger().SetOutput(w) }
