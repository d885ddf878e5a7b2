package logs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey string

const ctxKeyLogID ctxKey = "log_id"

// Options configures the process-wide logger built by Init.
type Options struct {
	Level      string
	Format     string
	Output     string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

var logger Logger = newStderrFallback()

func setLogger(l Logger) {
	if l != nil {
		logger = l
	}
}

func DefaultLogger() Logger {
	return logger
}

// Init replaces the fallback logger with one built from opts. Call it once at
// startup, before anything logs in earnest.
func Init(opts Options) error {
	l, err := newRoutineLogger(opts)
	if err != nil {
		return err
	}
	setLogger(l)
	return nil
}

func Info(format string, v ...interface{}) {
	logger.Info(format, v...)
}

func Warn(format string, v ...interface{}) {
	logger.Warn(format, v...)
}

func Error(format string, v ...interface{}) {
	logger.Error(format, v...)
}

func CtxDebug(ctx context.Context, format string, v ...interface{}) {
	logger.CtxDebug(ctx, format, v...)
}

func CtxInfo(ctx context.Context, format string, v ...interface{}) {
	logger.CtxInfo(ctx, format, v...)
}

func CtxWarn(ctx context.Context, format string, v ...interface{}) {
	logger.CtxWarn(ctx, format, v...)
}

func CtxError(ctx context.Context, format string, v ...interface{}) {
	logger.CtxError(ctx, format, v...)
}

// NewLogID mints a correlation id; the HTTP layer attaches one per request.
func NewLogID() string {
	return logger.NewLogID()
}

func SetLogID(ctx context.Context, logID string) context.Context {
	return logger.SetLogID(ctx, logID)
}

func Flush() {
	logger.Flush()
}

// routineLogger is the logrus-backed Logger used throughout the service.
type routineLogger struct {
	log    *logrus.Logger
	closer io.Closer
}

var levelToLogrus = map[LogLevel]logrus.Level{
	DebugLevel: logrus.DebugLevel,
	InfoLevel:  logrus.InfoLevel,
	WarnLevel:  logrus.WarnLevel,
	ErrorLevel: logrus.ErrorLevel,
	FatalLevel: logrus.FatalLevel,
}

var levelFromLogrus = map[logrus.Level]LogLevel{
	logrus.DebugLevel: DebugLevel,
	logrus.InfoLevel:  InfoLevel,
	logrus.WarnLevel:  WarnLevel,
	logrus.ErrorLevel: ErrorLevel,
	logrus.FatalLevel: FatalLevel,
}

// newStderrFallback covers the window before Init runs (and tests that never
// call it): colored text to stderr at info level.
func newStderrFallback() Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&lineFormatter{colored: !color.NoColor})
	log.SetLevel(logrus.InfoLevel)
	return &routineLogger{log: log}
}

func newRoutineLogger(opts Options) (Logger, error) {
	log := logrus.New()

	output := strings.ToLower(strings.TrimSpace(opts.Output))
	if output == "" {
		output = "stdout"
	}

	var closer io.Closer
	switch output {
	case "stdout":
		log.SetOutput(os.Stdout)
	case "file":
		rw, err := newRotateOutput(opts)
		if err != nil {
			return nil, err
		}
		log.SetOutput(rw)
		closer = rw
	case "both":
		rw, err := newRotateOutput(opts)
		if err != nil {
			return nil, err
		}
		log.SetOutput(&teeWriter{console: os.Stdout, file: rw})
		closer = rw
	default:
		return nil, fmt.Errorf("unsupported log output: %s", output)
	}

	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&lineFormatter{colored: output != "file" && !color.NoColor})
	}

	log.SetLevel(levelFromString(opts.Level))
	return &routineLogger{log: log, closer: closer}, nil
}

func newRotateOutput(opts Options) (*lumberjack.Logger, error) {
	if strings.TrimSpace(opts.File) == "" {
		return nil, fmt.Errorf("log file is required when output includes file")
	}
	if dir := filepath.Dir(opts.File); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir failed: %w", err)
		}
	}

	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = 100
	}

	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSize,
		MaxBackups: max(opts.MaxBackups, 0),
		MaxAge:     max(opts.MaxAge, 0),
		Compress:   opts.Compress,
	}, nil
}

func levelFromString(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

func (l *routineLogger) SetLevel(level LogLevel) {
	if lv, ok := levelToLogrus[level]; ok {
		l.log.SetLevel(lv)
	}
}

func (l *routineLogger) GetLevel() LogLevel {
	if lv, ok := levelFromLogrus[l.log.GetLevel()]; ok {
		return lv
	}
	return InfoLevel
}

func (l *routineLogger) Debug(format string, v ...interface{}) { l.log.Debugf(format, v...) }
func (l *routineLogger) Info(format string, v ...interface{})  { l.log.Infof(format, v...) }
func (l *routineLogger) Warn(format string, v ...interface{})  { l.log.Warnf(format, v...) }
func (l *routineLogger) Error(format string, v ...interface{}) { l.log.Errorf(format, v...) }
func (l *routineLogger) Fatal(format string, v ...interface{}) { l.log.Fatalf(format, v...) }

func (l *routineLogger) CtxDebug(ctx context.Context, format string, v ...interface{}) {
	l.log.WithContext(ctx).Debugf(format, v...)
}

func (l *routineLogger) CtxInfo(ctx context.Context, format string, v ...interface{}) {
	l.log.WithContext(ctx).Infof(format, v...)
}

func (l *routineLogger) CtxWarn(ctx context.Context, format string, v ...interface{}) {
	l.log.WithContext(ctx).Warnf(format, v...)
}

func (l *routineLogger) CtxError(ctx context.Context, format string, v ...interface{}) {
	l.log.WithContext(ctx).Errorf(format, v...)
}

func (l *routineLogger) CtxFatal(ctx context.Context, format string, v ...interface{}) {
	l.log.WithContext(ctx).Fatalf(format, v...)
}

func (l *routineLogger) NewLogID() string {
	return uuid.New().String()
}

func (l *routineLogger) GetLogID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKeyLogID).(string)
	return id
}

func (l *routineLogger) SetLogID(ctx context.Context, logID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKeyLogID, logID)
}

// Flush closes the rotating file, if any. Console output needs no flushing.
func (l *routineLogger) Flush() {
	if l.closer != nil {
		_ = l.closer.Close()
	}
}

// teeWriter mirrors every line to the console and to the file, with escape
// sequences removed from the file copy.
type teeWriter struct {
	console io.Writer
	file    io.Writer
}

func (w *teeWriter) Write(p []byte) (int, error) {
	if _, err := w.console.Write(p); err != nil {
		return 0, err
	}
	if _, err := w.file.Write(stripANSI(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(p []byte) []byte {
	return ansiPattern.ReplaceAll(p, nil)
}

// lineFormatter renders "LEVEL timestamp caller log-id message". The log-id
// comes from the entry context and shows "-" when the call site carried none.
type lineFormatter struct {
	colored bool
}

func (f *lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	level := strings.ToUpper(entry.Level.String())
	if f.colored {
		level = colorizeLevel(entry.Level, level)
	}

	logID := "-"
	if entry.Context != nil {
		if id, ok := entry.Context.Value(ctxKeyLogID).(string); ok && id != "" {
			logID = id
		}
	}

	file, line := callerLocation()

	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s %s:%d %s %s\n",
		level,
		entry.Time.Format("2006-01-02 15:04:05,000"),
		file,
		line,
		logID,
		entry.Message,
	)
	return b.Bytes(), nil
}

// callerLocation walks the stack past logrus and this package to the real log
// call site. Frame scanning is slower than a fixed skip but does not break
// when a wrapper is added or removed.
func callerLocation() (string, int) {
	pcs := make([]uintptr, 24)
	n := runtime.Callers(4, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.File != "" && !isLoggingFrame(frame.File) {
			return shortPath(frame.File), frame.Line
		}
		if !more {
			return "???", 0
		}
	}
}

func isLoggingFrame(file string) bool {
	return strings.Contains(file, "sirupsen/logrus") ||
		strings.HasSuffix(file, "pkg/logs/default.go") ||
		strings.HasSuffix(file, "pkg/logs/hertz.go")
}

// shortPath keeps the last two path elements, "pkg/file.go".
func shortPath(fullPath string) string {
	dir, file := filepath.Split(fullPath)
	if dir == "" {
		return file
	}
	return filepath.Base(filepath.Clean(dir)) + "/" + file
}

var (
	colorDebug = color.New(color.FgCyan)
	colorInfo  = color.New(color.FgGreen)
	colorWarn  = color.New(color.FgYellow)
	colorError = color.New(color.FgRed)
)

func colorizeLevel(level logrus.Level, text string) string {
	switch level {
	case logrus.DebugLevel:
		return colorDebug.Sprint(text)
	case logrus.InfoLevel:
		return colorInfo.Sprint(text)
	case logrus.WarnLevel:
		return colorWarn.Sprint(text)
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return colorError.Sprint(text)
	default:
		return text
	}
}
