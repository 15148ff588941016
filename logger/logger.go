package logger

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Fields = logrus.Fields

// Logger is the shared logger instance; packages bind it as `var log = logger.Logger`.
var Logger = logrus.New()

// ConsoleFilter filters logs for console output (only significant messages)
type ConsoleFilter struct {
	writer io.Writer
}

// NewConsoleFilter creates a new console filter
func NewConsoleFilter(writer io.Writer) *ConsoleFilter {
	return &ConsoleFilter{writer: writer}
}

// Write filters messages and only writes significant ones to console
func (cf *ConsoleFilter) Write(p []byte) (n int, err error) {
	logLine := string(p)

	if strings.Contains(logLine, "[ERROR]") ||
		strings.Contains(logLine, "[FATAL]") ||
		strings.Contains(logLine, "[PANIC]") ||
		strings.Contains(logLine, "[WARNING]") ||
		(strings.Contains(logLine, "[INFO]") && (strings.Contains(logLine, "started") ||
			strings.Contains(logLine, "stopped") ||
			strings.Contains(logLine, "finished") ||
			strings.Contains(logLine, "block") ||
			strings.Contains(logLine, "run") ||
			strings.Contains(logLine, "matrix") ||
			strings.Contains(logLine, "archive"))) {
		return cf.writer.Write(p)
	}

	// Report the length as if written so logrus keeps going
	return len(p), nil
}

// LineFormatter renders one log4j-like line per entry
type LineFormatter struct{}

func (f *LineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var fileName string
	var funcName string
	var lineNum int

	if entry.HasCaller() {
		fileName = path.Base(entry.Caller.File)
		funcName = entry.Caller.Function
		lineNum = entry.Caller.Line

		// Trim the package path, keep the bare function name
		if idx := strings.LastIndex(funcName, "."); idx >= 0 {
			funcName = funcName[idx+1:]
		}
	}

	// Format: YYYY-MM-DD HH:mm:ss.SSS [LEVEL] function(File:Line) - message
	logLine := fmt.Sprintf("%s [%s] %s(%s:%d) - %s",
		entry.Time.Format("2006-01-02 15:04:05.000"),
		strings.ToUpper(entry.Level.String()),
		funcName,
		fileName,
		lineNum,
		entry.Message,
	)

	if len(entry.Data) > 0 {
		logLine += " {"
		var fieldParts []string
		for k, v := range entry.Data {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%v", k, v))
		}
		logLine += strings.Join(fieldParts, ", ")
		logLine += "}"
	}

	return []byte(logLine + "\n"), nil
}

// Configure routes output according to the binary's flags. With a file path the
// console only sees significant lines and the full stream rotates on disk;
// without one everything goes to stdout.
func Configure(level string, logFile string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("unknown log level %q: %w", level, err)
	}
	Logger.SetLevel(parsed)

	if logFile == "" {
		Logger.SetOutput(os.Stdout)
		return nil
	}

	if err := os.MkdirAll(path.Dir(logFile), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	fileWriter := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    100, // megabytes
		MaxBackups: 2,
		MaxAge:     30, // days
		Compress:   true,
	}

	Logger.SetOutput(io.MultiWriter(NewConsoleFilter(os.Stdout), fileWriter))
	return nil
}

func init() {
	Logger.SetReportCaller(true)
	Logger.SetFormatter(&LineFormatter{})
	Logger.SetOutput(os.Stdout)
	Logger.SetLevel(logrus.InfoLevel)
}
