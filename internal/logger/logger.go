package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"faceann/internal/config"
)

// Files are the per-level log files created under LOG_DIRECTORY.
var Files = []string{"info.log", "warning.log", "error.log"}

// Logger writes leveled messages for the conversion and viewer commands.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	logDir     string
	mu         sync.Mutex
}

// NewLogger logs to the console and, when LogDirectory is set, to one
// file per level inside it.
func NewLogger(config *config.Config) *Logger {
	logger := &Logger{
		logDir: config.LogDirectory,
	}
	if logger.logDir == "" {
		logger.setupWriters(os.Stdout, os.Stdout, os.Stderr)
		return logger
	}

	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}
	logger.setupLoggers()
	return logger
}

// NewWriterLogger sends every level to w.
func NewWriterLogger(w io.Writer) *Logger {
	logger := &Logger{}
	logger.setupWriters(w, w, w)
	return logger
}

func (l *Logger) setupLoggers() {
	files := make([]io.Writer, len(Files))
	for i, name := range Files {
		files[i] = l.openLogFile(filepath.Join(l.logDir, name))
	}
	l.setupWriters(
		io.MultiWriter(os.Stdout, files[0]),
		io.MultiWriter(os.Stdout, files[1]),
		io.MultiWriter(os.Stderr, files[2]),
	)
}

func (l *Logger) setupWriters(info, warning, errw io.Writer) {
	l.infoLog = log.New(info, "ℹ️  INFO    ", log.Ldate|log.Ltime|log.Lshortfile)
	l.warningLog = log.New(warning, "⚠️  WARNING ", log.Ldate|log.Ltime|log.Lshortfile)
	l.errorLog = log.New(errw, "❌ ERROR   ", log.Ldate|log.Ltime|log.Lshortfile)
}

func (l *Logger) openLogFile(filename string) *os.File {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file %s: %v", filename, err)
	}
	return file
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Output(2, fmt.Sprintf(format, v...))
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Output(2, fmt.Sprintf(format, v...))
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Output(2, fmt.Sprintf(format, v...))
}

// CleanLogs empties one of Files.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return fmt.Errorf("logger has no log directory")
	}
	filePath := filepath.Join(l.logDir, fileName)
	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to truncate %s: %w", fileName, err)
	}
	defer file.Close()

	l.Info("Log file %s has been cleared.", fileName)
	return nil
}
