package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultLogFile is the per-run log written next to the working directory
const DefaultLogFile = "similar_images_log.txt"

var (
	runLogger *logrus.Logger
	logFile   *os.File
	debugMode bool
	mu        sync.Mutex
	isSetup   bool
)

func newLogger(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05,000",
	})
	return logger
}

// SetupLogger opens the log file in append mode and routes all events to it
func SetupLogger(logFilePath string, runID string, debug bool) error {
	mu.Lock()
	defer mu.Unlock()

	if isSetup {
		return nil
	}

	var err error
	logFile, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	runLogger = newLogger(logFile)
	runLogger.AddHook(runHook{runID: runID})
	debugMode = debug

	runLogger.Infof("--- run started at %s ---", time.Now().Format(time.RFC3339))

	isSetup = true
	return nil
}

// SetupWriter routes events to w; used by tests
func SetupWriter(w io.Writer, debug bool) {
	mu.Lock()
	defer mu.Unlock()

	runLogger = newLogger(w)
	debugMode = debug
	isSetup = true
}

// CloseLogger flushes the trailer and closes the log file
func CloseLogger() {
	mu.Lock()
	defer mu.Unlock()

	if runLogger != nil && logFile != nil {
		runLogger.Infof("--- run finished at %s ---", time.Now().Format(time.RFC3339))
		logFile.Close()
	}
	logFile = nil
	runLogger = nil
	debugMode = false
	isSetup = false
}

// runHook stamps the run id on every entry
type runHook struct {
	runID string
}

func (h runHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h runHook) Fire(entry *logrus.Entry) error {
	entry.Data["run"] = h.runID
	return nil
}

// LogInfo logs an information message
func LogInfo(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if runLogger != nil {
		runLogger.Infof(format, args...)
	}
}

// DebugLog logs a message if debug mode is enabled
func DebugLog(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if runLogger != nil && debugMode {
		runLogger.Debugf(format, args...)
	}
}

// LogError logs an error message
func LogError(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if runLogger != nil {
		runLogger.Errorf(format, args...)
	}
}

// LogWarning logs a warning message
func LogWarning(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if runLogger != nil {
		runLogger.Warnf(format, args...)
	}
}

// LogImageSkipped records an image excluded from the index
func LogImageSkipped(path string, err error) {
	LogError("SKIP %s: %v", path, err)
}

// LogSimilar records a compared pair
func LogSimilar(original, duplicate string, distance int) {
	LogInfo("SIMILAR %s and %s (distance %d)", original, duplicate, distance)
}
