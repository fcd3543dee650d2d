package logger

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// logEntry is a single formatted log message together with the level it was
// logged at, ready to be dispatched to the backend's writers.
type logEntry struct {
	log   []byte
	level Level
}

// Logger is a subsystem logger. All messages are tagged with the subsystem's
// tag and filtered by the logger's current level before being handed to the
// backend.
type Logger struct {
	lvl       uint32 // atomic, holds a Level
	tag       string
	b         *Backend
	writeChan chan<- logEntry
}

// Trace formats message using the default formats for its operands, prepends
// the prefix as necessary, and writes to log with LevelTrace.
func (l *Logger) Trace(args ...interface{}) {
	l.print(LevelTrace, args...)
}

// Tracef formats message according to format specifier, prepends the prefix
// as necessary, and writes to log with LevelTrace.
func (l *Logger) Tracef(format string, args ...interface{}) {
	l.printf(LevelTrace, format, args...)
}

// Debug formats message using the default formats for its operands and writes
// to log with LevelDebug.
func (l *Logger) Debug(args ...interface{}) {
	l.print(LevelDebug, args...)
}

// Debugf formats message according to format specifier and writes to log with
// LevelDebug.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.printf(LevelDebug, format, args...)
}

// Info formats message using the default formats for its operands and writes
// to log with LevelInfo.
func (l *Logger) Info(args ...interface{}) {
	l.print(LevelInfo, args...)
}

// Infof formats message according to format specifier and writes to log with
// LevelInfo.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.printf(LevelInfo, format, args...)
}

// Warn formats message using the default formats for its operands and writes
// to log with LevelWarn.
func (l *Logger) Warn(args ...interface{}) {
	l.print(LevelWarn, args...)
}

// Warnf formats message according to format specifier and writes to log with
// LevelWarn.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.printf(LevelWarn, format, args...)
}

// Error formats message using the default formats for its operands and writes
// to log with LevelError.
func (l *Logger) Error(args ...interface{}) {
	l.print(LevelError, args...)
}

// Errorf formats message according to format specifier and writes to log with
// LevelError.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.printf(LevelError, format, args...)
}

// Critical formats message using the default formats for its operands and
// writes to log with LevelCritical.
func (l *Logger) Critical(args ...interface{}) {
	l.print(LevelCritical, args...)
}

// Criticalf formats message according to format specifier and writes to log
// with LevelCritical.
func (l *Logger) Criticalf(format string, args ...interface{}) {
	l.printf(LevelCritical, format, args...)
}

// Level returns the current logging level.
func (l *Logger) Level() Level {
	return Level(atomic.LoadUint32(&l.lvl))
}

// SetLevel changes the logging level to the passed level.
func (l *Logger) SetLevel(logLevel Level) {
	atomic.StoreUint32(&l.lvl, uint32(logLevel))
}

// Backend returns the backend this logger writes to.
func (l *Logger) Backend() *Backend {
	return l.b
}

func (l *Logger) print(logLevel Level, args ...interface{}) {
	if logLevel < l.Level() {
		return
	}
	l.write(logLevel, fmt.Sprint(args...))
}

func (l *Logger) printf(logLevel Level, format string, args ...interface{}) {
	if logLevel < l.Level() {
		return
	}
	l.write(logLevel, fmt.Sprintf(format, args...))
}

// write formats the message header, appends the callsite if the backend was
// configured with file flags, and dispatches the entry to the backend.
// Messages logged before the backend runs are dropped rather than blocking
// the caller.
func (l *Logger) write(logLevel Level, msg string) {
	if !l.b.IsRunning() {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	callsite := ""
	if l.b.flag&(LogFlagShortFile|LogFlagLongFile) != 0 {
		callsite = " " + l.callsite()
	}
	formatted := fmt.Sprintf("%s [%s] %s:%s %s\n", timestamp, logLevel, l.tag, callsite, msg)
	l.writeChan <- logEntry{log: []byte(formatted), level: logLevel}
}

// callsite returns the file and line of the logging callsite, formatted
// according to the backend's file flags.
func (l *Logger) callsite() string {
	_, file, line, ok := runtime.Caller(4)
	if !ok {
		return "<unknown>:0"
	}
	if l.b.flag&LogFlagShortFile != 0 {
		short := file
		for i := len(file) - 1; i > 0; i-- {
			if os.IsPathSeparator(file[i]) {
				short = file[i+1:]
				break
			}
		}
		file = short
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// SubsystemTags is an enum of all subsystem tags.
var SubsystemTags = struct {
	MPED,
	POOL,
	TUI string
}{
	MPED: "MPED",
	POOL: "POOL",
	TUI:  "TUI",
}

var (
	backendLog = NewBackend()
	loggers    = make(map[string]*Logger)
)

// Get returns a logger of a specific subsystem.
func Get(tag string) (*Logger, error) {
	if logger, ok := loggers[tag]; ok {
		return logger, nil
	}
	logger := backendLog.Logger(tag)
	loggers[tag] = logger
	return logger, nil
}

// InitLog attaches log file and error log file to the backend log and starts
// it. All messages at warn level and above are duplicated into the error log.
func InitLog(logFile, errLogFile string) error {
	err := backendLog.AddLogFile(logFile, LevelTrace)
	if err != nil {
		return errors.Wrapf(err, "error adding log file %s as log rotator", logFile)
	}
	err = backendLog.AddLogFile(errLogFile, LevelWarn)
	if err != nil {
		return errors.Wrapf(err, "error adding log file %s as log rotator", errLogFile)
	}
	return backendLog.Run()
}

// SetLogLevels sets the logging level of all subsystems to the given level.
func SetLogLevels(level string) error {
	lvl, ok := LevelFromString(level)
	if !ok {
		return errors.Errorf("invalid log level %s", level)
	}
	for _, logger := range loggers {
		logger.SetLevel(lvl)
	}
	return nil
}

// BackendLog returns the backend log to which all subsystem loggers write.
func BackendLog() *Backend {
	return backendLog
}
