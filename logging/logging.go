// Package logging builds the logger handed to the checker. Nothing is
// registered on log.Root(): callers own the returned logger and closer.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ledgerwatch/log/v3"
	"gopkg.in/natefinch/lumberjack.v2"
)

const Source = "pong-checker"

// New returns a logger writing to stdout and appending to <dir>/<name>.log.
// Closing the returned io.Closer flushes and closes the log file.
func New(dir, name string, lvl log.Lvl) (log.Logger, io.Closer, error) {
	return NewWithWriter(os.Stdout, dir, name, lvl)
}

func NewWithWriter(console io.Writer, dir, name string, lvl log.Lvl) (log.Logger, io.Closer, error) {
	if err := os.MkdirAll(dir, 0o764); err != nil {
		return nil, nil, err
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(dir, name+".log"),
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, //days
	}

	logger := log.New("source", Source)
	logger.SetHandler(log.LvlFilterHandler(lvl, log.MultiHandler(
		log.StreamHandler(console, log.TerminalFormatNoColor()),
		log.StreamHandler(file, log.TerminalFormatNoColor()),
	)))
	return logger, file, nil
}

// ParseLevel accepts a level name ("info", "error", ...) or its number.
func ParseLevel(s string) (log.Lvl, error) {
	lvl, err := log.LvlFromString(s)
	if err != nil {
		l, err := strconv.Atoi(s)
		if err != nil {
			return 0, err
		}
		return log.Lvl(l), nil
	}
	return lvl, nil
}
