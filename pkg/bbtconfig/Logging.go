package bbtconfig

import (
	"io"
	"os"
	"path"

	"github.com/sirupsen/logrus"
)

// SetLogging sets the logging level and output file
//  levelName is the requested logging level: error, warning, info, debug
//  logFile is the output log file, "" to log to stderr only
// Returns an error if the log file can't be opened. Logging continues on stderr.
func SetLogging(levelName string, logFile string) error {
	logLevel, err := logrus.ParseLevel(levelName)
	if err != nil {
		logLevel = logrus.WarnLevel
	}
	logrus.SetLevel(logLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000",
	})
	logrus.SetOutput(os.Stderr)

	if logFile != "" {
		logFileHandle, err := os.OpenFile(logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0640)
		if err != nil {
			logrus.Errorf("SetLogging: Unable to open logfile '%s' in folder '%s': %s",
				logFile, path.Dir(logFile), err)
			return err
		}
		logrus.Infof("SetLogging: Send logging output to %s", logFile)
		logrus.SetOutput(io.MultiWriter(os.Stderr, logFileHandle))
	}
	return nil
}
