package mylog

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func panicIfError(err error, message string) {
	if err != nil {
		fmt.Println(message)
		fmt.Println(err.Error())
		os.Exit(1)
	}
}

// InitLogger configures the standard logrus logger from viper keys
// (log.level, log.stdout, log.line_number, logdir). Call once, before a
// command starts real work.
func InitLogger() {
	level, err := logrus.ParseLevel(viper.GetString("log.level"))
	panicIfError(err, fmt.Sprintf("unknown log level: %s", viper.GetString("log.level")))

	var writer io.Writer = os.Stdout
	logdir := viper.GetString("logdir")
	if logdir != "" {
		folderPath, err := filepath.Abs(logdir)
		panicIfError(err, fmt.Sprintf("Error on parsing log path: %s", logdir))

		abspath, err := filepath.Abs(path.Join(logdir, "evmcover.log"))
		panicIfError(err, fmt.Sprintf("Error on parsing log file path: %s", logdir))

		err = os.MkdirAll(folderPath, os.ModePerm)
		panicIfError(err, fmt.Sprintf("Error on creating log dir: %s", folderPath))

		logFile, err := os.OpenFile(abspath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		panicIfError(err, fmt.Sprintf("Error on creating log file: %s", abspath))

		if viper.GetBool("log.stdout") {
			writer = io.MultiWriter(logFile, os.Stdout)
		} else {
			writer = logFile
		}
	}

	formatter := new(logrus.TextFormatter)
	formatter.ForceColors = viper.GetBool("log.stdout")
	formatter.TimestampFormat = "2006-01-02 15:04:05.000000"
	formatter.FullTimestamp = true

	logrus.SetLevel(level)
	logrus.SetFormatter(formatter)
	logrus.SetOutput(writer)

	if viper.GetBool("log.line_number") {
		logrus.SetReportCaller(true)
	}
}
