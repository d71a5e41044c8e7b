package logger

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"runtime"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	RotateMaxSize    = 100
	RotateMaxBackups = 10
	RotateMaxAge     = 30
)

// LogFileName is the active daemon log file inside the configured log dir.
// Rotated backups get a timestamp suffix from lumberjack; the retention job
// in cmd/backgroud keys off this name.
const LogFileName = "out.log"

var core *zap.SugaredLogger

var withGid bool

func init() {
	l, _ := zap.NewDevelopment()
	core = l.Sugar()
}

// InitLogger routes the daemon's own log. ppath is either "stdout"/"stderr"
// or a directory, in which case output rotates via lumberjack.
func InitLogger(ppath string, logWithGid bool) {
	withGid = logWithGid

	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{ppath}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if ppath == "stdout" || ppath == "stderr" {
		l, err := config.Build()
		if err != nil {
			panic(err.Error())
		}
		core = l.Sugar()
		return
	}

	info, err := os.Stat(ppath)
	if err != nil {
		if !os.IsNotExist(err) {
			panic(err.Error())
		}
		if err = os.MkdirAll(ppath, os.ModePerm); err != nil {
			panic(err.Error())
		}
	} else if !info.IsDir() {
		panic("log path must be dir")
	}

	rotated := &lumberjack.Logger{
		Filename:   path.Join(ppath, LogFileName),
		MaxSize:    RotateMaxSize,
		MaxBackups: RotateMaxBackups,
		MaxAge:     RotateMaxAge,
		Compress:   false,
		LocalTime:  true,
	}

	ccore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(config.EncoderConfig),
		zapcore.AddSync(rotated),
		config.Level,
	)
	core = zap.New(ccore).Sugar()
}

func Sync() {
	if core != nil {
		core.Sync()
	}
}

func getGoroutineID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	b = b[:bytes.IndexByte(b, ' ')]
	n, _ := strconv.ParseUint(string(b), 10, 64)
	return n
}

func logf(level func(template string, args ...interface{}), template string, args []interface{}) {
	if withGid {
		level(fmt.Sprintf("gid=%d,%s", getGoroutineID(), template), args...)
		return
	}
	level(template, args...)
}

func Debugf(template string, args ...interface{}) {
	logf(core.WithOptions(zap.AddCallerSkip(2)).Debugf, template, args)
}

func Infof(template string, args ...interface{}) {
	logf(core.WithOptions(zap.AddCallerSkip(2)).Infof, template, args)
}

func Warnf(template string, args ...interface{}) {
	logf(core.WithOptions(zap.AddCallerSkip(2)).Warnf, template, args)
}

func Errorf(template string, args ...interface{}) {
	logf(core.WithOptions(zap.AddCallerSkip(2)).Errorf, template, args)
}
