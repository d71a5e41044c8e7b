package conf

import (
	"errors"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/magolch/plogd/pkg/dir"
	"github.com/magolch/plogd/pkg/logger"
	"github.com/spf13/viper"
)

const (
	MinPeriod = 1
	MaxPeriod = 3600

	DefaultFilename    = "/var/tmp/test_module/kernel_log.txt"
	DefaultTimerPeriod = 5

	DefaultWorkerBuffSize = 16
)

var WorkerBuffSize int

var StorePath string
var StoreMaxDays int
var StoreClearInterval int

var LogPath string
var LogSample int64
var LogWithGid bool

// filename and timerPeriod are the two runtime-writable parameters. They sit
// behind atomic holders so a concurrent rewrite through the config watch is
// always observed as a whole value; the timer reads them fresh on every rearm.
var filename atomic.Pointer[string]
var timerPeriod atomic.Int64

func Init(configPath string) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)

	viper.SetDefault("module.filename", DefaultFilename)
	viper.SetDefault("module.timerPeriod", DefaultTimerPeriod)
	viper.SetDefault("module.workerBuffSize", DefaultWorkerBuffSize)
	viper.SetDefault("store.path", "./plogd-data")
	viper.SetDefault("store.maxDays", 7)
	viper.SetDefault("store.clearInterval", 3600)
	viper.SetDefault("log.path", "stdout")
	viper.SetDefault("log.sample", 0)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		// no config file, run on defaults
	}

	WorkerBuffSize = viper.GetInt("module.workerBuffSize")
	StorePath = viper.GetString("store.path")
	StoreMaxDays = viper.GetInt("store.maxDays")
	StoreClearInterval = viper.GetInt("store.clearInterval")
	LogPath = viper.GetString("log.path")
	LogSample = viper.GetInt64("log.sample")
	LogWithGid = viper.GetBool("log.withGid")

	SetFilename(viper.GetString("module.filename"))
	SetTimerPeriod(viper.GetInt64("module.timerPeriod"))
	return nil
}

// Filename returns the current target file for periodic writes.
func Filename() string {
	p := filename.Load()
	if p == nil {
		return ""
	}
	return *p
}

// SetFilename stores a new target path. The value is taken as-is, like a raw
// parameter write; the module re-validates at load time and the writer
// validates per write.
func SetFilename(v string) {
	filename.Store(&v)
}

// TimerPeriod returns the current period in seconds.
func TimerPeriod() int64 {
	return timerPeriod.Load()
}

func SetTimerPeriod(v int64) {
	timerPeriod.Store(v)
}

func ValidPeriod(p int64) bool {
	return p >= MinPeriod && p <= MaxPeriod
}

// WatchParams makes the two runtime parameters follow the config file. A
// changed period takes effect at the next timer rearm, a changed filename at
// the next submitted write. Invalid values are logged and ignored, the last
// good value stays.
func WatchParams() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		applyParamChange(viper.GetString("module.filename"), viper.GetInt64("module.timerPeriod"))
	})
	viper.WatchConfig()
}

func applyParamChange(newName string, newPeriod int64) {
	if newName != Filename() {
		if !dir.IsValidPath(newName) {
			logger.Warnf("config change dropped, filename empty or too long, keep %s", Filename())
		} else {
			logger.Infof("filename changed: %s -> %s", Filename(), newName)
			SetFilename(newName)
		}
	}

	if newPeriod != TimerPeriod() {
		if !ValidPeriod(newPeriod) {
			logger.Warnf("config change dropped, period %d out of [%d,%d], keep %d",
				newPeriod, MinPeriod, MaxPeriod, TimerPeriod())
		} else {
			logger.Infof("timer period changed: %d -> %d", TimerPeriod(), newPeriod)
			SetTimerPeriod(newPeriod)
		}
	}
}
