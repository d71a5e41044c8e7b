package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/magolch/plogd/cmd/backgroud"
	"github.com/magolch/plogd/conf"
	"github.com/magolch/plogd/module"
	"github.com/magolch/plogd/pkg/dir"
	"github.com/magolch/plogd/pkg/logger"
	"github.com/magolch/plogd/store/sessions"
)

var configPath = flag.String("config", "./config", "config directory")

func main() {
	flag.Parse()

	if err := conf.Init(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error config file: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(conf.LogPath, conf.LogWithGid)
	defer logger.Sync()

	var sess *sessions.Store
	if conf.StorePath != "" {
		if err := dir.EnsurePathExist(conf.StorePath); err != nil {
			logger.Warnf("session store path unavailable: %v", err)
		} else {
			var err error
			if sess, err = sessions.Open(conf.StorePath); err != nil {
				logger.Warnf("session store unavailable, running without it: %v", err)
				sess = nil
			}
		}
	}

	state, err := module.Load(sess)
	if err != nil {
		logger.Errorf("load failed: %v", err)
		if sess != nil {
			sess.Close()
		}
		os.Exit(1)
	}

	conf.WatchParams()
	backgroud.StartClearOldLogs()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	backgroud.StopClear()
	state.Unload()
	if sess != nil {
		sess.Close()
	}
}
