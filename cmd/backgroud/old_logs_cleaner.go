package backgroud

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/magolch/plogd/conf"
	"github.com/magolch/plogd/pkg/dir"
	"github.com/magolch/plogd/pkg/logger"
)

var cronIns *cron.Cron

// StartClearOldLogs schedules retention on the daemon's own rotated log
// files. The module's output file is never touched here.
func StartClearOldLogs() {
	if conf.LogPath == "stdout" || conf.LogPath == "stderr" {
		return
	}
	cronIns = cron.New()

	cronIns.AddFunc(fmt.Sprintf("@every %ds", conf.StoreClearInterval), func() {
		clearOldLogs(conf.LogPath, conf.StoreMaxDays)
	})

	cronIns.Start()
	logger.Infof("StartClearOldLogs run ok")
}

func StopClear() {
	if cronIns == nil {
		return
	}
	cronIns.Stop()
	cronIns = nil
}

func clearOldLogs(logPath string, maxDays int) {
	traceId := fmt.Sprintf("clearOldLogs-%d", time.Now().UnixMilli())
	logger.Infof("tid=%s,run clearOldLogs", traceId)

	if exist, err := dir.PathExist(logPath); err != nil || !exist {
		return
	}
	entries, err := os.ReadDir(logPath)
	if err != nil {
		logger.Infof("tid=%s,read dir:%s error:%v", traceId, logPath, err)
		return
	}

	cutoff := time.Now().AddDate(0, 0, -maxDays)
	var expired []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		// rotated backups only, the live file stays
		if name == logger.LogFileName || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			logger.Infof("tid=%s,read dir:%s/%s error:%v", traceId, logPath, name, err)
			continue
		}
		if info.ModTime().Before(cutoff) {
			expired = append(expired, name)
		}
	}

	logger.Infof("tid=%s,to delete expired files:%d", traceId, len(expired))

	for _, name := range expired {
		dp := path.Join(logPath, name)
		err = os.Remove(dp)
		logger.Infof("tid=%s,delete %s err:%v", traceId, dp, err)
	}
}
