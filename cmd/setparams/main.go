package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/magolch/plogd/conf"
	"github.com/magolch/plogd/pkg/dir"
)

var (
	filename   = flag.String("f", "", "new log file path")
	period     = flag.String("p", "", "new timer period in seconds (1-3600)")
	configPath = flag.String("config", "./config", "daemon config directory")
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if *filename == "" && *period == "" {
		fmt.Fprintln(os.Stderr, "Error: At least one parameter (filename or period) must be specified")
		printUsage()
		os.Exit(1)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(*configPath)

	fresh := false
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
			os.Exit(1)
		}
		fresh = true
	}

	if *filename != "" {
		if err := validateFilepath(*filename); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Setting filename parameter to: %s\n", *filename)
		v.Set("module.filename", *filename)
	}

	if *period != "" {
		p, err := parsePeriod(*period)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Setting timer_period parameter to: %d seconds\n", p)
		v.Set("module.timerPeriod", p)
	}

	var err error
	if fresh {
		err = v.WriteConfigAs(path.Join(*configPath, "config.yaml"))
	} else {
		err = v.WriteConfig()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write parameters: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Parameters set successfully")
}

func validateFilepath(p string) error {
	if !dir.IsValidPath(p) {
		return fmt.Errorf("file path must be 1 to %d characters", dir.MaxPathLen)
	}
	// keep the target inside wherever the daemon was pointed at
	if strings.Contains(p, "..") {
		return fmt.Errorf("file path must not contain parent directory references")
	}
	return nil
}

func parsePeriod(s string) (int64, error) {
	p, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("period %q is not a valid number", s)
	}
	if !conf.ValidPeriod(int64(p)) {
		return 0, fmt.Errorf("period must be between %d and %d seconds", conf.MinPeriod, conf.MaxPeriod)
	}
	return int64(p), nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [-f filepath] [-p period] [-config dir]\n", os.Args[0])
	flag.PrintDefaults()
}
