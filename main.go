package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lazybark/go-pretty-code/logs"
	"go.uber.org/zap"

	"github.com/knifezred/123strm/cloud"
	"github.com/knifezred/123strm/config"
	"github.com/knifezred/123strm/db"
	"github.com/knifezred/123strm/fsworker"
	"github.com/knifezred/123strm/server"
	syncer "github.com/knifezred/123strm/sync"
)

var Version = "1.0.0"

func main() {
	timeStart := time.Now()

	// Get config into config.Current struct
	err := config.LoadConfig(".")
	if err != nil {
		log.Fatal("Error getting config: ", err)
	}

	// Connect Logger
	logfileName := fmt.Sprintf("123strm_%v-%v-%v_%v-%v-%v.log", timeStart.Year(), timeStart.Month(), timeStart.Day(), timeStart.Hour(), timeStart.Minute(), timeStart.Second())
	logger, err := logs.Double(filepath.Join(config.Current.LogDir, logfileName), false, zap.InfoLevel)
	if err != nil {
		log.Fatal("Error getting logger: ", err)
	}

	logger.InfoCyan("App Version: ", Version)

	// Resolve and validate jobs before touching anything
	jobs := config.Current.Resolve()
	if err := config.ValidateJobs(jobs); err != nil {
		logger.Fatal("Invalid job configuration: ", err)
	}

	// Connect DB
	sqlite := db.OpenSQLite(config.Current.SQLiteDBName, logger)
	if err := db.Init(sqlite); err != nil {
		logger.Fatal("Error migrating DB: ", err)
	}

	// Connect FS watcher when delete mirroring is on
	var watcher *fsnotify.Watcher
	if config.Current.WatchDelete {
		watcher, err = fsnotify.NewWatcher()
		if err != nil {
			logger.Fatal("New Watcher failed: ", err)
		}
		defer watcher.Close()
	}

	fw := fsworker.NewWorker(sqlite, logger, watcher)

	orc := syncer.NewOrchestrator(jobs, sqlite, fw, logger, func(j config.Job) syncer.Drive {
		return cloud.NewClient(j.ClientID, j.ClientSecret, ".", logger)
	})

	// Bad credentials must stop the process before any job runs; a transient
	// failure is only worth a warning, the walker retries on its own.
	if err := orc.VerifyAccounts(); err != nil {
		if cloud.IsAuthError(err) {
			logger.Fatal("Account verification failed: ", err)
		}
		logger.Warn(fmt.Sprintf("Account verification: %v", err))
	}

	if watcher != nil {
		logger.InfoGreen("Starting delete watcher")
		for _, j := range jobs {
			if err := fw.WatchTree(j.TargetDir); err != nil {
				logger.Warn(fmt.Sprintf("Watching %s failed: %v", j.TargetDir, err))
			}
		}
		go fw.DeleteWatcherRoutine(func(jobID string) fsworker.RemoteTrasher {
			if drive := orc.DriveFor(jobID); drive != nil {
				return drive
			}
			return nil
		})
	}

	// HTTP surface
	srv := server.NewServer(orc, sqlite, logger)
	go func() {
		if err := srv.Start(config.Current.Listen); err != nil {
			logger.Fatal("HTTP server failed: ", err)
		}
	}()

	if config.Current.RunOnStart {
		runCycle(orc, logger)
	}

	logger.InfoGreen(fmt.Sprintf("Scheduler started, interval %v", config.Current.SyncInterval))

	ticker := time.NewTicker(config.Current.SyncInterval)
	housekeeping := time.NewTicker(10 * time.Minute)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	for {
		select {
		case <-ticker.C:
			runCycle(orc, logger)
		case <-housekeeping.C:
			if dropped := orc.PurgeCaches(); dropped > 0 {
				logger.Info(fmt.Sprintf("URL cache purge dropped %d entries", dropped))
			}
		case got := <-sig:
			logger.InfoYellow(fmt.Sprintf("Got %s signal, stopping. Was online for %v", got, time.Since(timeStart)))
			return
		}
	}
}

// runCycle fires one full cycle; an overlapping trigger is logged and dropped
func runCycle(orc *syncer.Orchestrator, logger *logs.Logger) {
	if _, err := orc.RunCycle(); err != nil {
		logger.Warn("Cycle trigger dropped: " + err.Error())
	}
}
