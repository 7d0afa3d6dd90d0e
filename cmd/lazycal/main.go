package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Joseda-hg/lazycal/internal/config"
	"github.com/Joseda-hg/lazycal/internal/db"
	"github.com/Joseda-hg/lazycal/internal/holiday"
	"github.com/Joseda-hg/lazycal/internal/log"
	"github.com/Joseda-hg/lazycal/internal/tui"
	"github.com/Joseda-hg/lazycal/internal/web"
)

func main() {
	configPathFlag := flag.String("config", "", "config file path")
	dbPathFlag := flag.String("db", "", "sqlite db path")
	webFlag := flag.Bool("web", false, "enable web server")
	webOnlyFlag := flag.Bool("web-only", false, "run web server only")
	portFlag := flag.Int("port", 0, "web server port")
	stateFlag := flag.String("state", "", "German state code for holidays (e.g. BY)")
	flag.Parse()

	cfgPath, err := resolveConfigPath(*configPathFlag)
	if err != nil {
		stdlog.Fatal(err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stdlog.Fatal(err)
	}

	if *dbPathFlag != "" {
		cfg.DBPath = *dbPathFlag
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(filepath.Dir(cfgPath), "lazycal.db")
	}
	if *webFlag {
		cfg.WebEnabled = true
	}
	if *portFlag != 0 {
		cfg.WebPort = *portFlag
	}
	if cfg.WebPort == 0 {
		cfg.WebPort = 8080
	}
	if *stateFlag != "" {
		cfg.HolidayState = *stateFlag
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		stdlog.Fatal(err)
	}

	if err := setupLog(cfg, cfgPath, *webOnlyFlag); err != nil {
		stdlog.Fatal(err)
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		stdlog.Fatal(err)
	}

	startHolidayRefresh(store, cfg)

	if cfg.WebEnabled {
		addr := fmt.Sprintf(":%d", cfg.WebPort)
		handler := web.NewServer(store, cfg.Location(), cfg.MaxLanes).Handler()
		if *webOnlyFlag {
			log.Info("web server running", "addr", addr)
			stdlog.Fatal(http.ListenAndServe(addr, handler))
		}

		go func() {
			log.Info("web server running", "addr", addr)
			if err := http.ListenAndServe(addr, handler); err != nil {
				log.Error("web server stopped", err)
			}
		}()
	}

	if *webOnlyFlag {
		return
	}

	if err := tui.Run(store, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLog redirects log output to a file so the TUI keeps the
// terminal to itself.
func setupLog(cfg config.Config, cfgPath string, webOnly bool) error {
	if webOnly {
		return nil
	}
	path := cfg.LogPath
	if path == "" {
		path = filepath.Join(filepath.Dir(cfgPath), "lazycal.log")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	log.SetOutput(f)
	return nil
}

// startHolidayRefresh fetches holidays for the current and next year
// now and every six hours after that. Fetch failures keep the cached
// rows, so the calendar still shows the last known holidays offline.
func startHolidayRefresh(store *db.Store, cfg config.Config) {
	if cfg.HolidayState == "" {
		return
	}
	client := holiday.NewClient(cfg.HolidayState)

	refresh := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		year := time.Now().In(cfg.Location()).Year()
		for _, y := range []int{year, year + 1} {
			if err := client.Refresh(ctx, store, y); err != nil {
				log.Error("holiday refresh incomplete", err, "year", y)
			}
		}
	}

	go refresh()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 6h", refresh); err != nil {
		log.Error("holiday refresh schedule failed", err)
		return
	}
	scheduler.Start()
}

func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return config.DefaultConfigPath()
}

func openStore(dbPath string) (*db.Store, error) {
	if err := config.EnsureDir(dbPath); err != nil {
		return nil, err
	}

	sqlDB, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}

	return db.NewStore(sqlDB), nil
}
