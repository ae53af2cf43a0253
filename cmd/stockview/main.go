package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockview/pkg/api"
	"stockview/pkg/cache"
	"stockview/pkg/config"
	"stockview/pkg/logger"
	"stockview/pkg/provider/eastmoney"
	"stockview/pkg/repository"
	"stockview/pkg/search"
	"stockview/pkg/service"

	"github.com/robfig/cron/v3"
)

var (
	configPath = flag.String("config", "", "配置文件路径 (例如 /etc/stockview.yaml)")
	port       = flag.Int("port", 0, "监听端口，覆盖配置文件")
	dataDir    = flag.String("data-dir", "", "年度分区数据目录，覆盖配置文件")
	logLevel   = flag.String("log-level", "", "日志级别 (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *dataDir != "" {
		cfg.Data.Dir = *dataDir
	}
	if *logLevel != "" {
		cfg.Logger.Level = *logLevel
	}

	logger.Init(logger.Config{Level: cfg.Logger.Level, Format: cfg.Logger.Format})
	log := logger.WithComponent("main")

	client := eastmoney.NewClient(eastmoney.Options{
		Timeout:    cfg.Provider.Timeout,
		MaxRetries: cfg.Provider.MaxRetries,
		RateLimit:  cfg.Provider.RateLimit,
		UserAgent:  cfg.Provider.UserAgent,
	})

	repo := repository.New(cfg.Data.Dir)
	mgr := cache.NewManager(
		cache.ManagerConfig{
			CacheDir:      cfg.Data.CacheDir,
			LookbackYears: cfg.Provider.LookbackYears,
		},
		cache.NewFetchLog(cfg.Data.FetchLogFile),
		client,
		nil,
	)
	index := search.NewIndex(cfg.Data.StockListFile)

	server := api.NewServer(cfg.Server, service.New(repo, mgr), repo, index, client)

	// 股票列表定时刷新
	var scheduler *cron.Cron
	if cfg.Refresh.Enabled {
		scheduler = cron.New(cron.WithSeconds())
		_, err := scheduler.AddFunc(cfg.Refresh.CronSpec, func() {
			refreshStockList(client, cfg.Data.StockListFile)
		})
		if err != nil {
			log.Errorf("invalid refresh cron spec %q: %v", cfg.Refresh.CronSpec, err)
			os.Exit(1)
		}
		scheduler.Start()
		log.Infof("stock list refresh scheduled: %s", cfg.Refresh.CronSpec)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Errorf("server error: %v", err)
			os.Exit(1)
		}
	case sig := <-quit:
		log.Infof("received %s, shutting down", sig)
	}

	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}

// refreshStockList 拉取最新股票列表并持久化（含拼音列）
func refreshStockList(client *eastmoney.Client, path string) {
	log := logger.WithComponent("StockListRefresh")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	entries, err := client.FetchStockList(ctx)
	if err != nil {
		log.Errorf("fetch stock list: %v", err)
		return
	}

	records := make([]search.Record, len(entries))
	for i, e := range entries {
		records[i] = search.Record{Code: e.Code, Name: e.Name}
	}

	if err := search.SaveList(path, records); err != nil {
		log.Errorf("save stock list: %v", err)
		return
	}

	log.Infof("stock list refreshed: %d stocks", len(records))
}
