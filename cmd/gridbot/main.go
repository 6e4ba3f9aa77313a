package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"gridbot/internal/app"
	gcfg "gridbot/internal/config"
	"gridbot/internal/logger"

	"gopkg.in/yaml.v3"
)

func main() {
	printConfig := flag.Bool("print-config", false, "打印生效配置（含默认值）后退出")
	flag.Parse()

	cfgPath := os.Getenv("GRIDBOT_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	watcher, err := gcfg.Watch(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	cfg := watcher.Current()
	if *printConfig {
		if err := dumpConfig(os.Stdout, cfg); err != nil {
			log.Fatalf("输出配置失败: %v", err)
		}
		return
	}

	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetFormat(cfg.App.LogFormat)
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（%s，symbol=%s，venue=%s）", cfgPath, cfg.Venue.Symbol, cfg.Venue.Kind)

	// 仅日志级别支持热更新，其余字段需重启生效。
	watcher.Subscribe(func(next *gcfg.Config) {
		if next.App.LogLevel != logger.Level() {
			logger.SetLevel(next.App.LogLevel)
			logger.Infof("日志级别已更新为 %s", next.App.LogLevel)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	if err := application.Run(ctx); err != nil {
		log.Fatalf("运行失败: %v", err)
	}
	logger.Infof("已退出")
}

func dumpConfig(w io.Writer, cfg *gcfg.Config) error {
	// 密钥字段带 yaml:"-"，不会被输出。
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg)
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
