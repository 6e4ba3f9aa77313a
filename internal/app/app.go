package app

import (
	"context"
	"fmt"

	"gridbot/internal/config"
	"gridbot/internal/engine"
	"gridbot/internal/ladder"
	"gridbot/internal/logger"
	"gridbot/internal/store"
	livehttp "gridbot/internal/transport/http/live"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动交易循环与状态服务。
type App struct {
	cfg     *config.Config
	engine  *engine.Engine
	keeper  *ladder.Keeper
	store   store.Store
	http    *livehttp.Server
	Summary *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return NewAppBuilder(cfg).Build(context.Background())
}

// Run 先执行启动恢复，再并行运行交易循环与状态服务，直到 ctx 结束。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil || a.engine == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	if a.Summary != nil {
		a.Summary.Print()
	}
	a.keeper.Start()
	if err := a.engine.Recover(ctx); err != nil {
		return fmt.Errorf("startup recovery: %w", err)
	}

	group, gctx := errgroup.WithContext(ctx)
	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(gctx); err != nil {
				return fmt.Errorf("status http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		return a.engine.Run(gctx)
	})
	return group.Wait()
}

// Engine exposes the trading engine (for tests and tooling).
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

func (a *App) close() {
	if a.keeper != nil {
		a.keeper.Stop()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("close store: %v", err)
		}
	}
}
