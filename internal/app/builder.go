package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gridbot/internal/basket"
	"gridbot/internal/config"
	"gridbot/internal/engine"
	"gridbot/internal/filter"
	"gridbot/internal/ladder"
	"gridbot/internal/logger"
	"gridbot/internal/market"
	"gridbot/internal/notifier"
	"gridbot/internal/risk"
	"gridbot/internal/sizing"
	"gridbot/internal/store"
	"gridbot/internal/store/gormstore"
	livehttp "gridbot/internal/transport/http/live"
	"gridbot/internal/venue"
	"gridbot/internal/venue/binance"
	"gridbot/internal/venue/paper"
)

type AppBuilder struct {
	cfg *config.Config

	venueFn    func(*config.Config) (venue.Venue, error)
	storeFn    func(config.StoreConfig) (store.Store, error)
	notifierFn func(config.NotifyConfig) notifier.TextNotifier
	httpFn     func(config.AppConfig, livehttp.StatusProvider, livehttp.HistoryReader) (*livehttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

// WithVenue 替换交易端构造，测试中用于注入模拟盘。
func WithVenue(fn func(*config.Config) (venue.Venue, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.venueFn = fn }
}

func WithStore(fn func(config.StoreConfig) (store.Store, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.storeFn = fn }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		venueFn:    buildVenue,
		storeFn:    buildStore,
		notifierFn: buildNotifier,
		httpFn:     buildStatusServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Build 只构造依赖，不发起网络调用；品种校验与持仓恢复在 App.Run 中完成。
func (b *AppBuilder) Build(_ context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	inner, err := b.venueFn(cfg)
	if err != nil {
		return nil, fmt.Errorf("build venue: %w", err)
	}
	v := venue.NewResilient(inner, venue.ResilientConfig{
		Timeout:         cfg.Venue.Timeout(),
		RatePerSecond:   cfg.Venue.RatePerSecond,
		Burst:           cfg.Venue.RateBurst,
		BreakerFailures: cfg.Venue.BreakerFailures,
		BreakerCooldown: time.Duration(cfg.Venue.BreakerCooldown) * time.Second,
	})

	pipeline, err := filter.NewPipeline(cfg.Filters)
	if err != nil {
		return nil, err
	}
	st, err := b.storeFn(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	keeper := ladder.NewKeeper(cfg.Risk.MaxSteps)
	eng, err := engine.New(engine.Deps{
		Config:   cfg,
		Venue:    v,
		Keeper:   keeper,
		Governor: risk.NewGovernor(risk.LimitsFromConfig(cfg.Risk)),
		Pipeline: pipeline,
		Basket:   basket.NewManager(basket.SettingsFromConfig(cfg.Basket, cfg.Venue.PointValue)),
		Store:    st,
		Notifier: b.notifierFn(cfg.Notify),
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var history livehttp.HistoryReader
	if cfg.Store.Enabled {
		history = st
	}
	srv, err := b.httpFn(cfg.App, eng, history)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &App{
		cfg:     cfg,
		engine:  eng,
		keeper:  keeper,
		store:   st,
		http:    srv,
		Summary: newStartupSummary(cfg, inner.Name(), pipeline.Gates()),
	}, nil
}

func buildVenue(cfg *config.Config) (venue.Venue, error) {
	vc := cfg.Venue
	switch vc.Kind {
	case "binance":
		return newBinance(vc), nil
	case "paper":
		var feed paper.Feed
		switch vc.PaperFeed {
		case "binance":
			feed = newBinance(vc)
		default:
			interval, err := market.ParseTimeframe(vc.Timeframe)
			if err != nil {
				return nil, err
			}
			feed = paper.NewRandomWalk(time.Now().UnixNano(), 2000, 0.5, interval)
		}
		return paper.New(paper.Config{
			Symbol:     vc.Symbol,
			Timeframe:  vc.Timeframe,
			Balance:    vc.PaperBalance,
			Spread:     vc.PaperSpread,
			PointValue: vc.PointValue,
			Rules:      sizing.LotRules{Min: vc.MinLot, Step: vc.LotStep, Max: vc.MaxLot},
			MaxCandles: vc.CandleCount * 2,
		}, feed), nil
	default:
		return nil, fmt.Errorf("unsupported venue kind %q", vc.Kind)
	}
}

func newBinance(vc config.VenueConfig) *binance.Venue {
	return binance.New(binance.Config{
		APIKey:      vc.APIKey,
		APISecret:   vc.APISecret,
		RESTBaseURL: vc.RESTBaseURL,
		HTTPTimeout: vc.Timeout(),
	})
}

func buildStore(cfg config.StoreConfig) (store.Store, error) {
	if !cfg.Enabled {
		return store.Nop{}, nil
	}
	return gormstore.NewGormStore(cfg.Path)
}

func buildNotifier(cfg config.NotifyConfig) notifier.TextNotifier {
	tg := cfg.Telegram
	if !tg.Enabled || strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "" {
		return nil
	}
	return notifier.NewTelegram(tg.BotToken, tg.ChatID)
}

func buildStatusServer(cfg config.AppConfig, e livehttp.StatusProvider, history livehttp.HistoryReader) (*livehttp.Server, error) {
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return nil, nil
	}
	return livehttp.NewServer(livehttp.ServerConfig{Addr: cfg.HTTPAddr, Engine: e, History: history})
}
