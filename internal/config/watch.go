package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"gridbot/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ChangeListener 在配置文件变更且重新校验通过后被调用。
type ChangeListener func(*Config)

// Watcher 监听主配置文件，变更后重新执行 Load。
// 只有 Load 成功的新配置会被分发；监听方自行决定哪些字段可以热更新。
type Watcher struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	current   *Config
	listeners []ChangeListener
}

// Watch 以 path 的当前内容为基线启动文件监听。
func Watch(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Load(abs)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(abs)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", abs, err)
	}
	w := &Watcher{path: abs, v: v, current: cfg}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := w.reload(); err != nil {
			logger.Errorf("config reload failed (%s): %v", evt.Name, err)
			return
		}
		w.notify()
	})
	v.WatchConfig()
	return w, nil
}

// Current 返回最近一次成功加载的配置。
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Subscribe 注册监听器。
func (w *Watcher) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

func (w *Watcher) reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()
	return nil
}

func (w *Watcher) notify() {
	w.mu.RLock()
	cfg := w.current
	listeners := append([]ChangeListener(nil), w.listeners...)
	w.mu.RUnlock()
	for _, fn := range listeners {
		func(cb ChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("config listener panic: %v", r)
				}
			}()
			cb(cfg)
		}(fn)
	}
}
