package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix 为环境变量覆盖前缀，例如 GRIDBOT_VENUE_API_KEY。
const EnvPrefix = "GRIDBOT"

// 密钥类字段允许只通过环境变量提供。
var secretKeys = []string{
	"venue.api_key",
	"venue.api_secret",
	"notify.telegram.bot_token",
}

// Load 读取配置文件（含 include 链），填充默认值并校验。
func Load(path string) (*Config, error) {
	files, err := resolveConfigIncludes(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	for _, file := range files {
		if err := mergeConfigFile(v, file); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", file, err)
		}
	}
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	setKeys := make(keySet)
	markSetKeys("", v.AllSettings(), setKeys)
	cfg.applyDefaults(setKeys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range secretKeys {
		_ = v.BindEnv(key)
	}
}

func mergeConfigFile(v *viper.Viper, path string) error {
	tmp := viper.New()
	tmp.SetConfigFile(path)
	if err := tmp.ReadInConfig(); err != nil {
		return err
	}
	return v.MergeConfigMap(tmp.AllSettings())
}

// resolveConfigIncludes 按深度优先展开 include，被引用的文件排在引用方之前，
// 后合并的文件覆盖先合并的。
func resolveConfigIncludes(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	r := includeResolver{done: map[string]bool{}, active: map[string]bool{}}
	if err := r.visit(abs); err != nil {
		return nil, err
	}
	return r.order, nil
}

type includeResolver struct {
	done   map[string]bool
	active map[string]bool
	order  []string
}

func (r *includeResolver) visit(path string) error {
	path = filepath.Clean(path)
	switch {
	case r.active[path]:
		return fmt.Errorf("include cycle detected: %s", path)
	case r.done[path]:
		return nil
	}
	r.active[path] = true
	defer delete(r.active, path)

	includes, err := readIncludes(path)
	if err != nil {
		return fmt.Errorf("parsing include failed (%s): %w", path, err)
	}
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		if err := r.visit(inc); err != nil {
			return err
		}
	}
	r.done[path] = true
	r.order = append(r.order, path)
	return nil
}

func readIncludes(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	raw := v.Get("include")
	if raw == nil {
		return nil, nil
	}
	if _, ok := raw.(string); ok {
		return nil, fmt.Errorf("include must be a string array")
	}
	items, err := cast.ToSliceE(raw)
	if err != nil {
		return nil, fmt.Errorf("include must be a string array")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("include only supports strings")
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// markSetKeys 记录配置中显式出现的叶子路径（列表整体算一个叶子），
// applyDefaults 据此区分“写了零值”和“没写”。
func markSetKeys(prefix string, node any, dest keySet) {
	m, ok := node.(map[string]any)
	if !ok {
		if prefix != "" {
			dest.mark(prefix)
		}
		return
	}
	for k, child := range m {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		markSetKeys(key, child, dest)
	}
}
