package config

import (
	"context"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rotisserie/eris"
)

const (
	envPrefix  = "PAINPOINT_"
	envFileVar = "PAINPOINT_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if PAINPOINT_CONFIG is set
//  3. env (prefix PAINPOINT_)
//
// Nested keys use a double underscore in env names, so PAINPOINT_STORE__DSN
// sets store.dsn. List values are comma separated.
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, eris.Wrapf(ErrLoadConfig, "read %s: %v", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, eris.Wrapf(ErrLoadConfig, "read env: %v", err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, eris.Wrapf(ErrLoadConfig, "unmarshal: %v", err)
	}

	// Lists and maps replace the defaults rather than merging into them.
	for key, dst := range map[string]*[]string{
		"sources.order":             &cfg.Sources.Order,
		"sources.enabled":           &cfg.Sources.Enabled,
		"sources.reddit.subreddits": &cfg.Sources.Reddit.Subreddits,
		"cors_origins":              &cfg.CORSOrigins,
		"clustering.triggers":       &cfg.Clustering.Triggers,
		"clustering.stopwords":      &cfg.Clustering.Stopwords,
		"filter.exclude_keywords":   &cfg.Filter.ExcludeKeywords,
		"filter.require_keywords":   &cfg.Filter.RequireKeywords,
		"filter.exclude_regex":      &cfg.Filter.ExcludeRegex,
	} {
		overrideList(k, key, dst)
	}
	if k.Exists("clustering.synonyms") {
		cfg.Clustering.Synonyms = k.StringMap("clustering.synonyms")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func overrideList(k *koanf.Koanf, key string, dst *[]string) {
	if !k.Exists(key) {
		return
	}
	switch v := k.Get(key).(type) {
	case string:
		if v == "" {
			*dst = nil
			return
		}
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		*dst = parts
	default:
		*dst = k.Strings(key)
	}
}
