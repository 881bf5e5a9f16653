package settings

import (
	"errors"
	"fmt"
	"sort"

	"github.com/meghashyamc/churnsearch/config"
	"github.com/meghashyamc/churnsearch/db/kvdb"
	"github.com/meghashyamc/churnsearch/logger"
)

// IndexPatternKey selects the index searched by default.
const IndexPatternKey = "search:index_pattern"

const (
	SourceSetting  = "setting"
	SourcePlatform = "platform"
)

var ErrUnknownSetting = errors.New("unknown setting")

type Setting struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Default   string `json:"default"`
	UserValue bool   `json:"user_value"`
}

// Resolution is the index a search runs against and where the name came from.
type Resolution struct {
	Index  string `json:"index"`
	Source string `json:"source"`
}

type Service struct {
	logger          logger.Logger
	store           kvdb.DB
	defaults        map[string]string
	platformDefault string
	policy          string
}

func New(logger logger.Logger, store kvdb.DB, cfg *config.Config) *Service {
	return &Service{
		logger:          logger,
		store:           store,
		defaults:        map[string]string{IndexPatternKey: cfg.GetDefaultIndexPattern()},
		platformDefault: cfg.GetPlatformDefaultIndex(),
		policy:          cfg.GetIndexResolution(),
	}
}

// Get returns the stored value of key or its default.
func (s *Service) Get(key string) (string, error) {
	setting, err := s.get(key)
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (s *Service) get(key string) (Setting, error) {
	defaultValue, ok := s.defaults[key]
	if !ok {
		return Setting{}, fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}

	setting := Setting{Key: key, Value: defaultValue, Default: defaultValue}
	value, err := s.store.Get(kvdb.SettingsBucket, key)
	switch {
	case err == nil:
		setting.Value = value
		setting.UserValue = true
	case errors.Is(err, kvdb.ErrNotFound):
	default:
		s.logger.Error("could not read setting, using default", "key", key, "err", err.Error())
	}
	return setting, nil
}

// Set stores a value for key. An empty value restores the default.
func (s *Service) Set(key string, value string) error {
	if _, ok := s.defaults[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}

	if value == "" {
		if err := s.store.Delete(kvdb.SettingsBucket, key); err != nil {
			return err
		}
		s.logger.Info("setting reset to default", "key", key)
		return nil
	}

	if err := s.store.Set(kvdb.SettingsBucket, key, value); err != nil {
		return err
	}
	s.logger.Info("setting updated", "key", key, "value", value)
	return nil
}

func (s *Service) All() []Setting {
	keys := make([]string, 0, len(s.defaults))
	for key := range s.defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	all := make([]Setting, 0, len(keys))
	for _, key := range keys {
		setting, err := s.get(key)
		if err != nil {
			continue
		}
		all = append(all, setting)
	}
	return all
}

// ResolveDefaultIndex picks the index searched when a request names none.
// With the setting_first policy the setting wins when its index exists and
// the platform default is used otherwise; platform_first is the reverse.
func (s *Service) ResolveDefaultIndex(exists func(string) bool) Resolution {
	setting := Resolution{Source: SourceSetting}
	setting.Index, _ = s.Get(IndexPatternKey)
	platform := Resolution{Index: s.platformDefault, Source: SourcePlatform}

	preferred, fallback := setting, platform
	if s.policy == config.IndexResolutionPlatformFirst {
		preferred, fallback = platform, setting
	}

	if preferred.Index != "" && exists(preferred.Index) {
		return preferred
	}
	if fallback.Index == "" {
		return preferred
	}
	return fallback
}
