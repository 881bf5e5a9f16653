package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const keyEnv = "ENV"
const envLocal = "local"

const (
	IndexResolutionSettingFirst  = "setting_first"
	IndexResolutionPlatformFirst = "platform_first"
)

type Config struct {
	config *viper.Viper
}

// Load reads config/config.<ENV>.yaml when it can be found and lets environment
// variables override every key.
func Load() (*Config, error) {

	env := os.Getenv(keyEnv)
	if len(env) == 0 {
		env = envLocal
	}

	configPath, err := getConfigPath(env)

	viperConfig := viper.New()
	setDefaults(viperConfig)
	if err == nil {
		viperConfig.SetConfigFile(configPath)
		if err := viperConfig.ReadInConfig(); err != nil {
			slog.Warn(fmt.Sprintf("error reading config file, %s", err))
		}
	}
	viperConfig.AutomaticEnv()

	cfg := &Config{
		config: viperConfig,
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.storage_path", "./.churnsearch")
	v.SetDefault("database.index_path", "indices")
	v.SetDefault("database.kvdb_path", "./.churnsearch/meta.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("search.default_index_pattern", "customer_churn_model")
	v.SetDefault("search.platform_default_index", "churn_predictions")
	v.SetDefault("search.index_resolution", IndexResolutionSettingFirst)
	v.SetDefault("search.poll_interval", "100ms")
	v.SetDefault("search.max_concurrent", 4)
	v.SetDefault("search.keep_alive", "5m")
	v.SetDefault("search.result_size", 15)
	v.SetDefault("search.time_field", "")
	v.SetDefault("client.server_url", "http://localhost:8080")
	v.SetDefault("grid.page_size", 5)
}

func (c *Config) GetPort() string {
	return c.getString("PORT", "server.port")
}

func (c *Config) GetKVDBPath() string {
	return c.getString("KVDB_PATH", "database.kvdb_path")
}

func (c *Config) GetIndexPath() string {
	return c.getString("INDEX_PATH", "database.index_path")
}

func (c *Config) GetStoragePath() string {
	return c.getString("STORAGE_PATH", "database.storage_path")
}

func (c *Config) GetLogLevel() string {
	return c.getString("LOG_LEVEL", "log.level")
}

// GetDefaultIndexPattern is the default value of the search:index_pattern setting.
func (c *Config) GetDefaultIndexPattern() string {
	return c.getString("DEFAULT_INDEX_PATTERN", "search.default_index_pattern")
}

// GetPlatformDefaultIndex is the index used when the setting does not resolve.
func (c *Config) GetPlatformDefaultIndex() string {
	return c.getString("PLATFORM_DEFAULT_INDEX", "search.platform_default_index")
}

func (c *Config) GetIndexResolution() string {
	resolution := c.getString("INDEX_RESOLUTION", "search.index_resolution")
	if resolution != IndexResolutionPlatformFirst {
		return IndexResolutionSettingFirst
	}
	return resolution
}

func (c *Config) GetSearchPollInterval() time.Duration {
	return c.getDuration("SEARCH_POLL_INTERVAL", "search.poll_interval")
}

func (c *Config) GetSearchMaxConcurrent() int {
	return c.getInt("SEARCH_MAX_CONCURRENT", "search.max_concurrent")
}

func (c *Config) GetSearchKeepAlive() time.Duration {
	return c.getDuration("SEARCH_KEEP_ALIVE", "search.keep_alive")
}

func (c *Config) GetSearchResultSize() int {
	return c.getInt("SEARCH_RESULT_SIZE", "search.result_size")
}

// GetSearchTimeField names the date field the time filter applies to. Empty disables it.
func (c *Config) GetSearchTimeField() string {
	return c.getString("SEARCH_TIME_FIELD", "search.time_field")
}

func (c *Config) GetServerURL() string {
	return c.getString("SERVER_URL", "client.server_url")
}

func (c *Config) GetGridPageSize() int {
	return c.getInt("GRID_PAGE_SIZE", "grid.page_size")
}

func (c *Config) getString(envKey string, fileKey string) string {
	value := c.config.GetString(envKey)
	if len(value) == 0 {
		value = c.config.GetString(fileKey)
	}

	return value
}

func (c *Config) getInt(envKey string, fileKey string) int {
	if c.config.IsSet(envKey) {
		return c.config.GetInt(envKey)
	}
	return c.config.GetInt(fileKey)
}

func (c *Config) getDuration(envKey string, fileKey string) time.Duration {
	if c.config.IsSet(envKey) {
		return c.config.GetDuration(envKey)
	}
	return c.config.GetDuration(fileKey)
}

func getProjectRoot() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	for {
		configDir := filepath.Join(currentDir, "config")
		if info, err := os.Stat(configDir); err == nil && info.IsDir() {
			return currentDir, nil
		}

		parent := filepath.Dir(currentDir)

		if parent == currentDir {
			break
		}

		currentDir = parent
	}

	return "", fmt.Errorf("could not find project root (directory containing 'config' folder)")
}

func getConfigPath(env string) (string, error) {
	configFile := fmt.Sprintf("config.%s.yaml", env)

	projectRoot, err := getProjectRoot()
	if err != nil {
		slog.Warn("failed to find project root with config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("failed to find project root: %w", err)
	}
	configPath := filepath.Join(projectRoot, "config", configFile)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		slog.Warn("failed to find config file within config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("config file does not exist: %s", configPath)
	}

	return configPath, nil
}
