package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const keyEnv = "ENV"
const envLocal = "local"

const defaultRebuildBatchSize = 1000

type Config struct {
	config *viper.Viper
}

func Load(env string) (*Config, error) {

	if len(env) == 0 {
		if env = os.Getenv(keyEnv); len(env) == 0 {
			env = envLocal
		}
	}

	configPath, err := getConfigPath(env)

	viperConfig := viper.New()
	if err == nil {
		viperConfig.SetConfigFile(configPath)
		if err := viperConfig.ReadInConfig(); err != nil {
			slog.Warn(fmt.Sprintf("error reading config file, %s", err))
		}
	}
	viperConfig.AutomaticEnv()
	viperConfig.SetDefault("indexing.rebuild_batch_size", defaultRebuildBatchSize)

	cfg := &Config{
		config: viperConfig,
	}

	return cfg, nil
}

func (c *Config) GetPort() string {
	return c.getString("PORT", "server.port")
}

func (c *Config) GetKVDBPath() string {
	return c.getString("KVDB_PATH", "database.kvdb_path")
}

// GetIndexPath returns the live index path P. Rebuilds use P.new and P.tmp next to it.
func (c *Config) GetIndexPath() string {
	indexPath := c.getString("INDEX_PATH", "database.index_path")
	storagePath := c.GetStoragePath()
	if len(storagePath) == 0 || filepath.IsAbs(indexPath) {
		return indexPath
	}

	return filepath.Join(storagePath, indexPath)
}

func (c *Config) GetStoragePath() string {
	return c.getString("STORAGE_PATH", "database.storage_path")
}

func (c *Config) GetDeclarationsPath() string {
	declarationsPath := c.getString("DECLARATIONS_PATH", "registry.declarations_path")
	if len(declarationsPath) == 0 || filepath.IsAbs(declarationsPath) {
		return declarationsPath
	}

	if projectRoot, err := getProjectRoot(); err == nil {
		return filepath.Join(projectRoot, declarationsPath)
	}

	return declarationsPath
}

func (c *Config) GetRebuildBatchSize() int {
	batchSize := c.config.GetInt("REBUILD_BATCH_SIZE")
	if batchSize <= 0 {
		batchSize = c.config.GetInt("indexing.rebuild_batch_size")
	}
	if batchSize <= 0 {
		batchSize = defaultRebuildBatchSize
	}

	return batchSize
}

// GetLogLevel returns the configured log level name. logger.ParseLevel treats unknown names as info.
func (c *Config) GetLogLevel() string {
	return c.getString("LOG_LEVEL", "logging.level")
}

func (c *Config) GetFlushEachJob() bool {
	if c.config.IsSet("FLUSH_EACH_JOB") {
		return c.config.GetBool("FLUSH_EACH_JOB")
	}

	return c.config.GetBool("indexing.flush_each_job")
}

// Set overrides a config key. Used by the CLI to apply flags on top of file and env values.
func (c *Config) Set(key string, value any) {
	c.config.Set(key, value)
}

func (c *Config) getString(envKey string, fileKey string) string {
	value := c.config.GetString(envKey)
	if len(value) == 0 {
		value = c.config.GetString(fileKey)
	}

	return value
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
