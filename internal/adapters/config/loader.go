// Package config loads forge.yaml and FORGE_ environment overrides with viper.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "FORGE"

const (
	defaultCacheTTL      = time.Hour
	defaultRemoteTimeout = 30 * time.Second
)

// Keys, dotted as they appear in forge.yaml. The matching environment
// variable upper-cases the key and replaces dots with underscores.
const (
	keyLocalEnabled  = "registry.local_enabled"
	keyLocalPath     = "registry.local_path"
	keyGlobalEnabled = "registry.global_enabled"
	keyGlobalPath    = "registry.global_path"
	keyRemoteEnabled = "registry.remote_enabled"
	keyRemoteURL     = "registry.remote_url"
	keyRemoteTimeout = "registry.remote_timeout"
	keyCacheEnabled  = "cache.enabled"
	keyCacheTTL      = "cache.ttl"
	keyInlineTTL     = "cache.inline_ttl"
	keyFetchURL      = "cache.fetch_url"
	keyLockfile      = "lockfile"
	keyLogLevel      = "log_level"
	keyAgents        = "agents"
	keyTools         = "tools"
)

// Loader implements ports.ConfigLoader.
type Loader struct {
	logger ports.Logger
	home   func() (string, error)
}

// NewLoader creates a new configuration loader.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{logger: logger, home: os.UserHomeDir}
}

// Load reads forge.yaml from cwd when present and applies FORGE_ overrides.
// Relative paths are resolved against cwd.
func (l *Loader) Load(cwd string) (*domain.Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(domain.ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cwd)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, zerr.With(zerr.Wrap(domain.ErrConfigReadFailed, err.Error()), "dir", cwd)
		}
		l.logger.Debug("no " + domain.ConfigFileName + ".yaml in " + cwd + ", using defaults")
	}

	cfg := &domain.Config{
		Registry: domain.RegistryConfig{
			LocalEnabled:  v.GetBool(keyLocalEnabled),
			LocalPath:     l.resolvePath(cwd, v.GetString(keyLocalPath)),
			GlobalEnabled: v.GetBool(keyGlobalEnabled),
			GlobalPath:    l.resolvePath(cwd, v.GetString(keyGlobalPath)),
			RemoteURL:     strings.TrimRight(v.GetString(keyRemoteURL), "/"),
			RemoteTimeout: v.GetDuration(keyRemoteTimeout),
		},
		Cache: domain.CacheConfig{
			Enabled:      v.GetBool(keyCacheEnabled),
			DefaultTTL:   seconds(v.GetInt(keyCacheTTL), defaultCacheTTL),
			InlineTTL:    seconds(v.GetInt(keyInlineTTL), domain.NoExpiry),
			FetchBaseURL: strings.TrimRight(v.GetString(keyFetchURL), "/"),
		},
		LockfilePath: l.resolvePath(cwd, v.GetString(keyLockfile)),
		LogLevel:     v.GetString(keyLogLevel),
		Agents:       v.GetStringSlice(keyAgents),
		Tools:        v.GetStringSlice(keyTools),
	}
	cfg.Registry.RemoteEnabled = v.GetBool(keyRemoteEnabled) && cfg.Registry.RemoteURL != ""
	if cfg.Registry.RemoteTimeout <= 0 {
		cfg.Registry.RemoteTimeout = defaultRemoteTimeout
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyLocalEnabled, true)
	v.SetDefault(keyLocalPath, domain.DefaultLocalRegistryPath())
	v.SetDefault(keyGlobalEnabled, true)
	v.SetDefault(keyGlobalPath, filepath.Join("~", domain.ForgeDirName, domain.RegistryDirName))
	v.SetDefault(keyRemoteEnabled, true)
	v.SetDefault(keyRemoteURL, "")
	v.SetDefault(keyRemoteTimeout, defaultRemoteTimeout)
	v.SetDefault(keyCacheEnabled, true)
	v.SetDefault(keyCacheTTL, int(defaultCacheTTL/time.Second))
	v.SetDefault(keyInlineTTL, 0)
	v.SetDefault(keyFetchURL, "")
	v.SetDefault(keyLockfile, domain.DefaultLockfilePath())
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyAgents, []string{})
	v.SetDefault(keyTools, []string{})
}

// seconds converts a TTL in seconds; zero or negative selects def.
func seconds(n int, def time.Duration) time.Duration {
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

func (l *Loader) resolvePath(cwd, path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := l.home(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(cwd, path)
}
