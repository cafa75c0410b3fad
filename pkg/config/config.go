// Package config loads and validates reviewforge.yaml: store connection
// settings, the credential vault, ingestion/analysis defaults, and the HTTP
// surface. User configuration is env-expanded, parsed, merged onto built-in
// defaults, and validated fail-fast.
package config

// Config is the umbrella configuration object returned by Initialize.
type Config struct {
	configDir string

	Store      StoreConfig
	Vault      VaultConfig
	HTTP       HTTPConfig
	Runtime    RuntimeConfig
	Ingestion  IngestionDefaults
	Analysis   AnalysisDefaults
	PromptsDir string
}

// ConfigDir returns the directory configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// StoreConfig holds Postgres connection settings, mapped onto
// pkg/store.Config by cmd/reviewforge.
type StoreConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	SSLMode         string `yaml:"ssl_mode"`
	MaxConns        int32  `yaml:"max_conns"`
	MinConns        int32  `yaml:"min_conns"`
	MaxConnLifetime string `yaml:"max_conn_lifetime"`
	MaxConnIdleTime string `yaml:"max_conn_idle_time"`
}

// DefaultStoreConfig matches the connection settings a local docker-compose
// Postgres instance expects out of the box.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "reviewforge",
		Database:        "reviewforge",
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: "1h",
		MaxConnIdleTime: "30m",
	}
}

// VaultConfig locates the credential vault's symmetric key.
type VaultConfig struct {
	KeyEnv  string `yaml:"key_env"`
	KeyFile string `yaml:"key_file"`
}

// DefaultVaultConfig reads the vault key from REVIEWFORGE_VAULT_KEY; a
// configured key file is used only when that variable is unset.
func DefaultVaultConfig() VaultConfig {
	return VaultConfig{
		KeyEnv: "REVIEWFORGE_VAULT_KEY",
	}
}

// HTTPConfig configures the job-control API surface.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultHTTPConfig binds the job-control API to port 8090 on all interfaces.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Addr: ":8090",
	}
}
