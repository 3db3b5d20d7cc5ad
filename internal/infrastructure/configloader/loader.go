package configloader

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvWalletPrivateKey     = "TG_WALLET_PRIVATE_KEY"
	EnvWalletRPCURL         = "TG_WALLET_RPC_URL"
	EnvStakeRegistryAddress = "TG_STAKE_REGISTRY_ADDRESS"
	EnvWebhookURL           = "TG_NOTIFY_WEBHOOK_URL"
)

// ServerConfig holds server-specific configurations.
type ServerConfig struct {
	Port                string   `yaml:"port"`
	ReadTimeoutSeconds  int      `yaml:"readTimeoutSeconds"`
	WriteTimeoutSeconds int      `yaml:"writeTimeoutSeconds"`
	AllowedOrigins      []string `yaml:"allowedOrigins"`
	// SwaggerSpecPath enables the Swagger UI at /swagger when set.
	SwaggerSpecPath string `yaml:"swaggerSpecPath"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	// Bridge selects the slog handler over zap: "zapslog" (default) or "slog-zap".
	Bridge string `yaml:"bridge"`
}

// StakeRegistryConfig describes the contract holding TG balances.
type StakeRegistryConfig struct {
	Address        string `yaml:"address"`
	BalanceMethod  string `yaml:"balanceMethod"`
	DepositMethod  string `yaml:"depositMethod"`
	WithdrawMethod string `yaml:"withdrawMethod"`
	// TGPerNative is the display rate used for the native cost estimate of a top-up.
	TGPerNative string `yaml:"tgPerNative"`
}

// NetworkNodeConfig holds the RPC configuration for one supported chain.
type NetworkNodeConfig struct {
	Name    string `yaml:"name"`
	ChainID uint64 `yaml:"chainId"`
	RPCURL  string `yaml:"rpcUrl"`
	// RPCURLEnv names the environment variable holding the URL; it wins over RPCURL when set.
	RPCURLEnv string `yaml:"rpcUrlEnv"`
}

// WalletConfig holds the signing wallet settings.
type WalletConfig struct {
	PrivateKey            string `yaml:"privateKey"`
	RPCURL                string `yaml:"rpcUrl"`
	ConnectTimeoutSeconds int    `yaml:"connectTimeoutSeconds"`
	// ChainPollSeconds is how often the wallet checks its connection for a chain change.
	ChainPollSeconds int `yaml:"chainPollSeconds"`
}

// BalanceSyncConfig tunes balance synchronization.
type BalanceSyncConfig struct {
	DebounceMillis        int64   `yaml:"debounceMillis"`
	RPCCallTimeoutSeconds int     `yaml:"rpcCallTimeoutSeconds"`
	RateLimitPerSecond    float64 `yaml:"rateLimitPerSecond"`
	RateLimitBurst        int     `yaml:"rateLimitBurst"`
	ClientIdleMinutes     int     `yaml:"clientIdleMinutes"`
}

// NotificationsConfig holds the outbound notification sinks.
type NotificationsConfig struct {
	WebhookURL           string `yaml:"webhookUrl"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
	WebSocketEnabled     bool   `yaml:"webSocketEnabled"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	StakeRegistry StakeRegistryConfig `yaml:"stakeRegistry"`
	Networks      []NetworkNodeConfig `yaml:"networks"`
	Wallet        WalletConfig        `yaml:"wallet"`
	BalanceSync   BalanceSyncConfig   `yaml:"balanceSync"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// Load reads the YAML configuration file from the given path and unmarshals it.
func Load(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML config data, applies environment overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvWalletPrivateKey)); v != "" {
		cfg.Wallet.PrivateKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvWalletRPCURL)); v != "" {
		cfg.Wallet.RPCURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStakeRegistryAddress)); v != "" {
		cfg.StakeRegistry.Address = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvWebhookURL)); v != "" {
		cfg.Notifications.WebhookURL = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.ReadTimeoutSeconds <= 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	// Submissions wait for confirmation inside the request.
	if cfg.Server.WriteTimeoutSeconds <= 0 {
		cfg.Server.WriteTimeoutSeconds = 300
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Bridge == "" {
		cfg.Logging.Bridge = "zapslog"
	}

	if cfg.StakeRegistry.BalanceMethod == "" {
		cfg.StakeRegistry.BalanceMethod = "getBalance"
	}
	if cfg.StakeRegistry.DepositMethod == "" {
		cfg.StakeRegistry.DepositMethod = "purchaseTG"
	}
	if cfg.StakeRegistry.WithdrawMethod == "" {
		cfg.StakeRegistry.WithdrawMethod = "claimETHForTG"
	}
	if cfg.StakeRegistry.TGPerNative == "" {
		cfg.StakeRegistry.TGPerNative = "1000"
	}

	if len(cfg.Networks) == 0 {
		cfg.Networks = DefaultNetworks()
		logrus.Infof("No networks configured, defaulting to %d built-in networks", len(cfg.Networks))
	}

	if cfg.Wallet.ConnectTimeoutSeconds <= 0 {
		cfg.Wallet.ConnectTimeoutSeconds = 10
	}
	if cfg.Wallet.ChainPollSeconds <= 0 {
		cfg.Wallet.ChainPollSeconds = 15
	}

	if cfg.BalanceSync.DebounceMillis < 0 {
		cfg.BalanceSync.DebounceMillis = 0
	} else if cfg.BalanceSync.DebounceMillis == 0 {
		cfg.BalanceSync.DebounceMillis = 1000
	}
	if cfg.BalanceSync.RPCCallTimeoutSeconds <= 0 {
		cfg.BalanceSync.RPCCallTimeoutSeconds = 10
	}
	if cfg.BalanceSync.RateLimitPerSecond <= 0 {
		cfg.BalanceSync.RateLimitPerSecond = 5
		logrus.Infof("BalanceSync.RateLimitPerSecond not set, defaulting to %.0f", cfg.BalanceSync.RateLimitPerSecond)
	}
	if cfg.BalanceSync.RateLimitBurst <= 0 {
		cfg.BalanceSync.RateLimitBurst = 5
	}
	if cfg.BalanceSync.ClientIdleMinutes <= 0 {
		cfg.BalanceSync.ClientIdleMinutes = 30
	}

	if cfg.Notifications.RequestTimeoutMillis <= 0 {
		cfg.Notifications.RequestTimeoutMillis = 5000
	}
}

// DefaultNetworks returns the chains supported out of the box. Each Base chain reads
// TG_BASE_SEPOLIA_RPC_URL and each Optimism chain reads TG_OPTIMISM_SEPOLIA_RPC_URL.
func DefaultNetworks() []NetworkNodeConfig {
	return []NetworkNodeConfig{
		{Name: "Base Sepolia", ChainID: 84532, RPCURLEnv: "TG_BASE_SEPOLIA_RPC_URL"},
		{Name: "Base", ChainID: 8453, RPCURLEnv: "TG_BASE_SEPOLIA_RPC_URL"},
		{Name: "OP Sepolia", ChainID: 11155420, RPCURLEnv: "TG_OPTIMISM_SEPOLIA_RPC_URL"},
		{Name: "OP Mainnet", ChainID: 10, RPCURLEnv: "TG_OPTIMISM_SEPOLIA_RPC_URL"},
	}
}
