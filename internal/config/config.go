package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	SendBuffer int           `mapstructure:"send_buffer"`
	// Policy is the hub backpressure policy: "kick" or "drop".
	Policy string `mapstructure:"policy"`

	RelayURL           string        `mapstructure:"relay_url"`
	ReconnectDelay     time.Duration `mapstructure:"reconnect_delay"`
	ICEServers         []string      `mapstructure:"ice_servers"`
	ICEPortMin         uint16        `mapstructure:"ice_port_min"`
	ICEPortMax         uint16        `mapstructure:"ice_port_max"`
	NegotiationTimeout time.Duration `mapstructure:"negotiation_timeout"`

	Agent   AgentConfig   `mapstructure:"agent"`
	Control ControlConfig `mapstructure:"control"`
	Media   MediaConfig   `mapstructure:"media"`
	Viewer  ViewerConfig  `mapstructure:"viewer"`
}

type AgentConfig struct {
	// Role is "host" or "viewer".
	Role   string `mapstructure:"role"`
	Listen string `mapstructure:"listen"`
}

type ControlConfig struct {
	RequireSharing bool `mapstructure:"require_sharing"`
}

type MediaConfig struct {
	Cameras []SourceConfig `mapstructure:"cameras"`
	Screens []SourceConfig `mapstructure:"screens"`
}

// SourceConfig describes one static capture source. MimeType defaults
// to VP8.
type SourceConfig struct {
	ID       string `mapstructure:"id"`
	Label    string `mapstructure:"label"`
	MimeType string `mapstructure:"mime_type"`
}

type ViewerConfig struct {
	// ForwardAddr receives remote RTP for an external player. Empty disables it.
	ForwardAddr string `mapstructure:"forward_addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "remote-dev-secret")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("policy", "kick")
	v.SetDefault("relay_url", "ws://localhost:8080/ws")
	v.SetDefault("reconnect_delay", "5s")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("negotiation_timeout", "0s")
	v.SetDefault("agent.role", "host")
	v.SetDefault("agent.listen", "127.0.0.1:8090")
	v.SetDefault("control.require_sharing", true)
}

func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName over the defaults. A missing file is not an
// error. REMOTE_* environment variables override both.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("remote")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Role: %s\n", cfg.Mode, cfg.Port, cfg.Agent.Role)
	return &cfg, nil
}
