package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用程序配置结构
type Config struct {
	// 远程API配置
	API struct {
		BaseURL string        `mapstructure:"base_url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"api"`

	// 会话存储配置
	Session struct {
		Backend string `mapstructure:"backend"` // "memory", "file", 或 "etcd"
		File    string `mapstructure:"file"`
		Etcd    struct {
			Endpoints   []string      `mapstructure:"endpoints"`
			Username    string        `mapstructure:"username"`
			Password    string        `mapstructure:"password"`
			Key         string        `mapstructure:"key"`
			DialTimeout time.Duration `mapstructure:"dial_timeout"`
		} `mapstructure:"etcd"`
	} `mapstructure:"session"`

	// 更新后的目录刷新配置
	Refresh struct {
		BaseDelay   time.Duration `mapstructure:"base_delay"`
		MaxAttempts int           `mapstructure:"max_attempts"`
	} `mapstructure:"refresh"`

	// 命名空间表单配置
	Namespace struct {
		// 未开启元数据时，更新请求是否发送占位元数据
		UpdatePlaceholderMeta bool `mapstructure:"update_placeholder_meta"`
	} `mapstructure:"namespace"`

	// DNS查询配置
	DNS struct {
		UpstreamDNS []string      `mapstructure:"upstream_dns"`
		CacheTTL    int           `mapstructure:"cache_ttl"`
		Timeout     time.Duration `mapstructure:"timeout"`
	} `mapstructure:"dns"`

	// 本地面板服务配置
	Server struct {
		ListenAddress string `mapstructure:"listen_address"`
		Port          int    `mapstructure:"port"`
	} `mapstructure:"server"`

	// 日志配置
	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`
}

// LoadConfig 从文件和环境变量加载配置
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 如果指定了配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 设置配置文件名和路径
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.dedi-console")
		v.AddConfigPath("/etc/dedi-console")
	}

	// 配置文件格式
	v.SetConfigType("yaml")

	// 尝试从配置文件加载
	if err := v.ReadInConfig(); err != nil {
		// 如果找不到配置文件则使用默认值；其他错误则返回
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件错误: %w", err)
		}
	}

	// 绑定环境变量
	v.SetEnvPrefix("DEDI_CONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVariables(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置错误: %w", err)
	}

	return &config, nil
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	// API默认配置
	v.SetDefault("api.base_url", "https://dev.dedi.global")
	v.SetDefault("api.timeout", 10*time.Second)

	// 会话默认配置
	v.SetDefault("session.backend", "file")
	v.SetDefault("session.file", defaultSessionFile())
	v.SetDefault("session.etcd.endpoints", []string{"localhost:2379"})
	v.SetDefault("session.etcd.key", "/dedi-console/session/default")
	v.SetDefault("session.etcd.dial_timeout", 5*time.Second)

	// 刷新默认配置
	v.SetDefault("refresh.base_delay", 500*time.Millisecond)
	v.SetDefault("refresh.max_attempts", 5)

	v.SetDefault("namespace.update_placeholder_meta", true)

	// DNS默认配置
	v.SetDefault("dns.upstream_dns", []string{"8.8.8.8:53", "1.1.1.1:53"})
	v.SetDefault("dns.cache_ttl", 60)
	v.SetDefault("dns.timeout", 5*time.Second)

	// 面板服务默认配置
	v.SetDefault("server.listen_address", "127.0.0.1")
	v.SetDefault("server.port", 8088)

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", true)
}

// bindEnvVariables 绑定特定的环境变量
func bindEnvVariables(v *viper.Viper) {
	// DEDI_ENDPOINT 与前端构建时的端点变量保持一致
	v.BindEnv("api.base_url", "DEDI_CONSOLE_API_BASE_URL", "DEDI_ENDPOINT")
	v.BindEnv("session.backend", "DEDI_CONSOLE_SESSION_BACKEND")
	v.BindEnv("session.etcd.endpoints", "DEDI_CONSOLE_ETCD_ENDPOINTS")
	v.BindEnv("server.port", "DEDI_CONSOLE_SERVER_PORT")
}

// defaultSessionFile 返回默认的会话文件路径
func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "dedi-console", "session.json")
}

// Address 返回本地面板服务的监听地址
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.ListenAddress, c.Server.Port)
}
