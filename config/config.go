package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	WechatApp WechatAppConfig `mapstructure:"wechat_app"`
	WechatPay WechatPayConfig `mapstructure:"wechat_pay"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Env          string        `mapstructure:"env"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// WechatAppConfig holds the mini-program identity used for code2session and
// subscription messages.
type WechatAppConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// WechatPayConfig holds the merchant identity for the payment gateway.
type WechatPayConfig struct {
	MerchantID string        `mapstructure:"merchant_id"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	NotifyURL  string        `mapstructure:"notify_url"` // e.g. https://yourdomain.com/api/v1/payments/notify
	Timeout    time.Duration `mapstructure:"timeout"`
}

type NotifyConfig struct {
	TemplateOrderPaid string `mapstructure:"template_order_paid"`
}

func Load() *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("MINIMALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", "8099")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("database.dsn", "minimall:minimall@tcp(localhost:3306)/minimall?charset=utf8mb4&parseTime=True&loc=Local")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expiry", 168*time.Hour)
	v.SetDefault("jwt.issuer", "minimall")
	v.SetDefault("wechat_app.base_url", "https://api.weixin.qq.com")
	v.SetDefault("wechat_pay.base_url", "https://api.mch.weixin.qq.com")
	v.SetDefault("wechat_pay.timeout", 10*time.Second)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("config: %v", err)
		}
		log.Printf("[CONFIG] no config file found, using defaults and environment")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	return &cfg
}
