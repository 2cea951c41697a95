package config

import (
	"log"

	"taskhub/pkg/config"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DB        config.DBConfig        `yaml:"db"`
	MQ        config.MQConfig        `yaml:"mq"`
	Redis     config.RedisConfig     `yaml:"redis"`
	Auth      config.AuthConfig      `yaml:"auth"`
	Server    config.ServerConfig    `yaml:"server"`
	RateLimit config.RateLimitConfig `yaml:"rate_limit"`
	Webhook   config.WebhookConfig   `yaml:"webhook"`
}

func Load() *Config {
	// 使用统一配置中心
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 转换为 Config 结构
	var cfg Config
	cfgData, err := yaml.Marshal(cfgMap)
	if err != nil {
		log.Fatalf("failed to marshal config: %v", err)
	}
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	// 环境变量覆盖（优先级最高）
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideAuthFromEnv(&cfg.Auth)
	config.OverrideServerFromEnv(&cfg.Server)

	return &cfg
}
