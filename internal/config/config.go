// Package config 加载运行时配置。
//
// 所有字段通过 struct tag 声明环境变量映射:
//
//	`env:"VAR_NAME" default:"value" min:"0"`
//
// Load() 使用反射自动填充，无需手动逐行赋值。
package config

import (
	"time"

	"github.com/kairei/agent-runtime/pkg/util"
)

// ContextConfig 对应 spec.md §6 的 Context 配置面。
type ContextConfig struct {
	// RequestTimeoutSec 是 Think/Request 表达式等待响应的默认超时。
	RequestTimeoutSec int `env:"KAIREI_CONTEXT_REQUEST_TIMEOUT_SEC" default:"30" min:"1"`
	// AccessTimeoutSec 是作用域锁获取的默认超时，超过视为潜在死锁。
	AccessTimeoutSec int `env:"KAIREI_CONTEXT_ACCESS_TIMEOUT_SEC" default:"30" min:"1"`
}

func (c ContextConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

func (c ContextConfig) AccessTimeout() time.Duration {
	return time.Duration(c.AccessTimeoutSec) * time.Second
}

// ScaleManagerConfig 控制内置 ScaleManager agent 是否启用。
type ScaleManagerConfig struct {
	Enabled bool `env:"KAIREI_SCALE_MANAGER_ENABLED" default:"false"`
}

// MonitorConfig 控制内置 Monitor agent 是否启用。
type MonitorConfig struct {
	Enabled bool `env:"KAIREI_MONITOR_ENABLED" default:"false"`
}

// BusConfig 控制事件总线的订阅队列容量。
type BusConfig struct {
	// Capacity 是每个订阅者 channel 的缓冲区大小；Publish 在缓冲区满时阻塞
	// 而非丢弃 (与 spec.md §4.4 的非有损要求一致)。
	Capacity int `env:"KAIREI_BUS_CAPACITY" default:"256" min:"1"`
}

// LogConfig 控制结构化日志的输出形态。
type LogConfig struct {
	Level string `env:"KAIREI_LOG_LEVEL" default:"info"`
	Env   string `env:"KAIREI_LOG_ENV" default:"production"`
}

// AgentConfig 是运行时的全局配置面，对应 spec.md §6。
type AgentConfig struct {
	Context      ContextConfig
	ScaleManager ScaleManagerConfig
	Monitor      MonitorConfig
	Bus          BusConfig
	Log          LogConfig
}

// Load 从环境变量加载配置 (通过反射读取 struct tag)。
func Load() *AgentConfig {
	var cfg AgentConfig
	util.LoadFromEnv(&cfg.Context)
	util.LoadFromEnv(&cfg.ScaleManager)
	util.LoadFromEnv(&cfg.Monitor)
	util.LoadFromEnv(&cfg.Bus)
	util.LoadFromEnv(&cfg.Log)
	return &cfg
}
