package config

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kairei/agent-runtime/pkg/logger"
)

// worldMu 保护 world 文件的并发读写。
var worldMu sync.Mutex

// WorldRaw 是 world 定义文件的顶层结构，供 DSL 之外的运营者以 YAML
// 形式声明 World agent 的策略与能力，对应 spec.md §2 的 WorldDef。
type WorldRaw struct {
	Name         string   `yaml:"name"`
	Policy       string   `yaml:"policy,omitempty"`
	Capabilities []string `yaml:"capabilities,omitempty"`
}

// WorldSnapshot 是 World 定义的快照，含哈希与加载时间，用于热重载时的
// 变更检测。
type WorldSnapshot struct {
	Raw      *WorldRaw `json:"raw"`
	Hash     string    `json:"hash"`
	LoadedAt string    `json:"loaded_at"`
}

// LoadWorldRaw 从 YAML 文件加载 World 定义。文件不存在时返回零值，
// 解析失败时记录告警并返回零值 (world 定义是可选的)。
func LoadWorldRaw(path string) (*WorldRaw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &WorldRaw{}, nil
		}
		return nil, err
	}

	var raw WorldRaw
	if err := yaml.Unmarshal(data, &raw); err != nil {
		logger.Warn("world definition parse failed", logger.FieldError, err)
		return &WorldRaw{}, nil
	}
	return &raw, nil
}

// SaveWorld 原子写入 world 定义文件。
func SaveWorld(path string, data *WorldRaw) error {
	worldMu.Lock()
	defer worldMu.Unlock()

	encoded, err := yaml.Marshal(data)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, encoded, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// LoadWorldSnapshot 加载 World 定义并附加 sha256 哈希，供调用方判断
// 定义是否相较上次加载发生变化。
func LoadWorldSnapshot(path string) (*WorldSnapshot, error) {
	raw, err := LoadWorldRaw(path)
	if err != nil {
		return nil, err
	}

	normalized, _ := yaml.Marshal(raw)
	hash := fmt.Sprintf("sha256:%x", sha256.Sum256(normalized))

	return &WorldSnapshot{
		Raw:      raw,
		Hash:     hash,
		LoadedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}
