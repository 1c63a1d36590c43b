package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfigAppliesMatchingDefaults 验证未配置匹配引擎参数时默认值是否生效
func TestLoadConfigAppliesMatchingDefaults(t *testing.T) {
	yamlContent := `
mysql:
  host: "localhost"
  port: 3306
server:
  address: ":9090"
`
	tmpDir, err := os.MkdirTemp("", "config-test")
	require.NoError(t, err, "无法创建临时目录")
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	err = os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err, "无法写入临时配置文件")

	config, err := LoadConfig(configPath)
	require.NoError(t, err, "加载配置不应返回错误")
	require.NotNil(t, config, "配置对象不应为 nil")

	assert.Equal(t, ":9090", config.Server.Address)
	assert.Equal(t, 40.0, config.Matching.SkillWeight, "技能权重默认值应为40")
	assert.Equal(t, 30.0, config.Matching.ExperienceWeight, "经验权重默认值应为30")
	assert.Equal(t, 30.0, config.Matching.ATSWeight, "ATS权重默认值应为30")
	assert.Equal(t, 60, config.Matching.DeliverThreshold, "交付阈值默认值应为60")
	assert.Equal(t, 500, config.Matching.ScanBatchSize, "扫描批量默认值应为500")
	assert.Equal(t, "5m", config.Redis.MatchLockTTL, "匹配锁TTL默认值应为5m")
}

// TestLoadConfigWithAuthKeys 验证鉴权Key清单能否被正确加载
func TestLoadConfigWithAuthKeys(t *testing.T) {
	yamlContent := `
auth:
  admin_keys:
    - "admin-key-1"
  service_keys:
    - "svc-key-1"
  company_keys:
    "comp-key-1": "c3b4e1a0-0000-7000-8000-000000000001"
matching:
  deliver_threshold: 70
`
	tmpDir, err := os.MkdirTemp("", "config-test")
	require.NoError(t, err, "无法创建临时目录")
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	err = os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err, "无法写入临时配置文件")

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, []string{"admin-key-1"}, config.Auth.AdminKeys)
	assert.Equal(t, []string{"svc-key-1"}, config.Auth.ServiceKeys)
	assert.Equal(t, "c3b4e1a0-0000-7000-8000-000000000001", config.Auth.CompanyKeys["comp-key-1"])
	// 显式配置的阈值不应被默认值覆盖
	assert.Equal(t, 70, config.Matching.DeliverThreshold)
}

// TestLoadConfigMissingFile 验证配置文件不存在时返回错误
func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(os.TempDir(), "definitely-not-there.yaml"))
	assert.Error(t, err, "不存在的配置文件应返回错误")
}

// TestGetDuration 验证配置时长解析的回退行为
func TestGetDuration(t *testing.T) {
	fallback := 5 * time.Second
	assert.Equal(t, fallback, GetDuration("", fallback))
	assert.Equal(t, fallback, GetDuration("not-a-duration", fallback))
	assert.Equal(t, 90*time.Second, GetDuration("90s", fallback))
}
