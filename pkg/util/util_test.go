// util_test.go — ClampInt / LoadFromEnv 表驱动测试。
package util

import "testing"

func TestClampInt(t *testing.T) {
	tests := []struct {
		name      string
		v, lo, hi int
		want      int
	}{
		{"below_min", -1, 0, 10, 0},
		{"above_max", 20, 0, 10, 10},
		{"in_range", 5, 0, 10, 5},
		{"at_min", 0, 0, 10, 0},
		{"at_max", 10, 0, 10, 10},
		{"negative_range", -5, -10, -1, -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClampInt(tt.v, tt.lo, tt.hi)
			if got != tt.want {
				t.Errorf("ClampInt(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
			}
		})
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	var cfg struct {
		Name    string  `env:"UTIL_TEST_NAME" default:"kairei"`
		Count   int     `env:"UTIL_TEST_COUNT" default:"3" min:"1"`
		Ratio   float64 `env:"UTIL_TEST_RATIO" default:"0.5" min:"0"`
		Enabled bool    `env:"UTIL_TEST_ENABLED" default:"true"`
	}
	LoadFromEnv(&cfg)
	if cfg.Name != "kairei" || cfg.Count != 3 || cfg.Ratio != 0.5 || !cfg.Enabled {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
