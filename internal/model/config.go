package model

type Config struct {
	Canvas  CanvasConfig  `yaml:"canvas"`
	Sync    SyncConfig    `yaml:"sync"`
	Store   StoreConfig   `yaml:"store"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Logging LoggingConfig `yaml:"logging"`
}

type CanvasConfig struct {
	BaseURL    string `yaml:"base_url"`
	Token      string `yaml:"token"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

type SyncConfig struct {
	Timezone       string `yaml:"timezone"`
	WaitOffsetDays int    `yaml:"wait_offset_days"`
	PoolWidth      int    `yaml:"pool_width"`
	Priority       string `yaml:"priority"`
}

type StoreConfig struct {
	Dir string `yaml:"dir"`
}

type DaemonConfig struct {
	IntervalSec int `yaml:"interval_sec"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}
