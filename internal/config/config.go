package config

import "time"

// Config holds chatcore configuration values.
type Config struct {
	LogLevel        string           `mapstructure:"log_level" yaml:"log_level"`
	RoomBuffer      int              `mapstructure:"room_buffer" yaml:"room_buffer"`
	Transcript      bool             `mapstructure:"transcript" yaml:"transcript"`
	MetricsAddr     string           `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	ShutdownTimeout time.Duration    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	Simulation      SimulationConfig `mapstructure:"simulation" yaml:"simulation"`
}

// SimulationConfig tunes the randomized simulation driver.
type SimulationConfig struct {
	Duration       time.Duration `mapstructure:"duration" yaml:"duration"`
	Tick           time.Duration `mapstructure:"tick" yaml:"tick"`
	Seed           int64         `mapstructure:"seed" yaml:"seed"`
	CreateAttempts int           `mapstructure:"create_attempts" yaml:"create_attempts"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		LogLevel:        "info",
		RoomBuffer:      16,
		Transcript:      false,
		MetricsAddr:     "",
		ShutdownTimeout: 5 * time.Second,
		Simulation: SimulationConfig{
			Duration:       25 * time.Second,
			Tick:           time.Second,
			Seed:           0,
			CreateAttempts: 3,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.RoomBuffer != 0 {
		c.RoomBuffer = other.RoomBuffer
	}
	if other.Transcript {
		c.Transcript = true
	}
	if other.MetricsAddr != "" {
		c.MetricsAddr = other.MetricsAddr
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.Simulation.Duration != 0 {
		c.Simulation.Duration = other.Simulation.Duration
	}
	if other.Simulation.Tick != 0 {
		c.Simulation.Tick = other.Simulation.Tick
	}
	if other.Simulation.Seed != 0 {
		c.Simulation.Seed = other.Simulation.Seed
	}
	if other.Simulation.CreateAttempts != 0 {
		c.Simulation.CreateAttempts = other.Simulation.CreateAttempts
	}
}
