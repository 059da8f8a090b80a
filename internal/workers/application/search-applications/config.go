package searchapplications

import "time"

type Config struct {
	Timeout time.Duration
	MaxSize int
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
		MaxSize: 100,
	}
}
