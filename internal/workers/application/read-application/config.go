package readapplication

import "time"

type Config struct {
	Timeout      time.Duration
	HistoryLimit int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      10 * time.Second,
		HistoryLimit: 20,
	}
}
