package submitapplication

import (
	"time"

	"soloparent-workers/internal/common/config"
)

type Config struct {
	Timeout        time.Duration
	MaxAttachments int
}

func LoadConfig(sub config.SubmissionConfig) *Config {
	return &Config{
		Timeout:        60 * time.Second,
		MaxAttachments: sub.MaxAttachments,
	}
}
