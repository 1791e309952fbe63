package config

import (
	"os"
	"time"
)

type Config struct {
	Port             string
	PublicURL        string
	HeartbeatTimeout time.Duration
}

func FromEnv() Config {
	c := Config{}
	c.Port = getenv("PORT", "8080")
	c.PublicURL = getenv("PUBLIC_URL", "http://localhost:"+c.Port)
	c.HeartbeatTimeout = getduration("HEARTBEAT_TIMEOUT", 30*time.Second)
	return c
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
