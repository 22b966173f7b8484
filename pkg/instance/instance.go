package instance

import (
	"os"

	"github.com/angelmondragon/furniture-production-backend/pkg/env"
)

// GetID returns the process instance identifier used in logs and lock owners.
// FURNI_INSTANCE_ID wins, then the platform DYNO name, then the hostname.
func GetID() string {
	if id := env.Get("FURNI_INSTANCE_ID", ""); id != "" {
		return id
	}
	if dyno := env.Get("DYNO", ""); dyno != "" {
		return dyno
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
