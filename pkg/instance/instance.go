package instance

import (
	"os"

	"github.com/angelmondragon/florist-backend/pkg/env"
)

const (
	envInstanceID = "FLORIST_INSTANCE_ID"
	envDyno       = "DYNO"
	defaultID     = "local"
)

// GetID identifies the running process in logs. An explicit instance id wins over
// the platform dyno name, which wins over the hostname.
func GetID() string {
	if id := env.Get(envInstanceID, ""); id != "" {
		return id
	}
	if id := env.Get(envDyno, ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultID
}
