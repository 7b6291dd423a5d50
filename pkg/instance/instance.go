package instance

import (
	"os"

	"github.com/angelmondragon/pos-backend/pkg/env"
)

// ID names this process in logs. POS_INSTANCE_ID wins, then the hostname.
func ID(kind string) string {
	if id := env.Get("POS_INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return kind + "@" + host
	}
	return kind + "-0"
}
