//go:build darwin

package inventory

import (
	"time"

	"go.uber.org/zap"
)

// NewSoftwareInventory returns the /Applications + homebrew inventory used on macOS
func NewSoftwareInventory(logger *zap.Logger, timeout time.Duration) SoftwareInventory {
	return newAppsInventory(logger, execRunner{}, timeout, "/Applications")
}
