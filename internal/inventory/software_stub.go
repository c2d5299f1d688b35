//go:build !windows && !linux && !darwin

package inventory

import (
	"time"

	"go.uber.org/zap"
)

// NewSoftwareInventory returns an empty inventory on unsupported platforms
func NewSoftwareInventory(logger *zap.Logger, timeout time.Duration) SoftwareInventory {
	logger.Debug("Software inventory not supported on this platform")
	return emptyInventory{}
}
