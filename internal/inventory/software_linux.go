//go:build linux

package inventory

import (
	"time"

	"go.uber.org/zap"
)

// NewSoftwareInventory returns the package-manager inventory used on Linux
func NewSoftwareInventory(logger *zap.Logger, timeout time.Duration) SoftwareInventory {
	return newPackageManagerInventory(logger, execRunner{}, timeout)
}
