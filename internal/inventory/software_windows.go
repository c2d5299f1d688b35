//go:build windows

package inventory

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/windows/registry"
)

// uninstallKeys hold one subkey per installed product (native and 32-bit views)
var uninstallKeys = []string{
	`SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`,
	`SOFTWARE\WOW6432Node\Microsoft\Windows\CurrentVersion\Uninstall`,
}

// registryInventory reads installed products from the Uninstall registry keys
type registryInventory struct {
	logger *zap.Logger
}

// NewSoftwareInventory returns the registry inventory used on Windows.
// No subprocess is involved, so timeout is unused.
func NewSoftwareInventory(logger *zap.Logger, timeout time.Duration) SoftwareInventory {
	return &registryInventory{logger: logger}
}

func (r *registryInventory) Name() string {
	return "windows registry"
}

// Programs enumerates both uninstall roots.
// Subkeys without a DisplayName are updates or components and are ignored.
func (r *registryInventory) Programs(ctx context.Context) ([]Program, int, error) {
	programs := []Program{}
	skipped := 0

	for _, path := range uninstallKeys {
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}

		found, n, err := r.readRoot(path)
		if err != nil {
			r.logger.Warn("Failed to open uninstall registry key",
				zap.String("path", path),
				zap.Error(err))
			skipped++
			continue
		}
		programs = append(programs, found...)
		skipped += n
	}

	return programs, skipped, nil
}

func (r *registryInventory) readRoot(path string) ([]Program, int, error) {
	root, err := registry.OpenKey(registry.LOCAL_MACHINE, path, registry.ENUMERATE_SUB_KEYS|registry.QUERY_VALUE)
	if err != nil {
		return nil, 0, err
	}
	defer root.Close()

	names, err := root.ReadSubKeyNames(-1)
	if err != nil {
		return nil, 0, err
	}

	var programs []Program
	skipped := 0
	for _, name := range names {
		program, ok, err := readProduct(root, name)
		if err != nil {
			r.logger.Debug("Skipping unreadable uninstall entry",
				zap.String("key", name),
				zap.Error(err))
			skipped++
			continue
		}
		if ok {
			programs = append(programs, program)
		}
	}

	return programs, skipped, nil
}

// readProduct returns ok=false for entries that carry no DisplayName
func readProduct(root registry.Key, name string) (Program, bool, error) {
	key, err := registry.OpenKey(root, name, registry.QUERY_VALUE)
	if err != nil {
		return Program{}, false, err
	}
	defer key.Close()

	displayName, _, err := key.GetStringValue("DisplayName")
	if errors.Is(err, registry.ErrNotExist) {
		return Program{}, false, nil
	}
	if err != nil {
		return Program{}, false, err
	}

	return Program{
		Name:      displayName,
		Version:   strPtr(optionalString(key, "DisplayVersion")),
		Publisher: strPtr(optionalString(key, "Publisher")),
	}, true, nil
}

func optionalString(key registry.Key, value string) string {
	s, _, err := key.GetStringValue(value)
	if err != nil {
		return ""
	}
	return s
}
