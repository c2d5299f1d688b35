package inventory

import (
	"bytes"
	"encoding/json"
)

// Report is a complete inventory snapshot.
// It is a flat JSON tree with one key per category and is never mutated
// after collection completes.
type Report struct {
	System    *SystemInfo    `json:"system"`
	Hardware  *HardwareInfo  `json:"hardware"`
	Programs  []Program      `json:"programs"`
	Network   *NetworkInfo   `json:"network"`
	Processes []ProcessEntry `json:"processes"`
}

// Category names, in collection order
const (
	CategorySystem    = "system"
	CategoryHardware  = "hardware"
	CategoryPrograms  = "programs"
	CategoryNetwork   = "network"
	CategoryProcesses = "processes"
)

// SystemInfo contains operating system and host identity
type SystemInfo struct {
	OS           string    `json:"os"`           // "Linux", "Windows", "Darwin"
	OSVersion    string    `json:"os_version"`   // Platform version, e.g. "22.04" or "10.0.19045"
	OSRelease    string    `json:"os_release"`   // Kernel release
	Architecture [2]string `json:"architecture"` // Pointer width and executable format, e.g. ["64bit", "ELF"]
	Machine      string    `json:"machine"`      // e.g. "x86_64"
	Processor    string    `json:"processor"`    // CPU model name, may be empty
	Hostname     string    `json:"hostname"`
	BootTime     string    `json:"boot_time"` // ISO 8601, local time
	Timestamp    string    `json:"timestamp"` // ISO 8601, local time
}

// HardwareInfo contains CPU, memory and disk totals
type HardwareInfo struct {
	CPUCount  int         `json:"cpu_count"` // Logical CPUs
	CPUFreq   *CPUFreq    `json:"cpu_freq"`  // nil when the platform does not report it
	Memory    *MemoryInfo `json:"memory"`
	DiskUsage []DiskUsage `json:"disk_usage"`
}

// CPUFreq is the CPU frequency in MHz.
// Min and Max are nil when the platform does not expose them.
type CPUFreq struct {
	Current float64  `json:"current"`
	Min     *float64 `json:"min"`
	Max     *float64 `json:"max"`
}

// MemoryInfo contains physical memory totals in bytes
type MemoryInfo struct {
	Total     uint64  `json:"total"`
	Available uint64  `json:"available"`
	Percent   float64 `json:"percent"`
}

// DiskUsage describes one mounted partition
type DiskUsage struct {
	Device     string  `json:"device"`
	Mountpoint string  `json:"mountpoint"`
	Fstype     string  `json:"fstype"`
	Total      uint64  `json:"total"`
	Used       uint64  `json:"used"`
	Free       uint64  `json:"free"`
	Percent    float64 `json:"percent"`
}

// Program is one entry of the programs category.
// The populated fields depend on the platform that produced it:
//   - Windows: Name, Version, Publisher
//   - Linux:   Manager, Output
//   - macOS:   Name, Path for applications; Manager, Packages for homebrew
//
// Each variant always encodes its own keys, even when empty.
type Program struct {
	Name      string   `json:"name,omitempty"`
	Version   *string  `json:"version,omitempty"`
	Publisher *string  `json:"publisher,omitempty"`
	Path      string   `json:"path,omitempty"`
	Manager   string   `json:"manager,omitempty"`
	Output    string   `json:"output,omitempty"`
	Packages  []string `json:"packages,omitempty"`
}

// HomebrewManager is the manager name of the macOS homebrew entry
const HomebrewManager = "homebrew"

// MarshalJSON writes the key set of the entry's variant
func (p Program) MarshalJSON() ([]byte, error) {
	var v interface{}
	switch {
	case p.Manager == HomebrewManager || (p.Manager != "" && p.Packages != nil):
		packages := p.Packages
		if packages == nil {
			packages = []string{}
		}
		v = struct {
			Manager  string   `json:"manager"`
			Packages []string `json:"packages"`
		}{p.Manager, packages}
	case p.Manager != "":
		v = struct {
			Manager string `json:"manager"`
			Output  string `json:"output"`
		}{p.Manager, p.Output}
	case p.Path != "":
		v = struct {
			Name string `json:"name"`
			Path string `json:"path"`
		}{p.Name, p.Path}
	default:
		v = struct {
			Name      string  `json:"name"`
			Version   *string `json:"version"`
			Publisher *string `json:"publisher"`
		}{p.Name, p.Version, p.Publisher}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// NetworkInfo lists interfaces without their literal addresses
type NetworkInfo struct {
	Interfaces []Interface `json:"interfaces"`
}

// Interface is one network interface
type Interface struct {
	Name      string          `json:"name"`
	Addresses []AddressFamily `json:"addresses"`
}

// AddressFamily records that an address of a family is configured
type AddressFamily struct {
	Family     string `json:"family"` // AF_INET, AF_INET6, AF_PACKET or AF_LINK
	HasAddress bool   `json:"has_address"`
}

// ProcessEntry is one of the top processes by CPU
type ProcessEntry struct {
	Name       string   `json:"name"`
	CPUPercent *float64 `json:"cpu_percent"` // nil when unreadable
}

// Skipped counts items dropped during best-effort collection, per category
type Skipped map[string]int

// Total returns the number of skipped items across all categories
func (s Skipped) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}
