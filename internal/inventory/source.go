package inventory

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/stone-age-io/sysinfo/internal/utils"
	"go.uber.org/zap"
)

// TimestampLayout matches the naive ISO 8601 timestamps consumers of the report expect
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Source gathers the OS-level categories of a report.
// Hardware and Processes return the number of items they had to skip.
type Source interface {
	System(ctx context.Context) (*SystemInfo, error)
	Hardware(ctx context.Context) (*HardwareInfo, int, error)
	Network(ctx context.Context) (*NetworkInfo, error)
	Processes(ctx context.Context) ([]ProcessEntry, int, error)
}

// HostSource reads the local host through gopsutil
type HostSource struct {
	logger *zap.Logger
}

// NewHostSource creates a gopsutil-backed source
func NewHostSource(logger *zap.Logger) *HostSource {
	return &HostSource{logger: logger}
}

// System collects OS identity, boot time and the collection timestamp
func (s *HostSource) System(ctx context.Context) (*SystemInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read host info: %w", err)
	}

	processor := ""
	if cpus, err := cpu.InfoWithContext(ctx); err != nil {
		s.logger.Debug("Could not read CPU model", zap.Error(err))
	} else if len(cpus) > 0 {
		processor = strings.TrimSpace(cpus[0].ModelName)
	}

	machine := info.KernelArch
	if machine == "" {
		machine = runtime.GOARCH
	}

	return &SystemInfo{
		OS:           osName(runtime.GOOS),
		OSVersion:    info.PlatformVersion,
		OSRelease:    info.KernelVersion,
		Architecture: architecture(runtime.GOOS),
		Machine:      machine,
		Processor:    processor,
		Hostname:     info.Hostname,
		BootTime:     time.Unix(int64(info.BootTime), 0).Format(TimestampLayout),
		Timestamp:    time.Now().Format(TimestampLayout),
	}, nil
}

// Hardware collects CPU, memory and per-partition disk usage.
// Partitions whose usage cannot be read are skipped.
func (s *HostSource) Hardware(ctx context.Context) (*HardwareInfo, int, error) {
	count, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count CPUs: %w", err)
	}

	hw := &HardwareInfo{
		CPUCount:  count,
		DiskUsage: []DiskUsage{},
	}

	if cpus, err := cpu.InfoWithContext(ctx); err != nil {
		s.logger.Debug("CPU frequency unavailable", zap.Error(err))
	} else if len(cpus) > 0 && cpus[0].Mhz > 0 {
		// gopsutil reports one nominal frequency, usually the maximum; the
		// minimum is not exposed
		mhz := cpus[0].Mhz
		hw.CPUFreq = &CPUFreq{Current: mhz, Max: &mhz}
	}

	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read memory: %w", err)
	}
	hw.Memory = &MemoryInfo{
		Total:     vmem.Total,
		Available: vmem.Available,
		Percent:   vmem.UsedPercent,
	}

	partitions, err := disk.PartitionsWithContext(ctx, false) // false = physical only
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list partitions: %w", err)
	}

	skipped := 0
	for _, partition := range partitions {
		usage, err := disk.UsageWithContext(ctx, partition.Mountpoint)
		if err != nil {
			s.logger.Debug("Could not get disk usage",
				zap.String("mountpoint", partition.Mountpoint),
				zap.Error(err))
			skipped++
			continue
		}

		hw.DiskUsage = append(hw.DiskUsage, DiskUsage{
			Device:     partition.Device,
			Mountpoint: partition.Mountpoint,
			Fstype:     partition.Fstype,
			Total:      usage.Total,
			Used:       usage.Used,
			Free:       usage.Free,
			Percent:    utils.Round(utils.Percent(usage.Used, usage.Total)),
		})
	}

	return hw, skipped, nil
}

// Network lists interfaces and the address families configured on them
func (s *HostSource) Network(ctx context.Context) (*NetworkInfo, error) {
	stats, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list network interfaces: %w", err)
	}
	return &NetworkInfo{Interfaces: describeInterfaces(stats, linkFamily(runtime.GOOS))}, nil
}

// Processes samples every running process in enumeration order.
// Processes that exit or deny access while being read are skipped.
func (s *HostSource) Processes(ctx context.Context) ([]ProcessEntry, int, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list processes: %w", err)
	}

	entries := make([]ProcessEntry, 0, len(procs))
	skipped := 0
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			skipped++
			continue
		}

		entry := ProcessEntry{Name: name}
		if pct, err := p.CPUPercentWithContext(ctx); err == nil {
			entry.CPUPercent = &pct
		}
		entries = append(entries, entry)
	}

	if skipped > 0 {
		s.logger.Debug("Skipped unreadable processes", zap.Int("count", skipped))
	}

	return entries, skipped, nil
}

// describeInterfaces reduces interface stats to address families.
// Literal addresses are never copied into the report.
func describeInterfaces(stats psnet.InterfaceStatList, link string) []Interface {
	interfaces := make([]Interface, 0, len(stats))
	for _, st := range stats {
		iface := Interface{
			Name:      st.Name,
			Addresses: []AddressFamily{},
		}
		for _, addr := range st.Addrs {
			iface.Addresses = append(iface.Addresses, AddressFamily{
				Family:     addressFamily(addr.Addr),
				HasAddress: addr.Addr != "",
			})
		}
		if st.HardwareAddr != "" {
			iface.Addresses = append(iface.Addresses, AddressFamily{
				Family:     link,
				HasAddress: true,
			})
		}
		interfaces = append(interfaces, iface)
	}
	return interfaces
}

// addressFamily classifies an address in CIDR or plain form
func addressFamily(addr string) string {
	host := addr
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	ip := net.ParseIP(host)
	switch {
	case ip == nil:
		return "AF_UNSPEC"
	case ip.To4() != nil:
		return "AF_INET"
	default:
		return "AF_INET6"
	}
}

// linkFamily is the name the platform uses for hardware addresses
func linkFamily(goos string) string {
	if goos == "linux" {
		return "AF_PACKET"
	}
	return "AF_LINK"
}

func osName(goos string) string {
	switch goos {
	case "linux":
		return "Linux"
	case "windows":
		return "Windows"
	case "darwin":
		return "Darwin"
	case "freebsd":
		return "FreeBSD"
	case "openbsd":
		return "OpenBSD"
	case "netbsd":
		return "NetBSD"
	default:
		return goos
	}
}

// architecture returns pointer width and executable format
func architecture(goos string) [2]string {
	bits := strconv.Itoa(strconv.IntSize) + "bit"
	switch goos {
	case "windows":
		return [2]string{bits, "WindowsPE"}
	case "darwin":
		return [2]string{bits, "Mach-O"}
	default:
		return [2]string{bits, "ELF"}
	}
}
