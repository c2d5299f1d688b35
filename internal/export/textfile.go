package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stone-age-io/sysinfo/internal/inventory"
)

// Metric names written to the node_exporter textfile
const (
	MetricInfo             = "sysinfo_info"
	MetricCPUCount         = "sysinfo_cpu_count"
	MetricCPUFrequency     = "sysinfo_cpu_frequency_mhz"
	MetricMemoryTotal      = "sysinfo_memory_total_bytes"
	MetricMemoryAvailable  = "sysinfo_memory_available_bytes"
	MetricDiskTotal        = "sysinfo_disk_total_bytes"
	MetricDiskUsed         = "sysinfo_disk_used_bytes"
	MetricProgramsCount    = "sysinfo_programs_count"
	MetricBootTime         = "sysinfo_boot_time_seconds"
	MetricCollectionTime   = "sysinfo_collection_timestamp_seconds"
	MetricSkippedItems     = "sysinfo_skipped_items"
	MetricNetworkInterface = "sysinfo_network_interfaces"
)

// Families converts a report into Prometheus metric families.
// Categories that are absent from the report produce no metrics.
func Families(report *inventory.Report, skipped inventory.Skipped) ([]*dto.MetricFamily, error) {
	if report == nil {
		return nil, inventory.ErrNotCollected
	}

	var families []*dto.MetricFamily

	if sys := report.System; sys != nil {
		families = append(families, gaugeFamily(MetricInfo,
			"Static host description; value is always 1.",
			gauge(1,
				"os", sys.OS,
				"os_version", sys.OSVersion,
				"architecture", sys.Architecture[0],
				"machine", sys.Machine,
				"hostname", sys.Hostname)))

		if boot, err := parseTimestamp(sys.BootTime); err == nil {
			families = append(families, gaugeFamily(MetricBootTime,
				"Host boot time as a Unix timestamp.",
				gauge(float64(boot.Unix()))))
		}
		if ts, err := parseTimestamp(sys.Timestamp); err == nil {
			families = append(families, gaugeFamily(MetricCollectionTime,
				"Time the inventory was collected as a Unix timestamp.",
				gauge(float64(ts.Unix()))))
		}
	}

	if hw := report.Hardware; hw != nil {
		families = append(families, gaugeFamily(MetricCPUCount,
			"Number of logical CPUs.",
			gauge(float64(hw.CPUCount))))

		if hw.CPUFreq != nil {
			families = append(families, gaugeFamily(MetricCPUFrequency,
				"Current CPU frequency in MHz.",
				gauge(hw.CPUFreq.Current)))
		}

		if hw.Memory != nil {
			families = append(families,
				gaugeFamily(MetricMemoryTotal, "Total physical memory in bytes.",
					gauge(float64(hw.Memory.Total))),
				gaugeFamily(MetricMemoryAvailable, "Available physical memory in bytes.",
					gauge(float64(hw.Memory.Available))))
		}

		if len(hw.DiskUsage) > 0 {
			total := make([]*dto.Metric, 0, len(hw.DiskUsage))
			used := make([]*dto.Metric, 0, len(hw.DiskUsage))
			for _, d := range hw.DiskUsage {
				labels := []string{"device", d.Device, "mountpoint", d.Mountpoint, "fstype", d.Fstype}
				total = append(total, gauge(float64(d.Total), labels...))
				used = append(used, gauge(float64(d.Used), labels...))
			}
			families = append(families,
				gaugeFamily(MetricDiskTotal, "Partition size in bytes.", total...),
				gaugeFamily(MetricDiskUsed, "Partition bytes in use.", used...))
		}
	}

	if report.Programs != nil {
		families = append(families, gaugeFamily(MetricProgramsCount,
			"Number of entries in the programs category.",
			gauge(float64(len(report.Programs)))))
	}

	if report.Network != nil {
		families = append(families, gaugeFamily(MetricNetworkInterface,
			"Number of network interfaces.",
			gauge(float64(len(report.Network.Interfaces)))))
	}

	if len(skipped) > 0 {
		categories := make([]string, 0, len(skipped))
		for c := range skipped {
			categories = append(categories, c)
		}
		sort.Strings(categories)

		metrics := make([]*dto.Metric, 0, len(categories))
		for _, c := range categories {
			metrics = append(metrics, gauge(float64(skipped[c]), "category", c))
		}
		families = append(families, gaugeFamily(MetricSkippedItems,
			"Items skipped during best-effort collection.", metrics...))
	}

	return families, nil
}

// Write encodes families in the Prometheus text exposition format
func Write(w io.Writer, families []*dto.MetricFamily) error {
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// WriteTextfile writes the report as a node_exporter textfile.
// The file is written to a temporary name and renamed so the exporter never
// reads a partial file.
func WriteTextfile(path string, report *inventory.Report, skipped inventory.Skipped) error {
	families, err := Families(report, skipped)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".sysinfo-*.prom")
	if err != nil {
		return fmt.Errorf("failed to create textfile: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, families); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set textfile permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close textfile: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move textfile into place: %w", err)
	}
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(inventory.TimestampLayout, s, time.Local)
}

func gaugeFamily(name, help string, metrics ...*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   strPtr(name),
		Help:   strPtr(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: metrics,
	}
}

// gauge builds a gauge sample from alternating label names and values
func gauge(value float64, labels ...string) *dto.Metric {
	m := &dto.Metric{Gauge: &dto.Gauge{Value: &value}}
	for i := 0; i+1 < len(labels); i += 2 {
		m.Label = append(m.Label, &dto.LabelPair{
			Name:  strPtr(labels[i]),
			Value: strPtr(labels[i+1]),
		})
	}
	return m
}

func strPtr(s string) *string {
	return &s
}
