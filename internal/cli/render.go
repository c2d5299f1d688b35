package cli

import (
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/stone-age-io/sysinfo/internal/inventory"
	"github.com/stone-age-io/sysinfo/internal/utils"
)

// diskWarnPercent highlights nearly full partitions
const diskWarnPercent = 90

var categoryLabels = map[string]string{
	inventory.CategorySystem:    "System information",
	inventory.CategoryHardware:  "Hardware information",
	inventory.CategoryPrograms:  "Installed programs",
	inventory.CategoryNetwork:   "Network information",
	inventory.CategoryProcesses: "Running processes",
}

// WriteBanner prints the startup header
func WriteBanner(w io.Writer) {
	fmt.Fprintln(w, "=== SYSTEM INFORMATION COLLECTOR ===")
	fmt.Fprintln(w, "This tool collects system information (read only)")
	fmt.Fprintf(w, "Detected system: %s\n", runtime.GOOS)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Collecting system information...")
}

// StepPrinter returns a collector step callback that prints progress to w
func StepPrinter(w io.Writer) func(category string, skipped int) {
	ok := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)
	return func(category string, skipped int) {
		label := categoryLabels[category]
		if label == "" {
			label = category
		}
		ok.Fprintf(w, "OK %s", label)
		if skipped > 0 {
			warn.Fprintf(w, " (%d skipped)", skipped)
		}
		fmt.Fprintln(w)
	}
}

// WriteCollected prints the size of a finished report
func WriteCollected(w io.Writer, report *inventory.Report) error {
	data, err := inventory.Marshal(report)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(w, "\nOK Collection complete! %d bytes of data\n", len(data))
	return nil
}

// WriteSummary prints the summary block
func WriteSummary(w io.Writer, s *inventory.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== SYSTEM SUMMARY ===")
	for _, line := range s.Lines() {
		fmt.Fprintln(w, line)
	}
}

// WriteDetail prints disk and process tables for a report
func WriteDetail(w io.Writer, report *inventory.Report) {
	if report.Hardware != nil && len(report.Hardware.DiskUsage) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Disks:")
		writeDiskTable(w, report.Hardware.DiskUsage)
	}

	if len(report.Processes) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Top processes by CPU:")
		writeProcessTable(w, report.Processes)
	}

	if report.Network != nil && len(report.Network.Interfaces) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Network interfaces:")
		writeInterfaceTable(w, report.Network.Interfaces)
	}
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	return table
}

func writeDiskTable(w io.Writer, disks []inventory.DiskUsage) {
	table := newTable(w, []string{"MOUNTPOINT", "DEVICE", "FSTYPE", "SIZE (GB)", "USED (GB)", "USE%"})
	red := color.New(color.FgRed).SprintFunc()

	for _, d := range disks {
		use := fmt.Sprintf("%.1f%%", d.Percent)
		if d.Percent >= diskWarnPercent {
			use = red(use)
		}
		table.Append([]string{
			d.Mountpoint,
			d.Device,
			d.Fstype,
			fmt.Sprintf("%.1f", utils.BytesToGiB(d.Total)),
			fmt.Sprintf("%.1f", utils.BytesToGiB(d.Used)),
			use,
		})
	}
	table.Render()
}

func writeProcessTable(w io.Writer, processes []inventory.ProcessEntry) {
	table := newTable(w, []string{"NAME", "CPU%"})
	for _, p := range processes {
		cpu := "-"
		if p.CPUPercent != nil {
			cpu = fmt.Sprintf("%.1f", *p.CPUPercent)
		}
		table.Append([]string{p.Name, cpu})
	}
	table.Render()
}

func writeInterfaceTable(w io.Writer, interfaces []inventory.Interface) {
	table := newTable(w, []string{"NAME", "FAMILIES"})
	for _, iface := range interfaces {
		families := make([]string, 0, len(iface.Addresses))
		seen := make(map[string]bool)
		for _, a := range iface.Addresses {
			if a.HasAddress && !seen[a.Family] {
				seen[a.Family] = true
				families = append(families, a.Family)
			}
		}
		sort.Strings(families)
		table.Append([]string{iface.Name, strings.Join(families, ",")})
	}
	table.Render()
}
