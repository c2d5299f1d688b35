package inventory

import (
	"errors"
	"fmt"

	"github.com/stone-age-io/sysinfo/internal/utils"
)

// ErrMissingField is returned when a summary needs a field the report lacks
var ErrMissingField = errors.New("report field missing")

// Summary is the short human-readable view of a report
type Summary struct {
	OS           string
	OSVersion    string
	Architecture string
	CPUCount     int
	RAMGiB       float64
	ProgramCount int
	ProcessCount int
}

// Summarize derives a Summary.
// Missing system or hardware data is an error; no defaults are substituted.
func Summarize(report *Report) (*Summary, error) {
	if report == nil {
		return nil, ErrNotCollected
	}
	if report.System == nil {
		return nil, fmt.Errorf("%w: system", ErrMissingField)
	}
	if report.Hardware == nil {
		return nil, fmt.Errorf("%w: hardware", ErrMissingField)
	}
	if report.Hardware.Memory == nil {
		return nil, fmt.Errorf("%w: hardware.memory", ErrMissingField)
	}

	return &Summary{
		OS:           report.System.OS,
		OSVersion:    report.System.OSVersion,
		Architecture: report.System.Architecture[0],
		CPUCount:     report.Hardware.CPUCount,
		RAMGiB:       utils.BytesToGiB(report.Hardware.Memory.Total),
		ProgramCount: len(report.Programs),
		ProcessCount: len(report.Processes),
	}, nil
}

// Lines renders the summary as fixed display lines
func (s *Summary) Lines() []string {
	return []string{
		fmt.Sprintf("OS: %s %s", s.OS, s.OSVersion),
		fmt.Sprintf("Architecture: %s", s.Architecture),
		fmt.Sprintf("CPU: %d cores", s.CPUCount),
		fmt.Sprintf("RAM: %.1f GB", s.RAMGiB),
		fmt.Sprintf("Installed programs: %d", s.ProgramCount),
		fmt.Sprintf("Running processes: %d", s.ProcessCount),
	}
}
