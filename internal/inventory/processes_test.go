package inventory

import (
	"fmt"
	"testing"
)

func pct(v float64) *float64 { return &v }

func names(entries []ProcessEntry) string {
	s := ""
	for i, e := range entries {
		if i > 0 {
			s += ","
		}
		s += e.Name
	}
	return s
}

func TestTopProcesses(t *testing.T) {
	tests := []struct {
		name    string
		samples []ProcessEntry
		limit   int
		want    string
	}{
		{
			name:    "descending by cpu",
			samples: []ProcessEntry{{"a", pct(1)}, {"b", pct(30)}, {"c", pct(5)}},
			limit:   20,
			want:    "b,c,a",
		},
		{
			name:    "missing cpu ranks as zero",
			samples: []ProcessEntry{{"nil", nil}, {"neg", pct(-1)}, {"one", pct(1)}},
			limit:   20,
			want:    "one,nil,neg",
		},
		{
			name:    "ties keep enumeration order",
			samples: []ProcessEntry{{"x", pct(2)}, {"y", nil}, {"z", pct(2)}, {"w", pct(0)}},
			limit:   20,
			want:    "x,z,y,w",
		},
		{
			name:    "limit applied after sort",
			samples: []ProcessEntry{{"a", pct(1)}, {"b", pct(3)}, {"c", pct(2)}},
			limit:   2,
			want:    "b,c",
		},
		{
			name:    "empty",
			samples: nil,
			limit:   20,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := topProcesses(tt.samples, tt.limit)
			if names(got) != tt.want {
				t.Errorf("topProcesses() = %s, want %s", names(got), tt.want)
			}
		})
	}
}

// TestTopProcessesProperties checks length and ordering over many inputs
func TestTopProcessesProperties(t *testing.T) {
	for n := 0; n <= 60; n += 7 {
		samples := make([]ProcessEntry, n)
		for i := range samples {
			samples[i] = ProcessEntry{Name: fmt.Sprintf("p%d", i)}
			if i%3 != 0 {
				samples[i].CPUPercent = pct(float64((i * 37) % 11))
			}
		}

		got := topProcesses(samples, DefaultProcessLimit)
		if len(got) > DefaultProcessLimit {
			t.Fatalf("n=%d: len = %d", n, len(got))
		}
		for i := 1; i < len(got); i++ {
			if cpuOrZero(got[i-1]) < cpuOrZero(got[i]) {
				t.Fatalf("n=%d: not sorted at %d: %v < %v", n, i, cpuOrZero(got[i-1]), cpuOrZero(got[i]))
			}
		}
	}
}

func TestTopProcessesDoesNotMutateInput(t *testing.T) {
	samples := []ProcessEntry{{"a", pct(1)}, {"b", pct(2)}}
	_ = topProcesses(samples, 20)
	if names(samples) != "a,b" {
		t.Errorf("input reordered: %s", names(samples))
	}
}
