package inventory

import (
	"encoding/json"
	"strings"
	"testing"

	psnet "github.com/shirou/gopsutil/v3/net"
)

func TestAddressFamily(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"192.168.1.10/24", "AF_INET"},
		{"127.0.0.1", "AF_INET"},
		{"fe80::1/64", "AF_INET6"},
		{"::1", "AF_INET6"},
		{"", "AF_UNSPEC"},
		{"not-an-ip", "AF_UNSPEC"},
	}

	for _, tt := range tests {
		if got := addressFamily(tt.addr); got != tt.want {
			t.Errorf("addressFamily(%q) = %s, want %s", tt.addr, got, tt.want)
		}
	}
}

func TestDescribeInterfaces(t *testing.T) {
	stats := psnet.InterfaceStatList{
		{
			Name:         "eth0",
			HardwareAddr: "02:42:ac:11:00:02",
			Addrs: psnet.InterfaceAddrList{
				{Addr: "172.17.0.2/16"},
				{Addr: "fe80::42:acff:fe11:2/64"},
			},
		},
		{
			Name: "lo",
			Addrs: psnet.InterfaceAddrList{
				{Addr: "127.0.0.1/8"},
			},
		},
		{Name: "dummy0"},
	}

	got := describeInterfaces(stats, "AF_PACKET")
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}

	eth := got[0]
	if eth.Name != "eth0" || len(eth.Addresses) != 3 {
		t.Fatalf("eth0 = %+v", eth)
	}
	wantFamilies := []string{"AF_INET", "AF_INET6", "AF_PACKET"}
	for i, want := range wantFamilies {
		if eth.Addresses[i].Family != want || !eth.Addresses[i].HasAddress {
			t.Errorf("eth0 address %d = %+v, want %s", i, eth.Addresses[i], want)
		}
	}

	if len(got[1].Addresses) != 1 || got[1].Addresses[0].Family != "AF_INET" {
		t.Errorf("lo = %+v", got[1])
	}
	if got[2].Addresses == nil || len(got[2].Addresses) != 0 {
		t.Errorf("dummy0 addresses = %v, want empty list", got[2].Addresses)
	}

	// literal addresses never reach the report
	data, err := json.Marshal(NetworkInfo{Interfaces: got})
	if err != nil {
		t.Fatal(err)
	}
	for _, literal := range []string{"172.17.0.2", "127.0.0.1", "02:42:ac", "fe80"} {
		if strings.Contains(string(data), literal) {
			t.Errorf("encoded network info contains %q: %s", literal, data)
		}
	}
}

func TestPlatformNames(t *testing.T) {
	tests := []struct {
		goos     string
		wantOS   string
		wantExe  string
		wantLink string
	}{
		{"linux", "Linux", "ELF", "AF_PACKET"},
		{"windows", "Windows", "WindowsPE", "AF_LINK"},
		{"darwin", "Darwin", "Mach-O", "AF_LINK"},
		{"freebsd", "FreeBSD", "ELF", "AF_LINK"},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			if got := osName(tt.goos); got != tt.wantOS {
				t.Errorf("osName() = %s, want %s", got, tt.wantOS)
			}
			arch := architecture(tt.goos)
			if arch[1] != tt.wantExe {
				t.Errorf("architecture()[1] = %s, want %s", arch[1], tt.wantExe)
			}
			if !strings.HasSuffix(arch[0], "bit") {
				t.Errorf("architecture()[0] = %s, want <n>bit", arch[0])
			}
			if got := linkFamily(tt.goos); got != tt.wantLink {
				t.Errorf("linkFamily() = %s, want %s", got, tt.wantLink)
			}
		})
	}
}
