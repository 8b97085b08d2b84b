package k8sdiscovery

import (
	"testing"

	corev1 "k8s.io/api/core/v1"

	"github.com/rezsim/rez/grid/meta"
)

func TestRegionFromAddressParsesHandleFromHostname(t *testing.T) {
	addr := corev1.EndpointAddress{Hostname: "1000-1001", IP: "10.0.0.5"}
	info, ok := regionFromAddress(addr, 9000)
	if !ok {
		t.Fatalf("regionFromAddress() ok = false, want true")
	}
	wantHandle := meta.NewHandle(1000, 1001)
	if info.Handle != wantHandle {
		t.Fatalf("Handle = %v, want %v", info.Handle, wantHandle)
	}
	if info.IP != "10.0.0.5" || info.Port != 9000 {
		t.Fatalf("unexpected RegionInfo: %+v", info)
	}
}

func TestRegionFromAddressRejectsMalformedHostname(t *testing.T) {
	for _, hostname := range []string{"", "noseparator", "abc-def", "1000-"} {
		if _, ok := regionFromAddress(corev1.EndpointAddress{Hostname: hostname}, 9000); ok {
			t.Errorf("regionFromAddress(%q) ok = true, want false", hostname)
		}
	}
}

func TestFindPortPrefersNamedPort(t *testing.T) {
	ports := []corev1.EndpointPort{
		{Name: "metrics", Port: 9100},
		{Name: "sim", Port: 9000},
	}
	if got := findPort(ports, "sim"); got != 9000 {
		t.Fatalf("findPort = %d, want 9000", got)
	}
}

func TestFindPortFallsBackToFirstWhenNameAbsent(t *testing.T) {
	ports := []corev1.EndpointPort{{Name: "other", Port: 1234}}
	if got := findPort(ports, "sim"); got != 1234 {
		t.Fatalf("findPort fallback = %d, want 1234", got)
	}
}
