package showcli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeRejectsMutatingVerbs(t *testing.T) {
	for _, cmd := range []string{
		"configure terminal",
		"conf t",
		"reload",
		"clear bgp *",
		"debug ip packet",
		"monitor interface",
		"copy running-config startup-config",
		"write memory",
		"  Configure terminal",
	} {
		_, ok := Sanitize(cmd, PlatformIOS)
		assert.False(t, ok, cmd)
	}
}

func TestSanitizeRequiresShow(t *testing.T) {
	_, ok := Sanitize("dir bootflash:", PlatformIOS)
	assert.False(t, ok)
	_, ok = Sanitize("", PlatformIOS)
	assert.False(t, ok)
	_, ok = Sanitize("   ", PlatformIOSXR)
	assert.False(t, ok)
}

func TestSanitizeXRStripsPipes(t *testing.T) {
	got, ok := Sanitize("show running-config | include router bgp", PlatformIOSXR)
	assert.True(t, ok)
	assert.Equal(t, "show running-config", got)

	// pipe with nothing useful left collapses but show survives
	got, ok = Sanitize("show version | utility wc", "ios-xr")
	assert.True(t, ok)
	assert.Equal(t, "show version", got)
}

func TestSanitizeXRNormalizesRunningConfig(t *testing.T) {
	for _, in := range []string{
		"show run",
		"show running config",
		"show running-config",
		"SHOW RUN | include hostname",
	} {
		got, ok := Sanitize(in, PlatformIOSXR)
		assert.True(t, ok, in)
		assert.Equal(t, "show running-config", got, in)
	}

	// the remainder after the short form is preserved
	got, ok := Sanitize("show run router bgp", PlatformIOSXR)
	assert.True(t, ok)
	assert.Equal(t, "show running-config router bgp", got)
}

func TestSanitizeIOSKeepsPipes(t *testing.T) {
	got, ok := Sanitize("show running-config | include router bgp", PlatformIOS)
	assert.True(t, ok)
	assert.Equal(t, "show running-config | include router bgp", got)

	// short form is not expanded on IOS
	got, ok = Sanitize("show run", PlatformIOS)
	assert.True(t, ok)
	assert.Equal(t, "show run", got)
}

func TestSanitizeCollapsesWhitespace(t *testing.T) {
	got, ok := Sanitize("  show   ip   bgp   summary  ", PlatformIOS)
	assert.True(t, ok)
	assert.Equal(t, "show ip bgp summary", got)
}

func TestNormalizePlatform(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "unknown"},
		{"IOS-XR", "cisco-ios-xr"},
		{"cisco iosxr", "cisco-ios-xr"},
		{"Cisco IOS", "cisco-ios"},
		{"ios", "cisco-ios"},
		{"junos", "junos"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePlatform(tt.in), tt.in)
	}
}

func TestCommandKey(t *testing.T) {
	assert.Equal(t, "show_ip_bgp_summary", CommandKey("Show IP BGP Summary"))
	// slashes are dropped, not replaced
	assert.Equal(t, "show_interfaces_gigabitethernet0000", CommandKey("show interfaces GigabitEthernet0/0/0/0"))
	assert.Equal(t, "unknown", CommandKey("///"))

	long := CommandKey("show " + strings.Repeat("bgp neighbor ", 40))
	assert.LessOrEqual(t, len(long), 160)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "show-bgp_summary", Slug("Show-BGP Summary"))
	assert.Equal(t, "block", Slug("###"))
	assert.LessOrEqual(t, len(Slug("a very long heading that keeps going and going and going past forty characters")), 40)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "bgp", Topic("show ip bgp summary"))
	assert.Equal(t, "isis", Topic("show isis adjacency"))
	assert.Equal(t, "interface", Topic("show ipv4 interface brief"))
	assert.Equal(t, "", Topic("show ip"))
	assert.Equal(t, "", Topic(""))
}

func TestIsSafe(t *testing.T) {
	assert.True(t, IsSafe("show ip route", false))
	assert.True(t, IsSafe("  Show Version", false))
	assert.False(t, IsSafe("show", false)) // bare verb, nothing to run
	assert.False(t, IsSafe("ping 10.0.0.1", false))
	assert.True(t, IsSafe("ping 10.0.0.1", true))
	assert.True(t, IsSafe("traceroute 10.0.0.1", true))
	assert.False(t, IsSafe("reload", true))
	assert.False(t, IsSafe("configure terminal", true))
	assert.False(t, IsSafe("", true))
	assert.False(t, IsSafe("telnet 10.0.0.1", true))
}

func TestSignalTags(t *testing.T) {
	tags := SignalTags([]string{
		"show ip bgp summary",
		"show isis adjacency",
		"show interfaces brief",
		"show bfd session",
	})
	assert.Equal(t, []string{"bfd", "bgp", "intf", "ip", "isis"}, tags)

	assert.Empty(t, SignalTags(nil))
	assert.Empty(t, SignalTags([]string{"show version"}))
}
