package netif

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleIPAddr = `1: lo: <LOOPBACK,UP,LOWER_UP> mtu 65536 qdisc noqueue state UNKNOWN group default qlen 1000
    link/loopback 00:00:00:00:00:00 brd 00:00:00:00:00:00
    inet 127.0.0.1/8 scope host lo
       valid_lft forever preferred_lft forever
2: eth0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 qdisc fq_codel state UP group default qlen 1000
    link/ether 52:54:00:12:34:56 brd ff:ff:ff:ff:ff:ff
    inet 192.168.1.20/24 brd 192.168.1.255 scope global dynamic eth0
       valid_lft 86000sec preferred_lft 86000sec
    inet 192.168.1.21/24 brd 192.168.1.255 scope global secondary eth0
    inet6 fe80::5054:ff:fe12:3456/64 scope link
3: wlan0: <NO-CARRIER,BROADCAST,MULTICAST> mtu 1500 qdisc noop state DOWN group default qlen 1000
    link/ether 52:54:00:ab:cd:ef brd ff:ff:ff:ff:ff:ff
4: veth1@if7: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 qdisc noqueue state UP group default
    inet 10.0.0.2/32 scope global veth1
`

func TestParseIPAddr(t *testing.T) {
	got := ParseIPAddr(sampleIPAddr)
	want := []Interface{
		{Name: "eth0", IPv4: "192.168.1.20", Up: true},
		{Name: "wlan0", IPv4: "", Up: false},
		{Name: "veth1", IPv4: "10.0.0.2", Up: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected interfaces (-want +got):\n%s", diff)
	}
	if got[1].Status() != StatusDown || got[0].Status() != StatusUp {
		t.Fatalf("unexpected status rendering")
	}
}

func TestShellSourceInterfaceIP(t *testing.T) {
	var calls [][]string
	source := NewShellSourceWithRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, append([]string{name}, args...))
		return []byte(`2: eth0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 state UP
    inet 192.168.1.20/24 brd 192.168.1.255 scope global eth0
`), nil
	})

	ip, ok, err := source.InterfaceIP(context.Background(), "eth0")
	if err != nil || !ok || ip != "192.168.1.20" {
		t.Fatalf("unexpected result ip=%q ok=%v err=%v", ip, ok, err)
	}
	if diff := cmp.Diff([][]string{{"ip", "addr", "show", "dev", "eth0"}}, calls); diff != "" {
		t.Fatalf("unexpected command (-want +got):\n%s", diff)
	}
}

func TestShellSourceRejectsInjectedNames(t *testing.T) {
	called := false
	source := NewShellSourceWithRunner(func(context.Context, string, ...string) ([]byte, error) {
		called = true
		return nil, nil
	})
	for _, name := range []string{"eth0; rm -rf /", "$(id)", "a|b", "", "averyveryverylongname0", "-s", "--json", ".eth0"} {
		if _, _, err := source.InterfaceIP(context.Background(), name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("expected invalid name error for %q, got %v", name, err)
		}
	}
	if called {
		t.Fatalf("runner must not be invoked for invalid names")
	}
}

func TestShellSourceUnknownInterface(t *testing.T) {
	source := NewShellSourceWithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, &exec.ExitError{}
	})
	ip, ok, err := source.InterfaceIP(context.Background(), "eth9")
	if err != nil || ok || ip != "" {
		t.Fatalf("expected unknown interface to resolve to nothing, got ip=%q ok=%v err=%v", ip, ok, err)
	}
}

func TestShellSourceInterfaceWithoutAddress(t *testing.T) {
	source := NewShellSourceWithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("3: wlan0: <NO-CARRIER,BROADCAST,MULTICAST> mtu 1500 state DOWN\n"), nil
	})
	_, ok, err := source.InterfaceIP(context.Background(), "wlan0")
	if err != nil || ok {
		t.Fatalf("expected no address, ok=%v err=%v", ok, err)
	}
}

func TestNewSourceRejectsUnknownKind(t *testing.T) {
	if _, err := NewSource("carrier-pigeon"); err == nil {
		t.Fatalf("expected error for unknown source")
	}
	source, err := NewSource("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := source.(*ShellSource); !ok {
		t.Fatalf("expected shell source by default, got %T", source)
	}
}
