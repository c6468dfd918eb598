// Package netif discovers the host's network interfaces and their IPv4 addresses.
package netif

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

const (
	// KindShell reads interfaces from the output of `ip addr show`.
	KindShell = "shell"
	// KindNetlink reads interfaces over rtnetlink.
	KindNetlink = "netlink"

	StatusUp   = "UP"
	StatusDown = "DOWN"
)

var (
	// ErrInvalidName is returned for interface names the kernel could not hold.
	ErrInvalidName = errors.New("netif: invalid interface name")
	// ErrUnsupported is returned when a source is unavailable on this platform.
	ErrUnsupported = errors.New("netif: source not supported on this platform")

	namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:@-]{0,14}$`)
)

// Interface is one non-loopback network interface.
type Interface struct {
	Name string `json:"name"`
	IPv4 string `json:"ip_address,omitempty"`
	Up   bool   `json:"-"`
}

// Status renders the link state the way `ip` prints it.
func (i Interface) Status() string {
	if i.Up {
		return StatusUp
	}
	return StatusDown
}

// Source enumerates interfaces and resolves their addresses.
type Source interface {
	// Interfaces lists non-loopback interfaces, including those without an IPv4 address.
	Interfaces(ctx context.Context) ([]Interface, error)
	// InterfaceIP returns the first IPv4 address of name. ok is false when the
	// interface is unknown or carries no IPv4 address.
	InterfaceIP(ctx context.Context, name string) (ip string, ok bool, err error)
}

// ValidateName rejects names that are not plain interface identifiers.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// NewSource builds the source selected by kind.
func NewSource(kind string) (Source, error) {
	switch kind {
	case "", KindShell:
		return NewShellSource(), nil
	case KindNetlink:
		return NewNetlinkSource()
	default:
		return nil, fmt.Errorf("netif: unknown source %q", kind)
	}
}
