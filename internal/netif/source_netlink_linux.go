//go:build linux

package netif

import (
	"context"
	"errors"
	"net"

	"github.com/vishvananda/netlink"
)

// NetlinkSource reads links and addresses over rtnetlink.
type NetlinkSource struct {
	linkList   func() ([]netlink.Link, error)
	linkByName func(string) (netlink.Link, error)
	addrList   func(netlink.Link, int) ([]netlink.Addr, error)
}

// NewNetlinkSource returns a source bound to the host's netlink socket.
func NewNetlinkSource() (*NetlinkSource, error) {
	return &NetlinkSource{
		linkList:   netlink.LinkList,
		linkByName: netlink.LinkByName,
		addrList:   netlink.AddrList,
	}, nil
}

// Interfaces lists non-loopback links with their first IPv4 address.
func (s *NetlinkSource) Interfaces(_ context.Context) ([]Interface, error) {
	links, err := s.linkList()
	if err != nil {
		return nil, err
	}
	interfaces := make([]Interface, 0, len(links))
	for _, link := range links {
		attrs := link.Attrs()
		if attrs == nil || attrs.Flags&net.FlagLoopback != 0 {
			continue
		}
		ip, err := s.firstIPv4(link)
		if err != nil {
			return nil, err
		}
		interfaces = append(interfaces, Interface{
			Name: attrs.Name,
			IPv4: ip,
			Up:   attrs.Flags&net.FlagUp != 0,
		})
	}
	return interfaces, nil
}

// InterfaceIP returns the first IPv4 address of the named link.
func (s *NetlinkSource) InterfaceIP(_ context.Context, name string) (string, bool, error) {
	if err := ValidateName(name); err != nil {
		return "", false, err
	}
	link, err := s.linkByName(name)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return "", false, nil
		}
		return "", false, err
	}
	ip, err := s.firstIPv4(link)
	if err != nil {
		return "", false, err
	}
	return ip, ip != "", nil
}

func (s *NetlinkSource) firstIPv4(link netlink.Link) (string, error) {
	addrs, err := s.addrList(link, netlink.FAMILY_V4)
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		if addr.IPNet == nil {
			continue
		}
		if ip := addr.IP.To4(); ip != nil {
			return ip.String(), nil
		}
	}
	return "", nil
}
