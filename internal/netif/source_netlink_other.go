//go:build !linux

package netif

// NewNetlinkSource reports ErrUnsupported outside Linux.
func NewNetlinkSource() (Source, error) {
	return nil, ErrUnsupported
}
