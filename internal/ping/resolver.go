package ping

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is the standard Minecraft server port.
const DefaultPort uint16 = 25565

// Resolve turns a user-supplied target into a host and port. A missing port
// falls back to DefaultPort. When srv is set and no explicit port was given,
// a _minecraft._tcp SRV record overrides both host and port; SRV lookup
// failures fall back to the plain address.
func Resolve(ctx context.Context, target string, srv bool) (string, uint16, error) {
	host := target
	port := DefaultPort
	explicitPort := false

	if h, p, err := net.SplitHostPort(target); err == nil {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return "", 0, fmt.Errorf("invalid port %q: %w", p, err)
		}
		host = h
		port = uint16(n)
		explicitPort = true
	}

	if host == "" {
		return "", 0, fmt.Errorf("empty host in target %q", target)
	}

	if srv && !explicitPort {
		if _, addrs, err := net.DefaultResolver.LookupSRV(ctx, "minecraft", "tcp", host); err == nil && len(addrs) > 0 {
			// SRV targets usually carry a trailing dot
			host = strings.TrimSuffix(addrs[0].Target, ".")
			port = addrs[0].Port
		}
	}

	return host, port, nil
}
