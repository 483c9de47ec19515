package security

import (
	"net"
	"strings"

	"github.com/sirupsen/logrus"
)

// OriginFilter checks caller addresses against a configured allow-list of
// exact IPs and CIDR blocks. An empty allow-list admits every caller;
// restricting access is an explicit operator opt-in.
type OriginFilter struct {
	allowList []string
	log       *logrus.Logger
}

// NewOriginFilter creates an origin filter.
func NewOriginFilter(allowList []string, log *logrus.Logger) *OriginFilter {
	return &OriginFilter{allowList: allowList, log: log}
}

// Allowed reports whether the client address passes the allow-list.
// Malformed allow-list entries are logged and skipped; they never admit
// everything and never crash the check.
func (f *OriginFilter) Allowed(clientIP string) bool {
	if len(f.allowList) == 0 {
		return true
	}

	if clientIP == "" {
		return false
	}

	for _, entry := range f.allowList {
		if strings.Contains(entry, "/") {
			_, network, err := net.ParseCIDR(entry)
			if err != nil {
				f.log.WithField("entry", entry).Warn("skipping malformed CIDR in origin allow-list")
				continue
			}
			ip := net.ParseIP(clientIP)
			if ip != nil && network.Contains(ip) {
				return true
			}
		} else if clientIP == entry {
			return true
		}
	}

	return false
}
