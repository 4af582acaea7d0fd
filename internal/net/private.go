// Package net decides how the client should reach a backend host.
package net

import (
	"net"
	"net/url"
	"strings"

	"tubefetch/internal/domain/logger"
)

// lookupIP is swapped out in tests.
var lookupIP = net.LookupIP

// IsPrivateNetwork returns true if the backend address is on a LAN or loopback.
//
// Accepts a bare host, a host:port pair, or a full URL.
func IsPrivateNetwork(address string) bool {
	h := hostOf(address)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}

	if ip := net.ParseIP(h); ip != nil {
		return isPrivateIP(ip)
	}
	return isPrivateNetworkFallback(h)
}

// isPrivateNetworkFallback resolves the hostname and checks each address.
func isPrivateNetworkFallback(h string) bool {
	ips, err := lookupIP(h)
	if err != nil {
		logger.Pl.D(2, "Failed to resolve backend host %q: %v", h, err)
		return false
	}

	for _, ip := range ips {
		if isPrivateIP(ip) {
			logger.Pl.D(1, "Backend host %q resolved to private address %q", h, ip.String())
			return true
		}
	}
	logger.Pl.D(2, "Backend host %q resolved to public addresses only", h)
	return false
}

// isPrivateIP covers RFC 1918, ULA, link-local and loopback ranges.
func isPrivateIP(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast()
}

func hostOf(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}

	if strings.Contains(address, "://") {
		if u, err := url.Parse(address); err == nil {
			return u.Hostname()
		}
		return ""
	}

	if h, _, err := net.SplitHostPort(address); err == nil {
		return h
	}
	return strings.Trim(address, "[]")
}
