// Package ipanon implements the IP Anonymizer: version detection, RFC-range
// classification, and the truncate/hash/remove anonymization strategies
// with IPv6 "::" compression.
//
// Grounded on the teacher's internal/security HMAC-keyed hashing idiom
// (internal/ids.HMACSHA256Hex) reused here for the "hash" strategy, and on
// the Mindburn-Labs-helm core/pkg/privacy PII-tiering approach of picking a
// redaction strategy from a classification rather than hardcoding one.
package ipanon

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/nchat/trustplane/internal/ids"
)

// Version is the detected address family.
type Version int

const (
	VersionUnknown Version = iota
	VersionV4
	VersionV6
)

// Strategy selects how an address is anonymized.
type Strategy string

const (
	StrategyNone     Strategy = "none"
	StrategyTruncate Strategy = "truncate"
	StrategyHash     Strategy = "hash"
	StrategyRemove   Strategy = "remove"
)

// TruncateLevel is how many high-order octets/groups survive truncation.
type TruncateLevel int

const (
	Truncate24 TruncateLevel = iota // IPv4 /24, IPv6 /48
	Truncate16                     // IPv4 /16, IPv6 /32
	Truncate8                      // IPv4 /8,  IPv6 /16
	Truncate0                      // all zeroed
)

// Sentinels returned by the "remove" strategy, per spec §6.
const (
	RemovedV4 = "0.0.0.0"
	RemovedV6 = "::"
)

// Options parameterizes one anonymization call.
type Options struct {
	Strategy           Strategy
	Level              TruncateLevel // consulted only for StrategyTruncate
	HashSalt           string        // consulted only for StrategyHash
	PreservePrivateIPs bool
}

// DetectVersion classifies addr by the presence of a dotted-quad vs a colon,
// per spec §4.9. Returns VersionUnknown if addr parses as neither.
func DetectVersion(addr string) Version {
	if strings.Contains(addr, ":") {
		if _, err := parseIPv6(addr); err == nil {
			return VersionV6
		}
		return VersionUnknown
	}
	if _, err := parseIPv4(addr); err == nil {
		return VersionV4
	}
	return VersionUnknown
}

// parseIPv4 returns the 4-tuple of octets.
func parseIPv4(addr string) ([4]byte, error) {
	var out [4]byte
	parts := strings.Split(addr, ".")
	if len(parts) != 4 {
		return out, fmt.Errorf("ipanon: %q is not dotted-quad IPv4", addr)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return out, fmt.Errorf("ipanon: invalid IPv4 octet %q", p)
		}
		out[i] = byte(n)
	}
	return out, nil
}

// parseIPv6 returns the 8-tuple of 16-bit groups, expanding a "::"
// compression to the correct number of zero groups.
func parseIPv6(addr string) ([8]uint16, error) {
	var out [8]uint16
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() != nil {
		return out, fmt.Errorf("ipanon: %q is not a valid IPv6 address", addr)
	}
	ip16 := ip.To16()
	for i := 0; i < 8; i++ {
		out[i] = uint16(ip16[i*2])<<8 | uint16(ip16[i*2+1])
	}
	return out, nil
}

// IsLoopback reports whether addr is 127.0.0.0/8 or ::1.
func IsLoopback(addr string) bool {
	ip := net.ParseIP(addr)
	return ip != nil && ip.IsLoopback()
}

// IsLinkLocal reports whether addr is 169.254.0.0/16 or fe80::/10.
func IsLinkLocal(addr string) bool {
	ip := net.ParseIP(addr)
	return ip != nil && ip.IsLinkLocalUnicast()
}

// IsPrivate reports whether addr falls in an RFC1918 (IPv4) or RFC4193
// (IPv6 ULA) private range, or is loopback/link-local.
func IsPrivate(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast()
}

// Anonymize applies opts.Strategy to addr and returns the resulting string.
// When opts.PreservePrivateIPs is set and addr is private, it is returned
// unchanged regardless of the configured strategy.
func Anonymize(addr string, opts Options) (string, error) {
	v := DetectVersion(addr)
	if v == VersionUnknown {
		return "", fmt.Errorf("ipanon: cannot anonymize unrecognized address %q", addr)
	}
	if opts.PreservePrivateIPs && IsPrivate(addr) {
		return addr, nil
	}

	switch opts.Strategy {
	case StrategyTruncate, "":
		return truncate(addr, v, opts.Level)
	case StrategyHash:
		return hashAddr(addr, opts.HashSalt), nil
	case StrategyRemove:
		if v == VersionV4 {
			return RemovedV4, nil
		}
		return RemovedV6, nil
	case StrategyNone:
		return addr, nil
	default:
		return "", fmt.Errorf("ipanon: unknown strategy %q", opts.Strategy)
	}
}

func truncate(addr string, v Version, level TruncateLevel) (string, error) {
	if v == VersionV4 {
		octets, err := parseIPv4(addr)
		if err != nil {
			return "", err
		}
		switch level {
		case Truncate24:
			octets[3] = 0
		case Truncate16:
			octets[2], octets[3] = 0, 0
		case Truncate8:
			octets[1], octets[2], octets[3] = 0, 0, 0
		case Truncate0:
			octets = [4]byte{}
		}
		return fmt.Sprintf("%d.%d.%d.%d", octets[0], octets[1], octets[2], octets[3]), nil
	}

	groups, err := parseIPv6(addr)
	if err != nil {
		return "", err
	}
	// IPv6 truncation levels mirror IPv4's proportionally: /48, /32, /16, /0.
	var keep int
	switch level {
	case Truncate24:
		keep = 3
	case Truncate16:
		keep = 2
	case Truncate8:
		keep = 1
	case Truncate0:
		keep = 0
	}
	for i := keep; i < 8; i++ {
		groups[i] = 0
	}
	return compressIPv6(groups), nil
}

func hashAddr(addr, salt string) string {
	sum := ids.HMACSHA256Hex([]byte(salt), []byte(addr))
	return "ip_" + sum
}

// compressIPv6 renders groups with the longest run of >=2 consecutive
// zero groups collapsed to "::", per spec §4.9.
func compressIPv6(groups [8]uint16) string {
	start, length := longestZeroRun(groups)
	if length < 2 {
		parts := make([]string, 8)
		for i, g := range groups {
			parts[i] = strconv.FormatUint(uint64(g), 16)
		}
		return strings.Join(parts, ":")
	}

	var left, right []string
	for i := 0; i < start; i++ {
		left = append(left, strconv.FormatUint(uint64(groups[i]), 16))
	}
	for i := start + length; i < 8; i++ {
		right = append(right, strconv.FormatUint(uint64(groups[i]), 16))
	}
	return strings.Join(left, ":") + "::" + strings.Join(right, ":")
}

func longestZeroRun(groups [8]uint16) (start, length int) {
	bestStart, bestLen := -1, 0
	curStart, curLen := -1, 0
	for i, g := range groups {
		if g == 0 {
			if curStart == -1 {
				curStart = i
			}
			curLen++
			if curLen > bestLen {
				bestStart, bestLen = curStart, curLen
			}
		} else {
			curStart, curLen = -1, 0
		}
	}
	if bestStart == -1 {
		return 0, 0
	}
	return bestStart, bestLen
}
