// Package validation provides field validators for customer network
// records. The rules mirror what the Panorama side will accept: address
// objects need a dotted-quad IPv4 value with a prefix length, and tags
// are restricted to letters, numbers, underscores, and hyphens.
package validation

import (
	"fmt"
	"strconv"
	"strings"
)

// isAlpha returns true if the byte is an ASCII letter.
func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// isNum returns true if the byte is an ASCII digit.
func isNum(b byte) bool {
	return b >= '0' && b <= '9'
}

// ValidateIPAddress validates a dotted-quad IPv4 address: exactly four
// segments, each an integer in [0,255]. Stricter than net.ParseIP on
// purpose - no IPv6, no shorthand forms.
func ValidateIPAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("IP address must not be empty")
	}
	segments := strings.Split(addr, ".")
	if len(segments) != 4 {
		return fmt.Errorf("IP address must have exactly four octets")
	}
	for _, seg := range segments {
		if seg == "" {
			return fmt.Errorf("IP address octet must not be empty")
		}
		for _, b := range []byte(seg) {
			if !isNum(b) {
				return fmt.Errorf("IP address octet must be numeric: %s", seg)
			}
		}
		n, err := strconv.Atoi(seg)
		if err != nil {
			return fmt.Errorf("IP address octet must be numeric: %s", seg)
		}
		if n < 0 || n > 255 {
			return fmt.Errorf("IP address octet out of range [0,255]: %s", seg)
		}
	}
	return nil
}

// ParseSubnetMask parses a prefix length given as a bare integer string
// and validates it is in [0,32]. Dotted-quad and slash forms are
// converted before rows reach this point; see the ingest package.
func ParseSubnetMask(mask string) (int, error) {
	mask = strings.TrimSpace(mask)
	if mask == "" {
		return 0, fmt.Errorf("subnet mask must not be empty")
	}
	n, err := strconv.Atoi(mask)
	if err != nil {
		return 0, fmt.Errorf("subnet mask must be an integer: %s", mask)
	}
	if err := ValidatePrefixLength(n); err != nil {
		return 0, err
	}
	return n, nil
}

// ValidatePrefixLength validates a CIDR prefix length.
func ValidatePrefixLength(n int) error {
	if n < 0 || n > 32 {
		return fmt.Errorf("subnet mask out of range [0,32]: %d", n)
	}
	return nil
}

// ValidateTag validates a Panorama tag name: letters, numbers,
// underscores, and hyphens only, no spaces.
func ValidateTag(tag string) error {
	if tag == "" {
		return fmt.Errorf("tag must not be empty")
	}
	for _, b := range []byte(tag) {
		if !isAlpha(b) && !isNum(b) && b != '_' && b != '-' {
			return fmt.Errorf("tags can only contain letters, numbers, underscores, or hyphens")
		}
	}
	return nil
}

// DeriveObjectName derives the unique address-object name for a record:
// the customer name lowercased with spaces and apostrophes removed,
// joined with the IP and prefix length.
// Example: ("Family Mart", "192.168.1.1", 24) -> "familymart_192.168.1.1_24".
func DeriveObjectName(name, ip string, mask int) string {
	base := strings.ToLower(name)
	base = strings.ReplaceAll(base, " ", "")
	base = strings.ReplaceAll(base, "'", "")
	return fmt.Sprintf("%s_%s_%d", base, ip, mask)
}
