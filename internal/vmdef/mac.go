package vmdef

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// DefaultMACPrefix is the Microsoft-assigned Hyper-V OUI
const DefaultMACPrefix = "00:15:5d"

// GenerateMAC generates a random MAC address with the given prefix
func GenerateMAC(prefix string) (string, error) {
	// Generate 3 random bytes for the last 3 octets
	bytes := make([]byte, 3)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return fmt.Sprintf("%s:%02x:%02x:%02x", prefix, bytes[0], bytes[1], bytes[2]), nil
}

// ValidateMAC validates that a MAC address follows the expected format
func ValidateMAC(mac string) bool {
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		return false
	}

	for _, part := range parts {
		if len(part) != 2 {
			return false
		}
	}

	return true
}

// FormatMAC normalizes a MAC address in any common form (colons, dashes,
// bare hex) to the lowercase colon-separated form. It returns "" when the
// input is not 12 hex digits.
func FormatMAC(mac string) string {
	hex := make([]byte, 0, 12)
	for i := 0; i < len(mac); i++ {
		c := mac[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f':
			hex = append(hex, c)
		case c >= 'A' && c <= 'F':
			hex = append(hex, c-'A'+'a')
		case c == ':' || c == '-':
		default:
			return ""
		}
	}
	if len(hex) != 12 {
		return ""
	}

	parts := make([]string, 6)
	for i := range parts {
		parts[i] = string(hex[i*2 : i*2+2])
	}
	return strings.Join(parts, ":")
}

// ResolveMAC returns the MAC address a NIC should carry given its policy
// and the address currently assigned on the adapter, if any. An empty
// string means the platform assigns one (dynamic policy).
func ResolveMAC(nic NIC, current, prefix string) (string, error) {
	switch nic.MACPolicy {
	case MACPolicyStatic:
		if !ValidateMAC(nic.MACAddress) {
			return "", fmt.Errorf("nic '%s': static MAC policy with invalid address '%s'", nic.Name, nic.MACAddress)
		}
		return nic.MACAddress, nil
	case MACPolicyGenerate:
		if nic.MACAddress != "" && ValidateMAC(nic.MACAddress) {
			return nic.MACAddress, nil
		}
		// An address already on the adapter is kept; DHCP reservations
		// and deployment records are keyed to it.
		if mac := FormatMAC(current); mac != "" {
			return mac, nil
		}
		if prefix == "" {
			prefix = DefaultMACPrefix
		}
		return GenerateMAC(prefix)
	case MACPolicyDynamic, "":
		return "", nil
	default:
		return "", fmt.Errorf("nic '%s': unknown MAC policy '%s'", nic.Name, nic.MACPolicy)
	}
}
