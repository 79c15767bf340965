package vmdef

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateMAC(t *testing.T) {
	prefix := "00:15:5d"
	mac, err := GenerateMAC(prefix)

	assert.NoError(t, err)
	assert.NotEmpty(t, mac)
	assert.True(t, strings.HasPrefix(mac, prefix), "MAC should start with prefix")
	assert.Equal(t, 17, len(mac), "MAC should be 17 characters long")

	// Generate another MAC and ensure they're different
	mac2, err := GenerateMAC(prefix)
	assert.NoError(t, err)
	assert.NotEqual(t, mac, mac2, "Generated MACs should be unique")
}

func TestValidateMAC(t *testing.T) {
	tests := []struct {
		name     string
		mac      string
		expected bool
	}{
		{"valid MAC", "00:15:5d:ab:cd:ef", true},
		{"invalid - too short", "00:15:5d:ab:cd", false},
		{"invalid - too long", "00:15:5d:ab:cd:ef:12", false},
		{"invalid - wrong format", "00-15-5d-ab-cd-ef", false},
		{"valid - uppercase", "00:15:5D:AB:CD:EF", true},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateMAC(tt.mac)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestFormatMAC(t *testing.T) {
	tests := []struct {
		name     string
		mac      string
		expected string
	}{
		{"platform form", "00155DAABBCC", "00:15:5d:aa:bb:cc"},
		{"dashed", "00-15-5D-AB-CD-EF", "00:15:5d:ab:cd:ef"},
		{"already colon form", "00:15:5d:ab:cd:ef", "00:15:5d:ab:cd:ef"},
		{"too short", "00155DAABB", ""},
		{"not hex", "00155DAABBZZ", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatMAC(tt.mac))
		})
	}
}

func TestResolveMAC(t *testing.T) {
	prefix := "00:15:5d"

	// Static policy returns the configured address
	mac, err := ResolveMAC(NIC{Name: "lan", MACPolicy: MACPolicyStatic, MACAddress: "00:15:5d:aa:bb:cc"}, "", prefix)
	assert.NoError(t, err)
	assert.Equal(t, "00:15:5d:aa:bb:cc", mac)

	// Static policy with a bad address is an error
	_, err = ResolveMAC(NIC{Name: "lan", MACPolicy: MACPolicyStatic, MACAddress: "nope"}, "", prefix)
	assert.Error(t, err)

	// Generate policy keeps an already-generated address
	mac, err = ResolveMAC(NIC{Name: "lan", MACPolicy: MACPolicyGenerate, MACAddress: "00:15:5d:11:22:33"}, "", prefix)
	assert.NoError(t, err)
	assert.Equal(t, "00:15:5d:11:22:33", mac)

	// Generate policy sticks to the address the adapter already carries
	mac, err = ResolveMAC(NIC{Name: "lan", MACPolicy: MACPolicyGenerate}, "00155D77091F", prefix)
	assert.NoError(t, err)
	assert.Equal(t, "00:15:5d:77:09:1f", mac)

	// Generate policy mints a fresh address only when nothing is assigned
	mac, err = ResolveMAC(NIC{Name: "lan", MACPolicy: MACPolicyGenerate}, "", prefix)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(mac, prefix))
	assert.True(t, ValidateMAC(mac))

	// Dynamic (and unset) policy leaves assignment to the platform
	mac, err = ResolveMAC(NIC{Name: "lan", MACPolicy: MACPolicyDynamic}, "00155D77091F", prefix)
	assert.NoError(t, err)
	assert.Empty(t, mac)

	mac, err = ResolveMAC(NIC{Name: "lan"}, "", prefix)
	assert.NoError(t, err)
	assert.Empty(t, mac)

	// Unknown policy is an error
	_, err = ResolveMAC(NIC{Name: "lan", MACPolicy: "sticky"}, "", prefix)
	assert.Error(t, err)
}
