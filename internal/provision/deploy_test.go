package provision

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashlab/hvadm/internal/vmdef"
)

func TestRenderUnattend(t *testing.T) {
	def := &vmdef.Definition{
		Name: "app03",
		Deploy: vmdef.Deploy{
			Method: vmdef.DeployMethodISO,
			Domain: "corp.example.com",
			OUPath: "OU=Servers,DC=corp,DC=example,DC=com",
		},
	}
	defaults := vmdef.Defaults{
		Deploy: vmdef.DeployDefaults{Timezone: "W. Europe Standard Time", AdminUser: "setupadmin"},
	}

	content, err := RenderUnattend(def, defaults)
	require.NoError(t, err)

	assert.Contains(t, content, "<ComputerName>app03</ComputerName>")
	assert.Contains(t, content, "<TimeZone>W. Europe Standard Time</TimeZone>")
	assert.Contains(t, content, "<JoinDomain>corp.example.com</JoinDomain>")
	assert.Contains(t, content, "<MachineObjectOU>OU=Servers,DC=corp,DC=example,DC=com</MachineObjectOU>")
	assert.Contains(t, content, "<Username>setupadmin</Username>")
}

func TestRenderUnattendWithoutDomain(t *testing.T) {
	def := &vmdef.Definition{Name: "standalone01"}

	content, err := RenderUnattend(def, vmdef.Defaults{})
	require.NoError(t, err)

	assert.NotContains(t, content, "UnattendedJoin")
	assert.Contains(t, content, "<TimeZone>UTC</TimeZone>")
	assert.Contains(t, content, "<Username>Administrator</Username>")
}

func TestWriteUnattend(t *testing.T) {
	originalDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(originalDir) })

	def := &vmdef.Definition{Name: "app03"}

	path, err := WriteUnattend(def, vmdef.Defaults{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("output", "unattend", "app03.xml"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "<ComputerName>app03</ComputerName>")
}

func TestDeployISO(t *testing.T) {
	originalDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(originalDir) })

	platform := newFakePlatform()
	platform.switches[key("hv-node-1", "SETswitch")] = true

	def := testDefinition()
	def.Deploy = vmdef.Deploy{Method: vmdef.DeployMethodISO, ISOPath: "ws2022.iso"}

	p := testProvisioner(platform)
	p.defaults.Deploy.ISODirectory = `\\share\isos`
	require.NoError(t, p.Create(context.Background(), def))

	// Relative ISO paths resolve against the configured directory.
	assert.Contains(t, platform.calls, `SetDVD(hv-node-1,web01,\\share\isos\ws2022.iso)`)

	_, err = os.Stat(filepath.Join("output", "unattend", "web01.xml"))
	assert.NoError(t, err)
}

func TestDeploySCCM(t *testing.T) {
	platform := newFakePlatform()
	platform.switches[key("hv-node-1", "SETswitch")] = true

	def := testDefinition()
	def.Deploy = vmdef.Deploy{Method: vmdef.DeployMethodSCCM, CollectionName: "OSD Servers"}

	p := testProvisioner(platform)
	require.NoError(t, p.Create(context.Background(), def))

	assert.Contains(t, platform.calls, "ImportSCCMDevice(sccm01,AS1,OSD Servers,web01,00:15:5d:aa:bb:cc)")
}

func TestDeployUnknownMethod(t *testing.T) {
	platform := newFakePlatform()
	platform.switches[key("hv-node-1", "SETswitch")] = true

	def := testDefinition()
	def.Deploy.Method = "pixiedust"

	p := testProvisioner(platform)
	err := p.Create(context.Background(), def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown os_deployment method")
}
