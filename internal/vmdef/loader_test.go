package vmdef

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chtemp(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()

	originalDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tempDir))
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})

	return tempDir
}

func TestConfigLoader_LoadDefinitionsJSON(t *testing.T) {
	tempDir := chtemp(t)

	content := `{
  "web01": {
    "host": "hv-node-1",
    "processors": 4,
    "memory": {"startup_mb": 8192},
    "disks": [
      {"size_gb": 80, "controller_number": 0, "controller_location": 0},
      {"size_gb": 200, "controller_number": 0, "controller_location": 1}
    ],
    "network_adapters": [
      {"name": "lan", "switch": "SETswitch", "vlan_mode": "access", "vlan_id": 20,
       "mac_policy": "static", "mac_address": "00:15:5d:aa:bb:cc",
       "ip_address": "10.1.20.11", "dhcp_server": "dhcp01", "dhcp_scope": "10.1.20.0"}
    ],
    "os_deployment": {"method": "wds", "server": "wds01"},
    "cluster": {"name": "hv-cluster", "priority": 2000}
  },
  "db01": {
    "host": "hv-node-2",
    "processors": 8,
    "memory": {"startup_mb": 16384, "dynamic": true, "minimum_mb": 8192, "maximum_mb": 32768}
  }
}`
	path := filepath.Join(tempDir, "vms.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	loader := NewConfigLoader()
	require.NoError(t, loader.LoadDefinitions(path))

	vms := loader.GetVMs()
	require.Len(t, vms, 2)
	// GetVMs sorts by name
	assert.Equal(t, "db01", vms[0].Name)
	assert.Equal(t, "web01", vms[1].Name)

	web, err := loader.GetVM("web01")
	require.NoError(t, err)
	assert.Equal(t, "hv-node-1", web.Host)
	assert.Equal(t, 4, web.Processors)
	assert.Equal(t, 8192, web.Memory.StartupMB)
	require.Len(t, web.Disks, 2)
	assert.Equal(t, 1, web.Disks[1].ControllerLocation)
	require.Len(t, web.NICs, 1)
	assert.Equal(t, "SETswitch", web.NICs[0].SwitchName)
	assert.Equal(t, "access", web.NICs[0].VLANMode)
	assert.Equal(t, DeployMethodWDS, web.Deploy.Method)
	assert.Equal(t, "hv-cluster", web.Cluster.Name)

	db, err := loader.GetVM("db01")
	require.NoError(t, err)
	assert.True(t, db.Memory.Dynamic)
	assert.Equal(t, 32768, db.Memory.MaximumMB)
}

func TestConfigLoader_LoadDefinitionsYAML(t *testing.T) {
	tempDir := chtemp(t)

	content := `app01:
  host: hv-node-1
  processors: 2
  memory:
    startup_mb: 4096
  network_adapters:
    - name: lan
      switch: SETswitch
      mac_policy: generate
`
	path := filepath.Join(tempDir, "vms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	loader := NewConfigLoader()
	require.NoError(t, loader.LoadDefinitions(path))

	app, err := loader.GetVM("app01")
	require.NoError(t, err)
	assert.Equal(t, "app01", app.Name)
	assert.Equal(t, 2, app.Processors)
	assert.Equal(t, MACPolicyGenerate, app.NICs[0].MACPolicy)
}

func TestConfigLoader_LoadDefinitionsMissingFile(t *testing.T) {
	chtemp(t)

	loader := NewConfigLoader()
	require.NoError(t, loader.LoadDefinitions("config/vms.json"))
	assert.Empty(t, loader.GetVMs())
}

func TestConfigLoader_GetVM(t *testing.T) {
	loader := NewConfigLoader()
	loader.SetVM(&Definition{Name: "web01", Host: "hv-node-1"})

	_, err := loader.GetVM("missing")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrVMNotFound))

	def, err := loader.GetVM("web01")
	require.NoError(t, err)
	assert.Equal(t, "hv-node-1", def.Host)
}

func TestConfigLoader_SaveRoundTrip(t *testing.T) {
	tempDir := chtemp(t)
	path := filepath.Join(tempDir, "vms.json")

	loader := NewConfigLoader()
	require.NoError(t, loader.LoadDefinitions(path))
	loader.SetVM(&Definition{
		Name:       "web01",
		Host:       "hv-node-1",
		Processors: 4,
		Memory:     Memory{StartupMB: 8192},
		Disks:      []Disk{{SizeGB: 80}},
	})
	require.NoError(t, loader.SaveDefinitions())

	reloaded := NewConfigLoader()
	require.NoError(t, reloaded.LoadDefinitions(path))

	def, err := reloaded.GetVM("web01")
	require.NoError(t, err)
	assert.Equal(t, 4, def.Processors)
	assert.Equal(t, 80, def.Disks[0].SizeGB)
}

func TestConfigLoader_RemoveVM(t *testing.T) {
	loader := NewConfigLoader()
	loader.SetVM(&Definition{Name: "web01"})

	require.NoError(t, loader.RemoveVM("web01"))
	err := loader.RemoveVM("web01")
	assert.True(t, errors.Is(err, ErrVMNotFound))
}

func TestConfigLoader_LoadDefaults(t *testing.T) {
	tempDir := chtemp(t)
	require.NoError(t, os.MkdirAll(filepath.Join(tempDir, "config"), 0755))

	content := `[vm]
root_path = 'D:\Hyper-V'
vhd_path = 'D:\VHDs'

[network]
mac_prefix = "00:15:5d"

[cluster]
name = "hv-cluster"

[deploy]
wds_server = "wds01.corp.example.com"

[logging]
level = "debug"
`
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "config", "defaults.toml"), []byte(content), 0644))

	loader := NewConfigLoader()
	require.NoError(t, loader.LoadDefaults())

	defaults := loader.GetDefaults()
	assert.Equal(t, `D:\Hyper-V`, defaults.VM.RootPath)
	assert.Equal(t, "hv-cluster", defaults.Cluster.Name)
	assert.Equal(t, "wds01.corp.example.com", defaults.Deploy.WDSServer)
	assert.Equal(t, "debug", defaults.Logging.Level)
	// Unset sections keep built-in values
	assert.Equal(t, 300, defaults.PowerShell.TimeoutSeconds)
	assert.Equal(t, 2, defaults.VM.Generation)
}

func TestConfigLoader_LoadDefaultsMissingFile(t *testing.T) {
	chtemp(t)

	loader := NewConfigLoader()
	require.NoError(t, loader.LoadDefaults())
	assert.Equal(t, "00:15:5d", loader.GetDefaults().Network.MACPrefix)
}
