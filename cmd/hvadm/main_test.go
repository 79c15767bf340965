package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ashlab/hvadm/internal/vmdef"
)

const testDefinitions = `{
  "web01": {
    "host": "hv-node-1",
    "processors": 4,
    "memory": {"startup_mb": 8192},
    "disks": [{"size_gb": 80}],
    "network_adapters": [{"name": "lan", "switch": "SETswitch"}]
  },
  "db01": {
    "host": "hv-node-2",
    "processors": 8,
    "memory": {"startup_mb": 16384},
    "disks": [{"size_gb": 200}],
    "network_adapters": [{"name": "lan", "switch": "SETswitch"}]
  }
}`

// chtempWithConfig switches to a temp directory seeded with a definitions
// file at the default path.
func chtempWithConfig(t *testing.T, definitions string) {
	t.Helper()

	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, "config")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "vms.json"), []byte(definitions), 0644))

	originalDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tempDir))
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})
}

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = oldStdout
	output := make([]byte, 4096)
	n, _ := r.Read(output)
	return string(output[:n])
}

func mockContext(t *testing.T, args []string, stringFlags map[string]string) *cli.Context {
	t.Helper()

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("file", "", "")
	for name, value := range stringFlags {
		set.String(name, value, "")
	}
	set.Int("processors", 2, "")
	set.Int("memory", 4096, "")
	set.Int("disk", 80, "")
	set.Bool("generate-mac", true, "")
	require.NoError(t, set.Parse(args))

	return cli.NewContext(&cli.App{}, set, nil)
}

func TestVMListCommand_OutputFormat(t *testing.T) {
	chtempWithConfig(t, testDefinitions)

	ctx := mockContext(t, nil, nil)
	output := captureStdout(t, func() {
		assert.NoError(t, vmListCommand(ctx))
	})

	assert.Contains(t, output, "NAME", "Should contain NAME header")
	assert.Contains(t, output, "HOST", "Should contain HOST header")
	assert.Contains(t, output, "web01")
	assert.Contains(t, output, "hv-node-1")
	assert.Contains(t, output, "db01")
	assert.Contains(t, output, "hv-node-2")
}

func TestVMListCommand_NoDefinitions(t *testing.T) {
	chtempWithConfig(t, `{}`)

	ctx := mockContext(t, nil, nil)
	output := captureStdout(t, func() {
		assert.NoError(t, vmListCommand(ctx))
	})

	assert.Contains(t, output, "No definitions.")
}

func TestValidateCommand(t *testing.T) {
	chtempWithConfig(t, testDefinitions)

	ctx := mockContext(t, nil, nil)
	output := captureStdout(t, func() {
		assert.NoError(t, validateCommand(ctx))
	})

	assert.Contains(t, output, "Configuration is valid (2 VM definitions)")
}

func TestDefineAddCommand(t *testing.T) {
	chtempWithConfig(t, `{}`)

	ctx := mockContext(t, []string{"app01"}, map[string]string{"host": "hv-node-1", "switch": "SETswitch"})
	output := captureStdout(t, func() {
		assert.NoError(t, defineAddCommand(ctx))
	})

	assert.Contains(t, output, "Defined VM: app01")
	assert.Contains(t, output, "MAC Address: 00:15:5d:")

	// The definition round-trips through the file.
	loader := vmdef.NewConfigLoader()
	require.NoError(t, loader.LoadAll(""))
	def, err := loader.GetVM("app01")
	require.NoError(t, err)
	assert.Equal(t, "hv-node-1", def.Host)
	assert.Equal(t, 2, def.Processors)
	require.Len(t, def.NICs, 1)
	assert.Equal(t, "SETswitch", def.NICs[0].SwitchName)
	assert.Equal(t, vmdef.MACPolicyStatic, def.NICs[0].MACPolicy)
	assert.True(t, vmdef.ValidateMAC(def.NICs[0].MACAddress))
}

func TestDefineShowCommand(t *testing.T) {
	chtempWithConfig(t, testDefinitions)

	ctx := mockContext(t, []string{"web01"}, nil)
	output := captureStdout(t, func() {
		assert.NoError(t, defineShowCommand(ctx))
	})

	assert.Contains(t, output, "Name:        web01")
	assert.Contains(t, output, "Host:        hv-node-1")
}

func TestDefineRemoveCommand(t *testing.T) {
	chtempWithConfig(t, testDefinitions)

	ctx := mockContext(t, []string{"web01"}, nil)
	output := captureStdout(t, func() {
		assert.NoError(t, defineRemoveCommand(ctx))
	})
	assert.Contains(t, output, "Definition 'web01' removed")

	loader := vmdef.NewConfigLoader()
	require.NoError(t, loader.LoadAll(""))
	_, err := loader.GetVM("web01")
	assert.ErrorIs(t, err, vmdef.ErrVMNotFound)

	// Removing an unknown name reports instead of failing.
	ctx = mockContext(t, []string{"ghost"}, nil)
	output = captureStdout(t, func() {
		assert.NoError(t, defineRemoveCommand(ctx))
	})
	assert.Contains(t, output, "not found in definitions")
}

func TestDefinedHosts(t *testing.T) {
	defs := []*vmdef.Definition{
		{Name: "a", Host: "hv-node-2"},
		{Name: "b", Host: "hv-node-1"},
		{Name: "c", Host: "HV-NODE-2"},
		{Name: "d"},
	}
	assert.Equal(t, []string{"hv-node-1", "hv-node-2"}, definedHosts(defs))
}
