package hyperv

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultDecode_VM(t *testing.T) {
	// A getvm envelope as the interface script emits it
	raw := `{"Success":true,"ErrorMessage":"","Payload":{"Found":true,"VM":{
		"Name":"web01","State":"Running","Path":"C:\\VMs\\web01","Generation":2,
		"Processors":4,"MemoryMB":8192,"BIOSGUID":"6f9619ff-8b86-d011-b42d-00cf4fc964ff",
		"IPAddresses":["10.1.20.11"],
		"Disks":[{"Path":"C:\\VHDs\\web01-0.vhdx","ControllerNumber":0,"ControllerLocation":0}],
		"NICs":[{"Name":"lan","SwitchName":"SETswitch","MACAddress":"00155DAABBCC",
			"VLANMode":"Access","VLANID":20,"IPAddresses":["10.1.20.11"]}]}}}`

	out := &result{}
	require.NoError(t, json.Unmarshal([]byte(raw), out))
	assert.True(t, out.Success)

	payload := struct {
		Found bool
		VM    VMInfo
	}{}
	require.NoError(t, out.decode(&payload))
	assert.True(t, payload.Found)
	assert.Equal(t, "web01", payload.VM.Name)
	assert.Equal(t, StateRunning, payload.VM.State)
	assert.Equal(t, 4, payload.VM.Processors)
	require.Len(t, payload.VM.Disks, 1)
	assert.Equal(t, 0, payload.VM.Disks[0].ControllerLocation)
	require.Len(t, payload.VM.NICs, 1)
	assert.Equal(t, "SETswitch", payload.VM.NICs[0].SwitchName)
	assert.Equal(t, 20, payload.VM.NICs[0].VLANID)
}

func TestResultDecode_Failure(t *testing.T) {
	raw := `{"Success":false,"ErrorMessage":"VMMS is not running on hv-node-1","Payload":null}`

	out := &result{}
	require.NoError(t, json.Unmarshal([]byte(raw), out))
	assert.False(t, out.Success)
	assert.Contains(t, out.ErrorMessage, "VMMS")

	var payload struct{ Found bool }
	assert.Error(t, out.decode(&payload), "null payload should not decode")
}

func TestResultDecode_Adapters(t *testing.T) {
	raw := `{"Success":true,"ErrorMessage":"","Payload":{"Adapters":[
		{"Name":"Mgmt","InterfaceDescription":"Intel X710 #1","Status":"Up",
		 "MACAddress":"AA-BB-CC-00-11-22","MTU":9014,"RDMAEnabled":true,
		 "IPAddresses":[{"Address":"10.71.1.11","PrefixLength":24}],"Gateway":""}]}}`

	out := &result{}
	require.NoError(t, json.Unmarshal([]byte(raw), out))

	payload := struct{ Adapters []AdapterInfo }{}
	require.NoError(t, out.decode(&payload))
	require.Len(t, payload.Adapters, 1)

	adapter := payload.Adapters[0]
	assert.Equal(t, "Mgmt", adapter.Name)
	assert.True(t, adapter.RDMAEnabled)
	assert.Equal(t, 9014, adapter.MTU)
	require.Len(t, adapter.IPAddresses, 1)
	assert.Equal(t, 24, adapter.IPAddresses[0].PrefixLength)
}

func TestInstallScript(t *testing.T) {
	tempDir := t.TempDir()

	scriptPath, err := installScript(tempDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tempDir, scriptName), scriptPath)

	content, err := os.ReadFile(scriptPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(content), "Out-Result"), "script body should be the embedded interface script")

	// Installing again over an existing script is a no-op
	again, err := installScript(tempDir)
	require.NoError(t, err)
	assert.Equal(t, scriptPath, again)
}

func TestEmbeddedScriptCoversDriverVerbs(t *testing.T) {
	// Every verb the Go side issues must have a dispatch arm in the script.
	verbs := []string{
		"checkhost", "getvm", "listvms", "newvm", "setvm", "startvm", "stopvm",
		"removevm", "exportvm", "importvm", "movevm", "deletefiles", "newvhd",
		"copyfile", "testpath", "adddisk", "setdvd", "addnic", "setnicvlan",
		"setnicmac", "getswitch", "listswitches", "newswitch", "sethostvlan",
		"listadapters", "renameadapter", "setipaddress", "setrdma", "setjumbo", "listqos",
		"setqos", "clusteradd", "clusterremove", "clusterpriority",
		"clusteraffinity", "clusterowners", "dhcpreserve", "dhcpunreserve",
		"dnsremove", "adremove", "wdsprestage", "wdsremove", "sccmimport",
		"sccmremove",
	}

	for _, verb := range verbs {
		assert.Contains(t, script, "'"+verb+"'", "verb %s missing from interface script", verb)
	}
}

func TestEmbeddedScriptRunsDeploymentVerbsOnServer(t *testing.T) {
	// The WDS and SCCM cmdlets take no -ComputerName parameter; those
	// arms must reach the named server through Invoke-Command.
	for _, verb := range []string{"wdsprestage", "wdsremove", "sccmimport", "sccmremove"} {
		arm := scriptArm(t, verb)
		assert.Contains(t, arm, "Invoke-Command @target", "verb %s must run on the named server", verb)
	}
}

// scriptArm returns the dispatch arm for a verb; arms are separated by
// blank lines.
func scriptArm(t *testing.T, verb string) string {
	t.Helper()
	start := strings.Index(script, "'"+verb+"' {")
	require.NotEqual(t, -1, start, "verb %s missing from interface script", verb)
	rest := script[start:]
	if end := strings.Index(rest, "\n\n"); end != -1 {
		return rest[:end]
	}
	return rest
}
