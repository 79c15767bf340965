package report

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashlab/hvadm/internal/hostcfg"
	"github.com/ashlab/hvadm/internal/hyperv"
	"github.com/ashlab/hvadm/internal/vmdef"
)

func TestWriteVMs(t *testing.T) {
	var buf bytes.Buffer
	WriteVMs(&buf, "hv-node-1", []hyperv.VMInfo{
		{Name: "web01", State: "Running", Processors: 4, MemoryMB: 8192, IPAddresses: []string{"10.1.20.11"}},
		{Name: "db01", State: "Off", Processors: 8, MemoryMB: 16384},
	})

	out := buf.String()
	assert.Contains(t, out, "Host: hv-node-1")
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "web01")
	assert.Contains(t, out, "Running")
	assert.Contains(t, out, "10.1.20.11")
	assert.Contains(t, out, "db01")
}

func TestWriteVMs_Empty(t *testing.T) {
	var buf bytes.Buffer
	WriteVMs(&buf, "hv-node-1", nil)
	assert.Contains(t, buf.String(), "No virtual machines.")
}

func TestWriteDefinitions(t *testing.T) {
	var buf bytes.Buffer
	WriteDefinitions(&buf, []*vmdef.Definition{
		{
			Name: "web01", Host: "hv-node-1", Processors: 4,
			Memory: vmdef.Memory{StartupMB: 8192},
			Disks:  []vmdef.Disk{{SizeGB: 80}},
			NICs:   []vmdef.NIC{{Name: "lan", SwitchName: "SETswitch"}},
			Deploy: vmdef.Deploy{Method: vmdef.DeployMethodWDS},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "web01")
	assert.Contains(t, out, "hv-node-1")
	assert.Contains(t, out, "wds")
}

func TestWriteDefinition(t *testing.T) {
	var buf bytes.Buffer
	WriteDefinition(&buf, &vmdef.Definition{
		Name: "web01", Host: "hv-node-1", Processors: 4,
		Memory: vmdef.Memory{StartupMB: 4096, Dynamic: true, MinimumMB: 2048, MaximumMB: 8192},
		Disks:  []vmdef.Disk{{SizeGB: 80}},
		NICs: []vmdef.NIC{
			{Name: "lan", SwitchName: "SETswitch", VLANMode: vmdef.VLANModeAccess, VLANID: 20, IPAddress: "10.1.20.11"},
		},
		Deploy:  vmdef.Deploy{Method: vmdef.DeployMethodWDS, Domain: "corp.example.com"},
		Cluster: vmdef.Cluster{Name: "hv-cluster"},
	})

	out := buf.String()
	assert.Contains(t, out, "Name:        web01")
	assert.Contains(t, out, "dynamic 2048M-8192M")
	assert.Contains(t, out, "Disk 0:      80G (0:0)")
	assert.Contains(t, out, "SETswitch vlan 20 10.1.20.11")
	assert.Contains(t, out, "Domain:      corp.example.com")
	assert.Contains(t, out, "Cluster:     hv-cluster")
}

func TestWriteAudit(t *testing.T) {
	var buf bytes.Buffer
	WriteAudit(&buf, "hv-node-1", []hostcfg.Action{
		{Kind: hostcfg.ActionRenameAdapter, Adapter: "Ethernet", NewName: "Mgmt"},
		{Kind: hostcfg.ActionSetRDMA, Adapter: "Storage-A", Enable: true},
	})

	out := buf.String()
	assert.Contains(t, out, "rename adapter 'Ethernet' to 'Mgmt'")
	assert.Contains(t, out, "enable rdma on adapter 'Storage-A'")

	buf.Reset()
	WriteAudit(&buf, "hv-node-2", nil)
	assert.Contains(t, buf.String(), "hv-node-2")
	assert.Contains(t, buf.String(), "ok")
}

func TestWriteValidation(t *testing.T) {
	var buf bytes.Buffer
	WriteValidation(&buf, []error{
		errors.New("vm 'web01': host is required"),
	})
	assert.Contains(t, buf.String(), "  - vm 'web01': host is required")
}
