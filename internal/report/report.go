// Package report renders list and audit output for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/ashlab/hvadm/internal/hostcfg"
	"github.com/ashlab/hvadm/internal/hyperv"
	"github.com/ashlab/hvadm/internal/vmdef"
)

// WriteVMs renders the live VM inventory of a host.
func WriteVMs(w io.Writer, host string, vms []hyperv.VMInfo) {
	fmt.Fprintf(w, "Host: %s\n\n", host)
	if len(vms) == 0 {
		fmt.Fprintln(w, "No virtual machines.")
		return
	}

	fmt.Fprintf(w, "%-20s %-10s %4s %8s  %s\n", "NAME", "STATE", "CPU", "MEMORY", "ADDRESSES")
	for _, vm := range vms {
		fmt.Fprintf(w, "%-20s %-10s %4d %7dM  %s\n",
			vm.Name, vm.State, vm.Processors, vm.MemoryMB, strings.Join(vm.IPAddresses, ", "))
	}
}

// WriteDefinitions renders the definition inventory.
func WriteDefinitions(w io.Writer, defs []*vmdef.Definition) {
	if len(defs) == 0 {
		fmt.Fprintln(w, "No definitions.")
		return
	}

	fmt.Fprintf(w, "%-20s %-16s %4s %8s %6s %5s  %s\n", "NAME", "HOST", "CPU", "MEMORY", "DISKS", "NICS", "DEPLOY")
	for _, def := range defs {
		deploy := def.Deploy.Method
		if deploy == "" {
			deploy = vmdef.DeployMethodNone
		}
		fmt.Fprintf(w, "%-20s %-16s %4d %7dM %6d %5d  %s\n",
			def.Name, def.Host, def.Processors, def.Memory.StartupMB, len(def.Disks), len(def.NICs), deploy)
	}
}

// WriteDefinition renders one definition in full.
func WriteDefinition(w io.Writer, def *vmdef.Definition) {
	fmt.Fprintf(w, "Name:        %s\n", def.Name)
	fmt.Fprintf(w, "Host:        %s\n", def.Host)
	if def.Path != "" {
		fmt.Fprintf(w, "Path:        %s\n", def.Path)
	}
	fmt.Fprintf(w, "Processors:  %d\n", def.Processors)
	if def.Memory.Dynamic {
		fmt.Fprintf(w, "Memory:      %dM (dynamic %dM-%dM)\n", def.Memory.StartupMB, def.Memory.MinimumMB, def.Memory.MaximumMB)
	} else {
		fmt.Fprintf(w, "Memory:      %dM\n", def.Memory.StartupMB)
	}

	for i, disk := range def.Disks {
		loc := fmt.Sprintf("%d:%d", disk.ControllerNumber, disk.ControllerLocation)
		if disk.Path != "" {
			fmt.Fprintf(w, "Disk %d:      %s (%s)\n", i, disk.Path, loc)
		} else {
			fmt.Fprintf(w, "Disk %d:      %dG (%s)\n", i, disk.SizeGB, loc)
		}
	}

	for _, nic := range def.NICs {
		detail := nic.SwitchName
		if nic.VLANMode == vmdef.VLANModeAccess {
			detail += fmt.Sprintf(" vlan %d", nic.VLANID)
		}
		if nic.IPAddress != "" {
			detail += " " + nic.IPAddress
		}
		fmt.Fprintf(w, "NIC %-8s %s\n", nic.Name+":", detail)
	}

	if def.Deploy.Method != "" && def.Deploy.Method != vmdef.DeployMethodNone {
		fmt.Fprintf(w, "Deploy:      %s\n", def.Deploy.Method)
		if def.Deploy.Domain != "" {
			fmt.Fprintf(w, "Domain:      %s\n", def.Deploy.Domain)
		}
	}
	if def.Cluster.Name != "" {
		fmt.Fprintf(w, "Cluster:     %s\n", def.Cluster.Name)
	}
}

// WriteAudit renders a host's pending configuration changes. A conformant
// host gets a single OK line.
func WriteAudit(w io.Writer, host string, actions []hostcfg.Action) {
	if len(actions) == 0 {
		fmt.Fprintf(w, "%-20s ok\n", host)
		return
	}
	for _, action := range actions {
		fmt.Fprintf(w, "%-20s %s\n", host, action.String())
	}
}

// WriteValidation renders definition validation problems, one per line.
func WriteValidation(w io.Writer, problems []error) {
	for _, problem := range problems {
		fmt.Fprintf(w, "  - %s\n", problem)
	}
}
