// Package provision reconciles declarative VM definitions against live
// hosts: create with disks, adapters, OS deployment and cluster
// membership; decommission with dependent-state cleanup; and migration
// between hosts.
package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ashlab/hvadm/internal/hyperv"
	"github.com/ashlab/hvadm/internal/vmdef"
)

const ipAttempts = 3

type Provisioner struct {
	platform Platform
	defaults vmdef.Defaults
	log      *logrus.Logger

	// sleep is swapped out in tests
	sleep func(time.Duration)
}

func NewProvisioner(platform Platform, defaults vmdef.Defaults, log *logrus.Logger) *Provisioner {
	return &Provisioner{
		platform: platform,
		defaults: defaults,
		log:      log,
		sleep:    time.Sleep,
	}
}

// Create reconciles a VM definition on its host. Existing conformant
// objects are left alone; missing ones are created.
func (p *Provisioner) Create(ctx context.Context, def *vmdef.Definition) error {
	log := p.log.WithFields(logrus.Fields{"vm": def.Name, "host": def.Host})

	if err := p.platform.CheckHost(ctx, def.Host); err != nil {
		return err
	}

	spec := p.sizingSpec(def)

	vm, err := p.platform.GetVM(ctx, def.Host, def.Name)
	switch {
	case errors.Is(err, hyperv.ErrNotFound):
		log.Info("creating vm")
		if err := p.platform.CreateVM(ctx, def.Host, spec); err != nil {
			return err
		}
		vm = nil
	case err != nil:
		return err
	default:
		log.Debug("vm already exists")
		if vm.Processors != spec.Processors || vm.MemoryMB != spec.MemoryMB {
			if vm.State != hyperv.StateOff {
				return fmt.Errorf("vm '%s' sizing differs from definition but the vm is %s; stop it before reapplying", def.Name, vm.State)
			}
			log.Info("reconciling vm sizing")
			if err := p.platform.ConfigureVM(ctx, def.Host, spec); err != nil {
				return err
			}
		}
	}

	if err := p.ensureDisks(ctx, log, def, vm); err != nil {
		return err
	}

	macs, err := p.ensureNICs(ctx, log, def.Host, def, vm)
	if err != nil {
		return err
	}

	if err := p.deployOS(ctx, log, def, macs); err != nil {
		return err
	}

	if err := p.ensureClusterMembership(ctx, log, def); err != nil {
		return err
	}

	log.Info("starting vm")
	if err := p.platform.StartVM(ctx, def.Host, def.Name); err != nil {
		return err
	}

	p.waitForIP(ctx, log, def)

	return nil
}

func (p *Provisioner) sizingSpec(def *vmdef.Definition) hyperv.CreateVMSpec {
	path := def.Path
	if path == "" {
		path = p.defaults.VM.RootPath
	}
	generation := def.Generation
	if generation == 0 {
		generation = p.defaults.VM.Generation
	}

	return hyperv.CreateVMSpec{
		Name:          def.Name,
		Path:          path,
		Generation:    generation,
		Processors:    def.Processors,
		MemoryMB:      def.Memory.StartupMB,
		DynamicMemory: def.Memory.Dynamic,
		MinimumMB:     def.Memory.MinimumMB,
		MaximumMB:     def.Memory.MaximumMB,
	}
}

// diskPath resolves where a definition disk lives on the host.
func (p *Provisioner) diskPath(def *vmdef.Definition, index int) string {
	if def.Disks[index].Path != "" {
		return def.Disks[index].Path
	}
	return fmt.Sprintf(`%s\%s-%d.vhdx`, p.defaults.VM.VHDPath, def.Name, index)
}

func (p *Provisioner) ensureDisks(ctx context.Context, log *logrus.Entry, def *vmdef.Definition, vm *hyperv.VMInfo) error {
	attached := make(map[[2]int]bool)
	if vm != nil {
		for _, disk := range vm.Disks {
			attached[[2]int{disk.ControllerNumber, disk.ControllerLocation}] = true
		}
	}

	for i, disk := range def.Disks {
		if attached[[2]int{disk.ControllerNumber, disk.ControllerLocation}] {
			log.WithField("disk", i).Debug("disk already attached")
			continue
		}

		path := p.diskPath(def, i)

		exists, err := p.platform.FileExists(ctx, def.Host, path)
		if err != nil {
			return err
		}
		if !exists {
			// The OS disk of a vhd deployment is cloned from the golden
			// image instead of being created empty.
			if def.Deploy.Method == vmdef.DeployMethodVHD && i == 0 {
				log.WithField("disk", i).Info("cloning os disk from golden image")
				if err := p.platform.CopyFile(ctx, def.Host, def.Deploy.SourceVHD, path); err != nil {
					return err
				}
			} else {
				log.WithField("disk", i).Info("creating vhd")
				if err := p.platform.CreateVHD(ctx, def.Host, path, disk.SizeGB); err != nil {
					return err
				}
			}
		}

		log.WithField("disk", i).Info("attaching disk")
		if err := p.platform.AttachDisk(ctx, def.Host, def.Name, path, disk.ControllerNumber, disk.ControllerLocation); err != nil {
			return err
		}
	}

	return nil
}

// ensureNICs reconciles the VM's adapters on the given host and returns
// the resolved MAC per NIC name, for deployment-system registration.
func (p *Provisioner) ensureNICs(ctx context.Context, log *logrus.Entry, host string, def *vmdef.Definition, vm *hyperv.VMInfo) (map[string]string, error) {
	existing := make(map[string]hyperv.NICInfo)
	if vm != nil {
		for _, nic := range vm.NICs {
			existing[nic.Name] = nic
		}
	}

	macs := make(map[string]string, len(def.NICs))

	for _, nic := range def.NICs {
		nicLog := log.WithField("nic", nic.Name)

		// Referenced switch must exist on the target host.
		if _, err := p.platform.GetSwitch(ctx, host, nic.SwitchName); err != nil {
			if errors.Is(err, hyperv.ErrNotFound) {
				return nil, fmt.Errorf("vm '%s' nic '%s' references switch '%s' which does not exist on host '%s'",
					def.Name, nic.Name, nic.SwitchName, host)
			}
			return nil, err
		}

		current, present := existing[nic.Name]
		if !present {
			nicLog.Info("adding network adapter")
			if err := p.platform.AddNIC(ctx, host, def.Name, nic.Name, nic.SwitchName); err != nil {
				return nil, err
			}
		}

		mac, err := vmdef.ResolveMAC(nic, current.MACAddress, p.defaults.Network.MACPrefix)
		if err != nil {
			return nil, err
		}
		if mac != "" && !macEqual(current.MACAddress, mac) {
			nicLog.WithField("mac", mac).Info("setting static mac")
			if err := p.platform.SetNICMAC(ctx, host, def.Name, nic.Name, mac); err != nil {
				return nil, err
			}
		}
		if mac == "" {
			mac = current.MACAddress
		}
		macs[nic.Name] = mac

		if nic.VLANMode != "" {
			if err := p.platform.SetNICVLAN(ctx, host, def.Name, nic.Name, nic.VLANMode, nic.VLANID); err != nil {
				return nil, err
			}
		}

		if nic.DHCPServer != "" && nic.IPAddress != "" {
			if mac == "" {
				nicLog.Warn("skipping dhcp reservation: adapter has no resolved mac address")
				continue
			}
			nicLog.WithField("ip", nic.IPAddress).Info("reserving address")
			if err := p.platform.AddDHCPReservation(ctx, nic.DHCPServer, nic.DHCPScope, def.Name, mac, nic.IPAddress, nic.Router); err != nil {
				return nil, err
			}
		}
	}

	return macs, nil
}

func (p *Provisioner) ensureClusterMembership(ctx context.Context, log *logrus.Entry, def *vmdef.Definition) error {
	// A VM is clustered when its definition names a cluster, or carries
	// placement hints and a default cluster is configured.
	cluster := def.Cluster.Name
	if cluster == "" {
		hasHints := def.Cluster.Priority > 0 || def.Cluster.AntiAffinityGroup != "" || len(def.Cluster.PreferredOwners) > 0
		if !hasHints {
			return nil
		}
		cluster = p.defaults.Cluster.Name
		if cluster == "" {
			return fmt.Errorf("vm '%s' has cluster placement hints but no cluster name and no default cluster", def.Name)
		}
	}

	log.WithField("cluster", cluster).Info("ensuring cluster membership")
	if err := p.platform.AddToCluster(ctx, def.Host, cluster, def.Name); err != nil {
		return err
	}

	if def.Cluster.Priority > 0 {
		if err := p.platform.SetClusterPriority(ctx, def.Host, cluster, def.Name, def.Cluster.Priority); err != nil {
			return err
		}
	}
	if def.Cluster.AntiAffinityGroup != "" {
		if err := p.platform.SetAntiAffinity(ctx, def.Host, cluster, def.Name, def.Cluster.AntiAffinityGroup); err != nil {
			return err
		}
	}
	if len(def.Cluster.PreferredOwners) > 0 {
		if err := p.platform.SetPreferredOwners(ctx, def.Host, cluster, def.Name, def.Cluster.PreferredOwners); err != nil {
			return err
		}
	}

	return nil
}

// waitForIP polls until the guest reports an address. Best effort: a VM
// that never reports one is logged, not failed, since PXE-deployed guests
// take as long as their imaging does.
func (p *Provisioner) waitForIP(ctx context.Context, log *logrus.Entry, def *vmdef.Definition) {
	for attempt := 1; attempt <= ipAttempts; attempt++ {
		vm, err := p.platform.GetVM(ctx, def.Host, def.Name)
		if err == nil && len(vm.IPAddresses) > 0 {
			log.WithField("ip", vm.IPAddresses[0]).Info("vm reported address")
			return
		}
		if attempt < ipAttempts {
			log.Debugf("no address yet, waiting %d seconds (attempt %d/%d)", attempt*10, attempt, ipAttempts)
			p.sleep(time.Duration(attempt*10) * time.Second)
		}
	}
	log.Warn("vm did not report an ip address; it may still be deploying")
}

// macEqual compares MAC addresses ignoring separators and case.
func macEqual(a, b string) bool {
	return normalizeMAC(a) != "" && normalizeMAC(a) == normalizeMAC(b)
}

func normalizeMAC(mac string) string {
	out := make([]byte, 0, len(mac))
	for i := 0; i < len(mac); i++ {
		c := mac[i]
		switch {
		case c >= '0' && c <= '9':
			out = append(out, c)
		case c >= 'a' && c <= 'f':
			out = append(out, c-'a'+'A')
		case c >= 'A' && c <= 'F':
			out = append(out, c)
		}
	}
	return string(out)
}
