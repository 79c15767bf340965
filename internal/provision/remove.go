package provision

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/ashlab/hvadm/internal/hyperv"
	"github.com/ashlab/hvadm/internal/vmdef"
)

type RemoveOptions struct {
	// KeepFiles leaves the VM directory and disks on the host
	KeepFiles bool
}

// Remove decommissions a VM: stop, leave the cluster, drop DHCP
// reservations, DNS records, the AD computer object and deployment-system
// device records, then delete the VM and its files. Cleanup of dependent
// state is best effort - a missing record is not a reason to keep the rest
// of the VM around - but the VM removal itself is fatal on error.
func (p *Provisioner) Remove(ctx context.Context, def *vmdef.Definition, opts RemoveOptions) error {
	log := p.log.WithFields(logrus.Fields{"vm": def.Name, "host": def.Host})

	if err := p.platform.CheckHost(ctx, def.Host); err != nil {
		return err
	}

	vm, err := p.platform.GetVM(ctx, def.Host, def.Name)
	if errors.Is(err, hyperv.ErrNotFound) {
		log.Info("vm not present on host, cleaning up dependent state only")
		vm = nil
	} else if err != nil {
		return err
	}

	if vm != nil && vm.State != hyperv.StateOff {
		log.Info("stopping vm")
		if err := p.platform.StopVM(ctx, def.Host, def.Name, true); err != nil {
			log.WithError(err).Warn("could not stop vm, continuing")
		}
	}

	if cluster := p.clusterName(def); cluster != "" {
		log.WithField("cluster", cluster).Info("removing from cluster")
		if err := p.platform.RemoveFromCluster(ctx, def.Host, cluster, def.Name); err != nil {
			log.WithError(err).Warn("could not remove cluster group, continuing")
		}
	}

	for _, nic := range def.NICs {
		if nic.DHCPServer == "" || nic.IPAddress == "" {
			continue
		}
		log.WithField("ip", nic.IPAddress).Info("releasing dhcp reservation")
		if err := p.platform.RemoveDHCPReservation(ctx, nic.DHCPServer, nic.DHCPScope, nic.IPAddress); err != nil {
			log.WithError(err).Warn("could not remove dhcp reservation, continuing")
		}
	}

	if def.Deploy.Domain != "" {
		if p.defaults.Network.DNSServer != "" {
			log.WithField("zone", def.Deploy.Domain).Info("removing dns record")
			if err := p.platform.RemoveDNSRecord(ctx, p.defaults.Network.DNSServer, def.Deploy.Domain, def.Name); err != nil {
				log.WithError(err).Warn("could not remove dns record, continuing")
			}
		}

		log.Info("removing ad computer object")
		if err := p.platform.RemoveADComputer(ctx, def.Name); err != nil {
			log.WithError(err).Warn("could not remove ad computer object, continuing")
		}
	}

	p.removeDeploymentRecords(ctx, log, def)

	if vm != nil {
		log.Info("removing vm")
		if err := p.platform.RemoveVM(ctx, def.Host, def.Name); err != nil {
			return err
		}

		if !opts.KeepFiles && vm.Path != "" {
			log.WithField("path", vm.Path).Info("deleting vm files")
			if err := p.platform.DeleteVMFiles(ctx, def.Host, vm.Path); err != nil {
				log.WithError(err).Warn("could not delete vm files")
			}
			for i := range def.Disks {
				path := p.diskPath(def, i)
				if err := p.platform.DeleteVMFiles(ctx, def.Host, path); err != nil {
					log.WithError(err).WithField("path", path).Warn("could not delete disk")
				}
			}
		}
	}

	return nil
}

func (p *Provisioner) removeDeploymentRecords(ctx context.Context, log *logrus.Entry, def *vmdef.Definition) {
	switch def.Deploy.Method {
	case vmdef.DeployMethodWDS:
		server := def.Deploy.Server
		if server == "" {
			server = p.defaults.Deploy.WDSServer
		}
		if server == "" {
			return
		}
		log.WithField("server", server).Info("removing wds device")
		if err := p.platform.RemoveWDSDevice(ctx, server, def.Name); err != nil {
			log.WithError(err).Warn("could not remove wds device, continuing")
		}

	case vmdef.DeployMethodSCCM:
		server := def.Deploy.Server
		if server == "" {
			server = p.defaults.Deploy.SCCMServer
		}
		if server == "" {
			return
		}
		log.WithField("server", server).Info("removing sccm device")
		if err := p.platform.RemoveSCCMDevice(ctx, server, p.defaults.Deploy.SCCMSiteCode, def.Name); err != nil {
			log.WithError(err).Warn("could not remove sccm device, continuing")
		}
	}
}

func (p *Provisioner) clusterName(def *vmdef.Definition) string {
	if def.Cluster.Name != "" {
		return def.Cluster.Name
	}
	if def.Cluster.Priority > 0 || def.Cluster.AntiAffinityGroup != "" || len(def.Cluster.PreferredOwners) > 0 {
		return p.defaults.Cluster.Name
	}
	return ""
}
