package provision

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ashlab/hvadm/internal/vmdef"
)

type MoveOptions struct {
	DestHost string
	// DestPath overrides the VM path on the destination host
	DestPath string
	// Offline forces stop/export/import instead of a live migration
	Offline bool
	// StagingPath is the export location for offline moves; it must be
	// reachable from both hosts (a share or CSV path)
	StagingPath string
}

// Move relocates a VM to another host. Clustered hosts get a live
// migration; otherwise, or when Offline is set, the VM is stopped,
// exported to the staging path, imported on the destination and started
// again. The caller updates the definition's host field afterwards.
func (p *Provisioner) Move(ctx context.Context, def *vmdef.Definition, opts MoveOptions) error {
	if opts.DestHost == "" {
		return fmt.Errorf("vm '%s': move needs a destination host", def.Name)
	}
	if opts.DestHost == def.Host {
		return fmt.Errorf("vm '%s' is already on host '%s'", def.Name, opts.DestHost)
	}

	log := p.log.WithFields(logrus.Fields{
		"vm":   def.Name,
		"from": def.Host,
		"to":   opts.DestHost,
	})

	if err := p.platform.CheckHost(ctx, def.Host); err != nil {
		return err
	}
	if err := p.platform.CheckHost(ctx, opts.DestHost); err != nil {
		return err
	}

	vm, err := p.platform.GetVM(ctx, def.Host, def.Name)
	if err != nil {
		return err
	}

	destPath := opts.DestPath
	if destPath == "" {
		destPath = def.Path
	}
	if destPath == "" {
		destPath = p.defaults.VM.RootPath
	}

	if !opts.Offline {
		log.Info("live migrating vm")
		if err := p.platform.MoveVM(ctx, def.Host, def.Name, opts.DestHost, destPath); err != nil {
			return err
		}
		return nil
	}

	return p.moveOffline(ctx, log, def, vm.Path, destPath, opts)
}

func (p *Provisioner) moveOffline(ctx context.Context, log *logrus.Entry, def *vmdef.Definition, sourcePath, destPath string, opts MoveOptions) error {
	staging := opts.StagingPath
	if staging == "" {
		return fmt.Errorf("vm '%s': offline move needs a staging path reachable from both hosts", def.Name)
	}
	exportPath := fmt.Sprintf(`%s\%s`, staging, def.Name)

	cluster := p.clusterName(def)
	if cluster != "" {
		log.WithField("cluster", cluster).Info("removing from cluster before move")
		if err := p.platform.RemoveFromCluster(ctx, def.Host, cluster, def.Name); err != nil {
			log.WithError(err).Warn("could not remove cluster group, continuing")
		}
	}

	log.Info("stopping vm")
	if err := p.platform.StopVM(ctx, def.Host, def.Name, false); err != nil {
		return err
	}

	log.WithField("path", exportPath).Info("exporting vm")
	if err := p.platform.ExportVM(ctx, def.Host, def.Name, exportPath); err != nil {
		return err
	}

	log.Info("importing vm on destination")
	if err := p.platform.ImportVM(ctx, opts.DestHost, exportPath, destPath); err != nil {
		return err
	}

	// The source copy goes away only after the import succeeded.
	log.Info("removing vm from source host")
	if err := p.platform.RemoveVM(ctx, def.Host, def.Name); err != nil {
		return err
	}
	if sourcePath != "" {
		if err := p.platform.DeleteVMFiles(ctx, def.Host, sourcePath); err != nil {
			log.WithError(err).Warn("could not delete source vm files")
		}
	}
	if err := p.platform.DeleteVMFiles(ctx, def.Host, exportPath); err != nil {
		log.WithError(err).Warn("could not delete staging export")
	}

	// Imports can drop switch connections when the destination names its
	// switches differently; reconcile the adapters against the definition.
	if destVM, err := p.platform.GetVM(ctx, opts.DestHost, def.Name); err != nil {
		log.WithError(err).Warn("could not read imported vm, skipping nic reconciliation")
	} else if _, err := p.ensureNICs(ctx, log, opts.DestHost, def, destVM); err != nil {
		log.WithError(err).Warn("could not reconcile nics after import")
	}

	if cluster != "" {
		log.WithField("cluster", cluster).Info("rejoining cluster")
		if err := p.platform.AddToCluster(ctx, opts.DestHost, cluster, def.Name); err != nil {
			log.WithError(err).Warn("could not rejoin cluster")
		}
	}

	log.Info("starting vm on destination")
	return p.platform.StartVM(ctx, opts.DestHost, def.Name)
}
