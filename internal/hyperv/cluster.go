package hyperv

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// AddToCluster registers a VM as a clustered role via
// Add-ClusterVirtualMachineRole. Adding an already-clustered VM is a no-op
// on the script side.
func (d *Driver) AddToCluster(ctx context.Context, host, cluster, vm string) error {
	if _, err := d.runChecked(ctx, host, "clusteradd", cluster, vm); err != nil {
		return fmt.Errorf("could not add vm '%s' to cluster '%s': %w", vm, cluster, err)
	}
	return nil
}

// RemoveFromCluster removes the VM's cluster group via
// Remove-ClusterGroup -RemoveResources.
func (d *Driver) RemoveFromCluster(ctx context.Context, host, cluster, vm string) error {
	if _, err := d.runChecked(ctx, host, "clusterremove", cluster, vm); err != nil {
		return fmt.Errorf("could not remove vm '%s' from cluster '%s': %w", vm, cluster, err)
	}
	return nil
}

// SetClusterPriority sets the group's start priority.
func (d *Driver) SetClusterPriority(ctx context.Context, host, cluster, vm string, priority int) error {
	if _, err := d.runChecked(ctx, host, "clusterpriority", cluster, vm, strconv.Itoa(priority)); err != nil {
		return fmt.Errorf("could not set cluster priority for vm '%s': %w", vm, err)
	}
	return nil
}

// SetAntiAffinity places the VM's group in an anti-affinity class so the
// cluster spreads members across nodes.
func (d *Driver) SetAntiAffinity(ctx context.Context, host, cluster, vm, group string) error {
	if _, err := d.runChecked(ctx, host, "clusteraffinity", cluster, vm, group); err != nil {
		return fmt.Errorf("could not set anti-affinity for vm '%s': %w", vm, err)
	}
	return nil
}

// SetPreferredOwners sets the ordered list of nodes the group prefers.
func (d *Driver) SetPreferredOwners(ctx context.Context, host, cluster, vm string, owners []string) error {
	if _, err := d.runChecked(ctx, host, "clusterowners", cluster, vm, strings.Join(owners, ",")); err != nil {
		return fmt.Errorf("could not set preferred owners for vm '%s': %w", vm, err)
	}
	return nil
}
