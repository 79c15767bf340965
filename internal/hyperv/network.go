package hyperv

import (
	"context"
	"fmt"
	"strconv"
)

// AddNIC adds a named network adapter connected to a switch via
// Add-VMNetworkAdapter.
func (d *Driver) AddNIC(ctx context.Context, host, vm, nicName, switchName string) error {
	if _, err := d.runChecked(ctx, host, "addnic", vm, nicName, switchName); err != nil {
		return fmt.Errorf("could not add nic '%s' to vm '%s': %w", nicName, vm, err)
	}
	return nil
}

// SetNICVLAN sets the VLAN mode of a VM adapter via
// Set-VMNetworkAdapterVlan (-Untagged, -Access -VlanId, or -Trunk).
func (d *Driver) SetNICVLAN(ctx context.Context, host, vm, nicName, mode string, vlanID int) error {
	if _, err := d.runChecked(ctx, host, "setnicvlan", vm, nicName, mode, strconv.Itoa(vlanID)); err != nil {
		return fmt.Errorf("could not set vlan on nic '%s' of vm '%s': %w", nicName, vm, err)
	}
	return nil
}

// SetNICMAC pins a static MAC address on a VM adapter via
// Set-VMNetworkAdapter -StaticMacAddress.
func (d *Driver) SetNICMAC(ctx context.Context, host, vm, nicName, mac string) error {
	if _, err := d.runChecked(ctx, host, "setnicmac", vm, nicName, mac); err != nil {
		return fmt.Errorf("could not set mac on nic '%s' of vm '%s': %w", nicName, vm, err)
	}
	return nil
}

// GetSwitch returns the named virtual switch or ErrNotFound.
func (d *Driver) GetSwitch(ctx context.Context, host, name string) (*SwitchInfo, error) {
	out, err := d.runChecked(ctx, host, "getswitch", name)
	if err != nil {
		return nil, fmt.Errorf("could not get switch '%s': %w", name, err)
	}

	payload := struct {
		Found  bool
		Switch SwitchInfo
	}{}
	if err := out.decode(&payload); err != nil {
		return nil, fmt.Errorf("could not get switch '%s': %w", name, err)
	}

	if !payload.Found {
		return nil, fmt.Errorf("switch '%s' on host '%s': %w", name, host, ErrNotFound)
	}

	return &payload.Switch, nil
}

// ListSwitches returns the virtual switches on the host.
func (d *Driver) ListSwitches(ctx context.Context, host string) ([]SwitchInfo, error) {
	out, err := d.runChecked(ctx, host, "listswitches")
	if err != nil {
		return nil, fmt.Errorf("could not list switches on '%s': %w", host, err)
	}

	payload := struct{ Switches []SwitchInfo }{}
	if err := out.decode(&payload); err != nil {
		return nil, fmt.Errorf("could not list switches on '%s': %w", host, err)
	}

	return payload.Switches, nil
}

// CreateSwitch creates an external virtual switch bound to a physical
// adapter via New-VMSwitch.
func (d *Driver) CreateSwitch(ctx context.Context, host, name, netAdapter string, allowManagementOS bool) error {
	_, err := d.runChecked(ctx, host, "newswitch", name, netAdapter, strconv.FormatBool(allowManagementOS))
	if err != nil {
		return fmt.Errorf("could not create switch '%s': %w", name, err)
	}
	return nil
}

// SetHostVLAN puts the switch's management vNIC into access mode via
// Set-VMNetworkAdapterVlan -ManagementOS.
func (d *Driver) SetHostVLAN(ctx context.Context, host, switchName string, vlanID int) error {
	if _, err := d.runChecked(ctx, host, "sethostvlan", switchName, strconv.Itoa(vlanID)); err != nil {
		return fmt.Errorf("could not set vlan on management adapter of switch '%s': %w", switchName, err)
	}
	return nil
}

// ListNetAdapters returns the host's network adapters, physical NICs and
// management vNICs alike, with their address configuration, via
// Get-NetAdapter and Get-NetIPAddress.
func (d *Driver) ListNetAdapters(ctx context.Context, host string) ([]AdapterInfo, error) {
	out, err := d.runChecked(ctx, host, "listadapters")
	if err != nil {
		return nil, fmt.Errorf("could not list adapters on '%s': %w", host, err)
	}

	payload := struct{ Adapters []AdapterInfo }{}
	if err := out.decode(&payload); err != nil {
		return nil, fmt.Errorf("could not list adapters on '%s': %w", host, err)
	}

	return payload.Adapters, nil
}

// RenameNetAdapter renames a physical adapter via Rename-NetAdapter.
func (d *Driver) RenameNetAdapter(ctx context.Context, host, current, newName string) error {
	if _, err := d.runChecked(ctx, host, "renameadapter", current, newName); err != nil {
		return fmt.Errorf("could not rename adapter '%s' to '%s': %w", current, newName, err)
	}
	return nil
}

// SetIPAddress replaces the IPv4 configuration of an adapter via
// New-NetIPAddress, removing any addresses that do not match first.
func (d *Driver) SetIPAddress(ctx context.Context, host, adapter, ip string, prefix int, gateway string) error {
	_, err := d.runChecked(ctx, host, "setipaddress", adapter, ip, strconv.Itoa(prefix), gateway)
	if err != nil {
		return fmt.Errorf("could not set address %s/%d on adapter '%s': %w", ip, prefix, adapter, err)
	}
	return nil
}

// SetRDMA enables or disables RDMA on an adapter via
// Enable-NetAdapterRdma / Disable-NetAdapterRdma.
func (d *Driver) SetRDMA(ctx context.Context, host, adapter string, enable bool) error {
	if _, err := d.runChecked(ctx, host, "setrdma", adapter, strconv.FormatBool(enable)); err != nil {
		return fmt.Errorf("could not set rdma on adapter '%s': %w", adapter, err)
	}
	return nil
}

// SetJumboFrames sets the jumbo packet advanced property on an adapter via
// Set-NetAdapterAdvancedProperty.
func (d *Driver) SetJumboFrames(ctx context.Context, host, adapter string, enable bool) error {
	if _, err := d.runChecked(ctx, host, "setjumbo", adapter, strconv.FormatBool(enable)); err != nil {
		return fmt.Errorf("could not set jumbo frames on adapter '%s': %w", adapter, err)
	}
	return nil
}

// ListQoSPolicies returns the host's QoS traffic classes via
// Get-NetQosTrafficClass.
func (d *Driver) ListQoSPolicies(ctx context.Context, host string) ([]QoSPolicy, error) {
	out, err := d.runChecked(ctx, host, "listqos")
	if err != nil {
		return nil, fmt.Errorf("could not list qos policies on '%s': %w", host, err)
	}

	payload := struct{ Policies []QoSPolicy }{}
	if err := out.decode(&payload); err != nil {
		return nil, fmt.Errorf("could not list qos policies on '%s': %w", host, err)
	}

	return payload.Policies, nil
}

// EnsureTrafficClass creates or updates a QoS traffic class via
// New-NetQosTrafficClass / Set-NetQosTrafficClass.
func (d *Driver) EnsureTrafficClass(ctx context.Context, host, name string, priority, bandwidthPct int) error {
	_, err := d.runChecked(ctx, host, "setqos", name, strconv.Itoa(priority), strconv.Itoa(bandwidthPct))
	if err != nil {
		return fmt.Errorf("could not ensure traffic class '%s': %w", name, err)
	}
	return nil
}
