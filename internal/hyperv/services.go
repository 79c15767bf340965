package hyperv

// Operations against the services that hold VM-adjacent state: DHCP
// reservations, DNS records, the AD computer object, and the two OS
// deployment systems. These run on the named service host, not the
// Hyper-V node.

import (
	"context"
	"fmt"
)

// AddDHCPReservation reserves an address for a MAC in a scope via
// Add-DhcpServerv4Reservation. An existing reservation for the same
// address is replaced. A non-empty router is set as option 3 on the
// reservation.
func (d *Driver) AddDHCPReservation(ctx context.Context, server, scope, name, mac, ip, router string) error {
	if _, err := d.runChecked(ctx, server, "dhcpreserve", scope, name, mac, ip, router); err != nil {
		return fmt.Errorf("could not reserve %s for '%s' in scope %s: %w", ip, name, scope, err)
	}
	return nil
}

// RemoveDHCPReservation drops the reservation for an address via
// Remove-DhcpServerv4Reservation.
func (d *Driver) RemoveDHCPReservation(ctx context.Context, server, scope, ip string) error {
	if _, err := d.runChecked(ctx, server, "dhcpunreserve", scope, ip); err != nil {
		return fmt.Errorf("could not remove reservation %s in scope %s: %w", ip, scope, err)
	}
	return nil
}

// RemoveDNSRecord deletes the host's A record from a zone via
// Remove-DnsServerResourceRecord.
func (d *Driver) RemoveDNSRecord(ctx context.Context, server, zone, name string) error {
	if _, err := d.runChecked(ctx, server, "dnsremove", zone, name); err != nil {
		return fmt.Errorf("could not remove dns record '%s' from zone '%s': %w", name, zone, err)
	}
	return nil
}

// RemoveADComputer deletes the computer object via Remove-ADComputer.
func (d *Driver) RemoveADComputer(ctx context.Context, name string) error {
	if _, err := d.runChecked(ctx, LocalHost, "adremove", name); err != nil {
		return fmt.Errorf("could not remove ad computer '%s': %w", name, err)
	}
	return nil
}

// PrestageWDSDevice registers the device with WDS by MAC and BIOS GUID via
// New-WdsClient (wdsutil on older servers), so the next PXE boot images it.
func (d *Driver) PrestageWDSDevice(ctx context.Context, server, name, mac, guid string) error {
	if _, err := d.runChecked(ctx, server, "wdsprestage", name, mac, guid); err != nil {
		return fmt.Errorf("could not prestage wds device '%s': %w", name, err)
	}
	return nil
}

// RemoveWDSDevice removes the pre-staged device via Remove-WdsClient.
func (d *Driver) RemoveWDSDevice(ctx context.Context, server, name string) error {
	if _, err := d.runChecked(ctx, server, "wdsremove", name); err != nil {
		return fmt.Errorf("could not remove wds device '%s': %w", name, err)
	}
	return nil
}

// ImportSCCMDevice imports the machine into a deployment collection via
// Import-CMComputerInformation.
func (d *Driver) ImportSCCMDevice(ctx context.Context, server, siteCode, collection, name, mac string) error {
	if _, err := d.runChecked(ctx, server, "sccmimport", siteCode, collection, name, mac); err != nil {
		return fmt.Errorf("could not import sccm device '%s': %w", name, err)
	}
	return nil
}

// RemoveSCCMDevice removes the device record via Remove-CMDevice.
func (d *Driver) RemoveSCCMDevice(ctx context.Context, server, siteCode, name string) error {
	if _, err := d.runChecked(ctx, server, "sccmremove", siteCode, name); err != nil {
		return fmt.Errorf("could not remove sccm device '%s': %w", name, err)
	}
	return nil
}
