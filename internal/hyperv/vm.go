package hyperv

import (
	"context"
	"fmt"
	"strconv"
)

// GetVM returns the named VM with its disks and adapters, or ErrNotFound.
// It does this by running the Cmdlets:
//
//	Get-VM, Get-VMHardDiskDrive, Get-VMNetworkAdapter
//
// through the interface script.
func (d *Driver) GetVM(ctx context.Context, host, name string) (*VMInfo, error) {
	out, err := d.runChecked(ctx, host, "getvm", name)
	if err != nil {
		return nil, fmt.Errorf("could not get vm '%s': %w", name, err)
	}

	payload := struct {
		Found bool
		VM    VMInfo
	}{}
	if err := out.decode(&payload); err != nil {
		return nil, fmt.Errorf("could not get vm '%s': %w", name, err)
	}

	if !payload.Found {
		return nil, fmt.Errorf("vm '%s' on host '%s': %w", name, host, ErrNotFound)
	}

	return &payload.VM, nil
}

// ListVMs returns all VMs on the host.
func (d *Driver) ListVMs(ctx context.Context, host string) ([]VMInfo, error) {
	out, err := d.runChecked(ctx, host, "listvms")
	if err != nil {
		return nil, fmt.Errorf("could not list vms on '%s': %w", host, err)
	}

	payload := struct{ VMs []VMInfo }{}
	if err := out.decode(&payload); err != nil {
		return nil, fmt.Errorf("could not list vms on '%s': %w", host, err)
	}

	return payload.VMs, nil
}

// CreateVM creates a VM with the given sizing. It does this by running
// New-VM followed by Set-VM (static or dynamic memory, processor count,
// checkpoints disabled) through the interface script.
func (d *Driver) CreateVM(ctx context.Context, host string, spec CreateVMSpec) error {
	_, err := d.runChecked(ctx, host, "newvm", sizingArgs(spec)...)
	if err != nil {
		return fmt.Errorf("could not create vm '%s': %w", spec.Name, err)
	}
	return nil
}

// ConfigureVM reconciles the sizing of an existing VM via Set-VM.
func (d *Driver) ConfigureVM(ctx context.Context, host string, spec CreateVMSpec) error {
	_, err := d.runChecked(ctx, host, "setvm", sizingArgs(spec)...)
	if err != nil {
		return fmt.Errorf("could not configure vm '%s': %w", spec.Name, err)
	}
	return nil
}

func sizingArgs(spec CreateVMSpec) []string {
	return []string{
		spec.Name,
		spec.Path,
		strconv.Itoa(spec.Generation),
		strconv.Itoa(spec.Processors),
		strconv.Itoa(spec.MemoryMB),
		strconv.FormatBool(spec.DynamicMemory),
		strconv.Itoa(spec.MinimumMB),
		strconv.Itoa(spec.MaximumMB),
	}
}

// StartVM starts a VM via Start-VM.
func (d *Driver) StartVM(ctx context.Context, host, name string) error {
	if _, err := d.runChecked(ctx, host, "startvm", name); err != nil {
		return fmt.Errorf("could not start vm '%s': %w", name, err)
	}
	return nil
}

// StopVM shuts a VM down via Stop-VM; force turns it off without guest
// cooperation (Stop-VM -TurnOff).
func (d *Driver) StopVM(ctx context.Context, host, name string, force bool) error {
	if _, err := d.runChecked(ctx, host, "stopvm", name, strconv.FormatBool(force)); err != nil {
		return fmt.Errorf("could not stop vm '%s': %w", name, err)
	}
	return nil
}

// RemoveVM deletes the VM object via Remove-VM -Force. Files are left on
// disk; see DeleteVMFiles.
func (d *Driver) RemoveVM(ctx context.Context, host, name string) error {
	if _, err := d.runChecked(ctx, host, "removevm", name); err != nil {
		return fmt.Errorf("could not remove vm '%s': %w", name, err)
	}
	return nil
}

// ExportVM exports a stopped VM to destPath via Export-VM.
func (d *Driver) ExportVM(ctx context.Context, host, name, destPath string) error {
	if _, err := d.runChecked(ctx, host, "exportvm", name, destPath); err != nil {
		return fmt.Errorf("could not export vm '%s': %w", name, err)
	}
	return nil
}

// ImportVM imports an exported VM from sourcePath, placing its files under
// destPath, via Import-VM -Copy -GenerateNewId:$false.
func (d *Driver) ImportVM(ctx context.Context, host, sourcePath, destPath string) error {
	if _, err := d.runChecked(ctx, host, "importvm", sourcePath, destPath); err != nil {
		return fmt.Errorf("could not import vm from '%s': %w", sourcePath, err)
	}
	return nil
}

// MoveVM live-migrates a VM to destHost via Move-VM.
func (d *Driver) MoveVM(ctx context.Context, host, name, destHost, destPath string) error {
	if _, err := d.runChecked(ctx, host, "movevm", name, destHost, destPath); err != nil {
		return fmt.Errorf("could not move vm '%s' to '%s': %w", name, destHost, err)
	}
	return nil
}

// DeleteVMFiles removes the VM directory tree on the host.
func (d *Driver) DeleteVMFiles(ctx context.Context, host, path string) error {
	if _, err := d.runChecked(ctx, host, "deletefiles", path); err != nil {
		return fmt.Errorf("could not delete files '%s': %w", path, err)
	}
	return nil
}

// CreateVHD creates a dynamic VHDX via New-VHD.
func (d *Driver) CreateVHD(ctx context.Context, host, path string, sizeGB int) error {
	if _, err := d.runChecked(ctx, host, "newvhd", path, strconv.Itoa(sizeGB)); err != nil {
		return fmt.Errorf("could not create vhd '%s': %w", path, err)
	}
	return nil
}

// CopyFile copies a file on the host; used to clone golden VHDX images.
func (d *Driver) CopyFile(ctx context.Context, host, src, dst string) error {
	if _, err := d.runChecked(ctx, host, "copyfile", src, dst); err != nil {
		return fmt.Errorf("could not copy '%s' to '%s': %w", src, dst, err)
	}
	return nil
}

// FileExists reports whether a path exists on the host.
func (d *Driver) FileExists(ctx context.Context, host, path string) (bool, error) {
	out, err := d.runChecked(ctx, host, "testpath", path)
	if err != nil {
		return false, fmt.Errorf("could not test path '%s': %w", path, err)
	}

	payload := struct{ Exists bool }{}
	if err := out.decode(&payload); err != nil {
		return false, fmt.Errorf("could not test path '%s': %w", path, err)
	}

	return payload.Exists, nil
}

// AttachDisk attaches a VHDX at the given controller location via
// Add-VMHardDiskDrive.
func (d *Driver) AttachDisk(ctx context.Context, host, vm, path string, controllerNumber, controllerLocation int) error {
	_, err := d.runChecked(ctx, host, "adddisk", vm, path,
		strconv.Itoa(controllerNumber), strconv.Itoa(controllerLocation))
	if err != nil {
		return fmt.Errorf("could not attach disk '%s' to vm '%s': %w", path, vm, err)
	}
	return nil
}

// SetDVD attaches an ISO to the VM's DVD drive and makes it first in boot
// order, via Set-VMDvdDrive and Set-VMFirmware.
func (d *Driver) SetDVD(ctx context.Context, host, vm, isoPath string) error {
	if _, err := d.runChecked(ctx, host, "setdvd", vm, isoPath); err != nil {
		return fmt.Errorf("could not attach iso '%s' to vm '%s': %w", isoPath, vm, err)
	}
	return nil
}
