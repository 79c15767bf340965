package provision

import (
	"context"

	"github.com/ashlab/hvadm/internal/hyperv"
)

// Platform is the slice of host/service operations the provisioning flows
// need. hyperv.Driver satisfies it; tests use a fake.
type Platform interface {
	CheckHost(ctx context.Context, host string) error

	GetVM(ctx context.Context, host, name string) (*hyperv.VMInfo, error)
	CreateVM(ctx context.Context, host string, spec hyperv.CreateVMSpec) error
	ConfigureVM(ctx context.Context, host string, spec hyperv.CreateVMSpec) error
	StartVM(ctx context.Context, host, name string) error
	StopVM(ctx context.Context, host, name string, force bool) error
	RemoveVM(ctx context.Context, host, name string) error
	ExportVM(ctx context.Context, host, name, destPath string) error
	ImportVM(ctx context.Context, host, sourcePath, destPath string) error
	MoveVM(ctx context.Context, host, name, destHost, destPath string) error
	DeleteVMFiles(ctx context.Context, host, path string) error

	CreateVHD(ctx context.Context, host, path string, sizeGB int) error
	CopyFile(ctx context.Context, host, src, dst string) error
	FileExists(ctx context.Context, host, path string) (bool, error)
	AttachDisk(ctx context.Context, host, vm, path string, controllerNumber, controllerLocation int) error
	SetDVD(ctx context.Context, host, vm, isoPath string) error

	AddNIC(ctx context.Context, host, vm, nicName, switchName string) error
	SetNICVLAN(ctx context.Context, host, vm, nicName, mode string, vlanID int) error
	SetNICMAC(ctx context.Context, host, vm, nicName, mac string) error
	GetSwitch(ctx context.Context, host, name string) (*hyperv.SwitchInfo, error)

	AddToCluster(ctx context.Context, host, cluster, vm string) error
	RemoveFromCluster(ctx context.Context, host, cluster, vm string) error
	SetClusterPriority(ctx context.Context, host, cluster, vm string, priority int) error
	SetAntiAffinity(ctx context.Context, host, cluster, vm, group string) error
	SetPreferredOwners(ctx context.Context, host, cluster, vm string, owners []string) error

	AddDHCPReservation(ctx context.Context, server, scope, name, mac, ip, router string) error
	RemoveDHCPReservation(ctx context.Context, server, scope, ip string) error
	RemoveDNSRecord(ctx context.Context, server, zone, name string) error
	RemoveADComputer(ctx context.Context, name string) error
	PrestageWDSDevice(ctx context.Context, server, name, mac, guid string) error
	RemoveWDSDevice(ctx context.Context, server, name string) error
	ImportSCCMDevice(ctx context.Context, server, siteCode, collection, name, mac string) error
	RemoveSCCMDevice(ctx context.Context, server, siteCode, name string) error
}
