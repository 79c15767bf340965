package hyperv

import "errors"

// ErrNotFound is returned when a queried object does not exist on the host
var ErrNotFound = errors.New("not found on host")

// LocalHost targets the machine the tool runs on.
const LocalHost = "."

// VM states as reported by the platform.
const (
	StateOff     = "Off"
	StateRunning = "Running"
	StatePaused  = "Paused"
	StateSaved   = "Saved"
)

type VMInfo struct {
	Name        string
	State       string
	Path        string
	Generation  int
	Processors  int
	MemoryMB    int
	BIOSGUID    string
	IPAddresses []string
	Disks       []DiskInfo
	NICs        []NICInfo
}

type DiskInfo struct {
	Path               string
	ControllerNumber   int
	ControllerLocation int
}

type NICInfo struct {
	Name        string
	SwitchName  string
	MACAddress  string
	VLANMode    string
	VLANID      int
	IPAddresses []string
}

type SwitchInfo struct {
	Name              string
	Type              string
	NetAdapter        string
	AllowManagementOS bool
	ManagementVLANID  int
}

type AdapterInfo struct {
	Name                 string
	InterfaceDescription string
	Status               string
	MACAddress           string
	MTU                  int
	RDMAEnabled          bool
	IPAddresses          []IPConfig
	Gateway              string
}

type IPConfig struct {
	Address      string
	PrefixLength int
}

type QoSPolicy struct {
	Name         string
	Priority     int
	BandwidthPct int
}

// CreateVMSpec carries the sizing parameters for newvm and setvm.
type CreateVMSpec struct {
	Name          string
	Path          string
	Generation    int
	Processors    int
	MemoryMB      int
	DynamicMemory bool
	MinimumMB     int
	MaximumMB     int
}
