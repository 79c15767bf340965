package vmdef

// Definition is a single declarative VM record. The definitions file is a
// JSON (or YAML) object keyed by VM name; Name is filled in from the key
// when the file is loaded.
type Definition struct {
	Name       string  `json:"-" yaml:"-"`
	Host       string  `json:"host" yaml:"host"`
	Path       string  `json:"path,omitempty" yaml:"path,omitempty"`
	Generation int     `json:"generation,omitempty" yaml:"generation,omitempty"`
	Processors int     `json:"processors" yaml:"processors"`
	Memory     Memory  `json:"memory" yaml:"memory"`
	Disks      []Disk  `json:"disks,omitempty" yaml:"disks,omitempty"`
	NICs       []NIC   `json:"network_adapters,omitempty" yaml:"network_adapters,omitempty"`
	Deploy     Deploy  `json:"os_deployment,omitempty" yaml:"os_deployment,omitempty"`
	Cluster    Cluster `json:"cluster,omitempty" yaml:"cluster,omitempty"`
}

type Memory struct {
	StartupMB int  `json:"startup_mb" yaml:"startup_mb"`
	Dynamic   bool `json:"dynamic,omitempty" yaml:"dynamic,omitempty"`
	MinimumMB int  `json:"minimum_mb,omitempty" yaml:"minimum_mb,omitempty"`
	MaximumMB int  `json:"maximum_mb,omitempty" yaml:"maximum_mb,omitempty"`
}

type Disk struct {
	Path               string `json:"path,omitempty" yaml:"path,omitempty"`
	SizeGB             int    `json:"size_gb" yaml:"size_gb"`
	ControllerNumber   int    `json:"controller_number" yaml:"controller_number"`
	ControllerLocation int    `json:"controller_location" yaml:"controller_location"`
}

// VLAN modes accepted on a NIC.
const (
	VLANModeUntagged = "untagged"
	VLANModeAccess   = "access"
	VLANModeTrunk    = "trunk"
)

// MAC address policies accepted on a NIC.
const (
	MACPolicyDynamic  = "dynamic"
	MACPolicyStatic   = "static"
	MACPolicyGenerate = "generate"
)

type NIC struct {
	Name       string `json:"name" yaml:"name"`
	SwitchName string `json:"switch" yaml:"switch"`
	VLANMode   string `json:"vlan_mode,omitempty" yaml:"vlan_mode,omitempty"`
	VLANID     int    `json:"vlan_id,omitempty" yaml:"vlan_id,omitempty"`
	MACPolicy  string `json:"mac_policy,omitempty" yaml:"mac_policy,omitempty"`
	MACAddress string `json:"mac_address,omitempty" yaml:"mac_address,omitempty"`
	IPAddress  string `json:"ip_address,omitempty" yaml:"ip_address,omitempty"`
	DHCPServer string `json:"dhcp_server,omitempty" yaml:"dhcp_server,omitempty"`
	DHCPScope  string `json:"dhcp_scope,omitempty" yaml:"dhcp_scope,omitempty"`
	Router     string `json:"router,omitempty" yaml:"router,omitempty"`
}

// OS deployment methods.
const (
	DeployMethodNone = ""
	DeployMethodISO  = "iso"
	DeployMethodVHD  = "vhd"
	DeployMethodWDS  = "wds"
	DeployMethodSCCM = "sccm"
)

type Deploy struct {
	Method         string `json:"method,omitempty" yaml:"method,omitempty"`
	ISOPath        string `json:"iso_path,omitempty" yaml:"iso_path,omitempty"`
	SourceVHD      string `json:"source_vhd,omitempty" yaml:"source_vhd,omitempty"`
	Server         string `json:"server,omitempty" yaml:"server,omitempty"`
	CollectionName string `json:"collection,omitempty" yaml:"collection,omitempty"`
	Domain         string `json:"domain,omitempty" yaml:"domain,omitempty"`
	OUPath         string `json:"ou_path,omitempty" yaml:"ou_path,omitempty"`
}

type Cluster struct {
	Name              string   `json:"name,omitempty" yaml:"name,omitempty"`
	Priority          int      `json:"priority,omitempty" yaml:"priority,omitempty"`
	AntiAffinityGroup string   `json:"anti_affinity_group,omitempty" yaml:"anti_affinity_group,omitempty"`
	PreferredOwners   []string `json:"preferred_owners,omitempty" yaml:"preferred_owners,omitempty"`
}

// DefinitionFile is the on-disk shape of the definitions file.
type DefinitionFile map[string]*Definition
