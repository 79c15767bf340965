package vmdef

type Defaults struct {
	VM         VMDefaults         `toml:"vm"`
	Network    NetworkDefaults    `toml:"network"`
	Deploy     DeployDefaults     `toml:"deploy"`
	Cluster    ClusterDefaults    `toml:"cluster"`
	Logging    LoggingDefaults    `toml:"logging"`
	PowerShell PowerShellDefaults `toml:"powershell"`
}

type VMDefaults struct {
	RootPath   string `toml:"root_path"`
	VHDPath    string `toml:"vhd_path"`
	Generation int    `toml:"generation"`
}

type NetworkDefaults struct {
	MACPrefix     string `toml:"mac_prefix"`
	DefaultSwitch string `toml:"default_switch"`
	DNSServer     string `toml:"dns_server"`
}

type DeployDefaults struct {
	WDSServer    string `toml:"wds_server"`
	SCCMServer   string `toml:"sccm_server"`
	SCCMSiteCode string `toml:"sccm_site_code"`
	ISODirectory string `toml:"iso_directory"`
	Timezone     string `toml:"timezone"`
	AdminUser    string `toml:"admin_user"`
}

type ClusterDefaults struct {
	Name string `toml:"name"`
}

type LoggingDefaults struct {
	Level string `toml:"level"`
}

type PowerShellDefaults struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}
