package vmdef

import (
	"fmt"
	"net"
	"strings"
)

// Validate performs the static checks that do not need a live host: field
// sanity, duplicate disk locations, MAC/IP formats, deployment method
// completeness, and affinity references. It returns one error per problem.
func Validate(defs []*Definition) []error {
	var errs []error

	// Anti-affinity spreads a group's members across nodes; a group with a
	// single member cannot do anything.
	groupMembers := make(map[string]int)
	for _, def := range defs {
		if def.Cluster.AntiAffinityGroup != "" {
			groupMembers[def.Cluster.AntiAffinityGroup]++
		}
	}

	for _, def := range defs {
		prefix := fmt.Sprintf("vm '%s'", def.Name)

		if def.Host == "" {
			errs = append(errs, fmt.Errorf("%s: host is required", prefix))
		}
		if def.Processors < 1 {
			errs = append(errs, fmt.Errorf("%s: processors must be at least 1", prefix))
		}
		if def.Memory.StartupMB < 1 {
			errs = append(errs, fmt.Errorf("%s: memory startup_mb must be set", prefix))
		}
		if def.Memory.Dynamic {
			if def.Memory.MinimumMB > def.Memory.StartupMB {
				errs = append(errs, fmt.Errorf("%s: memory minimum_mb exceeds startup_mb", prefix))
			}
			if def.Memory.MaximumMB != 0 && def.Memory.MaximumMB < def.Memory.StartupMB {
				errs = append(errs, fmt.Errorf("%s: memory maximum_mb below startup_mb", prefix))
			}
		}
		if def.Generation != 0 && def.Generation != 1 && def.Generation != 2 {
			errs = append(errs, fmt.Errorf("%s: generation must be 1 or 2", prefix))
		}

		errs = append(errs, validateDisks(prefix, def.Disks)...)
		errs = append(errs, validateNICs(prefix, def.NICs)...)
		errs = append(errs, validateDeploy(prefix, def.Deploy)...)

		for _, owner := range def.Cluster.PreferredOwners {
			if strings.TrimSpace(owner) == "" {
				errs = append(errs, fmt.Errorf("%s: empty preferred owner entry", prefix))
			}
		}
		if group := def.Cluster.AntiAffinityGroup; group != "" && groupMembers[group] < 2 {
			errs = append(errs, fmt.Errorf("%s: anti_affinity_group '%s' has no other member", prefix, group))
		}
	}

	return errs
}

func validateDisks(prefix string, disks []Disk) []error {
	var errs []error

	type location struct{ number, slot int }
	seen := make(map[location]bool)

	for i, disk := range disks {
		if disk.SizeGB < 1 && disk.Path == "" {
			errs = append(errs, fmt.Errorf("%s: disk %d needs a size_gb or an existing path", prefix, i))
		}
		loc := location{disk.ControllerNumber, disk.ControllerLocation}
		if seen[loc] {
			errs = append(errs, fmt.Errorf("%s: duplicate disk location controller %d slot %d",
				prefix, disk.ControllerNumber, disk.ControllerLocation))
		}
		seen[loc] = true
	}

	return errs
}

func validateNICs(prefix string, nics []NIC) []error {
	var errs []error

	for _, nic := range nics {
		if nic.SwitchName == "" {
			errs = append(errs, fmt.Errorf("%s: nic '%s' has no switch", prefix, nic.Name))
		}

		switch nic.VLANMode {
		case VLANModeUntagged, "":
		case VLANModeAccess:
			if nic.VLANID < 1 || nic.VLANID > 4094 {
				errs = append(errs, fmt.Errorf("%s: nic '%s' access mode needs vlan_id 1-4094", prefix, nic.Name))
			}
		case VLANModeTrunk:
		default:
			errs = append(errs, fmt.Errorf("%s: nic '%s' has unknown vlan_mode '%s'", prefix, nic.Name, nic.VLANMode))
		}

		switch nic.MACPolicy {
		case MACPolicyDynamic, MACPolicyGenerate, "":
		case MACPolicyStatic:
			if !ValidateMAC(nic.MACAddress) {
				errs = append(errs, fmt.Errorf("%s: nic '%s' static MAC policy with invalid address '%s'",
					prefix, nic.Name, nic.MACAddress))
			}
		default:
			errs = append(errs, fmt.Errorf("%s: nic '%s' has unknown mac_policy '%s'", prefix, nic.Name, nic.MACPolicy))
		}

		if nic.IPAddress != "" && net.ParseIP(nic.IPAddress) == nil {
			errs = append(errs, fmt.Errorf("%s: nic '%s' has invalid ip_address '%s'", prefix, nic.Name, nic.IPAddress))
		}
		if nic.Router != "" && net.ParseIP(nic.Router) == nil {
			errs = append(errs, fmt.Errorf("%s: nic '%s' has invalid router '%s'", prefix, nic.Name, nic.Router))
		}
		if nic.IPAddress != "" && nic.DHCPServer != "" && nic.DHCPScope == "" {
			errs = append(errs, fmt.Errorf("%s: nic '%s' has a dhcp_server but no dhcp_scope", prefix, nic.Name))
		}
	}

	return errs
}

func validateDeploy(prefix string, deploy Deploy) []error {
	var errs []error

	switch deploy.Method {
	case DeployMethodNone:
	case DeployMethodISO:
		if deploy.ISOPath == "" {
			errs = append(errs, fmt.Errorf("%s: iso deployment needs iso_path", prefix))
		}
	case DeployMethodVHD:
		if deploy.SourceVHD == "" {
			errs = append(errs, fmt.Errorf("%s: vhd deployment needs source_vhd", prefix))
		}
	case DeployMethodWDS:
	case DeployMethodSCCM:
		if deploy.CollectionName == "" {
			errs = append(errs, fmt.Errorf("%s: sccm deployment needs a collection", prefix))
		}
	default:
		errs = append(errs, fmt.Errorf("%s: unknown os_deployment method '%s'", prefix, deploy.Method))
	}

	return errs
}
