// Package hostcfg reconciles a host's physical network configuration
// against its mapping rows: adapter names, switch bindings, addressing,
// RDMA, jumbo frames and QoS traffic classes. Plan computes the drift as
// typed actions; Apply executes them.
package hostcfg

import (
	"fmt"
	"strings"

	"github.com/ashlab/hvadm/internal/hyperv"
	"github.com/ashlab/hvadm/internal/netmap"
)

type ActionKind string

const (
	ActionRenameAdapter ActionKind = "rename-adapter"
	ActionCreateSwitch  ActionKind = "create-switch"
	ActionSetHostVLAN   ActionKind = "set-host-vlan"
	ActionAssignIP      ActionKind = "assign-ip"
	ActionSetRDMA       ActionKind = "set-rdma"
	ActionSetJumbo      ActionKind = "set-jumbo"
	ActionEnsureQoS     ActionKind = "ensure-qos"
)

// Action is one pending change on a host. Adapter names the target adapter
// after any rename earlier in the same plan.
type Action struct {
	Kind    ActionKind
	Adapter string

	NewName string // rename-adapter

	Switch       string // create-switch, set-host-vlan
	ManagementOS bool
	VLAN         int

	IP      string // assign-ip
	Prefix  int
	Gateway string

	Enable bool // set-rdma, set-jumbo

	Class     string // ensure-qos
	Priority  int
	Bandwidth int
}

func (a Action) String() string {
	switch a.Kind {
	case ActionRenameAdapter:
		return fmt.Sprintf("rename adapter '%s' to '%s'", a.Adapter, a.NewName)
	case ActionCreateSwitch:
		return fmt.Sprintf("create switch '%s' on adapter '%s'", a.Switch, a.Adapter)
	case ActionSetHostVLAN:
		return fmt.Sprintf("set vlan %d on the management adapter of switch '%s'", a.VLAN, a.Switch)
	case ActionAssignIP:
		if a.Gateway != "" {
			return fmt.Sprintf("assign %s/%d gw %s to adapter '%s'", a.IP, a.Prefix, a.Gateway, a.Adapter)
		}
		return fmt.Sprintf("assign %s/%d to adapter '%s'", a.IP, a.Prefix, a.Adapter)
	case ActionSetRDMA:
		return fmt.Sprintf("%s rdma on adapter '%s'", enableWord(a.Enable), a.Adapter)
	case ActionSetJumbo:
		return fmt.Sprintf("%s jumbo frames on adapter '%s'", enableWord(a.Enable), a.Adapter)
	case ActionEnsureQoS:
		return fmt.Sprintf("ensure traffic class '%s' priority %d bandwidth %d%%", a.Class, a.Priority, a.Bandwidth)
	}
	return string(a.Kind)
}

func enableWord(enable bool) string {
	if enable {
		return "enable"
	}
	return "disable"
}

// jumboMTU is the payload size above which an adapter counts as running
// jumbo frames.
const jumboMTU = 9000

// HostState is the live configuration a plan is computed against.
type HostState struct {
	Adapters []hyperv.AdapterInfo
	Switches []hyperv.SwitchInfo
	QoS      []hyperv.QoSPolicy
}

// Plan diffs a host's live state against its mapping rows. Each mapping
// row must match a physical adapter, either by its current name or by the
// target name from an earlier run. Conformant settings produce no action.
func Plan(state HostState, mappings []netmap.Mapping) ([]Action, error) {
	var actions []Action

	for _, m := range mappings {
		adapter, err := findAdapter(state.Adapters, m)
		if err != nil {
			return nil, err
		}

		// Work against the target name once the rename is planned.
		name := adapter.Name
		if m.NewName != "" && !strings.EqualFold(adapter.Name, m.NewName) {
			actions = append(actions, Action{
				Kind:    ActionRenameAdapter,
				Adapter: adapter.Name,
				NewName: m.NewName,
			})
			name = m.NewName
		}

		sw := findSwitch(state.Switches, m.SwitchName)
		if m.SwitchName != "" && sw == nil {
			actions = append(actions, Action{
				Kind:         ActionCreateSwitch,
				Adapter:      name,
				Switch:       m.SwitchName,
				ManagementOS: m.IPAddress != "",
			})
		}

		// The VLAN tags the switch's management vNIC, which only exists
		// when the switch is shared with the host.
		if m.SwitchName != "" && m.VLANID > 0 {
			shared := m.IPAddress != "" || (sw != nil && sw.AllowManagementOS)
			if shared && (sw == nil || sw.ManagementVLANID != m.VLANID) {
				actions = append(actions, Action{
					Kind:   ActionSetHostVLAN,
					Switch: m.SwitchName,
					VLAN:   m.VLANID,
				})
			}
		}

		if m.IPAddress != "" {
			// Binding an external switch moves IPv4 off the physical
			// adapter onto the vEthernet management adapter; the address
			// lives there when the row carries a switch.
			ipAdapter := name
			ipState := adapter
			if m.SwitchName != "" {
				ipAdapter = managementAlias(m.SwitchName)
				ipState = findAdapterByName(state.Adapters, ipAdapter)
			}
			if ipState == nil || !hasAddress(ipState, m) {
				actions = append(actions, Action{
					Kind:    ActionAssignIP,
					Adapter: ipAdapter,
					IP:      m.IPAddress,
					Prefix:  m.PrefixLength,
					Gateway: m.Gateway,
				})
			}
		}

		if m.RDMA != adapter.RDMAEnabled {
			actions = append(actions, Action{
				Kind:    ActionSetRDMA,
				Adapter: name,
				Enable:  m.RDMA,
			})
		}

		if m.JumboFrames != (adapter.MTU >= jumboMTU) {
			actions = append(actions, Action{
				Kind:    ActionSetJumbo,
				Adapter: name,
				Enable:  m.JumboFrames,
			})
		}

		if m.TrafficClass != "" && !hasTrafficClass(state.QoS, m) {
			actions = append(actions, Action{
				Kind:      ActionEnsureQoS,
				Adapter:   name,
				Class:     m.TrafficClass,
				Priority:  m.Priority,
				Bandwidth: m.BandwidthPct,
			})
		}
	}

	return dedupe(actions), nil
}

func findAdapter(adapters []hyperv.AdapterInfo, m netmap.Mapping) (*hyperv.AdapterInfo, error) {
	if a := findAdapterByName(adapters, m.AdapterName); a != nil {
		return a, nil
	}
	// Already renamed on a previous run.
	if m.NewName != "" {
		if a := findAdapterByName(adapters, m.NewName); a != nil {
			return a, nil
		}
	}
	return nil, fmt.Errorf("adapter '%s' (host '%s') not found; physical adapters cannot be created", m.AdapterName, m.Host)
}

func findAdapterByName(adapters []hyperv.AdapterInfo, name string) *hyperv.AdapterInfo {
	for i := range adapters {
		if strings.EqualFold(adapters[i].Name, name) {
			return &adapters[i]
		}
	}
	return nil
}

// managementAlias is the interface alias Windows gives the host vNIC of a
// shared switch.
func managementAlias(switchName string) string {
	return "vEthernet (" + switchName + ")"
}

func findSwitch(switches []hyperv.SwitchInfo, name string) *hyperv.SwitchInfo {
	for i := range switches {
		if strings.EqualFold(switches[i].Name, name) {
			return &switches[i]
		}
	}
	return nil
}

func hasAddress(adapter *hyperv.AdapterInfo, m netmap.Mapping) bool {
	for _, ip := range adapter.IPAddresses {
		if ip.Address == m.IPAddress && ip.PrefixLength == m.PrefixLength {
			return m.Gateway == "" || adapter.Gateway == m.Gateway
		}
	}
	return false
}

func hasTrafficClass(policies []hyperv.QoSPolicy, m netmap.Mapping) bool {
	for _, p := range policies {
		if strings.EqualFold(p.Name, m.TrafficClass) {
			return p.Priority == m.Priority && p.BandwidthPct == m.BandwidthPct
		}
	}
	return false
}

// dedupe drops repeated actions; several mapping rows may demand the same
// switch or traffic class. Those are keyed by name since the rows can name
// different adapters.
func dedupe(actions []Action) []Action {
	seen := make(map[string]bool, len(actions))
	out := actions[:0]
	for _, a := range actions {
		var key string
		switch a.Kind {
		case ActionCreateSwitch:
			key = "switch/" + strings.ToLower(a.Switch)
		case ActionSetHostVLAN:
			key = "hostvlan/" + strings.ToLower(a.Switch)
		case ActionEnsureQoS:
			key = "qos/" + strings.ToLower(a.Class)
		default:
			key = fmt.Sprintf("%+v", a)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}
