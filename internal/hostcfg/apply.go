package hostcfg

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ashlab/hvadm/internal/hyperv"
	"github.com/ashlab/hvadm/internal/netmap"
)

// HostPlatform is the slice of host operations the reconciler needs.
// hyperv.Driver satisfies it.
type HostPlatform interface {
	CheckHost(ctx context.Context, host string) error
	ListNetAdapters(ctx context.Context, host string) ([]hyperv.AdapterInfo, error)
	ListSwitches(ctx context.Context, host string) ([]hyperv.SwitchInfo, error)
	ListQoSPolicies(ctx context.Context, host string) ([]hyperv.QoSPolicy, error)
	RenameNetAdapter(ctx context.Context, host, current, newName string) error
	CreateSwitch(ctx context.Context, host, name, netAdapter string, allowManagementOS bool) error
	SetHostVLAN(ctx context.Context, host, switchName string, vlanID int) error
	SetIPAddress(ctx context.Context, host, adapter, ip string, prefix int, gateway string) error
	SetRDMA(ctx context.Context, host, adapter string, enable bool) error
	SetJumboFrames(ctx context.Context, host, adapter string, enable bool) error
	EnsureTrafficClass(ctx context.Context, host, name string, priority, bandwidthPct int) error
}

type Reconciler struct {
	platform HostPlatform
	log      *logrus.Logger
}

func NewReconciler(platform HostPlatform, log *logrus.Logger) *Reconciler {
	return &Reconciler{platform: platform, log: log}
}

// PlanHost reads the host's live state and diffs it against its mapping
// rows. An empty plan means the host conforms.
func (r *Reconciler) PlanHost(ctx context.Context, host string, mappings []netmap.Mapping) ([]Action, error) {
	if err := r.platform.CheckHost(ctx, host); err != nil {
		return nil, err
	}

	adapters, err := r.platform.ListNetAdapters(ctx, host)
	if err != nil {
		return nil, err
	}
	switches, err := r.platform.ListSwitches(ctx, host)
	if err != nil {
		return nil, err
	}
	qos, err := r.platform.ListQoSPolicies(ctx, host)
	if err != nil {
		return nil, err
	}

	return Plan(HostState{Adapters: adapters, Switches: switches, QoS: qos}, netmap.ForHost(mappings, host))
}

// Apply executes a plan in order. It stops at the first failure so the
// remaining actions stay visible to the operator.
func (r *Reconciler) Apply(ctx context.Context, host string, actions []Action) error {
	for _, action := range actions {
		r.log.WithFields(logrus.Fields{"host": host, "action": action.String()}).Info("applying")

		var err error
		switch action.Kind {
		case ActionRenameAdapter:
			err = r.platform.RenameNetAdapter(ctx, host, action.Adapter, action.NewName)
		case ActionCreateSwitch:
			err = r.platform.CreateSwitch(ctx, host, action.Switch, action.Adapter, action.ManagementOS)
		case ActionSetHostVLAN:
			err = r.platform.SetHostVLAN(ctx, host, action.Switch, action.VLAN)
		case ActionAssignIP:
			err = r.platform.SetIPAddress(ctx, host, action.Adapter, action.IP, action.Prefix, action.Gateway)
		case ActionSetRDMA:
			err = r.platform.SetRDMA(ctx, host, action.Adapter, action.Enable)
		case ActionSetJumbo:
			err = r.platform.SetJumboFrames(ctx, host, action.Adapter, action.Enable)
		case ActionEnsureQoS:
			err = r.platform.EnsureTrafficClass(ctx, host, action.Class, action.Priority, action.Bandwidth)
		default:
			err = fmt.Errorf("unknown action kind '%s'", action.Kind)
		}
		if err != nil {
			return fmt.Errorf("host '%s': %s: %w", host, action, err)
		}
	}
	return nil
}
