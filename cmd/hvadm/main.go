package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/ashlab/hvadm/internal/hostcfg"
	"github.com/ashlab/hvadm/internal/hyperv"
	"github.com/ashlab/hvadm/internal/netmap"
	"github.com/ashlab/hvadm/internal/provision"
	"github.com/ashlab/hvadm/internal/report"
	"github.com/ashlab/hvadm/internal/vmdef"
)

// exitWithError prints an error message and exits with the given code
// This avoids the cli.Exit() wrapper which causes 'just' to add its own error message
func exitWithError(message string, code int) error {
	fmt.Fprintln(os.Stderr, message)
	os.Exit(code)
	return nil // never reached
}

func main() {
	app := &cli.App{
		Name:  "hvadm",
		Usage: "Hyper-V fleet administration from declarative definitions",
		Description: `Hvadm provisions, migrates and decommissions Hyper-V virtual machines
   from a definitions file, and reconciles host network configuration
   against a per-adapter mapping.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Value:   vmdef.DefaultDefinitionsPath,
				Usage:   "VM definitions file (.json, .yaml or .yml)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "vm",
				Usage: "Provision, migrate, list and define virtual machines",
				Subcommands: []*cli.Command{
					{
						Name:      "create",
						Aliases:   []string{"c"},
						Usage:     "Provision a defined VM on its host (idempotent)",
						ArgsUsage: "[vm-name]",
						Action:    vmCreateCommand,
						Flags: []cli.Flag{
							&cli.BoolFlag{
								Name:  "all",
								Usage: "Provision every defined VM",
							},
						},
					},
					{
						Name:      "rm",
						Aliases:   []string{"remove", "delete"},
						Usage:     "Decommission a VM: stop, clean up DHCP/DNS/AD/deployment records, delete",
						ArgsUsage: "[vm-name]",
						Action:    vmRemoveCommand,
						Flags: []cli.Flag{
							&cli.BoolFlag{
								Name:    "force",
								Aliases: []string{"y"},
								Usage:   "Skip confirmation prompt",
							},
							&cli.BoolFlag{
								Name:  "keep-files",
								Usage: "Leave the VM directory and virtual disks on the host",
							},
						},
					},
					{
						Name:      "move",
						Aliases:   []string{"mv"},
						Usage:     "Migrate a VM to another host",
						ArgsUsage: "[vm-name]",
						Action:    vmMoveCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "to",
								Usage:    "Destination host",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "path",
								Usage: "VM path on the destination host (defaults to the definition's path)",
							},
							&cli.BoolFlag{
								Name:  "offline",
								Usage: "Stop/export/import instead of a live migration",
							},
							&cli.StringFlag{
								Name:  "staging",
								Usage: "Export location for offline moves, reachable from both hosts",
							},
						},
					},
					{
						Name:    "list",
						Aliases: []string{"ls"},
						Usage:   "List VM definitions, or live VMs per host with --live",
						Action:  vmListCommand,
						Flags: []cli.Flag{
							&cli.BoolFlag{
								Name:  "live",
								Usage: "Query each referenced host for its running inventory",
							},
						},
					},
					{
						Name:  "define",
						Usage: "Manage the definitions file without touching any host",
						Subcommands: []*cli.Command{
							{
								Name:      "add",
								Usage:     "Add a VM definition",
								ArgsUsage: "[vm-name]",
								Action:    defineAddCommand,
								Flags: []cli.Flag{
									&cli.StringFlag{
										Name:     "host",
										Usage:    "Hyper-V host the VM lives on",
										Required: true,
									},
									&cli.IntFlag{
										Name:  "processors",
										Value: 2,
										Usage: "Virtual processor count",
									},
									&cli.IntFlag{
										Name:  "memory",
										Value: 4096,
										Usage: "Startup memory in MB",
									},
									&cli.IntFlag{
										Name:  "disk",
										Value: 80,
										Usage: "OS disk size in GB",
									},
									&cli.StringFlag{
										Name:  "switch",
										Usage: "Virtual switch for the first adapter (defaults to the configured default switch)",
									},
									&cli.BoolFlag{
										Name:  "generate-mac",
										Value: true,
										Usage: "Pin a generated MAC address on the first adapter",
									},
								},
							},
							{
								Name:      "remove",
								Aliases:   []string{"rm"},
								Usage:     "Remove a VM definition",
								ArgsUsage: "[vm-name]",
								Action:    defineRemoveCommand,
							},
							{
								Name:      "show",
								ArgsUsage: "[vm-name]",
								Usage:     "Show a VM definition in full",
								Action:    defineShowCommand,
							},
						},
					},
				},
			},
			{
				Name:  "host",
				Usage: "Reconcile and audit host network configuration",
				Subcommands: []*cli.Command{
					{
						Name:   "apply",
						Usage:  "Apply the network mapping to hosts",
						Action: hostApplyCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "map",
								Aliases: []string{"m"},
								Value:   "config/netmap.csv",
								Usage:   "Network mapping CSV",
							},
							&cli.StringFlag{
								Name:  "host",
								Usage: "Limit to a single host",
							},
							&cli.BoolFlag{
								Name:  "dry-run",
								Usage: "Show the pending changes without applying them",
							},
						},
					},
					{
						Name:   "audit",
						Usage:  "Report drift between hosts and the network mapping",
						Action: hostAuditCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "map",
								Aliases: []string{"m"},
								Value:   "config/netmap.csv",
								Usage:   "Network mapping CSV",
							},
							&cli.StringFlag{
								Name:  "host",
								Usage: "Limit to a single host",
							},
						},
					},
				},
			},
			{
				Name:    "validate",
				Aliases: []string{"val"},
				Usage:   "Validate the definitions file",
				Action:  validateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "host",
						Usage: "Also check that referenced switches and ISO images exist on this host",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		// Don't print anything here - errors are already handled in commands
		os.Exit(1)
	}
}

func loadConfig(ctx *cli.Context) (*vmdef.ConfigLoader, error) {
	loader := vmdef.NewConfigLoader()
	if err := loader.LoadAll(ctx.String("file")); err != nil {
		return nil, err
	}
	return loader, nil
}

func newLogger(defaults vmdef.Defaults) *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(defaults.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func newProvisioner(defaults vmdef.Defaults) (*provision.Provisioner, error) {
	log := newLogger(defaults)
	driver, err := hyperv.NewDriver(log, time.Duration(defaults.PowerShell.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	return provision.NewProvisioner(driver, defaults, log), nil
}

func vmCreateCommand(ctx *cli.Context) error {
	loader, err := loadConfig(ctx)
	if err != nil {
		return exitWithError(fmt.Sprintf("Error loading configuration: %v", err), 1)
	}

	var targets []*vmdef.Definition
	if ctx.Bool("all") {
		targets = loader.GetVMs()
		if len(targets) == 0 {
			fmt.Println("No VMs defined")
			return nil
		}
	} else {
		if ctx.NArg() != 1 {
			return exitWithError("Error: requires exactly one argument (vm name) or use --all flag. Usage: hvadm vm create [vm-name]", 1)
		}
		def, err := loader.GetVM(ctx.Args().Get(0))
		if err != nil {
			return exitWithError(fmt.Sprintf("Error: %v", err), 1)
		}
		targets = []*vmdef.Definition{def}
	}

	if problems := vmdef.Validate(targets); len(problems) > 0 {
		fmt.Fprintln(os.Stderr, "Definition validation failed:")
		report.WriteValidation(os.Stderr, problems)
		return exitWithError("Fix the definitions file and retry", 1)
	}

	p, err := newProvisioner(loader.GetDefaults())
	if err != nil {
		return exitWithError(fmt.Sprintf("Error: %v", err), 1)
	}

	failed := 0
	for _, def := range targets {
		fmt.Printf("Provisioning %s on %s\n", def.Name, def.Host)
		if err := p.Create(ctx.Context, def); err != nil {
			fmt.Fprintf(os.Stderr, "❌ %s: %v\n", def.Name, err)
			failed++
			continue
		}
		fmt.Printf("✅ %s provisioned\n", def.Name)
	}

	if failed > 0 {
		return exitWithError(fmt.Sprintf("%d of %d VMs failed", failed, len(targets)), 1)
	}
	return nil
}

func vmRemoveCommand(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return exitWithError("Error: requires exactly one argument (vm name). Usage: hvadm vm rm [flags] [vm-name]", 1)
	}

	loader, err := loadConfig(ctx)
	if err != nil {
		return exitWithError(fmt.Sprintf("Error loading configuration: %v", err), 1)
	}

	name := ctx.Args().Get(0)
	def, err := loader.GetVM(name)
	if err != nil {
		if errors.Is(err, vmdef.ErrVMNotFound) {
			fmt.Printf("VM '%s' not found in definitions\n", name)
			return nil
		}
		return exitWithError(fmt.Sprintf("Error: %v", err), 1)
	}

	fmt.Printf("The following will be removed from host %s:\n", def.Host)
	fmt.Printf("  ✓ Virtual machine: %s\n", def.Name)
	for _, nic := range def.NICs {
		if nic.DHCPServer != "" && nic.IPAddress != "" {
			fmt.Printf("  ✓ DHCP reservation: %s on %s\n", nic.IPAddress, nic.DHCPServer)
		}
	}
	if def.Deploy.Domain != "" {
		fmt.Printf("  ✓ DNS record and AD computer object in %s\n", def.Deploy.Domain)
	}
	if !ctx.Bool("keep-files") {
		fmt.Printf("  ✓ VM files and virtual disks\n")
	}

	if !ctx.Bool("force") {
		fmt.Printf("\nAre you sure you want to decommission '%s'? [y/N] ", name)
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	p, err := newProvisioner(loader.GetDefaults())
	if err != nil {
		return exitWithError(fmt.Sprintf("Error: %v", err), 1)
	}

	opts := provision.RemoveOptions{KeepFiles: ctx.Bool("keep-files")}
	if err := p.Remove(ctx.Context, def, opts); err != nil {
		return exitWithError(fmt.Sprintf("Error decommissioning vm: %v", err), 1)
	}

	fmt.Printf("\n🗑️  VM '%s' decommissioned. The definition is kept; drop it with 'hvadm vm define rm %s'\n", name, name)
	return nil
}

func vmMoveCommand(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return exitWithError("Error: requires exactly one argument (vm name). Usage: hvadm vm move --to [host] [vm-name]", 1)
	}

	loader, err := loadConfig(ctx)
	if err != nil {
		return exitWithError(fmt.Sprintf("Error loading configuration: %v", err), 1)
	}

	def, err := loader.GetVM(ctx.Args().Get(0))
	if err != nil {
		return exitWithError(fmt.Sprintf("Error: %v", err), 1)
	}

	p, err := newProvisioner(loader.GetDefaults())
	if err != nil {
		return exitWithError(fmt.Sprintf("Error: %v", err), 1)
	}

	opts := provision.MoveOptions{
		DestHost:    ctx.String("to"),
		DestPath:    ctx.String("path"),
		Offline:     ctx.Bool("offline"),
		StagingPath: ctx.String("staging"),
	}

	fmt.Printf("Migrating %s: %s -> %s\n", def.Name, def.Host, opts.DestHost)
	if err := p.Move(ctx.Context, def, opts); err != nil {
		return exitWithError(fmt.Sprintf("Error migrating vm: %v", err), 1)
	}

	// Record the new placement so later operations target the right host.
	def.Host = opts.DestHost
	loader.SetVM(def)
	if err := loader.SaveDefinitions(); err != nil {
		return exitWithError(fmt.Sprintf("VM moved but definitions file could not be updated: %v", err), 1)
	}

	fmt.Printf("✅ %s is now on %s\n", def.Name, def.Host)
	return nil
}

func vmListCommand(ctx *cli.Context) error {
	loader, err := loadConfig(ctx)
	if err != nil {
		return exitWithError(fmt.Sprintf("Error loading configuration: %v", err), 1)
	}

	if !ctx.Bool("live") {
		report.WriteDefinitions(os.Stdout, loader.GetVMs())
		return nil
	}

	defaults := loader.GetDefaults()
	log := newLogger(defaults)
	driver, err := hyperv.NewDriver(log, time.Duration(defaults.PowerShell.TimeoutSeconds)*time.Second)
	if err != nil {
		return exitWithError(fmt.Sprintf("Error: %v", err), 1)
	}

	for i, host := range definedHosts(loader.GetVMs()) {
		if i > 0 {
			fmt.Println()
		}
		vms, err := driver.ListVMs(ctx.Context, host)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not query host '%s': %v\n", host, err)
			continue
		}
		report.WriteVMs(os.Stdout, host, vms)
	}

	return nil
}

// definedHosts returns the distinct hosts of a definition set, sorted.
func definedHosts(defs []*vmdef.Definition) []string {
	seen := make(map[string]bool)
	var hosts []string
	for _, def := range defs {
		key := strings.ToLower(def.Host)
		if def.Host != "" && !seen[key] {
			seen[key] = true
			hosts = append(hosts, def.Host)
		}
	}
	sort.Strings(hosts)
	return hosts
}

func defineAddCommand(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return exitWithError("Error: requires exactly one argument (vm name). Usage: hvadm vm define add --host [host] [vm-name]", 1)
	}

	loader, err := loadConfig(ctx)
	if err != nil {
		return exitWithError(fmt.Sprintf("Error loading configuration: %v", err), 1)
	}
	defaults := loader.GetDefaults()

	name := ctx.Args().Get(0)
	if _, err := loader.GetVM(name); err == nil {
		return exitWithError(fmt.Sprintf("Error: vm '%s' is already defined", name), 1)
	}

	switchName := ctx.String("switch")
	if switchName == "" {
		switchName = defaults.Network.DefaultSwitch
	}
	if switchName == "" {
		return exitWithError("Error: no --switch given and no default switch configured", 1)
	}

	nic := vmdef.NIC{
		Name:       "lan",
		SwitchName: switchName,
		MACPolicy:  vmdef.MACPolicyDynamic,
	}
	if ctx.Bool("generate-mac") {
		mac, err := vmdef.GenerateMAC(defaults.Network.MACPrefix)
		if err != nil {
			return exitWithError(fmt.Sprintf("Error generating MAC address: %v", err), 1)
		}
		nic.MACPolicy = vmdef.MACPolicyStatic
		nic.MACAddress = mac
	}

	def := &vmdef.Definition{
		Name:       name,
		Host:       ctx.String("host"),
		Processors: ctx.Int("processors"),
		Memory:     vmdef.Memory{StartupMB: ctx.Int("memory")},
		Disks:      []vmdef.Disk{{SizeGB: ctx.Int("disk")}},
		NICs:       []vmdef.NIC{nic},
	}

	if problems := vmdef.Validate([]*vmdef.Definition{def}); len(problems) > 0 {
		fmt.Fprintln(os.Stderr, "Definition validation failed:")
		report.WriteValidation(os.Stderr, problems)
		return exitWithError("Invalid definition", 1)
	}

	loader.SetVM(def)
	if err := loader.SaveDefinitions(); err != nil {
		return exitWithError(fmt.Sprintf("Error saving definitions: %v", err), 1)
	}

	fmt.Printf("Defined VM: %s\n", name)
	fmt.Printf("  Host: %s\n", def.Host)
	fmt.Printf("  Switch: %s\n", switchName)
	if nic.MACAddress != "" {
		fmt.Printf("  MAC Address: %s\n", nic.MACAddress)
	}
	fmt.Printf("\n🎉 Provision it with: hvadm vm create %s\n", name)
	return nil
}

func defineRemoveCommand(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return exitWithError("Error: requires exactly one argument (vm name). Usage: hvadm vm define rm [vm-name]", 1)
	}

	loader, err := loadConfig(ctx)
	if err != nil {
		return exitWithError(fmt.Sprintf("Error loading configuration: %v", err), 1)
	}

	name := ctx.Args().Get(0)
	if err := loader.RemoveVM(name); err != nil {
		if errors.Is(err, vmdef.ErrVMNotFound) {
			fmt.Printf("VM '%s' not found in definitions\n", name)
			return nil
		}
		return exitWithError(fmt.Sprintf("Error: %v", err), 1)
	}

	if err := loader.SaveDefinitions(); err != nil {
		return exitWithError(fmt.Sprintf("Error saving definitions: %v", err), 1)
	}

	fmt.Printf("Definition '%s' removed\n", name)
	return nil
}

func defineShowCommand(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return exitWithError("Error: requires exactly one argument (vm name). Usage: hvadm vm define show [vm-name]", 1)
	}

	loader, err := loadConfig(ctx)
	if err != nil {
		return exitWithError(fmt.Sprintf("Error loading configuration: %v", err), 1)
	}

	def, err := loader.GetVM(ctx.Args().Get(0))
	if err != nil {
		return exitWithError(fmt.Sprintf("Error: %v", err), 1)
	}

	report.WriteDefinition(os.Stdout, def)
	return nil
}

func hostApplyCommand(ctx *cli.Context) error {
	return reconcileHosts(ctx, !ctx.Bool("dry-run"))
}

func hostAuditCommand(ctx *cli.Context) error {
	return reconcileHosts(ctx, false)
}

func reconcileHosts(ctx *cli.Context, apply bool) error {
	loader, err := loadConfig(ctx)
	if err != nil {
		return exitWithError(fmt.Sprintf("Error loading configuration: %v", err), 1)
	}
	defaults := loader.GetDefaults()

	mappings, err := netmap.Load(ctx.String("map"))
	if err != nil {
		return exitWithError(fmt.Sprintf("Error loading network mapping: %v", err), 1)
	}

	hosts := netmap.Hosts(mappings)
	if only := ctx.String("host"); only != "" {
		if len(netmap.ForHost(mappings, only)) == 0 {
			return exitWithError(fmt.Sprintf("Error: host '%s' has no rows in the mapping file", only), 1)
		}
		hosts = []string{only}
	}

	log := newLogger(defaults)
	driver, err := hyperv.NewDriver(log, time.Duration(defaults.PowerShell.TimeoutSeconds)*time.Second)
	if err != nil {
		return exitWithError(fmt.Sprintf("Error: %v", err), 1)
	}
	reconciler := hostcfg.NewReconciler(driver, log)

	drifted := 0
	for _, host := range hosts {
		actions, err := reconciler.PlanHost(ctx.Context, host, mappings)
		if err != nil {
			return exitWithError(fmt.Sprintf("Error planning host '%s': %v", host, err), 1)
		}

		report.WriteAudit(os.Stdout, host, actions)
		if len(actions) == 0 {
			continue
		}
		drifted++

		if apply {
			if err := reconciler.Apply(ctx.Context, host, actions); err != nil {
				return exitWithError(fmt.Sprintf("Error applying to host '%s': %v", host, err), 1)
			}
			fmt.Printf("%-20s applied %d change(s)\n", host, len(actions))
		}
	}

	if !apply && drifted > 0 {
		return exitWithError(fmt.Sprintf("%d of %d hosts have drifted", drifted, len(hosts)), 1)
	}
	return nil
}

func validateCommand(ctx *cli.Context) error {
	loader, err := loadConfig(ctx)
	if err != nil {
		return exitWithError(fmt.Sprintf("Configuration validation failed: %v", err), 1)
	}

	defs := loader.GetVMs()
	if problems := vmdef.Validate(defs); len(problems) > 0 {
		fmt.Fprintln(os.Stderr, "Definition validation failed:")
		report.WriteValidation(os.Stderr, problems)
		return exitWithError(fmt.Sprintf("%d problem(s) in %d definition(s)", len(problems), len(defs)), 1)
	}

	if host := ctx.String("host"); host != "" {
		if err := validateOnHost(ctx, loader, host); err != nil {
			return exitWithError(fmt.Sprintf("Liveness validation failed: %v", err), 1)
		}
	}

	fmt.Printf("Configuration is valid (%d VM definitions)\n", len(defs))
	return nil
}

// validateOnHost checks that the objects the definitions reference actually
// exist on the host: virtual switches and ISO images.
func validateOnHost(ctx *cli.Context, loader *vmdef.ConfigLoader, host string) error {
	defaults := loader.GetDefaults()
	log := newLogger(defaults)
	driver, err := hyperv.NewDriver(log, time.Duration(defaults.PowerShell.TimeoutSeconds)*time.Second)
	if err != nil {
		return err
	}
	if err := driver.CheckHost(ctx.Context, host); err != nil {
		return err
	}

	var problems []error
	checkedSwitches := make(map[string]bool)

	for _, def := range loader.GetVMs() {
		if !strings.EqualFold(def.Host, host) {
			continue
		}

		for _, nic := range def.NICs {
			if checkedSwitches[nic.SwitchName] {
				continue
			}
			checkedSwitches[nic.SwitchName] = true
			if _, err := driver.GetSwitch(ctx.Context, host, nic.SwitchName); err != nil {
				problems = append(problems, fmt.Errorf("vm '%s': switch '%s' not found on host '%s'", def.Name, nic.SwitchName, host))
			}
		}

		if def.Deploy.Method == vmdef.DeployMethodISO {
			iso := def.Deploy.ISOPath
			if !filepath.IsAbs(iso) && defaults.Deploy.ISODirectory != "" {
				iso = fmt.Sprintf(`%s\%s`, defaults.Deploy.ISODirectory, iso)
			}
			exists, err := driver.FileExists(ctx.Context, host, iso)
			if err != nil {
				problems = append(problems, fmt.Errorf("vm '%s': could not check iso '%s': %v", def.Name, iso, err))
			} else if !exists {
				problems = append(problems, fmt.Errorf("vm '%s': iso '%s' not found on host '%s'", def.Name, iso, host))
			}
		}
	}

	if len(problems) > 0 {
		report.WriteValidation(os.Stderr, problems)
		return fmt.Errorf("%d problem(s) on host '%s'", len(problems), host)
	}
	return nil
}
