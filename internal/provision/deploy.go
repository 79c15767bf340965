package provision

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ashlab/hvadm/internal/vmdef"
)

// unattendTemplate is the answer file rendered for iso deployments. It is
// written under output/unattend/ for the operator to slipstream onto the
// install media.
const unattendTemplate = `<?xml version="1.0" encoding="utf-8"?>
<unattend xmlns="urn:schemas-microsoft-com:unattend">
  <settings pass="specialize">
    <component name="Microsoft-Windows-Shell-Setup" processorArchitecture="amd64"
               publicKeyToken="31bf3856ad364e35" language="neutral" versionScope="nonSxS">
      <ComputerName>{{ .Name }}</ComputerName>
      <TimeZone>{{ .Timezone }}</TimeZone>
    </component>
{{- if .Domain }}
    <component name="Microsoft-Windows-UnattendedJoin" processorArchitecture="amd64"
               publicKeyToken="31bf3856ad364e35" language="neutral" versionScope="nonSxS">
      <Identification>
        <JoinDomain>{{ .Domain }}</JoinDomain>
{{- if .OUPath }}
        <MachineObjectOU>{{ .OUPath }}</MachineObjectOU>
{{- end }}
      </Identification>
    </component>
{{- end }}
  </settings>
  <settings pass="oobeSystem">
    <component name="Microsoft-Windows-Shell-Setup" processorArchitecture="amd64"
               publicKeyToken="31bf3856ad364e35" language="neutral" versionScope="nonSxS">
      <OOBE>
        <HideEULAPage>true</HideEULAPage>
        <SkipMachineOOBE>true</SkipMachineOOBE>
      </OOBE>
      <AutoLogon>
        <Username>{{ .AdminUser }}</Username>
        <Enabled>true</Enabled>
        <LogonCount>1</LogonCount>
      </AutoLogon>
    </component>
  </settings>
</unattend>
`

type unattendData struct {
	Name      string
	Timezone  string
	AdminUser string
	Domain    string
	OUPath    string
}

// RenderUnattend produces the answer file body for a definition.
func RenderUnattend(def *vmdef.Definition, defaults vmdef.Defaults) (string, error) {
	tmpl, err := template.New("unattend").Parse(unattendTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse unattend template: %w", err)
	}

	data := unattendData{
		Name:      def.Name,
		Timezone:  defaults.Deploy.Timezone,
		AdminUser: defaults.Deploy.AdminUser,
		Domain:    def.Deploy.Domain,
		OUPath:    def.Deploy.OUPath,
	}
	if data.Timezone == "" {
		data.Timezone = "UTC"
	}
	if data.AdminUser == "" {
		data.AdminUser = "Administrator"
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render unattend template: %w", err)
	}

	return buf.String(), nil
}

// WriteUnattend renders the answer file to output/unattend/<vm>.xml and
// returns the path.
func WriteUnattend(def *vmdef.Definition, defaults vmdef.Defaults) (string, error) {
	content, err := RenderUnattend(def, defaults)
	if err != nil {
		return "", err
	}

	dir := filepath.Join("output", "unattend")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	path := filepath.Join(dir, def.Name+".xml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	return path, nil
}

// deployOS dispatches on the definition's deployment method. macs maps NIC
// name to resolved MAC, from ensureNICs.
func (p *Provisioner) deployOS(ctx context.Context, log *logrus.Entry, def *vmdef.Definition, macs map[string]string) error {
	switch def.Deploy.Method {
	case vmdef.DeployMethodNone:
		return nil

	case vmdef.DeployMethodVHD:
		// The golden image was cloned while reconciling disks.
		return nil

	case vmdef.DeployMethodISO:
		path, err := WriteUnattend(def, p.defaults)
		if err != nil {
			return err
		}
		log.WithField("unattend", path).Info("wrote answer file")

		iso := def.Deploy.ISOPath
		if !filepath.IsAbs(iso) && p.defaults.Deploy.ISODirectory != "" {
			iso = fmt.Sprintf(`%s\%s`, p.defaults.Deploy.ISODirectory, iso)
		}
		log.WithField("iso", iso).Info("attaching install media")
		return p.platform.SetDVD(ctx, def.Host, def.Name, iso)

	case vmdef.DeployMethodWDS:
		server := def.Deploy.Server
		if server == "" {
			server = p.defaults.Deploy.WDSServer
		}
		if server == "" {
			return fmt.Errorf("vm '%s': wds deployment needs a server (definition or defaults)", def.Name)
		}

		mac, err := firstMAC(def, macs)
		if err != nil {
			return err
		}

		guid := p.biosGUID(ctx, def)
		log.WithFields(logrus.Fields{"server": server, "mac": mac}).Info("pre-staging wds device")
		return p.platform.PrestageWDSDevice(ctx, server, def.Name, mac, guid)

	case vmdef.DeployMethodSCCM:
		server := def.Deploy.Server
		if server == "" {
			server = p.defaults.Deploy.SCCMServer
		}
		if server == "" {
			return fmt.Errorf("vm '%s': sccm deployment needs a server (definition or defaults)", def.Name)
		}

		mac, err := firstMAC(def, macs)
		if err != nil {
			return err
		}

		log.WithFields(logrus.Fields{"server": server, "collection": def.Deploy.CollectionName}).Info("importing sccm device")
		return p.platform.ImportSCCMDevice(ctx, server, p.defaults.Deploy.SCCMSiteCode, def.Deploy.CollectionName, def.Name, mac)

	default:
		return fmt.Errorf("vm '%s': unknown os_deployment method '%s'", def.Name, def.Deploy.Method)
	}
}

// firstMAC returns the resolved MAC of the first defined NIC. PXE-based
// deployment registers the machine by MAC, so it must be pinned.
func firstMAC(def *vmdef.Definition, macs map[string]string) (string, error) {
	if len(def.NICs) == 0 {
		return "", fmt.Errorf("vm '%s': network deployment needs at least one network adapter", def.Name)
	}
	mac := macs[def.NICs[0].Name]
	if mac == "" {
		return "", fmt.Errorf("vm '%s': network deployment needs a static or generated MAC on nic '%s'",
			def.Name, def.NICs[0].Name)
	}
	return mac, nil
}

// biosGUID returns the VM's SMBIOS GUID for WDS registration, or a fresh
// one when the platform does not report it.
func (p *Provisioner) biosGUID(ctx context.Context, def *vmdef.Definition) string {
	vm, err := p.platform.GetVM(ctx, def.Host, def.Name)
	if err == nil && vm.BIOSGUID != "" {
		return vm.BIOSGUID
	}
	return uuid.NewString()
}
