package vmdef

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrVMNotFound is returned when a VM definition cannot be found
var ErrVMNotFound = errors.New("vm definition not found")

// DefaultDefinitionsPath is where the definitions file lives unless overridden
const DefaultDefinitionsPath = "config/vms.json"

type ConfigLoader struct {
	defaults    Defaults
	definitions DefinitionFile
	path        string
}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{definitions: DefinitionFile{}}
}

func (cl *ConfigLoader) LoadAll(definitionsPath string) error {
	if err := cl.LoadDefaults(); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := cl.LoadDefinitions(definitionsPath); err != nil {
		return fmt.Errorf("failed to load vm definitions: %w", err)
	}

	return nil
}

func (cl *ConfigLoader) LoadDefaults() error {
	content, err := os.ReadFile("config/defaults.toml")
	if err != nil {
		if os.IsNotExist(err) {
			// An absent defaults file means built-in defaults apply.
			cl.defaults = builtinDefaults()
			return nil
		}
		return fmt.Errorf("failed to read defaults.toml: %w", err)
	}

	cl.defaults = builtinDefaults()
	if err := toml.Unmarshal(content, &cl.defaults); err != nil {
		return fmt.Errorf("failed to parse defaults.toml: %w", err)
	}

	return nil
}

func builtinDefaults() Defaults {
	return Defaults{
		VM:         VMDefaults{RootPath: `C:\VMs`, VHDPath: `C:\VHDs`, Generation: 2},
		Network:    NetworkDefaults{MACPrefix: "00:15:5d"},
		Logging:    LoggingDefaults{Level: "info"},
		PowerShell: PowerShellDefaults{TimeoutSeconds: 300},
	}
}

// LoadDefinitions reads the per-VM-name-keyed definitions file. JSON by
// default; files ending in .yaml or .yml are parsed as YAML.
func (cl *ConfigLoader) LoadDefinitions(path string) error {
	if path == "" {
		path = DefaultDefinitionsPath
	}
	cl.path = path

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cl.definitions = DefinitionFile{}
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	defs := DefinitionFile{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &defs); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(content, &defs); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	for name, def := range defs {
		if def == nil {
			def = &Definition{}
			defs[name] = def
		}
		def.Name = name
	}

	cl.definitions = defs
	return nil
}

// SaveDefinitions writes the definitions back to the file they were loaded
// from, in the same format.
func (cl *ConfigLoader) SaveDefinitions() error {
	if cl.path == "" {
		cl.path = DefaultDefinitionsPath
	}

	var content []byte
	var err error
	switch strings.ToLower(filepath.Ext(cl.path)) {
	case ".yaml", ".yml":
		content, err = yaml.Marshal(cl.definitions)
	default:
		content, err = json.MarshalIndent(cl.definitions, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode definitions: %w", err)
	}

	if dir := filepath.Dir(cl.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(cl.path, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", cl.path, err)
	}

	return nil
}

func (cl *ConfigLoader) GetDefaults() Defaults {
	return cl.defaults
}

// GetVMs returns all definitions sorted by name.
func (cl *ConfigLoader) GetVMs() []*Definition {
	vms := make([]*Definition, 0, len(cl.definitions))
	for _, def := range cl.definitions {
		vms = append(vms, def)
	}
	sort.Slice(vms, func(i, j int) bool { return vms[i].Name < vms[j].Name })
	return vms
}

func (cl *ConfigLoader) GetVM(name string) (*Definition, error) {
	def, ok := cl.definitions[name]
	if !ok {
		return nil, fmt.Errorf("vm '%s': %w", name, ErrVMNotFound)
	}
	return def, nil
}

// SetVM adds or replaces a definition. The entry key is taken from def.Name.
func (cl *ConfigLoader) SetVM(def *Definition) {
	cl.definitions[def.Name] = def
}

func (cl *ConfigLoader) RemoveVM(name string) error {
	if _, ok := cl.definitions[name]; !ok {
		return fmt.Errorf("vm '%s': %w", name, ErrVMNotFound)
	}
	delete(cl.definitions, name)
	return nil
}
