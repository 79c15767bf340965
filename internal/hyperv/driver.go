// Package hyperv talks to Hyper-V hosts and the surrounding Windows
// services (failover clustering, DHCP, DNS, AD, WDS, SCCM) through an
// embedded PowerShell interface script. Every call runs the script with a
// verb and positional arguments and decodes a single JSON envelope from
// stdout.
package hyperv

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type result struct {
	Success      bool
	ErrorMessage string
	Payload      json.RawMessage
}

func (r *result) decode(v interface{}) error {
	if len(r.Payload) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(r.Payload, v)
}

const scriptVersion = "0.3"

var scriptName = "hvmanage-" + scriptVersion + ".ps1"

//go:embed assets/hvmanage.ps1
var script string

type Driver struct {
	powershellPath string
	scriptPath     string
	timeout        time.Duration
	log            *logrus.Logger

	// checked caches hosts whose management stack has been verified, so a
	// run touches each host's VMMS at most once (spec: persistent sessions
	// keyed by hostname).
	mu      sync.Mutex
	checked map[string]bool
}

// NewDriver locates PowerShell, installs the interface script, and returns
// a Driver ready to target any host.
func NewDriver(log *logrus.Logger, timeout time.Duration) (*Driver, error) {
	powershellPath, err := findPowerShell()
	if err != nil {
		return nil, err
	}

	scriptDir, err := scriptCacheDir()
	if err != nil {
		return nil, err
	}

	scriptPath, err := installScript(scriptDir)
	if err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &Driver{
		powershellPath: powershellPath,
		scriptPath:     scriptPath,
		timeout:        timeout,
		log:            log,
		checked:        make(map[string]bool),
	}, nil
}

func findPowerShell() (string, error) {
	// Windows PowerShell first, since the Hyper-V and clustering modules
	// ship with it
	toolpath, err := exec.LookPath("powershell.exe")
	if err == nil {
		return toolpath, nil
	}

	toolpath, err = exec.LookPath("pwsh.exe")
	if err == nil {
		return toolpath, nil
	}

	toolpath, err = exec.LookPath("pwsh")
	if err == nil {
		return toolpath, nil
	}

	return "", errors.New("PowerShell not found")
}

func scriptCacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("could not determine cache directory: %w", err)
	}

	dir := filepath.Join(base, "hvadm")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("could not create cache directory: %w", err)
	}

	return dir, nil
}

// installScript writes the embedded interface script into dir if this
// version is not already present, and returns its path.
func installScript(dir string) (string, error) {
	scriptPath := filepath.Join(dir, scriptName)
	if _, err := os.Stat(scriptPath); err == nil {
		return scriptPath, nil
	}

	if err := os.WriteFile(scriptPath, []byte(script), 0644); err != nil {
		return "", fmt.Errorf("could not write interface script: %w", err)
	}

	return scriptPath, nil
}

// CheckHost verifies that the target host answers and has the Hyper-V
// management stack available. Results are cached for the process lifetime.
func (d *Driver) CheckHost(ctx context.Context, host string) error {
	d.mu.Lock()
	if d.checked[host] {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	out, err := d.run(ctx, host, "checkhost")
	if err != nil {
		return fmt.Errorf("could not reach host '%s': %w", host, err)
	}
	if !out.Success {
		return fmt.Errorf("host '%s' failed verification: %s", host, out.ErrorMessage)
	}

	d.mu.Lock()
	d.checked[host] = true
	d.mu.Unlock()

	return nil
}

func (d *Driver) run(ctx context.Context, host string, verb string, args ...string) (*result, error) {
	if host == "" {
		host = LocalHost
	}

	powershellArgs := []string{
		"-NoProfile",
		"-NonInteractive",
		"-File",
		d.scriptPath,
		verb,
		host,
	}
	powershellArgs = append(powershellArgs, args...)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	d.log.WithFields(logrus.Fields{
		"host": host,
		"verb": verb,
	}).Debug("running interface script")

	cmd := exec.CommandContext(ctx, d.powershellPath, powershellArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%s failed: %v: %s", verb, err, stderr.String())
		}
		return nil, fmt.Errorf("%s failed: %w", verb, err)
	}

	out := &result{}
	if err := json.Unmarshal(stdout.Bytes(), out); err != nil {
		return nil, fmt.Errorf("%s returned malformed output: %w", verb, err)
	}

	return out, nil
}

// runChecked wraps run and turns an unsuccessful envelope into an error
// carrying the script's message.
func (d *Driver) runChecked(ctx context.Context, host string, verb string, args ...string) (*result, error) {
	out, err := d.run(ctx, host, verb, args...)
	if err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("%s failed on '%s': %s", verb, host, out.ErrorMessage)
	}
	return out, nil
}
