// Package netmap reads the per-host network mapping CSV: one row per
// physical adapter, describing the name, switch assignment, VLAN, address
// and feature flags the adapter should end up with.
package netmap

import (
	"encoding/csv"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
)

type Mapping struct {
	Host         string
	AdapterName  string
	NewName      string
	SwitchName   string
	VLANID       int
	IPAddress    string
	PrefixLength int
	Gateway      string
	RDMA         bool
	JumboFrames  bool
	TrafficClass string
	Priority     int
	BandwidthPct int
}

// Load reads a mapping CSV. The header row names the columns; column order
// does not matter and unknown columns are ignored.
func Load(path string) ([]Mapping, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping file: %w", err)
	}
	defer file.Close()

	mappings, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return mappings, nil
}

// Parse reads mapping rows from r. Exposed separately so tests and callers
// holding CSV content in memory do not need a file.
func Parse(r io.Reader) ([]Mapping, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for _, required := range []string{"host", "adapter"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("mapping file is missing required column '%s'", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var mappings []Mapping
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		m := Mapping{
			Host:         field(record, "host"),
			AdapterName:  field(record, "adapter"),
			NewName:      field(record, "name"),
			SwitchName:   field(record, "switch"),
			IPAddress:    field(record, "ip"),
			Gateway:      field(record, "gateway"),
			TrafficClass: field(record, "traffic_class"),
		}

		if m.Host == "" || m.AdapterName == "" {
			return nil, fmt.Errorf("line %d: host and adapter are required", line)
		}

		if v := field(record, "vlan"); v != "" {
			m.VLANID, err = strconv.Atoi(v)
			if err != nil || m.VLANID < 0 || m.VLANID > 4094 {
				return nil, fmt.Errorf("line %d: invalid vlan '%s'", line, v)
			}
		}

		if m.IPAddress != "" {
			if net.ParseIP(m.IPAddress) == nil {
				return nil, fmt.Errorf("line %d: invalid ip '%s'", line, m.IPAddress)
			}
			prefix := field(record, "prefix")
			if prefix == "" {
				return nil, fmt.Errorf("line %d: ip without prefix", line)
			}
			m.PrefixLength, err = strconv.Atoi(prefix)
			if err != nil || m.PrefixLength < 1 || m.PrefixLength > 32 {
				return nil, fmt.Errorf("line %d: invalid prefix '%s'", line, prefix)
			}
		}

		if m.Gateway != "" && net.ParseIP(m.Gateway) == nil {
			return nil, fmt.Errorf("line %d: invalid gateway '%s'", line, m.Gateway)
		}

		if m.RDMA, err = parseFlag(field(record, "rdma")); err != nil {
			return nil, fmt.Errorf("line %d: rdma: %w", line, err)
		}
		if m.JumboFrames, err = parseFlag(field(record, "jumbo")); err != nil {
			return nil, fmt.Errorf("line %d: jumbo: %w", line, err)
		}

		if prio := field(record, "priority"); prio != "" {
			m.Priority, err = strconv.Atoi(prio)
			if err != nil || m.Priority < 0 || m.Priority > 7 {
				return nil, fmt.Errorf("line %d: invalid priority '%s'", line, prio)
			}
		}

		if pct := field(record, "bandwidth_pct"); pct != "" {
			m.BandwidthPct, err = strconv.Atoi(pct)
			if err != nil || m.BandwidthPct < 0 || m.BandwidthPct > 100 {
				return nil, fmt.Errorf("line %d: invalid bandwidth_pct '%s'", line, pct)
			}
		}

		mappings = append(mappings, m)
	}

	return mappings, nil
}

// ForHost filters mappings down to a single host, case-insensitively.
func ForHost(mappings []Mapping, host string) []Mapping {
	var out []Mapping
	for _, m := range mappings {
		if strings.EqualFold(m.Host, host) {
			out = append(out, m)
		}
	}
	return out
}

// Hosts returns the distinct hosts in file order.
func Hosts(mappings []Mapping) []string {
	seen := make(map[string]bool)
	var hosts []string
	for _, m := range mappings {
		key := strings.ToLower(m.Host)
		if !seen[key] {
			seen[key] = true
			hosts = append(hosts, m.Host)
		}
	}
	return hosts
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "0", "false", "no", "n":
		return false, nil
	case "1", "true", "yes", "y":
		return true, nil
	default:
		return false, fmt.Errorf("invalid boolean '%s'", s)
	}
}
