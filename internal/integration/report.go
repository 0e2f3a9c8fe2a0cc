package integration

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// OpenPort is one open port found in an nmap XML report.
type OpenPort struct {
	Host     string
	Port     int
	Protocol string
	Service  string
	Product  string
	Version  string
}

type nmapRun struct {
	Hosts []struct {
		Addresses []struct {
			Addr string `xml:"addr,attr"`
		} `xml:"address"`
		Ports []struct {
			Protocol string `xml:"protocol,attr"`
			PortID   int    `xml:"portid,attr"`
			State    struct {
				State string `xml:"state,attr"`
			} `xml:"state"`
			Service struct {
				Name    string `xml:"name,attr"`
				Product string `xml:"product,attr"`
				Version string `xml:"version,attr"`
			} `xml:"service"`
		} `xml:"ports>port"`
	} `xml:"host"`
}

// ParseNmapXML returns the open ports listed in an nmap -oX report.
func ParseNmapXML(data []byte) ([]OpenPort, error) {
	var run nmapRun
	if err := xml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parsing nmap XML: %w", err)
	}
	var ports []OpenPort
	for _, h := range run.Hosts {
		host := ""
		if len(h.Addresses) > 0 {
			host = h.Addresses[0].Addr
		}
		for _, p := range h.Ports {
			if p.State.State != "open" {
				continue
			}
			ports = append(ports, OpenPort{
				Host:     host,
				Port:     p.PortID,
				Protocol: p.Protocol,
				Service:  p.Service.Name,
				Product:  p.Service.Product,
				Version:  p.Service.Version,
			})
		}
	}
	return ports, nil
}

var gobusterHit = regexp.MustCompile(`^(\S+)\s+\(Status:\s*(\d{3})\)`)

// ParseGobusterLog returns "path (status)" entries from a gobuster output file.
func ParseGobusterLog(data []byte) []string {
	var hits []string
	for _, line := range strings.Split(string(data), "\n") {
		if m := gobusterHit.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			hits = append(hits, fmt.Sprintf("%s (%s)", m[1], m[2]))
		}
	}
	return hits
}

// report summarises which tool artifacts exist for a target and writes a
// markdown report under the report directory.
func (r *toolRunner) report(_ context.Context, req ToolRequest) (*ToolRun, error) {
	safe := SafeTargetName(req.Target)
	logDir := r.TargetLogDir(req.Target)
	nmapPath := filepath.Join(logDir, "nmap_scan.xml")
	gobusterPath := filepath.Join(logDir, "gobuster_scan.log")
	sqlmapPath := filepath.Join(logDir, "sqlmap")

	var b strings.Builder
	fmt.Fprintf(&b, "# Fenrir audit report: `%s`\n\n", req.Target)
	fmt.Fprintf(&b, "*Generated %s*\n\n", r.cfg.Now().Format("2006-01-02 15:04:05"))

	b.WriteString("## 1. Port scan (nmap)\n\n")
	if data, err := os.ReadFile(nmapPath); err != nil {
		fmt.Fprintf(&b, "* No nmap scan found at `%s`.\n", nmapPath)
	} else if ports, err := ParseNmapXML(data); err != nil {
		fmt.Fprintf(&b, "* nmap scan at `%s` could not be parsed: %v\n", nmapPath, err)
	} else if len(ports) == 0 {
		fmt.Fprintf(&b, "* nmap scan at `%s` found no open ports.\n", nmapPath)
	} else {
		fmt.Fprintf(&b, "* nmap scan found at `%s`.\n\n", nmapPath)
		b.WriteString("| Host | Port | Service | Version |\n|---|---|---|---|\n")
		for _, p := range ports {
			version := strings.TrimSpace(p.Product + " " + p.Version)
			fmt.Fprintf(&b, "| %s | %d/%s | %s | %s |\n", p.Host, p.Port, p.Protocol, p.Service, version)
		}
	}

	b.WriteString("\n## 2. Directory scan (gobuster)\n\n")
	if data, err := os.ReadFile(gobusterPath); err != nil {
		fmt.Fprintf(&b, "* No gobuster scan found at `%s`.\n", gobusterPath)
	} else if hits := ParseGobusterLog(data); len(hits) == 0 {
		fmt.Fprintf(&b, "* gobuster scan at `%s` found nothing.\n", gobusterPath)
	} else {
		fmt.Fprintf(&b, "* gobuster scan found at `%s`:\n", gobusterPath)
		for _, h := range hits {
			fmt.Fprintf(&b, "  * `%s`\n", h)
		}
	}

	b.WriteString("\n## 3. Injection scan (sqlmap)\n\n")
	if entries, err := os.ReadDir(sqlmapPath); err != nil {
		fmt.Fprintf(&b, "* No sqlmap output found at `%s`.\n", sqlmapPath)
	} else {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "* sqlmap output found at `%s` (%d entries).\n", sqlmapPath, len(names))
		for _, n := range names {
			fmt.Fprintf(&b, "  * `%s`\n", n)
		}
	}

	dir, err := r.ensureDir(r.cfg.ReportDir)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, safe+"_report.md")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return nil, fmt.Errorf("writing report %s: %w", path, err)
	}
	return &ToolRun{OutputPath: path}, nil
}
