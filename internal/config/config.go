// Package config loads the stack's YAML configuration file: one entry
// per interface (name, address, MAC, and for non-loopback interfaces
// the simulated link's listen address and neighbor list).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"vnet/pkg/addr"
)

// Neighbor is one directly-reachable peer of an interface: its MAC and
// the UDP endpoint that simulates the physical link to it.
type Neighbor struct {
	MAC     string `yaml:"mac"`
	UDPAddr string `yaml:"udp_addr"`
}

// Interface describes one adapter this stack brings up. Exactly one
// entry should have Loopback set; ListenAddr/Neighbors are ignored for
// it.
type Interface struct {
	Name      string     `yaml:"name"`
	IP        string     `yaml:"ip"`
	MAC       string     `yaml:"mac"`
	Loopback  bool       `yaml:"loopback"`
	ListenAddr string    `yaml:"listen_addr"`
	Neighbors []Neighbor `yaml:"neighbors"`
}

// Config is the top-level shape of a stack's YAML config file.
type Config struct {
	Interfaces []Interface `yaml:"interfaces"`
}

// DefaultNICAddress is the address a standalone stack's primary
// interface takes when it is brought up without a config file.
const DefaultNICAddress = "192.168.5.2"

// Default returns the configuration used when no config file is
// given: a loopback interface plus one primary NIC at
// DefaultNICAddress with no neighbors, suitable for a standalone
// host with nothing else to talk to on its simulated segment.
func Default() Config {
	return Config{
		Interfaces: []Interface{
			{Name: "lo", IP: "127.0.0.1", Loopback: true},
			{
				Name:       "eth0",
				IP:         DefaultNICAddress,
				MAC:        "02:00:00:00:00:01",
				ListenAddr: "127.0.0.1:0",
			},
		},
	}
}

// Load reads and parses path, or returns Default() if path is empty.
func Load(path string) (Config, error) {
	if path == "" {
		c := Default()
		if err := c.validate(); err != nil {
			return Config{}, err
		}
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	if len(c.Interfaces) == 0 {
		return fmt.Errorf("config: no interfaces defined")
	}
	haveLoopback := false
	for _, iface := range c.Interfaces {
		if _, err := addr.ParseIPv4(iface.IP); err != nil {
			return fmt.Errorf("config: interface %s: invalid ip %q: %w", iface.Name, iface.IP, err)
		}
		if iface.Loopback {
			haveLoopback = true
			continue
		}
		if iface.ListenAddr == "" {
			return fmt.Errorf("config: interface %s: listen_addr required for non-loopback adapters", iface.Name)
		}
	}
	if !haveLoopback {
		return fmt.Errorf("config: no loopback interface defined")
	}
	return nil
}

// ParseMAC parses a colon-hex MAC string into addr.MACAddress.
func ParseMAC(s string) (addr.MACAddress, error) {
	var m addr.MACAddress
	var b [6]int
	n, err := fmt.Sscanf(s, "%02x:%02x:%02x:%02x:%02x:%02x", &b[0], &b[1], &b[2], &b[3], &b[4], &b[5])
	if err != nil || n != 6 {
		return m, fmt.Errorf("config: invalid mac %q", s)
	}
	for i, v := range b {
		m[i] = byte(v)
	}
	return m, nil
}
