package s7

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// DiscoveredDevice is one CPU found by Discover/DiscoverSubnet.
type DiscoveredDevice struct {
	IP          net.IP
	Port        uint16
	Rack        int
	Slot        int
	ProductName string
	Family      Family
}

// Discover probes every address in ips for an S7 CPU on defaultS7Port,
// trying the two most common rack/slot pairs (0/0 for S7-1200/1500, 0/2
// for S7-300/400) and running the full handshake plus CPU identification
// through a throwaway Client — so a discovered device's ProductName and
// Family come from the same code path a caller's own Connect uses, not a
// second hand-rolled implementation of it.
func Discover(ips []net.IP, timeout time.Duration, concurrency int) []DiscoveredDevice {
	if len(ips) == 0 {
		return nil
	}
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	if concurrency <= 0 {
		concurrency = 20
	}

	var (
		results []DiscoveredDevice
		mu      sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, concurrency)
	)

	for _, ip := range ips {
		wg.Add(1)
		sem <- struct{}{}
		go func(ip net.IP) {
			defer wg.Done()
			defer func() { <-sem }()
			if device := probeS7(ip, timeout); device != nil {
				mu.Lock()
				results = append(results, *device)
				mu.Unlock()
			}
		}(ip)
	}
	wg.Wait()
	return results
}

// DiscoverSubnet scans every host address in cidr (e.g. "192.168.1.0/24").
func DiscoverSubnet(cidr string, timeout time.Duration, concurrency int) ([]DiscoveredDevice, error) {
	ips, err := expandCIDR(cidr)
	if err != nil {
		return nil, err
	}
	return Discover(ips, timeout, concurrency), nil
}

var rackSlotCandidates = [][2]int{{0, 0}, {0, 2}}

func probeS7(ip net.IP, timeout time.Duration) *DiscoveredDevice {
	for _, rs := range rackSlotCandidates {
		ep := Endpoint{Host: ip.String(), Rack: rs[0], Slot: rs[1], SocketTimeout: timeout}
		c := NewClient(ep)
		if err := c.Connect(); err != nil {
			continue
		}
		device := &DiscoveredDevice{
			IP:     ip,
			Port:   uint16(c.ep.Port),
			Rack:   rs[0],
			Slot:   rs[1],
			Family: c.Family(),
		}
		if info, err := c.ReadCPUInfo(); err == nil {
			device.ProductName = info.ModuleTypeName
		}
		c.Close()
		return device
	}
	return nil
}

// expandCIDR expands CIDR notation into the list of addresses it covers.
// For prefixes of /24 or shorter it skips every address whose last octet
// is 0 or 255 (for a /24, exactly the network and broadcast addresses);
// longer prefixes keep every address.
func expandCIDR(cidr string) ([]net.IP, error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR: %w", err)
	}

	var ips []net.IP
	for ip := ip.Mask(ipnet.Mask); ipnet.Contains(ip); inc(ip) {
		ones, bits := ipnet.Mask.Size()
		if bits-ones >= 8 && (ip[len(ip)-1] == 0 || ip[len(ip)-1] == 255) {
			continue
		}
		ipCopy := make(net.IP, len(ip))
		copy(ipCopy, ip)
		ips = append(ips, ipCopy)
	}
	return ips, nil
}

func inc(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}
