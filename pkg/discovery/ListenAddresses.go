// Package discovery with the network addresses a local server is reachable on
package discovery

import (
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
)

// GetInterfaceIPs returns the IPv4 addresses of the active network interfaces, excluding loopback
func GetInterfaceIPs() ([]net.IP, error) {
	result := make([]net.IP, 0)
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		// ignore interfaces without address
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ifNet, ok := a.(*net.IPNet)
			if !ok || ifNet.IP.To4() == nil || ifNet.IP.IsLoopback() {
				continue
			}
			logrus.Debugf("GetInterfaceIPs: Found network %v : %s", iface.Name, ifNet)
			result = append(result, ifNet.IP)
		}
	}
	return result, nil
}

// ListenURLs returns the http URLs a server listening on address and port can be reached at.
// A server on all interfaces is reachable on each interface address and on localhost.
//  address the server listens on, "" or 0.0.0.0 for all interfaces
//  port the server listens on
func ListenURLs(address string, port int) []string {
	if address != "" && address != "0.0.0.0" && address != "::" {
		return []string{fmt.Sprintf("http://%s", net.JoinHostPort(address, fmt.Sprint(port)))}
	}
	urls := []string{fmt.Sprintf("http://localhost:%d", port)}
	ips, err := GetInterfaceIPs()
	if err != nil {
		logrus.Warningf("ListenURLs: unable to list network interfaces: %s", err)
		return urls
	}
	for _, ip := range ips {
		urls = append(urls, fmt.Sprintf("http://%s:%d", ip, port))
	}
	return urls
}
