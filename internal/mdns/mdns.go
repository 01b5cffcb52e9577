// Package mdns advertises the skyrad HTTP API over DNS-SD and browses for
// other daemons on the local network.
package mdns

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceName is the DNS-SD service type of the HTTP API.
	ServiceName = "_skyrad._tcp"
	domain      = "local."
)

// Advertiser publishes the daemon until Shutdown is called.
type Advertiser struct {
	server *zeroconf.Server
	logger *slog.Logger
}

// Advertise registers instance on port with the given TXT records.
func Advertise(logger *slog.Logger, instance string, port int, txt []string) (*Advertiser, error) {
	if port <= 0 {
		return nil, fmt.Errorf("mdns: invalid port %d", port)
	}
	srv, err := zeroconf.Register(instance, ServiceName, domain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns: register %s: %w", instance, err)
	}
	logger.Info("mdns: advertising", "instance", instance, "service", ServiceName, "port", port)
	return &Advertiser{server: srv, logger: logger}, nil
}

// Shutdown withdraws the advertisement.
func (a *Advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	a.logger.Info("mdns: advertisement withdrawn")
}

// PortFromListenAddress extracts the port of an address such as ":9124".
func PortFromListenAddress(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 {
		return 0, fmt.Errorf("invalid port in %q", addr)
	}
	return port, nil
}

// Instance is one daemon found by Browse.
type Instance struct {
	Name  string            `json:"name"`
	Host  string            `json:"host"`
	Addrs []string          `json:"addrs"`
	Port  int               `json:"port"`
	Text  map[string]string `json:"text,omitempty"`
}

// URL returns the base HTTP URL of the instance, preferring IPv4.
func (i Instance) URL() string {
	host := i.Host
	if len(i.Addrs) > 0 {
		host = i.Addrs[0]
	}
	return "http://" + net.JoinHostPort(strings.TrimSuffix(host, "."), strconv.Itoa(i.Port))
}

// Browse listens for daemons for the given duration.
func Browse(ctx context.Context, wait time.Duration) ([]Instance, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns: resolver: %w", err)
	}

	browseCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 8)
	if err := resolver.Browse(browseCtx, ServiceName, domain, entries); err != nil {
		return nil, fmt.Errorf("mdns: browse: %w", err)
	}

	seen := make(map[string]Instance)
	for {
		select {
		case <-browseCtx.Done():
			return sortedInstances(seen), nil
		case entry, ok := <-entries:
			if !ok {
				return sortedInstances(seen), nil
			}
			if inst, valid := fromEntry(entry); valid {
				seen[inst.Name] = inst
			}
		}
	}
}

func sortedInstances(m map[string]Instance) []Instance {
	out := make([]Instance, 0, len(m))
	for _, inst := range m {
		out = append(out, inst)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

func fromEntry(e *zeroconf.ServiceEntry) (Instance, bool) {
	if e == nil || e.Port == 0 || (len(e.AddrIPv4) == 0 && len(e.AddrIPv6) == 0 && e.HostName == "") {
		return Instance{}, false
	}
	inst := Instance{
		Name: UnescapeLabel(e.Instance),
		Host: e.HostName,
		Port: e.Port,
	}
	for _, ip := range e.AddrIPv4 {
		inst.Addrs = append(inst.Addrs, ip.String())
	}
	for _, ip := range e.AddrIPv6 {
		inst.Addrs = append(inst.Addrs, ip.String())
	}
	for _, kv := range e.Text {
		k, v, _ := strings.Cut(kv, "=")
		if k == "" {
			continue
		}
		if inst.Text == nil {
			inst.Text = make(map[string]string)
		}
		inst.Text[k] = v
	}
	return inst, true
}

// UnescapeLabel undoes DNS-SD label escaping (RFC 6763 section 4.3), both
// `\.` style and `\DDD` decimal escapes.
func UnescapeLabel(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		if i+3 < len(s) && isDigit(s[i+1]) && isDigit(s[i+2]) && isDigit(s[i+3]) {
			if val, err := strconv.Atoi(s[i+1 : i+4]); err == nil && val < 256 {
				b.WriteByte(byte(val))
				i += 3
				continue
			}
		}
		i++
		b.WriteByte(s[i])
	}
	return b.String()
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
