package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/ruteri/host-directory/interfaces"
)

// DefaultResolvConf is where the default server is read from.
const DefaultResolvConf = "/etc/resolv.conf"

// ErrNoServer is returned when no nameserver could be determined.
var ErrNoServer = errors.New("no DNS server configured")

// DNSChecker implements interfaces.NameChecker with plain DNS queries.
type DNSChecker struct {
	log    *slog.Logger
	client *dns.Client
	server string
}

var _ interfaces.NameChecker = (*DNSChecker)(nil)

// NewDNSChecker creates a checker querying server ("host" or "host:port").
func NewDNSChecker(server string, timeout time.Duration, log *slog.Logger) (*DNSChecker, error) {
	if server == "" {
		return nil, ErrNoServer
	}
	if log == nil {
		log = slog.Default()
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}

	return &DNSChecker{
		log:    log,
		client: &dns.Client{Net: "udp", Timeout: timeout},
		server: server,
	}, nil
}

// ServerFromResolvConf returns the first nameserver listed in path as host:port.
func ServerFromResolvConf(path string) (string, error) {
	cfg, err := dns.ClientConfigFromFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if len(cfg.Servers) == 0 {
		return "", ErrNoServer
	}
	return net.JoinHostPort(cfg.Servers[0], cfg.Port), nil
}

// Server returns the address queries are sent to.
func (c *DNSChecker) Server() string {
	return c.server
}

// Exists reports whether fqdn has an A or AAAA record.
func (c *DNSChecker) Exists(ctx context.Context, fqdn string) (bool, error) {
	name := dns.Fqdn(strings.ToLower(fqdn))
	if _, ok := dns.IsDomainName(name); !ok {
		return false, fmt.Errorf("invalid domain name %q", fqdn)
	}

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		found, err := c.query(ctx, name, qtype)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}

	c.log.Debug("name has no address records", "fqdn", fqdn, "server", c.server)
	return false, nil
}

func (c *DNSChecker) query(ctx context.Context, name string, qtype uint16) (bool, error) {
	m := new(dns.Msg)
	m.SetQuestion(name, qtype)
	m.RecursionDesired = true

	in, _, err := c.client.ExchangeContext(ctx, m, c.server)
	if err != nil {
		c.log.Error("DNS query failed", "name", name, "type", dns.TypeToString[qtype], "err", err)
		return false, fmt.Errorf("querying %s for %s: %w", c.server, name, err)
	}

	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return false, nil
	default:
		return false, fmt.Errorf("querying %s for %s: %s", c.server, name, dns.RcodeToString[in.Rcode])
	}

	for _, answer := range in.Answer {
		switch answer.(type) {
		case *dns.A, *dns.AAAA:
			return true, nil
		}
	}
	return false, nil
}
