package hostfunc

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const DefaultDNSTimeout = 5 * time.Second

type DNSConfig struct {
	// Nameserver is host:port. Empty uses the first server in /etc/resolv.conf.
	Nameserver string
	Timeout    time.Duration
}

// DNS resolves records on behalf of guest code.
type DNS struct {
	cfg DNSConfig
}

func NewDNS(cfg DNSConfig) *DNS {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultDNSTimeout
	}
	return &DNS{cfg: cfg}
}

func (d *DNS) Resolve(ctx context.Context, q DNSQuery) (DNSResponse, error) {
	server := d.cfg.Nameserver
	if server == "" {
		conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil || len(conf.Servers) == 0 {
			return DNSResponse{}, &ExecError{Kind: ExecTransport, Message: "no nameserver configured", Cause: err}
		}
		server = net.JoinHostPort(conf.Servers[0], conf.Port)
	}

	timeout := q.Timeout
	if timeout <= 0 {
		timeout = d.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(q.Name), q.Type)
	msg.RecursionDesired = true

	client := &dns.Client{Timeout: timeout}
	in, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		var netErr net.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return DNSResponse{}, &ExecError{Kind: ExecTimeout, Message: timeout.String(), Cause: err}
		}
		return DNSResponse{}, &ExecError{Kind: ExecTransport, Message: err.Error(), Cause: err}
	}

	resp := DNSResponse{Rcode: dns.RcodeToString[in.Rcode]}
	for _, rr := range in.Answer {
		hdr := rr.Header()
		resp.Answers = append(resp.Answers, DNSAnswer{
			Name:  hdr.Name,
			Type:  dns.TypeToString[hdr.Rrtype],
			TTL:   hdr.Ttl,
			Value: rrValue(rr),
		})
	}
	return resp, nil
}

// rrValue strips the header from the presentation form of rr.
func rrValue(rr dns.RR) string {
	switch r := rr.(type) {
	case *dns.A:
		return r.A.String()
	case *dns.AAAA:
		return r.AAAA.String()
	case *dns.CNAME:
		return r.Target
	case *dns.NS:
		return r.Ns
	case *dns.PTR:
		return r.Ptr
	case *dns.MX:
		return r.Mx
	case *dns.TXT:
		return strings.Join(r.Txt, "")
	}
	return strings.TrimPrefix(rr.String(), rr.Header().String())
}
