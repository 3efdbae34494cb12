// Package ratelimit throttles login attempts per client IP.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/portfolio/internal/utils/collectionutils"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

// Limiter holds one token bucket per key.
type Limiter struct {
	visitors *collectionutils.SafeMap[string, *visitor]
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

func New(perSecond float64, burst int) *Limiter {
	if perSecond <= 0 {
		perSecond = 0.5
	}
	if burst <= 0 {
		burst = 5
	}
	return &Limiter{
		visitors: collectionutils.New[string, *visitor](),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *Limiter) Allow(key string) bool {
	v := l.visitors.GetOrCreate(key, func() *visitor {
		return &visitor{limiter: rate.NewLimiter(l.rate, l.burst)}
	})

	now := l.now()
	v.mu.Lock()
	v.lastSeen = now
	v.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}

// Prune drops visitors idle for longer than idle.
func (l *Limiter) Prune(idle time.Duration) {
	cutoff := l.now().Add(-idle)
	l.visitors.DeleteFunc(func(_ string, v *visitor) bool {
		v.mu.Lock()
		defer v.mu.Unlock()
		return v.lastSeen.Before(cutoff)
	})
}

func (l *Limiter) Len() int {
	return l.visitors.Len()
}

// Proxies resolves the client address of requests that may have passed
// through trusted reverse proxies.
type Proxies struct {
	nets []*net.IPNet
}

// ParseProxies accepts IP addresses and CIDR ranges.
func ParseProxies(list []string) (*Proxies, error) {
	p := &Proxies{}
	for _, entry := range list {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, xerrors.Newf("invalid proxy address %q", entry)
			}
			bits := 8 * net.IPv6len
			if ip.To4() != nil {
				ip, bits = ip.To4(), 8*net.IPv4len
			}
			p.nets = append(p.nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, xerrors.Newf("invalid proxy range %q: %w", entry, err)
		}
		p.nets = append(p.nets, ipNet)
	}
	return p, nil
}

func (p *Proxies) trusted(addr string) bool {
	if p == nil {
		return false
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range p.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the peer address. X-Forwarded-For is read only when the
// peer is a trusted proxy, walking the hops from the right and stopping at
// the first address that is not trusted.
func (p *Proxies) ClientIP(r *http.Request) string {
	client := remoteHost(r)
	if !p.trusted(client) {
		return client
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if net.ParseIP(hop) == nil {
			break
		}
		client = hop
		if !p.trusted(hop) {
			break
		}
	}
	return client
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
