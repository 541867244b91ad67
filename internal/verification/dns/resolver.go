// Package dns wraps TXT record resolution behind an interface so the
// verification service can be tested without the network.
package dns

import (
	"context"
	"errors"
	"net"
	"time"
)

// Lookup failure classes the verification service maps to user-facing
// messages. Anything else is a generic resolver failure.
var (
	ErrNoRecords = errors.New("no TXT records found")
	ErrTimeout   = errors.New("DNS lookup timed out")
)

// Resolver resolves the TXT records for a hostname. Each record is a list of
// string parts whose concatenation is the record value.
type Resolver interface {
	LookupTXT(ctx context.Context, hostname string) ([][]string, error)
}

// NetResolver resolves TXT records through net.Resolver with a bounded
// timeout. Cancellation is structured: the lookup context is cancelled when
// the deadline passes, so the losing lookup is torn down rather than ignored.
type NetResolver struct {
	resolver *net.Resolver
	timeout  time.Duration
}

// New constructs a resolver with the given per-lookup timeout.
func New(timeout time.Duration) *NetResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NetResolver{
		resolver: net.DefaultResolver,
		timeout:  timeout,
	}
}

func (r *NetResolver) LookupTXT(ctx context.Context, hostname string) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	records, err := r.resolver.LookupTXT(ctx, hostname)
	if err != nil {
		return nil, translateLookupError(err)
	}

	// net.Resolver concatenates multi-part records already; wrap each value
	// as a single-part record to satisfy the interface shape.
	out := make([][]string, 0, len(records))
	for _, record := range records {
		out = append(out, []string{record})
	}
	return out, nil
}

func translateLookupError(err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return ErrNoRecords
		}
		if dnsErr.IsTimeout {
			return ErrTimeout
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}
