package cassandra

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// DialOptions configures Connect (SPEC_FULL.md §4.K).
type DialOptions struct {
	Address string

	// Protocol selects the wire dialect; defaults to ProtocolVersion2.
	Protocol ProtocolVersion

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Compression CompressionAlgorithm
	Authenticator Authenticator
	Tracing       bool

	Registerer prometheus.Registerer
	Logger     Logger
}

const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

func (o *DialOptions) setDefaults() error {
	if o.Address == "" {
		return errors.New("cql: DialOptions.Address is required")
	}
	if o.Protocol == 0 {
		o.Protocol = ProtocolVersion2
	}
	if o.Protocol != ProtocolVersion1 && o.Protocol != ProtocolVersion2 {
		return errors.Errorf("cql: unsupported protocol version %v", o.Protocol)
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = defaultDialTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = defaultReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.Logger == nil {
		o.Logger = NopLogger()
	}
	return nil
}

// Connect dials the transport and returns a Session in the Fresh state.
// It does not block on startup(); the first request triggers the
// handshake per spec.md §4.E.
func Connect(ctx context.Context, opts DialOptions) (*Session, error) {
	if err := opts.setDefaults(); err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", opts.Address)
	if err != nil {
		return nil, errors.Wrap(err, "cql: dial")
	}

	metrics := newRequestMetrics(opts.Registerer)
	metrics.connectionOpened()

	s := &Session{
		stream:     newConnStream(conn, opts.ReadTimeout, opts.WriteTimeout),
		protocol:   opts.Protocol,
		compressor: newCompressor(opts.Compression),
		tracing:    opts.Tracing,
		auth:       opts.Authenticator,
		logger:     opts.Logger,
		metrics:    metrics,
		state:      stateFresh,
	}
	return s, nil
}
