package cassandra

import (
	"io"
	"net"
	"time"
)

// ByteStream is the minimal duplex transport the codec needs: a
// length-known read, a full write, a close, and a connectedness query.
// Pooling and dialing beyond this live above the core.
type ByteStream interface {
	// ReadFull reads exactly len(p) bytes or returns an error.
	ReadFull(p []byte) error
	// WriteFull writes all of p or returns an error.
	WriteFull(p []byte) error
	Close() error
	Closed() bool
}

// connStream adapts a net.Conn to ByteStream.
type connStream struct {
	conn   net.Conn
	closed bool

	readTimeout  time.Duration
	writeTimeout time.Duration
}

func newConnStream(conn net.Conn, readTimeout, writeTimeout time.Duration) *connStream {
	return &connStream{conn: conn, readTimeout: readTimeout, writeTimeout: writeTimeout}
}

func (s *connStream) ReadFull(p []byte) error {
	if s.readTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return err
		}
	}
	_, err := io.ReadFull(s.conn, p)
	return err
}

func (s *connStream) WriteFull(p []byte) error {
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	n := 0
	for n < len(p) {
		w, err := s.conn.Write(p[n:])
		if err != nil {
			return err
		}
		n += w
	}
	return nil
}

func (s *connStream) Close() error {
	s.closed = true
	return s.conn.Close()
}

func (s *connStream) Closed() bool {
	return s.closed
}
