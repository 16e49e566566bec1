// Command cqlcat is a minimal smoke-test client over the cassandra
// package: dial a node, run OPTIONS, and optionally a QUERY, printing
// whatever comes back. It is not a general query facade (that stays out
// of scope per spec.md §1) — just enough wiring to exercise the core
// against a real node.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-kit/log"

	"github.com/mlindqvist/cassgo/cassandra"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9042", "node address")
	query := flag.String("query", "", "optional CQL query to run")
	compression := flag.String("compression", "", "compression algorithm: lz4, snappy, or empty for none")
	v1 := flag.Bool("v1", false, "use protocol version 1 instead of 2")
	flag.Parse()

	logger := log.NewLogfmtLogger(os.Stderr)

	protocol := cassandra.ProtocolVersion2
	if *v1 {
		protocol = cassandra.ProtocolVersion1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session, err := cassandra.Connect(ctx, cassandra.DialOptions{
		Address:     *addr,
		Protocol:    protocol,
		Compression: cassandra.CompressionAlgorithm(*compression),
		Logger:      logger,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(1)
	}
	defer session.Close()

	supported, err := session.Options()
	if err != nil {
		fmt.Fprintln(os.Stderr, "options:", err)
		os.Exit(1)
	}
	fmt.Println("supported options:")
	for k, v := range supported {
		fmt.Printf("  %s: %v\n", k, v)
	}

	if *query == "" {
		return
	}

	result, err := session.Query(*query, cassandra.Quorum, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}

	if result.Rows == nil {
		fmt.Println("OK")
		return
	}
	defer result.Rows.Close()

	cols := result.Rows.Columns()
	for {
		row, err := result.Rows.Next()
		if err == cassandra.ErrExhausted {
			break
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "row:", err)
			os.Exit(1)
		}
		for i, v := range row {
			if i > 0 {
				fmt.Print(" | ")
			}
			fmt.Printf("%s=%v", cols[i].Name, renderValue(v))
		}
		fmt.Println()
	}
}

func renderValue(v cassandra.Value) interface{} {
	if v.Null {
		return "NULL"
	}
	switch v.Type.ID {
	case cassandra.TypeAscii, cassandra.TypeText, cassandra.TypeVarChar:
		return v.Text
	case cassandra.TypeInt:
		return v.Int32
	case cassandra.TypeBigInt, cassandra.TypeCounter:
		return v.Int64
	case cassandra.TypeBoolean:
		return v.Bool
	case cassandra.TypeUuid, cassandra.TypeTimeUuid:
		return v.UUID
	default:
		return v.Bytes
	}
}
