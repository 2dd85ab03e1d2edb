package quic

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/TheusHen/oscore/oscore/protocol"
)

func TestExchangeLoopback(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", Options{})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	served := make(chan error, 1)
	go func() {
		conn, err := ln.Accept(ctx)
		if err != nil {
			served <- err
			return
		}
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			served <- err
			return
		}
		served <- Handle(stream, func(req protocol.Frame) protocol.Frame {
			return protocol.Frame{Type: protocol.MessageTypeResponse, Payload: append([]byte("echo:"), req.Payload...)}
		})
	}()

	conn, err := Dial(ctx, ln.Addr().String(), Options{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.CloseWithError(0, "")

	resp, err := Exchange(ctx, conn, protocol.Frame{Type: protocol.MessageTypeRequest, Payload: []byte("ping")})
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if !bytes.Equal(resp.Payload, []byte("echo:ping")) {
		t.Fatalf("unexpected response %q", resp.Payload)
	}
	if err := <-served; err != nil {
		t.Fatalf("Handle: %v", err)
	}
}

func TestServerTLSConfig(t *testing.T) {
	conf, err := serverTLSConfig(Options{}.withDefaults())
	if err != nil {
		t.Fatalf("serverTLSConfig: %v", err)
	}
	if len(conf.NextProtos) != 1 || conf.NextProtos[0] != DefaultALPN {
		t.Fatalf("unexpected ALPN %v", conf.NextProtos)
	}
	if len(conf.Certificates) != 1 || conf.Certificates[0].Leaf == nil {
		t.Fatalf("expected one parsed certificate")
	}
	if err := conf.Certificates[0].Leaf.VerifyHostname("localhost"); err != nil {
		t.Fatalf("VerifyHostname: %v", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	if opts.ALPN != DefaultALPN || opts.IdleTimeout != DefaultIdleTimeout {
		t.Fatalf("unexpected defaults %+v", opts)
	}
	custom := Options{ALPN: "oscore-test", IdleTimeout: time.Second}.withDefaults()
	if custom.ALPN != "oscore-test" || custom.IdleTimeout != time.Second {
		t.Fatalf("overrides lost: %+v", custom)
	}
	if got := quicConfig(custom).KeepAlivePeriod; got != time.Second/3 {
		t.Fatalf("keep-alive %v", got)
	}
}

func TestALPNMismatchFailsDial(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", Options{ALPN: "oscore-test"})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _, _ = ln.Accept(ctx) }()

	if conn, err := Dial(ctx, ln.Addr().String(), Options{}); err == nil {
		conn.CloseWithError(0, "")
		t.Fatalf("dial with a different ALPN succeeded")
	}
}
