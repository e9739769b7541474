package mqtt

import (
	"testing"
	"time"
)

func TestServiceWithoutBroker(t *testing.T) {
	m := New("v543-test")
	if err := m.Connect(""); err != nil {
		t.Fatalf("could not connect without broker: %+v", err)
	}
	if m.Connected() {
		t.Fatalf("connected without broker")
	}

	done := make(chan struct{})
	go func() {
		m.Service()
		close(done)
	}()

	for i := 0; i < 20; i++ {
		m.C <- Message{Topic: "v543/reading", Payload: []byte("{}")}
	}
	if err := m.Close(); err != nil {
		t.Fatalf("could not close: %+v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("service did not stop after close")
	}

	if m.Published() != 0 || m.Failed() != 0 {
		t.Fatalf("got published=%d failed=%d, want 0 and 0", m.Published(), m.Failed())
	}
}

func TestConnectRefused(t *testing.T) {
	m := New("v543-test")
	if err := m.Connect("tcp://127.0.0.1:1"); err == nil {
		_ = m.Disconnect()
		t.Fatalf("connected to a closed port")
	}
}
