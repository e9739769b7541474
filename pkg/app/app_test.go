package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"v543/pkg/app/config"
	"v543/pkg/scpi"
)

func newTestConfig(revision string) *config.Config {
	cfg := config.NewConfig()
	cfg.Gpio.Driver = "emulated"
	cfg.SCPI.Listen = "127.0.0.1:0"
	cfg.SCPI.Revision = revision
	cfg.Webserver.URL = "http://127.0.0.1:0"
	cfg.Emulator.Frame = 0x01120001
	cfg.Emulator.Interval = 10 * time.Millisecond
	cfg.MQTT.Connection = ""
	return cfg
}

func newTestApp(t *testing.T, revision string) *App {
	t.Helper()

	a, err := New(newTestConfig(revision))
	if err != nil {
		t.Fatalf("could not create app: %+v", err)
	}
	if err := a.init(); err != nil {
		t.Fatalf("could not init app: %+v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func get(t *testing.T, a *App, target string) (int, string) {
	t.Helper()

	resp, err := a.web.Test(httptest.NewRequest("GET", target, nil), 2000)
	if err != nil {
		t.Fatalf("could not request %s: %+v", target, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("could not read %s: %+v", target, err)
	}
	return resp.StatusCode, string(b)
}

func TestHandleData(t *testing.T) {
	a := newTestApp(t, "lxi")
	a.acquisition.OnDataReady()

	code, body := get(t, a, "/data")
	if code != 200 {
		t.Fatalf("got status %d, want 200", code)
	}

	var d readingData
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		t.Fatalf("could not decode %q: %+v", body, err)
	}
	if d.Raw != "01120001" || d.ModeLabel != "DC" || d.RangeLabel != "1V" || d.Unit != "V" {
		t.Fatalf("got=%+v", d)
	}
	if d.Value != -1e-4 {
		t.Fatalf("got value=%v, want=%v", d.Value, -1e-4)
	}
}

func TestHandleSCPI(t *testing.T) {
	a := newTestApp(t, "lxi")
	a.acquisition.OnDataReady()

	for _, tc := range []struct {
		cmd  string
		code int
		want string
	}{
		{":measure:voltage:dc?", 200, "-1.000000E-04\n"},
		{"*IDN?", 200, "Meratronik,V543,01473,666-tasza-2018\n"},
		{"bogus", 200, "error\n"},
	} {
		code, body := get(t, a, "/scpi?cmd="+strings.ReplaceAll(tc.cmd, "?", "%3F"))
		if code != tc.code || body != tc.want {
			t.Fatalf("%s: got=(%d, %q), want=(%d, %q)", tc.cmd, code, body, tc.code, tc.want)
		}
	}

	b := newTestApp(t, "legacy")
	if code, _ := get(t, b, "/scpi?cmd=:debug:exit"); code != 403 {
		t.Fatalf("got status %d, want 403", code)
	}
}

func TestHandleVersionAndHealth(t *testing.T) {
	a := newTestApp(t, "lxi")

	code, body := get(t, a, "/version")
	if code != 200 || !strings.Contains(body, `"description":"v543"`) {
		t.Fatalf("got=(%d, %s)", code, body)
	}

	code, body = get(t, a, "/health")
	if code != 200 || !strings.Contains(body, `"LastReading":"never"`) {
		t.Fatalf("got=(%d, %s)", code, body)
	}
}

func TestHandleMetrics(t *testing.T) {
	a := newTestApp(t, "lxi")
	a.acquisition.OnDataReady()
	a.acquisition.OnDataReady()

	code, body := get(t, a, "/metrics")
	if code != 200 {
		t.Fatalf("got status %d, want 200", code)
	}
	for _, want := range []string{
		"v543_acquisitions_total 2",
		"v543_mode 4",
		"v543_range 1",
		"v543_scpi_sessions_total 0",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics without %q:\n%s", want, body)
		}
	}
}

func TestRoutesDisabled(t *testing.T) {
	cfg := newTestConfig("lxi")
	cfg.Webserver.Webservices = map[string]bool{"version": true}

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("could not create app: %+v", err)
	}
	if err := a.init(); err != nil {
		t.Fatalf("could not init app: %+v", err)
	}
	defer a.Close()

	if code, _ := get(t, a, "/data"); code != 404 {
		t.Fatalf("got status %d, want 404", code)
	}
}

func TestRunSCPI(t *testing.T) {
	a, err := New(newTestConfig("lxi"))
	if err != nil {
		t.Fatalf("could not create app: %+v", err)
	}
	defer a.Close()

	c := a.meter.Subscribe()
	if err := a.Run(); err != nil {
		t.Fatalf("could not run app: %+v", err)
	}

	select {
	case <-c:
	case <-time.After(2 * time.Second):
		t.Fatalf("no reading from the emulated instrument")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, err := scpi.Query(ctx, a.scpi.Addr().String(), ":measure:voltage:dc?")
	if err != nil {
		t.Fatalf("could not query: %+v", err)
	}
	if want := "-1.000000E-04"; got != want {
		t.Fatalf("got=%q, want=%q", got, want)
	}
}

func TestRunExit(t *testing.T) {
	a, err := New(newTestConfig("legacy"))
	if err != nil {
		t.Fatalf("could not create app: %+v", err)
	}
	defer a.Close()

	if err := a.Run(); err != nil {
		t.Fatalf("could not run app: %+v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, err := scpi.Query(ctx, a.scpi.Addr().String(), ":debug:exit")
	if err != nil {
		t.Fatalf("could not query: %+v", err)
	}
	if got != "exit here" {
		t.Fatalf("got=%q, want=%q", got, "exit here")
	}

	select {
	case <-a.Shutdown():
	case <-time.After(2 * time.Second):
		t.Fatalf("exit request did not shut down the app")
	}

	if err := a.group.Wait(); !errors.Is(err, scpi.ErrExitRequested) {
		t.Fatalf("got=%v, want=%v", err, scpi.ErrExitRequested)
	}
}

func TestHandleSCPIWaitsForSession(t *testing.T) {
	a := newTestApp(t, "lxi")

	wait := scpiWait
	scpiWait = 100 * time.Millisecond
	defer func() { scpiWait = wait }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.scpi.Serve(ctx) }()

	dctx, dcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dcancel()
	c, err := scpi.Dial(dctx, a.scpi.Addr().String())
	if err != nil {
		t.Fatalf("could not dial: %+v", err)
	}
	c.SetTimeout(2 * time.Second)
	if _, err := c.Query("*idn?"); err != nil {
		t.Fatalf("could not query: %+v", err)
	}

	if code, body := get(t, a, "/scpi?cmd=:meter:raw%3F"); code != 503 {
		t.Fatalf("got=(%d, %q) during an open session, want 503", code, body)
	}

	_ = c.Close()
	scpiWait = 2 * time.Second

	if code, body := get(t, a, "/scpi?cmd=:meter:raw%3F"); code != 200 || body != "00000000\n" {
		t.Fatalf("got=(%d, %q), want=(200, %q)", code, body, "00000000\n")
	}
}

func TestCloseTwice(t *testing.T) {
	a, err := New(newTestConfig("lxi"))
	if err != nil {
		t.Fatalf("could not create app: %+v", err)
	}
	if err := a.Run(); err != nil {
		t.Fatalf("could not run app: %+v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("could not close app: %+v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("could not close app twice: %+v", err)
	}
}
