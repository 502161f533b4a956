package floor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shiwa/ledfloor/internal/boardbus"
	"github.com/shiwa/ledfloor/internal/config"
	"github.com/shiwa/ledfloor/internal/layout"
	"github.com/shiwa/ledfloor/internal/matrix"
	"github.com/shiwa/ledfloor/internal/protocol"
	"github.com/shiwa/ledfloor/internal/serialport"
)

func TestTimingFromConfig(t *testing.T) {
	d := boardbus.DefaultTiming()
	got := TimingFromConfig(config.TimingConfig{})
	if got != d {
		t.Errorf("empty config = %+v, want defaults", got)
	}
	got = TimingFromConfig(config.TimingConfig{
		PingSlot:       "250us",
		LEDRender:      "invalid",
		ShutdownSettle: "0s",
	})
	if got.PingSlot != 250*time.Microsecond {
		t.Errorf("PingSlot = %v", got.PingSlot)
	}
	if got.LEDRender != d.LEDRender {
		t.Errorf("invalid LEDRender = %v, want default %v", got.LEDRender, d.LEDRender)
	}
	if got.ShutdownSettle != 0 {
		t.Errorf("ShutdownSettle = %v, want 0", got.ShutdownSettle)
	}
}

func TestBuildPools(t *testing.T) {
	table, err := layout.NewTable(layout.Grid(10, 1, 128))
	if err != nil {
		t.Fatal(err)
	}
	buses := []config.BusConfig{
		{Device: "a", AddressRange: "128-131"},
		{Device: "b"},
		{Device: "c", AddressRange: "132-133"},
		{Device: "d"},
	}
	pools, err := BuildPools(buses, table)
	if err != nil {
		t.Fatalf("BuildPools: %v", err)
	}
	if got := pools[0].Addresses(); len(got) != 4 || got[0] != 128 || got[3] != 131 {
		t.Errorf("bus a pool = %v", got)
	}
	if got := pools[2].Addresses(); len(got) != 2 || got[0] != 132 {
		t.Errorf("bus c pool = %v", got)
	}
	if pools[1] != pools[3] {
		t.Error("buses without range must share one pool")
	}
	if got := pools[1].Addresses(); len(got) != 4 || got[0] != 134 || got[3] != 137 {
		t.Errorf("shared pool = %v", got)
	}

	_, err = BuildPools([]config.BusConfig{
		{AddressRange: "128-131"},
		{AddressRange: "130-135"},
	}, table)
	if err == nil {
		t.Error("overlapping ranges accepted")
	}
}

type nullPort struct {
	mu      sync.Mutex
	written []byte
	closed  bool
}

func (p *nullPort) Read(b []byte) (int, error) {
	time.Sleep(time.Millisecond)
	return 0, nil
}

func (p *nullPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *nullPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func withPorts(t *testing.T, ports map[string]*nullPort) {
	t.Helper()
	prev := openPort
	openPort = func(c serialport.Config) (matrix.Port, error) {
		if p, ok := ports[c.Device]; ok {
			return p, nil
		}
		return nil, errors.New("no such device")
	}
	t.Cleanup(func() { openPort = prev })
}

func testConfig(t *testing.T, devices ...string) *config.Config {
	t.Helper()
	c := config.Default()
	c.Buses = nil
	for _, d := range devices {
		c.Buses = append(c.Buses, config.BusConfig{Device: d})
	}
	c.Layout.Columns, c.Layout.Rows = 2, 1
	c.Timing = config.TimingConfig{AssignSettle: "1ms", ShutdownSettle: "1ms", SensorLeadIn: "0s"}
	return c
}

func TestRunDaemon_SkipsBrokenBus(t *testing.T) {
	good := &nullPort{}
	withPorts(t, map[string]*nullPort{"/dev/good": good})
	cfg := testConfig(t, "/dev/missing", "/dev/good")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := RunDaemon(ctx, cfg, "", true); err != nil {
		t.Fatalf("RunDaemon: %v", err)
	}
	good.mu.Lock()
	defer good.mu.Unlock()
	if !good.closed {
		t.Error("port not closed after RunDaemon")
	}
	fr, err := protocol.ParseFrames(good.written)
	if err != nil || len(fr) < 2 {
		t.Fatalf("frames = %v, %v", fr, err)
	}
	// по умолчанию шина начинает со сброса адресов
	if fr[0].Code != protocol.CodeResetID || fr[1].Code != protocol.CodePingFromMaster {
		t.Errorf("first frames = %v, %v, want reset_id, ping", fr[0].Code, fr[1].Code)
	}
	last := fr[len(fr)-1]
	if last.Code != protocol.CodeSendLEDData || last.Address != protocol.BroadcastAddress {
		t.Errorf("last frame = %v to %d, want turn-off", last.Code, last.Address)
	}
}

func TestRunDaemon_NoBuses(t *testing.T) {
	withPorts(t, nil)
	err := RunDaemon(context.Background(), testConfig(t, "/dev/missing"), "", true)
	if !errors.Is(err, ErrNoBuses) {
		t.Errorf("err = %v, want ErrNoBuses", err)
	}
}

func TestTurnOff(t *testing.T) {
	p := &nullPort{}
	withPorts(t, map[string]*nullPort{"/dev/a": p})
	if err := TurnOff(context.Background(), testConfig(t, "/dev/a")); err != nil {
		t.Fatalf("TurnOff: %v", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fr, _ := protocol.ParseFrames(p.written)
	// явное гашение плюс финальное при остановке шины
	if len(fr) != 2 || fr[0].Code != protocol.CodeSendLEDData || fr[1].Code != protocol.CodeSendLEDData {
		t.Errorf("frames = %+v", fr)
	}
}

func TestReset(t *testing.T) {
	p := &nullPort{}
	withPorts(t, map[string]*nullPort{"/dev/a": p})
	boards, err := Reset(context.Background(), testConfig(t, "/dev/a"), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(boards) != 0 {
		t.Errorf("boards = %v, want none on a silent bus", boards)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fr, _ := protocol.ParseFrames(p.written)
	if len(fr) < 2 || fr[0].Code != protocol.CodeResetID || fr[1].Code != protocol.CodePingFromMaster {
		t.Errorf("frames = %+v", fr)
	}
}
