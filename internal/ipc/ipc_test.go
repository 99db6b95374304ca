package ipc_test

import (
	"context"
	"path/filepath"
	"testing"

	"aircheck/internal/daemon"
	"aircheck/internal/events"
	"aircheck/internal/ipc"
	"aircheck/internal/resolve"
	"aircheck/internal/scheduler"
	"aircheck/internal/testsupport"
)

func newTestServer(t *testing.T) (*ipc.Client, context.Context) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	bus := events.NewBus()
	resolver := resolve.New(s, cfg, nil, nil, nil, nil)
	sched := scheduler.New(cfg, s, resolver, bus, nil)
	d, err := daemon.New(cfg, s, sched, resolver, events.NewNotifier(cfg), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := filepath.Join(t.TempDir(), "aircheck.sock")
	server, err := ipc.NewServer(ctx, socket, d, cancel, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, ctx
}

func TestStatusOverSocket(t *testing.T) {
	client, _ := newTestServer(t)

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running {
		t.Fatal("daemon reported running before Start")
	}
	if status.DatabasePath == "" || status.LockPath == "" {
		t.Fatalf("paths missing from status: %+v", status)
	}
	if len(status.Breakers) != 3 {
		t.Fatalf("breakers = %v, want three providers", status.Breakers)
	}
}

func TestStationLifecycleOverSocket(t *testing.T) {
	client, _ := newTestServer(t)

	added, err := client.StationAdd("Jazz FM", "http://example.com/jazz")
	if err != nil {
		t.Fatalf("StationAdd: %v", err)
	}
	if added.ID == 0 || added.Status != "active" {
		t.Fatalf("added = %+v", added)
	}

	if _, err := client.StationAdd("", ""); err == nil {
		t.Fatal("empty station accepted")
	}

	list, err := client.StationList()
	if err != nil {
		t.Fatalf("StationList: %v", err)
	}
	if len(list.Stations) != 1 || list.Stations[0].Name != "Jazz FM" {
		t.Fatalf("list = %+v", list.Stations)
	}

	removed, err := client.StationRemove(added.ID)
	if err != nil {
		t.Fatalf("StationRemove: %v", err)
	}
	if !removed.Removed {
		t.Fatal("station not removed")
	}
	removed, err = client.StationRemove(added.ID)
	if err != nil {
		t.Fatalf("second StationRemove: %v", err)
	}
	if removed.Removed {
		t.Fatal("second remove reported a deletion")
	}
}

func TestStatsTopEmptyOverSocket(t *testing.T) {
	client, _ := newTestServer(t)
	top, err := client.StatsTop(5)
	if err != nil {
		t.Fatalf("StatsTop: %v", err)
	}
	if len(top.Tracks) != 0 {
		t.Fatalf("tracks = %+v, want none", top.Tracks)
	}
}

func TestStopRequestsShutdown(t *testing.T) {
	client, ctx := newTestServer(t)
	resp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !resp.Stopped {
		t.Fatal("stop not acknowledged")
	}
	select {
	case <-ctx.Done():
	default:
		t.Fatal("shutdown context not canceled")
	}
}
