package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/signalsfoundry/refraction-simulator/internal/control"
	"github.com/signalsfoundry/refraction-simulator/internal/logging"
	"github.com/signalsfoundry/refraction-simulator/model"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestControlServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	cfg := Config{
		ListenAddress:  lis.Addr().String(),
		MetricsAddress: "",
		LogLevel:       "warn",
		LogFormat:      "text",
		FrameLoop:      true,
	}
	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, log, lis)
	}()

	conn, err := grpc.NewClient(cfg.ListenAddress,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(control.RequestIDUnaryClientInterceptor()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()

	client := control.NewClient(conn)
	sun, err := client.SetSource(ctx, model.Pt(500, 400))
	if err != nil {
		t.Fatalf("SetSource: %v", err)
	}
	if sun != model.Pt(500, 400) {
		t.Fatalf("SetSource = %v, want (500, 400)", sun)
	}

	// The background loop keeps tracing frames.
	deadline := time.Now().Add(2 * time.Second)
	var scene control.SceneReport
	for time.Now().Before(deadline) {
		scene, err = client.GetScene(ctx)
		if err != nil {
			t.Fatalf("GetScene: %v", err)
		}
		if scene.Frames > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if scene.Frames == 0 {
		t.Fatalf("no frames traced by the background loop")
	}

	cancel()

	if err := <-errCh; err != nil {
		t.Fatalf("server returned error: %v", err)
	}
}

func TestBuildEngineMissingScene(t *testing.T) {
	if _, err := buildEngine("does-not-exist.json", logging.Noop()); err == nil {
		t.Fatalf("buildEngine(missing) error = nil, want error")
	}
}
