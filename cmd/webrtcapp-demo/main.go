// Command webrtcapp-demo wires the orchestration core up against the
// pionengine and wssignal reference adapters.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp"
	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/engine/pionengine"
	"github.com/awslabs/amazon-kinesis-video-streams-webrtc-app-core/webrtcapp/signaling/wssignal"
)

func main() {
	endpoint := flag.String("endpoint", "ws://localhost:8080/signal", "signaling endpoint to dial")
	role := flag.String("role", "master", "role: master|viewer")
	turnSecret := flag.String("turn-secret", os.Getenv("TURN_PASS"), "coturn shared secret for TURN credential issuance")
	bridgeMode := flag.Bool("bridge", false, "run in bridge mode (bypass session management)")
	flag.Parse()

	cfg := webrtcapp.DefaultConfig()
	cfg.BridgeMode = *bridgeMode
	if *role == "viewer" {
		cfg.Role = webrtcapp.RoleViewer
	}

	transport := wssignal.New(*endpoint)
	if *turnSecret != "" {
		transport.EnableProgressiveICE(&wssignal.TURNCredentialSource{
			Secret: *turnSecret,
			URLs:   "turn:localhost:3478",
			TTL:    time.Hour,
		}, 30*time.Minute)
	}

	eng := pionengine.New()

	ctx, err := webrtcapp.Init(cfg, transport, eng)
	if err != nil {
		log.Fatalf("init: %v", err)
	}

	ctx.RegisterEventCallback(func(ev webrtcapp.Event, userCtx interface{}) {
		fmt.Printf("event: %+v\n", ev)
	}, nil)

	if err := ctx.Run(); err != nil {
		log.Fatalf("run: %v", err)
	}

	if err := transport.Connect(context.Background()); err != nil {
		log.Printf("initial connect failed, reconnect controller will retry: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	if err := ctx.Terminate(); err != nil {
		log.Fatalf("terminate: %v", err)
	}
}
