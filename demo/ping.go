package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ymattw/ogsync"
)

func ping(ctx context.Context, opts []ogsync.Option) {
	client := loadClient(ctx, opts)

	socket, err := client.Connect(ctx, func(event string, data json.RawMessage) {
		if event == ogsync.EventNameHostInfo {
			fmt.Printf("Host info: %s\n", data)
		}
	})
	if err != nil {
		logger.Fatal("connect error", zap.Error(err))
	}
	defer socket.Disconnect()

	if err := socket.HostInfo(); err != nil {
		logger.Warn("hostinfo error", zap.Error(err))
	}

	for i := 0; i < 3; i++ {
		if err := socket.Ping(); err != nil {
			logger.Fatal("ping error", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}

		cs := socket.ClockSync()
		if cs.LastPong.Before(cs.LastPing) {
			fmt.Println("No pong within 1s")
			continue
		}
		fmt.Printf("latency %.0fms, drift %.0fms\n", cs.Latency*1000, cs.Drift*1000)
	}
}
