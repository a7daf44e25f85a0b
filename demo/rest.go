package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/ymattw/ogsync"
)

func rest(ctx context.Context, opts []ogsync.Option, args ...string) {
	if len(args) != 1 {
		logger.Fatal("Syntax: rest <api>")
	}
	api := args[0]

	client := loadClient(ctx, opts)
	var res any
	if err := client.Get(ctx, api, nil, &res); err != nil {
		logger.Fatal("rest error", zap.String("api", api), zap.Error(err))
	}
	fmt.Printf("%s\n", formatObject(res))
}

func formatObject(obj any) string {
	var out bytes.Buffer
	data, _ := json.Marshal(obj)
	if json.Indent(&out, data, "", "  ") != nil {
		return ""
	}
	return out.String()
}
