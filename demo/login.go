package main

import (
	"context"
	"flag"
	"fmt"

	"go.uber.org/zap"

	"github.com/ymattw/ogsync"
)

var (
	clientID     = flag.String("c", "", "client ID")
	clientSecret = flag.String("s", "", "client secret")
	username     = flag.String("u", "", "username")
	password     = flag.String("p", "", "password")
)

func login(ctx context.Context, opts []ogsync.Option) {
	if *clientID == "" || *username == "" || *password == "" {
		// Empty clientSecret is fine if the client type is public
		logger.Fatal("Syntax: -c clientID [-s clientSecret] -u username -p password login")
	}

	client := ogsync.NewClient(*clientID, *clientSecret, opts...)
	if err := client.Login(ctx, *username, *password); err != nil {
		logger.Fatal("login error", zap.Error(err))
	}
	if err := client.Save(*secretFile); err != nil {
		logger.Fatal("saving credentials error", zap.Error(err))
	}
	fmt.Printf("Logged in as %s (%d), credentials wrote to %s\n", client.Username, client.UserID, *secretFile)
}
