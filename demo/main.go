// Package main offers a minimal OGS client mainly to showcase usage of the
// ogsync package, as well as serving as a debug tool for developing ogsync.
//
// Requires an OGS application (https://online-go.com/oauth2/applications/,
// choose grant type "Resource owner password-based").
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ymattw/ogsync"
)

var (
	secretFile = flag.String("f", "secret.json", "file to write client info to and load from")
	envFile    = flag.String("env", "", "optional .env file with OGS_* settings")
	debug      = flag.Bool("debug", false, "enable debug logging")
)

const usage = `Typical usage:

  read -s PASS                          # avoid log password into shell history
  go run ./demo -c clientID -s clientSecret -u username -p "$PASS" login
                                        # -s can be omitted for public client
  cat secret.json                       # secrets are stored after login once

  go run ./demo connect 123             # connect to a game to watch or play
  go run ./demo ping                    # measure latency and clock drift
  go run ./demo rest /api/v1/players/1  # debug rest API (shows user profile)

  OGS_BETA=true go run ./demo ...       # use beta.online-go.com
`

var logger *zap.Logger

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprint(flag.CommandLine.Output(), "\n"+usage)
	}
	flag.Parse()

	logger = initLogger(*debug)
	defer logger.Sync()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	config, err := ogsync.LoadConfig(envFiles...)
	if err != nil {
		logger.Fatal("loading config error", zap.Error(err))
	}
	opts := []ogsync.Option{ogsync.WithConfig(config), ogsync.WithLogger(logger)}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := flag.Args()[0]
	args := flag.Args()[1:]

	switch cmd {
	case "login":
		login(ctx, opts)
	case "connect", "watch", "play":
		connect(ctx, opts, args...)
	case "ping":
		ping(ctx, opts)
	case "rest":
		rest(ctx, opts, args...)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func initLogger(debug bool) *zap.Logger {
	// Console output, it shares the terminal with the game prompt.
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	return logger
}

func loadClient(ctx context.Context, opts []ogsync.Option) *ogsync.Client {
	client, err := ogsync.LoadClient(ctx, *secretFile, opts...)
	if err != nil {
		logger.Fatal("loading client error", zap.String("file", *secretFile), zap.Error(err))
	}
	return client
}
