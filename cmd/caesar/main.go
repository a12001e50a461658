// Command caesar is the CLI entry point: send, receive and serve.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caesar-go/caesar/internal/config"
	"github.com/caesar-go/caesar/internal/relay"
	"github.com/caesar-go/caesar/internal/rendezvous"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "send":
		cmdSend(os.Args[2:])
	case "receive":
		cmdReceive(os.Args[2:])
	case "serve":
		cmdServe(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: caesar <send|receive|serve> [flags] [args]")
	fmt.Fprintln(os.Stderr, "  send [--relay URL] [--config PATH] FILE...")
	fmt.Fprintln(os.Stderr, "  receive [--relay URL] [--config PATH] [--out DIR] INVITE")
	fmt.Fprintln(os.Stderr, "  serve [--port PORT] [--listen-address ADDR] [--config PATH]")
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

func loadConfig(configPath string) *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	return cfg
}

func cmdSend(args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	relayURL := fs.String("relay", "", "relay origin, e.g. wss://relay.example.org")
	configPath := fs.String("config", "caesar.toml", "path to TOML config file")
	lanIP := fs.String("lan-ip", "", "LAN IP address to advertise for the LAN relay path")
	fs.Parse(args)

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "send requires at least one file")
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	if *relayURL != "" {
		cfg.AppOrigin = *relayURL
	}
	log := newLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rendezvous.SendFiles(ctx, cfg.AppOrigin, *lanIP, fs.Args(), log); err != nil {
		log.Error("send failed", "err", err)
		os.Exit(1)
	}
}

func cmdReceive(args []string) {
	fs := flag.NewFlagSet("receive", flag.ExitOnError)
	relayURL := fs.String("relay", "", "relay origin, e.g. wss://relay.example.org")
	configPath := fs.String("config", "caesar.toml", "path to TOML config file")
	outDir := fs.String("out", ".", "destination directory")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "receive requires exactly one invite code argument")
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	if *relayURL != "" {
		cfg.AppOrigin = *relayURL
	}
	log := newLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rendezvous.ReceiveFiles(ctx, cfg.AppOrigin, fs.Arg(0), *outDir, log); err != nil {
		log.Error("receive failed", "err", err)
		os.Exit(1)
	}
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.String("port", "", "listen port, overrides config")
	listenAddress := fs.String("listen-address", "", "listen address, overrides config")
	configPath := fs.String("config", "caesar.toml", "path to TOML config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	if *port != "" {
		cfg.AppPort = *port
	}
	host := cfg.AppHost
	if *listenAddress != "" {
		host = *listenAddress
	}
	log := newLogger(cfg)

	srv := relay.New(host+":"+cfg.AppPort, log, false)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Run(ctx); err != nil {
		log.Error("relay exited", "err", err)
		os.Exit(1)
	}
}
