// Command chordnode runs one Chord DHT participant: a peer listener, a
// northbound API listener, and a background stabilizer.
package main

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Benestar/go-chord/internal/api"
	"github.com/Benestar/go-chord/internal/config"
	"github.com/Benestar/go-chord/internal/logging"
	"github.com/Benestar/go-chord/internal/node"
)

// statusEvents adapts internal/api's StatusHub to the plain-string
// Broadcaster interfaces internal/node and internal/stabilize expose,
// since neither of those packages may import internal/api.
type statusEvents struct {
	hub *api.StatusHub
}

func (e statusEvents) Broadcast(eventType, nodeID, message string) {
	e.hub.Broadcast(api.Event{
		Type:      eventType,
		NodeID:    nodeID,
		Timestamp: time.Now().Unix(),
		Message:   message,
	})
}

// Build is overridden at link time via -ldflags.
var Build = "head"

var verbosity int

func main() {
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Aliases: []string{"V"}, Usage: "print the version and exit"}

	app := &cli.App{
		Name:            "chordnode",
		Usage:           "run a Chord DHT node",
		Version:         Build,
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "suppress all logging"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "increase log verbosity, repeatable (-v, -vv, -vvv)", Count: &verbosity},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Required: true, Usage: "path to the node's INI configuration file"},
			&cli.StringFlag{Name: "bootstrap", Aliases: []string{"b"}, Usage: "bootstrap peer host:port to join through"},
			&cli.StringFlag{Name: "timestamp", Aliases: []string{"t"}, Value: "sec", Usage: "log timestamp format: sec, ms, ns, none"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := logging.New(logging.Config{
		Quiet:           c.Bool("quiet"),
		Verbosity:       verbosity,
		TimestampFormat: c.String("timestamp"),
	})

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("chordnode: %w", err)
	}

	n := node.New(cfg, log)

	statusHub := api.NewStatusHub(log)
	defer statusHub.Stop()
	n.SetEvents(statusEvents{statusHub})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if bootstrap := c.String("bootstrap"); bootstrap != "" {
		bootstrapAddr, err := netip.ParseAddrPort(bootstrap)
		if err != nil {
			return fmt.Errorf("chordnode: bootstrap address: %w", err)
		}
		if err := n.Join(ctx, bootstrapAddr); err != nil {
			return fmt.Errorf("chordnode: join: %w", err)
		}
		log.Info().Str("bootstrap", bootstrap).Msg("chordnode: joined ring")
	} else {
		log.Info().Msg("chordnode: starting singleton ring")
	}

	apiServer := api.NewServer(n, cfg.Timeout, log, statusHub)
	if err := apiServer.Listen(cfg.APIAddress.String()); err != nil {
		return fmt.Errorf("chordnode: api listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- apiServer.Serve(ctx) }()
	go func() { errCh <- n.Run(ctx, cfg.ListenAddress.String()) }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			cancel()
			return fmt.Errorf("chordnode: %w", err)
		}
	}

	_ = apiServer.Close()
	_ = n.Shutdown()
	log.Info().Msg("chordnode: shutdown complete")
	return nil
}
