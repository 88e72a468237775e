// ldkboss is an autopilot daemon for LDK Server. It watches the node,
// opens and closes channels, tunes routing fees and rebalances
// liquidity on a fixed control loop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/urfave/cli/v2"

	"github.com/joemphilips/ldkboss/boss"
	"github.com/joemphilips/ldkboss/config"
	"github.com/joemphilips/ldkboss/ldkrpc"
	"github.com/joemphilips/ldkboss/store"
)

const version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "ldkboss",
		Usage:   "Autopilot daemon for LDK Server",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "ldkboss.toml",
				Usage:   "Path to ldkboss.toml config file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "daemon",
				Usage:  "Run as a background daemon (default)",
				Action: runDaemon,
			},
			{
				Name:   "run-once",
				Usage:  "Execute a single control cycle and exit",
				Action: runOnce,
			},
			{
				Name:   "status",
				Usage:  "Print current status from the database",
				Action: printStatus,
			},
		},
		Action: runDaemon,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config and prepares logging, the client and the
// store. Every command starts here.
func setup(c *cli.Context) (*config.Config, *boss.Boss, *store.Store, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, nil, err
	}
	setupLoggers(cfg.General.LogLevel)

	log.Infof("LDKBoss v%s starting", version)
	if cfg.General.DryRun {
		log.Warnf("DRY-RUN MODE: No actions will be executed")
	}

	client, err := ldkrpc.NewHTTPClient(
		cfg.Server.BaseURL, cfg.Server.APIKey, cfg.Server.TLSCertPath,
	)
	if err != nil {
		return nil, nil, nil, err
	}
	st, err := store.Open(cfg.General.DatabasePath, clock.NewDefaultClock())
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, boss.New(cfg, client, st), st, nil
}

func runDaemon(c *cli.Context) error {
	cfg, b, st, err := setup(c)
	if err != nil {
		return err
	}
	defer st.Close()

	if !cfg.General.Enabled {
		log.Warnf("Master switch is OFF -- exiting")
		return nil
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	return b.Run(ctx)
}

func runOnce(c *cli.Context) error {
	cfg, b, st, err := setup(c)
	if err != nil {
		return err
	}
	defer st.Close()

	if !cfg.General.Enabled {
		log.Warnf("Master switch is OFF -- exiting")
		return nil
	}

	return b.RunOnce(context.Background())
}

func printStatus(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.General.DatabasePath, clock.NewDefaultClock())
	if err != nil {
		return err
	}
	defer st.Close()

	openChannels, err := st.OpenChannelCount()
	if err != nil {
		return err
	}
	totalEarned, err := st.TotalFeesEarnedMsat()
	if err != nil {
		return err
	}
	totalOpens, err := st.AutopilotOpenCount()
	if err != nil {
		return err
	}
	totalClosures, err := st.JudgeClosureCount()
	if err != nil {
		return err
	}

	fmt.Println("LDKBoss Status")
	fmt.Println("==============")
	fmt.Printf("Open channels tracked:  %d\n", openChannels)
	fmt.Printf("Total fees earned:      %d msat (%.3f sat)\n",
		totalEarned, float64(totalEarned)/1000.0)
	fmt.Printf("Autopilot opens:        %d\n", totalOpens)
	fmt.Printf("Judge closures:         %d\n", totalClosures)
	return nil
}
