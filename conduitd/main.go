package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/egaotan/rwa-conduit/conduitd/app"
	"github.com/egaotan/rwa-conduit/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile, workSpace string
	cmd := &cobra.Command{
		Use:          "conduitd",
		Short:        "Run the conduit daemon over an in-memory ledger",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if workSpace == "" {
				return nil
			}
			return os.Chdir(workSpace)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if cfg.LogPath == "" {
				dir := fmt.Sprintf("./%s_log/", time.Now().Format("2006-01-02"))
				if err := os.MkdirAll(dir, os.ModePerm); err != nil {
					return err
				}
				cfg.LogPath = dir
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGABRT)
			go shutdown(cancel, quit)

			d, err := app.NewApp(ctx, cfg)
			if err != nil {
				return err
			}
			return d.Service()
		},
	}
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.ConfigFile, "path of the config file")
	cmd.PersistentFlags().StringVarP(&workSpace, "workspace", "w", "", "directory to run in")
	cmd.AddCommand(newCheckCmd(&configFile))
	return cmd
}

func newCheckCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config file and list what it deploys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tokens: %d, psms: %d, conduits: %d\n", len(cfg.Tokens), len(cfg.Psms), len(cfg.Conduits))
			for _, c := range cfg.Conduits {
				fmt.Fprintf(out, "%s: %s\n", c.Name, c.Kind)
			}
			return nil
		},
	}
}

func shutdown(cancel context.CancelFunc, quit <-chan os.Signal) {
	osCall := <-quit
	fmt.Printf("System call: %v, conduitd is shutting down......\n", osCall)
	cancel()
}
