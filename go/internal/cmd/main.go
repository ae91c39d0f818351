package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcdev12/astraea/go/clients"
	"github.com/mcdev12/astraea/go/internal/notify"
	"github.com/mcdev12/astraea/go/internal/offline"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type cliState struct {
	configPath string
	logLevel   string
	config     *Config
}

func newRootCmd() *cobra.Command {
	state := &cliState{}

	rootCmd := &cobra.Command{
		Use:   "astraea",
		Short: "Offline-first sync agent for the scouting app",
		Long: `astraea keeps scouting submissions safe while the venue network is down.
Reports are queued on this device and replayed in order once the server
answers again. The agent also polls the dashboards and serves the local
status API the scouting pages talk to.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil {
				log.Debug().Err(err).Msg("no .env file loaded")
			}
			config, err := loadConfig(state.configPath)
			if err != nil {
				return err
			}
			if state.logLevel != "" {
				config.Log.Level = state.logLevel
			}
			setupLogging(config.Log.Level)
			state.config = config
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&state.configPath, "config", "c", "config.yaml", "path to the config file")
	rootCmd.PersistentFlags().StringVar(&state.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newRunCmd(state),
		newQueueCmd(state),
		newSyncCmd(state),
		newStatusCmd(state),
	)
	return rootCmd
}

func setupLogging(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func newRunCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sync agent until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), state.config)
		},
	}
}

func newQueueCmd(state *cliState) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the pending submission queue",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List queued submissions, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(cmd.Context(), state.config, func(queue *offline.Queue) error {
				items, err := queue.PeekAll(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "queue is empty")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tKIND\tQUEUED AT\tBYTES")
				for _, item := range items {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", item.ID, item.Kind, item.QueuedAt.Format(time.RFC3339), len(item.Payload))
				}
				return w.Flush()
			})
		},
	}

	var force bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every queued submission",
		Long:  "Drop every queued submission without delivering it. Requires --force.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to drop queued submissions without --force")
			}
			return withQueue(cmd.Context(), state.config, func(queue *offline.Queue) error {
				n, err := queue.Len(cmd.Context())
				if err != nil {
					return err
				}
				if err := queue.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "dropped %d submissions\n", n)
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&force, "force", false, "confirm dropping the queue")

	queueCmd.AddCommand(listCmd, clearCmd)
	return queueCmd
}

func withQueue(ctx context.Context, config *Config, fn func(*offline.Queue) error) error {
	store, err := setupStore(ctx, config)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(offline.NewQueue(store))
}

func newSyncCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Deliver queued submissions once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := setupStore(ctx, state.config)
			if err != nil {
				return err
			}
			defer store.Close()

			client := setupClient(ctx, state.config)
			cfg := offline.DefaultConfig()
			cfg.SubmitTimeout = state.config.Sync.SubmitTimeout
			manager := offline.NewSyncManager(store, client, notify.Nop{}, nil, cfg)

			result, err := manager.SyncNow(ctx)
			if err != nil {
				return fmt.Errorf("failed to sync: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "delivered %d, %d remaining\n", result.Delivered, result.Remaining)
			return nil
		},
	}
}

func newStatusCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue size and server reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := setupStore(ctx, state.config)
			if err != nil {
				return err
			}
			defer store.Close()

			pending, err := offline.NewQueue(store).Len(ctx)
			if err != nil {
				return err
			}

			client := setupClient(ctx, state.config)
			probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			reachable := clients.IsReachable(client.Health(probeCtx))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "server:  %s (%s)\n", state.config.API.URL, reachability(reachable))
			fmt.Fprintf(out, "pending: %d\n", pending)
			return nil
		},
	}
}

func reachability(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}
