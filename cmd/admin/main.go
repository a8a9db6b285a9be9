package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"meethub/backend/internal/analytics"
	"meethub/backend/internal/blacklist"
	"meethub/backend/internal/config"
	"meethub/backend/internal/models"
	"meethub/backend/internal/roomhub"
	"meethub/backend/internal/storage"
	"meethub/backend/internal/tasks"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const commandTimeout = 10 * time.Second

var (
	cfg        *config.Config
	rdb        *redis.Client
	taskClient *asynq.Client
	sessions   *storage.RedisSessionStore
)

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Operator tools for live meeting rooms.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		sessions = storage.NewRedisSessionStore(rdb, cfg.Session.KeyPrefix, cfg.Session.TTL)
		taskClient = asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if taskClient != nil {
			taskClient.Close()
		}
		if rdb != nil {
			return rdb.Close()
		}
		return nil
	},
	SilenceUsage: true,
}

var blacklistCmd = &cobra.Command{
	Use:   "blacklist <room>",
	Short: "Lists the blocked IPs of a room.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		entries, err := blacklist.NewEnforcer(sessions, nil).List(ctx, args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No blocked IPs.")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(cmd.OutOrStdout(), "%-40s %-24s %s\n", e.IP, e.Name, time.UnixMilli(e.AddedAt).Format(time.RFC3339))
		}
		return nil
	},
}

var unblockCmd = &cobra.Command{
	Use:   "unblock <room> <ip>",
	Short: "Removes an IP from a room's blacklist.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		entries, err := blacklist.NewEnforcer(sessions, nil).Remove(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		// Live hosts only see the change through the gateway fan-out channel.
		if cfg.Fanout.Enabled {
			fanout := roomhub.NewFanout(rdb, cfg.Session.KeyPrefix)
			if err := fanout.PublishEvent(ctx, args[0], roomhub.AudienceHosts, models.EventBlacklistUpdated, entries); err != nil {
				log.Warn().Err(err).Str("module", "admin").Str("room_id", args[0]).Msg("failed to notify hosts")
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "IP %s has been unblocked in room %s.\n", args[1], args[0])
		return nil
	},
}

var attendanceCmd = &cobra.Command{
	Use:   "attendance <room>",
	Short: "Prints the live attendance reconstruction of a room.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		result, err := analytics.NewReconstructor(sessions, nil).Reconstruct(ctx, args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

var flushCmd = &cobra.Command{
	Use:   "flush <room>",
	Short: "Persists and clears a room's attendance log.",
	Long: `Hands the room's reconstructed attendance to the background worker and clears
the log, as if the last participant had left.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		if err := analytics.NewReconstructor(sessions, tasks.NewAttendanceSink(taskClient)).Flush(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Attendance of room %s flushed.\n", args[0])
		return nil
	},
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	rootCmd.AddCommand(blacklistCmd, unblockCmd, attendanceCmd, flushCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
