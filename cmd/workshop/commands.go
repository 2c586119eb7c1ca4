package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wilhg/workshop/examples/garage"
	"github.com/wilhg/workshop/pkg/engine"
	"github.com/wilhg/workshop/pkg/mcpserver"
	"github.com/wilhg/workshop/pkg/snapshot"
	"github.com/wilhg/workshop/pkg/workshop"
)

func newMCPCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Load state and serve MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			// stdout carries the protocol; spans go to stderr
			return withApp(ctx, configPath(), cmd.ErrOrStderr(), func(a *app) error {
				svc, err := a.load(ctx)
				if err != nil {
					return err
				}
				runErr := mcpserver.New(svc, version, mcpserver.WithLogger(a.log)).ServeStdio(ctx)
				if _, err := svc.Shutdown(context.WithoutCancel(ctx)); err != nil {
					return err
				}
				if runErr != nil && ctx.Err() == nil {
					return runErr
				}
				return nil
			})
		},
	}
}

func newHistoryCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List indexed snapshots, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, configPath(), cmd.ErrOrStderr(), func(a *app) error {
				if err := a.caretaker.LoadIndex(ctx); err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tCREATED")
				for _, id := range a.caretaker.History() {
					fmt.Fprintf(tw, "%s\t%s\n", id, id.Time().Format(time.RFC3339Nano))
				}
				return tw.Flush()
			})
		},
	}
}

func newInspectCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <id>",
		Short: "Decode one snapshot and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := snapshot.ParseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withApp(ctx, configPath(), cmd.ErrOrStderr(), func(a *app) error {
				snap, err := a.caretaker.Inspect(ctx, id)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					ID        snapshot.ID        `json:"id"`
					CreatedAt time.Time          `json:"created_at"`
					Writer    string             `json:"writer,omitempty"`
					Counters  any                `json:"counters"`
					State     *workshop.Workshop `json:"state"`
				}{snap.ID(), snap.CreatedAt(), snap.Writer(), snap.Counters(), snap.Root()})
			})
		},
	}
}

func newDiffCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <from-id> <to-id>",
		Short: "Show how the state changed between two snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := snapshot.ParseID(args[0])
			if err != nil {
				return err
			}
			to, err := snapshot.ParseID(args[1])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withApp(ctx, configPath(), cmd.ErrOrStderr(), func(a *app) error {
				left, err := a.caretaker.Inspect(ctx, from)
				if err != nil {
					return err
				}
				right, err := a.caretaker.Inspect(ctx, to)
				if err != nil {
					return err
				}
				d, err := snapshot.Diff(left, right)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), d)
				return err
			})
		},
	}
}

func newVerifyCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Read every stored snapshot and report the ones that fail to decode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, configPath(), cmd.ErrOrStderr(), func(a *app) error {
				if err := a.caretaker.LoadIndex(ctx); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "index: %v\n", err)
				}
				failed := 0
				for _, ch := range a.caretaker.Verify(ctx) {
					status := "ok"
					if !ch.OK() {
						status = ch.Err.Error()
						failed++
					}
					indexed := ""
					if !ch.Indexed {
						indexed = " (not indexed)"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s%s: %s\n", ch.ID, indexed, status)
				}
				if failed > 0 {
					return fmt.Errorf("%d snapshot(s) failed verification", failed)
				}
				return nil
			})
		},
	}
}

func newReindexCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the history index from the stored snapshot payloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, configPath(), cmd.ErrOrStderr(), func(a *app) error {
				if err := a.caretaker.RebuildIndex(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %d snapshot(s)\n", len(a.caretaker.History()))
				return nil
			})
		},
	}
}

func newSeedCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load state, add demo data and checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, configPath(), cmd.ErrOrStderr(), func(a *app) error {
				svc, err := a.load(ctx)
				if err != nil {
					return err
				}
				var sum garage.Summary
				var id snapshot.ID
				err = svc.Guard().Do(func(e *engine.Engine[*workshop.Workshop]) error {
					if err := e.Mutate(ctx, func(w *workshop.Workshop) error {
						var err error
						sum, err = garage.Seed(w, e.Counters(), time.Now().UTC())
						return err
					}); err != nil {
						return err
					}
					var serr error
					id, serr = e.SaveState(ctx)
					return serr
				})
				if err != nil {
					return err
				}
				a.log.Info("seeded", zap.Uint64("snapshot_id", uint64(id)))
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"snapshot_id": id, "created": sum})
			})
		},
	}
}
