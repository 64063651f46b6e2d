// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Command paytaskd runs the payment task engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-a2a/paytask"
	"github.com/go-a2a/paytask/auth"
	"github.com/go-a2a/paytask/server"
)

// Version is set at build time.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "paytaskd",
		Short:         "A2A task engine for payment agents",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", os.Getenv("PAYTASK_CONFIG"), "Path to the TOML configuration file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(recoverCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent addresses and the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(cmd.Context()))

			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				a.cfg.Server.Addr = addr
			}
			srv, err := server.New(a.store, a.processor,
				server.WithResolver(a.resolver()),
				server.WithBatchOptions(a.batchOptions()...),
				server.WithMaxBodyBytes(a.cfg.Server.MaxBodyBytes),
				server.WithShutdownTimeout(a.cfg.Server.ShutdownTimeout),
				server.WithLogger(a.logger),
			)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context(), a.cfg.Server.Addr)
		},
	}
	cmd.Flags().String("addr", "", "Listen address, overrides server.addr")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the task store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(cmd.Context()))

			// newApp already initialized the store.
			fmt.Fprintf(cmd.OutOrStdout(), "store %s is up to date\n", a.cfg.Store.Driver)
			return nil
		},
	}
}

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process one task, or every pending task of an agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, _ := cmd.Flags().GetString("tenant")
			agentID, _ := cmd.Flags().GetString("agent")
			taskID, _ := cmd.Flags().GetString("task")
			if tenantID == "" {
				return fmt.Errorf("--tenant is required")
			}
			if (agentID == "") == (taskID == "") {
				return fmt.Errorf("exactly one of --agent and --task is required")
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(cmd.Context()))

			out := cmd.OutOrStdout()
			if taskID != "" {
				res, err := a.processor.Process(cmd.Context(), tenantID, taskID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%s\tnoop=%t\n", res.Task.ID, res.Task.State, res.Noop)
				return nil
			}

			res, err := a.batch().ProcessAll(cmd.Context(), tenantID, agentID)
			if err != nil {
				return err
			}
			for _, o := range res.Outcomes {
				if o.Err != nil {
					fmt.Fprintf(out, "%s\terror\t%v\n", o.TaskID, o.Err)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\tnoop=%t\n", o.TaskID, o.State, o.Noop)
			}
			fmt.Fprintf(out, "processed=%d skipped=%d failed=%d\n", res.Processed, res.Skipped, len(res.Errors))
			return nil
		},
	}
	cmd.Flags().String("tenant", "", "Tenant ID")
	cmd.Flags().String("agent", "", "Process every pending task of this agent")
	cmd.Flags().String("task", "", "Process this task only")
	return cmd
}

func recoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Fail working tasks whose processing was interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, _ := cmd.Flags().GetString("tenant")
			if tenantID == "" {
				return fmt.Errorf("--tenant is required")
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(cmd.Context()))

			olderThan, _ := cmd.Flags().GetDuration("older-than")
			if olderThan <= 0 {
				olderThan = a.cfg.Processor.StaleAfter
			}
			ids, err := a.processor.RecoverStale(cmd.Context(), tenantID, olderThan)
			for _, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, paytask.TaskStateFailed)
			}
			return err
		},
	}
	cmd.Flags().String("tenant", "", "Tenant ID")
	cmd.Flags().Duration("older-than", 0, "Minimum age of a stale task, defaults to processor.stale_after")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for jwt auth mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			tenantID, _ := cmd.Flags().GetString("tenant")
			agentID, _ := cmd.Flags().GetString("agent")
			subject, _ := cmd.Flags().GetString("subject")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if tenantID == "" {
				return fmt.Errorf("--tenant is required")
			}

			var opts []auth.TokenOption
			if cfg.Auth.Issuer != "" {
				opts = append(opts, auth.WithTokenIssuer(cfg.Auth.Issuer))
			}
			token, err := auth.IssueToken([]byte(cfg.Auth.Secret), auth.Caller{TenantID: tenantID, AgentID: agentID, Subject: subject}, ttl, opts...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("tenant", "", "Tenant ID claim")
	cmd.Flags().String("agent", "", "Restrict the token to one agent")
	cmd.Flags().String("subject", "", "Token subject")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "paytaskd %s (protocol %s)\n", Version, paytask.Version)
		},
	}
}
