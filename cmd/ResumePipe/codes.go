package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/ResumePipe/internal/store"
	"github.com/BTreeMap/ResumePipe/internal/util"
)

func newCodesCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codes",
		Short: "Manage verification codes",
	}

	addCmd := &cobra.Command{
		Use:   "add code [code...]",
		Short: "Add verification codes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cfg, func(st store.Store) error {
				return addCodes(cmd, st, args)
			})
		},
	}

	var count, length int
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate random verification codes and print them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 || length <= 0 {
				return fmt.Errorf("--count and --length must be positive")
			}
			codes := make([]string, 0, count)
			for range count {
				code, err := util.GenerateVerificationCode(length)
				if err != nil {
					return fmt.Errorf("failed to generate code: %w", err)
				}
				codes = append(codes, code)
			}
			return withStore(cfg, func(st store.Store) error {
				return addCodes(cmd, st, codes)
			})
		},
	}
	generateCmd.Flags().IntVarP(&count, "count", "n", 10, "number of codes")
	generateCmd.Flags().IntVar(&length, "length", DefaultCodeLength, "characters per code")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List codes that have not been used",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cfg, func(st store.Store) error {
				codes, err := st.ListCodes(cmd.Context())
				if err != nil {
					return err
				}
				return printLines(cmd.OutOrStdout(), codes)
			})
		},
	}

	cmd.AddCommand(addCmd, generateCmd, listCmd)
	return cmd
}

func newUsersCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "Print the usernames that have received a résumé",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.UsageLog != "" {
				jsonLog := store.NewJSONUsageLog(cfg.UsageLog)
				if err := jsonLog.Load(); err != nil {
					return err
				}
				return printUsage(cmd, jsonLog)
			}
			return withStore(cfg, func(st store.Store) error {
				return printUsage(cmd, st)
			})
		},
	}
}

// withStore opens the configured database for one command.
func withStore(cfg *Config, fn func(store.Store) error) error {
	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func addCodes(cmd *cobra.Command, st store.CodeStore, raw []string) error {
	codes := make([]string, 0, len(raw))
	for _, c := range raw {
		if c = store.NormalizeCode(c); c != "" {
			codes = append(codes, c)
		}
	}
	n, err := st.AddCodes(cmd.Context(), codes...)
	if err != nil {
		return fmt.Errorf("failed to add codes: %w", err)
	}
	if err := printLines(cmd.OutOrStdout(), codes); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d codes added\n", n, len(codes))
	return nil
}

func printUsage(cmd *cobra.Command, log store.UsageLog) error {
	records, err := log.List(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, r := range records {
		if r.CreatedAt.IsZero() {
			fmt.Fprintln(out, r.Username)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", r.Username, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func printLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
