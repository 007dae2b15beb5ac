package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"inferd/internal/scan"
	"inferd/pkg/types"
)

// buildRootCmd constructs the Cobra command tree. Generation commands talk
// to a running daemon over HTTP; scan commands run the engine in-process.
func buildRootCmd() *cobra.Command {
	addr := envOr("INFERD_ADDR", "http://localhost:8080")

	root := &cobra.Command{
		Use:           "inferctl",
		Short:         "Client and local tools for the inferd daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&addr, "addr", addr, "Daemon base URL (defaults INFERD_ADDR or http://localhost:8080)")

	// generate
	var model string
	var maxTokens int
	var temperature float64
	var stream bool
	genCmd := &cobra.Command{
		Use:     "generate [prompt]",
		Short:   "Generate a completion via the daemon",
		Example: "  inferctl generate \"Write a haiku about the ocean.\"\n  inferctl generate --stream --model m1.gguf \"2+2=\"",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(addr)
			req := types.GenerateRequest{
				Model:       model,
				Prompt:      args[0],
				MaxTokens:   maxTokens,
				Temperature: temperature,
			}
			if stream {
				return c.generateStream(cmd.Context(), req, os.Stdout)
			}
			resp, err := c.generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Println(resp.Content)
			fmt.Fprintf(os.Stderr, "[%s, %d tokens, finish=%s]\n", resp.Backend, resp.Tokens, resp.FinishReason)
			return nil
		},
	}
	genCmd.Flags().StringVar(&model, "model", "", "Model id (empty uses the daemon default)")
	genCmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Maximum new tokens (0 uses the backend default)")
	genCmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature in [0,2]")
	genCmd.Flags().BoolVar(&stream, "stream", false, "Stream tokens as they are produced")
	root.AddCommand(genCmd)

	// models
	root.AddCommand(&cobra.Command{
		Use:   "models",
		Short: "List models known to the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := newClient(addr).models(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range models {
				line := m.ID
				if m.Arch != "" {
					line += "  arch=" + m.Arch
				}
				if m.Quant != "" {
					line += "  quant=" + m.Quant
				}
				if m.SizeBytes > 0 {
					line += fmt.Sprintf("  size=%dMB", m.SizeBytes>>20)
				}
				fmt.Println(line)
			}
			return nil
		},
	})

	// status
	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show daemon session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newClient(addr).status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("backend:      %s\n", st.Backend)
			fmt.Printf("initialized:  %v\n", st.Initialized)
			fmt.Printf("model loaded: %v\n", st.ModelLoaded)
			if st.ModelPath != "" {
				fmt.Printf("model path:   %s\n", st.ModelPath)
			}
			if st.LastError != "" {
				fmt.Printf("last error:   %s (%d)\n", st.LastError, st.LastErrorCode)
			}
			fmt.Printf("uptime:       %ds\n", st.UptimeSeconds)
			return nil
		},
	})

	// scan group: runs locally, no daemon needed
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Bulk filesystem operations (run locally)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("scan requires a subcommand: nul|dupes")
		},
	}
	var workers int
	scanCmd.PersistentFlags().IntVar(&workers, "workers", 0, "Worker count (0 = number of CPUs)")

	scanNul := &cobra.Command{
		Use:     "nul [root]",
		Short:   "Delete reserved-device-name files (nul, con, prn, aux, com1-9, lpt1-9)",
		Example: "  inferctl scan nul ./projects",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := scan.Scanner{Workers: workers}
			stats, err := s.CleanReserved(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("scanned %d entries, deleted %d, %d errors\n", stats.Scanned, stats.Matched, stats.Errors)
			return nil
		},
	}

	var minSize int64
	scanDupes := &cobra.Command{
		Use:     "dupes [root]",
		Short:   "Find duplicate files by content digest",
		Example: "  inferctl scan dupes ~/Downloads --min-size 1048576",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := scan.Scanner{Workers: workers}
			report, err := s.FindDuplicates(args[0], minSize)
			if err != nil {
				return err
			}
			for _, g := range report.Groups {
				fmt.Printf("%s  %d bytes x %d\n", g.Hash[:12], g.Size, len(g.Paths))
				for _, p := range g.Paths {
					fmt.Printf("  %s\n", p)
				}
			}
			fmt.Printf("%d groups, %d duplicate files, %s wasted, %dms\n",
				report.DuplicateGroups, report.DuplicateFiles, humanBytes(report.WastedBytes), report.ElapsedMS)
			return nil
		},
	}
	scanDupes.Flags().Int64Var(&minSize, "min-size", 0, "Skip files smaller than this many bytes")

	scanCmd.AddCommand(scanNul, scanDupes)
	root.AddCommand(scanCmd)

	return root
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return strings.TrimSuffix(fmt.Sprintf("%.1f", float64(n)/float64(div)), ".0") + string("KMGTPE"[exp]) + "B"
}
