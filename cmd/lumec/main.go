// Command lumec compiles built-in sample flow graphs through the arm64
// backend and dumps the emitted machine code, PC descriptors, and deopt
// table. It exists for eyeballing codegen changes without a full VM around
// the backend.
package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/lumevm/lume/vm/backend"
	"github.com/lumevm/lume/vm/backend/arm64"
)

var rootCmd = &cobra.Command{
	Use:   "lumec",
	Short: "Lume VM backend inspection tool",
}

var (
	configPath  string
	unoptimized bool
)

var compileCmd = &cobra.Command{
	Use:   "compile [sample...]",
	Short: "Compile sample graphs and dump code and metadata",
	RunE:  runCompile,
}

var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "List the built-in sample graphs",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range sampleNames() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func main() {
	compileCmd.Flags().StringVarP(&configPath, "config", "c", "", "TOML file with backend flags")
	compileCmd.Flags().BoolVar(&unoptimized, "unoptimized", false, "compile as the unoptimized tier")
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(samplesCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// fileConfig mirrors backend.Config for TOML loading.
type fileConfig struct {
	Optimizing                   bool  `toml:"optimizing"`
	UseOSR                       bool  `toml:"use_osr"`
	OptimizationCounterThreshold int64 `toml:"optimization_counter_threshold"`
	ForceSlowPathStackOverflow   bool  `toml:"force_slow_path_stack_overflow"`
}

func loadConfig() (*backend.Config, error) {
	cfg := &backend.Config{Optimizing: true, UseOSR: true}
	if configPath != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(configPath, &fc); err != nil {
			return nil, fmt.Errorf("loading %s: %w", configPath, err)
		}
		cfg = &backend.Config{
			Optimizing:                   fc.Optimizing,
			UseOSR:                       fc.UseOSR,
			OptimizationCounterThreshold: fc.OptimizationCounterThreshold,
			ForceSlowPathStackOverflow:   fc.ForceSlowPathStackOverflow,
		}
	}
	if unoptimized {
		cfg.Optimizing = false
	}
	return cfg, nil
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	names := args
	if len(names) == 0 {
		names = sampleNames()
	}
	out := cmd.OutOrStdout()
	for _, name := range names {
		build, ok := samples[name]
		if !ok {
			return fmt.Errorf("unknown sample %q (try `lumec samples`)", name)
		}
		g := build()
		if err := arm64.AssignLocations(g, cfg); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fn, err := arm64.Compile(g, cfg, devEnv{})
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		dump(out, name, cfg, fn)
	}
	return nil
}

func dump(out io.Writer, name string, cfg *backend.Config, fn *backend.CompiledFunction) {
	tier := "optimized"
	if !cfg.Optimizing {
		tier = "unoptimized"
	}
	fmt.Fprintf(out, "== %s (%s), %d bytes\n", name, tier, len(fn.Code))
	for off := 0; off < len(fn.Code); off += 16 {
		end := off + 16
		if end > len(fn.Code) {
			end = len(fn.Code)
		}
		fmt.Fprintf(out, "  %08x ", off)
		for _, b := range fn.Code[off:end] {
			fmt.Fprintf(out, " %02x", b)
		}
		fmt.Fprintln(out)
	}
	if len(fn.Descriptors) > 0 {
		fmt.Fprintln(out, "  descriptors:")
		for _, d := range fn.Descriptors {
			fmt.Fprintf(out, "    +%#06x %-12s deopt=%d pos=%d\n", d.Offset, d.Kind, d.DeoptID, d.Pos)
		}
	}
	if len(fn.DeoptStubs) > 0 {
		fmt.Fprintln(out, "  deopt stubs:")
		for _, s := range fn.DeoptStubs {
			fmt.Fprintf(out, "    +%#06x id=%d reason=%s\n", s.Offset, s.DeoptID, s.Reason)
		}
	}
}

func sampleNames() []string {
	names := make([]string, 0, len(samples))
	for name := range samples {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
