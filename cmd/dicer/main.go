// Package main is the entry point for the dicer command.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lemonberrylabs/dicenotation/pkg/config"
	"github.com/lemonberrylabs/dicenotation/pkg/dice"
	"github.com/lemonberrylabs/dicenotation/pkg/roll"
	"github.com/lemonberrylabs/dicenotation/pkg/rolllog"
	"github.com/lemonberrylabs/dicenotation/pkg/store"
	"github.com/lemonberrylabs/dicenotation/pkg/store/sqlite"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "dicer",
		Short:        "Dice notation roller",
		SilenceUsage: true,
	}
	root.Version = version + " (commit=" + commit + ", built=" + date + ")"
	root.SetVersionTemplate("dicer version {{.Version}}\n")

	root.PersistentFlags().Int("max-dice", 0, "Largest count in one dice spec (default 10000, env DICER_MAX_DICE)")
	root.PersistentFlags().Int("roll-limit", 0, "Most dice rolled by one request (default 100000, env DICER_ROLL_LIMIT)")

	root.AddCommand(newRollCmd(), newFormatCmd(), newServeCmd(), newMCPCmd())
	return root
}

func newRollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roll <notation...>",
		Short: "Roll dice notation and print the total",
		Example: `  dicer roll 3d6 + 2
  dicer roll 4d6 keep highest 3 --count 6
  dicer roll d20 emphasis --seed 42 --verbose
  dicer roll d20 -2`,
		// Flags are split from the notation by hand so negative terms
		// such as "-2" or "-d4" are not taken for shorthand flags.
		DisableFlagParsing: true,
		RunE:               runRoll,
	}
	cmd.Flags().Int64("seed", 0, "Seed for a reproducible roll; repeated rolls use seed, seed+1, ...")
	cmd.Flags().Int("count", 1, "Number of times to roll")
	cmd.Flags().BoolP("verbose", "v", false, "Print the canonical notation, every die and the seed")
	return cmd
}

func newFormatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "format <notation...>",
		Short: "Print the canonical form of dice notation without rolling",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			node, err := compilerFor(cfg).Compile(strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dice.Format(node))
			return nil
		},
	}
}

// splitNotation separates flag arguments from notation terms. Anything
// after "--", and any single-dash argument that is not a known shorthand,
// is notation.
func splitNotation(flags *pflag.FlagSet, args []string) (notation, flagArgs []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return append(notation, args[i+1:]...), flagArgs
		}

		var f *pflag.Flag
		switch {
		case strings.HasPrefix(arg, "--"):
			name, _, _ := strings.Cut(arg[2:], "=")
			f = flags.Lookup(name)
			if f == nil {
				// Unknown long flags are left for Parse to reject.
				flagArgs = append(flagArgs, arg)
				continue
			}
		case len(arg) > 1 && arg[0] == '-':
			f = flags.ShorthandLookup(arg[1:2])
		}
		if f == nil {
			notation = append(notation, arg)
			continue
		}

		flagArgs = append(flagArgs, arg)
		takesValue := f.NoOptDefVal == "" && !strings.Contains(arg, "=")
		if !strings.HasPrefix(arg, "--") && len(arg) > 2 {
			takesValue = false
		}
		if takesValue && i+1 < len(args) {
			i++
			flagArgs = append(flagArgs, args[i])
		}
	}
	return notation, flagArgs
}

func runRoll(cmd *cobra.Command, args []string) error {
	notation, flagArgs := splitNotation(cmd.Flags(), args)
	if err := cmd.Flags().Parse(flagArgs); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return cmd.Help()
		}
		return err
	}
	if help, _ := cmd.Flags().GetBool("help"); help {
		return cmd.Help()
	}
	if len(notation) == 0 {
		return fmt.Errorf("requires dice notation")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	count, _ := cmd.Flags().GetInt("count")
	if count < 1 {
		return fmt.Errorf("--count must be at least 1, got %d", count)
	}
	verbose, _ := cmd.Flags().GetBool("verbose")

	var seed *int64
	if cmd.Flags().Changed("seed") {
		v, _ := cmd.Flags().GetInt64("seed")
		seed = &v
	}

	svc := newService(cfg, store.New())
	out := cmd.OutOrStdout()

	for i := 0; i < count; i++ {
		req := roll.Request{Notation: strings.Join(notation, " ")}
		if seed != nil {
			s := *seed + int64(i)
			req.Seed = &s
		}

		r, err := svc.Roll(cmd.Context(), req)
		if err != nil {
			return err
		}

		if verbose {
			fmt.Fprintf(out, "%s = %d  [%s]  seed=%d\n", r.Canonical, r.Total, rolllog.Format(r.Dice), r.Seed)
		} else {
			fmt.Fprintln(out, r.Total)
		}
	}
	return nil
}

// loadConfig reads the environment and applies any flags the command was
// given on top of it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if err := config.ParseEnv(&cfg); err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if v, _ := flags.GetInt("max-dice"); v != 0 {
		cfg.MaxDice = v
	}
	if v, _ := flags.GetInt("roll-limit"); v != 0 {
		cfg.RollLimit = v
	}
	if flags.Lookup("host") != nil {
		if v, _ := flags.GetString("host"); v != "" {
			cfg.Host = v
		}
		if v, _ := flags.GetInt("port"); v != 0 {
			cfg.HTTPPort = v
		}
		if v, _ := flags.GetInt("grpc-port"); v != 0 {
			cfg.GRPCPort = v
		}
	}
	if flags.Lookup("db") != nil {
		if v, _ := flags.GetString("db"); v != "" {
			cfg.DBPath = v
		}
		if v, _ := flags.GetString("presets-dir"); v != "" {
			cfg.PresetsDir = v
		}
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func compilerFor(cfg config.Config) *dice.Compiler {
	return dice.NewCompiler(dice.Options{MaxDice: cfg.MaxDice})
}

func newService(cfg config.Config, repo store.Repository) *roll.Service {
	return roll.NewService(repo,
		roll.WithCompiler(compilerFor(cfg)),
		roll.WithRollLimit(cfg.RollLimit),
	)
}

// openRepository opens the SQLite store when a database path is configured
// and the in-memory store otherwise.
func openRepository(cfg config.Config) (store.Repository, error) {
	if cfg.DBPath == "" {
		return store.New(), nil
	}
	s, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	log.Printf("Using SQLite database %s", cfg.DBPath)
	return s, nil
}

// setupService opens storage and imports presets for the long-running
// commands.
func setupService(ctx context.Context, cfg config.Config) (*roll.Service, error) {
	repo, err := openRepository(cfg)
	if err != nil {
		return nil, err
	}
	svc := newService(cfg, repo)

	if cfg.PresetsDir != "" {
		n, err := svc.ImportPresets(ctx, cfg.PresetsDir)
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("import presets: %w", err)
		}
		log.Printf("Loaded %d presets from %s", n, cfg.PresetsDir)
	}
	return svc, nil
}
