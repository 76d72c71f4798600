package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobintake/internal/model"
	"github.com/amishk599/jobintake/internal/registry"
	"github.com/amishk599/jobintake/internal/report"
	"github.com/amishk599/jobintake/internal/store"
	"github.com/amishk599/jobintake/internal/tui"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect and change the source registry",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every source with its switches and senders",
	Args:  cobra.NoArgs,
	RunE:  runSourcesList,
}

var sourcesSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Change the capability switches of one source",
	Example: "  jobintake sources set Unknown --analysis=false\n" +
		"  jobintake sources set HelloWork --creation --enrichment",
	Args: cobra.ExactArgs(1),
	RunE: runSourcesSet,
}

var sourcesEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Toggle capability switches interactively (TUI)",
	Args:  cobra.NoArgs,
	RunE:  runSourcesEdit,
}

var sourcesInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default registry if none exists yet",
	Args:  cobra.NoArgs,
	RunE:  runSourcesInit,
}

var setCreation, setEnrichment, setAnalysis bool

func init() {
	sourcesSetCmd.Flags().BoolVar(&setCreation, "creation", false, "allow offers to be created from this source")
	sourcesSetCmd.Flags().BoolVar(&setEnrichment, "enrichment", false, "allow page enrichment of this source's offers")
	sourcesSetCmd.Flags().BoolVar(&setAnalysis, "analysis", false, "hand enriched offers to analysis")

	sourcesCmd.AddCommand(sourcesListCmd, sourcesSetCmd, sourcesEditCmd, sourcesInitCmd)
	rootCmd.AddCommand(sourcesCmd)
}

// loadRegistry reads the persisted registry. The boolean reports whether the
// repository was empty, in which case the default registry is returned.
func loadRegistry(ctx context.Context, repo store.SourceRepository) (*registry.Registry, bool, error) {
	entries, err := repo.LoadSources(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load sources: %w", err)
	}
	if len(entries) == 0 {
		return registry.Default(), true, nil
	}
	return registry.New(entries), false, nil
}

func openSourcesCmd(ctx context.Context) (*app, error) {
	logger := setupLogger(debug)
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	return openSourcesOnly(ctx, cfg, logger)
}

func runSourcesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openSourcesCmd(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	reg, empty, err := loadRegistry(ctx, a.sources)
	if err != nil {
		return err
	}
	if empty {
		fmt.Println("Registry is empty; showing the defaults `jobintake sources init` would write.")
	}
	return report.Sources(os.Stdout, reg.List())
}

func runSourcesSet(cmd *cobra.Command, args []string) error {
	name, ok := model.ParseSourceName(args[0])
	if !ok {
		return fmt.Errorf("unknown source %q", args[0])
	}

	var patch model.CapabilityPatch
	if cmd.Flags().Changed("creation") {
		patch.Creation = &setCreation
	}
	if cmd.Flags().Changed("enrichment") {
		patch.Enrichment = &setEnrichment
	}
	if cmd.Flags().Changed("analysis") {
		patch.Analysis = &setAnalysis
	}
	if patch.Empty() {
		return fmt.Errorf("nothing to change: pass --creation, --enrichment or --analysis")
	}

	ctx := cmd.Context()
	a, err := openSourcesCmd(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	reg, _, err := loadRegistry(ctx, a.sources)
	if err != nil {
		return err
	}
	if !reg.UpsertCapabilities(name, patch) {
		return fmt.Errorf("source %s is not in the registry", name)
	}
	if err := a.sources.SaveSources(ctx, reg.List()); err != nil {
		return fmt.Errorf("save sources: %w", err)
	}

	s, _ := reg.Get(name)
	a.logger.Info("source updated",
		"source", name,
		"creation", s.Capabilities.Creation,
		"enrichment", s.Capabilities.Enrichment,
		"analysis", s.Capabilities.Analysis,
	)
	return nil
}

func runSourcesEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	a, err := openSourcesOnly(ctx, cfg, discardLogger())
	if err != nil {
		return err
	}
	defer a.Close()

	reg, _, err := loadRegistry(ctx, a.sources)
	if err != nil {
		return err
	}

	saved, err := tui.RunSourcesEditor(reg.List(), func(sources []model.Source) error {
		return a.sources.SaveSources(ctx, sources)
	})
	if err != nil {
		return err
	}
	if saved {
		fmt.Println("Registry saved.")
	}
	return nil
}

func runSourcesInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openSourcesCmd(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	reg, empty, err := loadRegistry(ctx, a.sources)
	if err != nil {
		return err
	}
	if !empty {
		fmt.Printf("Registry already holds %d sources; nothing written.\n", reg.Len())
		return nil
	}
	if err := a.sources.SaveSources(ctx, reg.List()); err != nil {
		return fmt.Errorf("save sources: %w", err)
	}
	fmt.Printf("Wrote %d default sources.\n", reg.Len())
	return nil
}
