package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kalambet/claimdecomp/internal/batch"
	"github.com/kalambet/claimdecomp/internal/config"
	"github.com/kalambet/claimdecomp/internal/dataset"
	"github.com/kalambet/claimdecomp/internal/engine"
	"github.com/kalambet/claimdecomp/internal/prompt"
	"github.com/kalambet/claimdecomp/internal/storage"
)

// --- pull ---

var pullCmd = &cobra.Command{
	Use:   "pull [model]",
	Short: "Make sure a model is installed, downloading it if missing",
	Long: `Make sure a model is installed in the local Ollama runtime.

The model name is matched exactly against the installed models; when it is
missing it is pulled with one progress bar per layer. Defaults to llama2.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model := "llama2"
		if len(args) == 1 {
			model = args[0]
		}

		eng, err := newEngine()
		if err != nil {
			return err
		}
		if err := engine.EnsureRunning(cmd.Context(), eng); err != nil {
			return err
		}
		return engine.EnsureModel(cmd.Context(), eng, model, cmd.OutOrStdout())
	},
}

// --- models ---

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models installed in the local runtime",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := engine.NewOllamaEngine(cfg.Ollama.BaseURL, cfg.Ollama.KeepAlive)
		models, err := eng.Client().ListModels(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(models) == 0 {
			fmt.Fprintln(out, "No models installed.")
			return nil
		}
		for _, m := range models {
			fmt.Fprintf(out, "%-32s %10s  %s\n",
				colorize(colorCyan, m.Name),
				humanize.Bytes(uint64(max(m.Size, 0))),
				humanize.Time(m.ModifiedAt),
			)
		}
		return nil
	},
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <message...>",
	Short: "Run one prompt against a model",
	Long: `Run one prompt against a model.

Modes: zero-shot, few-shot, cor-zero-shot, cor-few-shot.

Examples:
  claimdecomp ask "Is the sky blue?"
  claimdecomp ask --mode cor-zero-shot "What is 17 * 23?"
  claimdecomp ask --mode few-shot --examples pairs.yaml "Paris is in France."`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		modeName, _ := cmd.Flags().GetString("mode")
		model, _ := cmd.Flags().GetString("model")
		examplesPath, _ := cmd.Flags().GetString("examples")
		legacy, _ := cmd.Flags().GetBool("legacy-few-shot")
		noHistory, _ := cmd.Flags().GetBool("no-history")

		mode, err := prompt.ParseMode(modeName)
		if err != nil {
			return err
		}
		pairs, err := loadExamples(mode, examplesPath)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		asm, cleanup, err := newAssembler(out, legacy, !noHistory)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := asm.Run(cmd.Context(), prompt.Request{
			Mode:     mode,
			Model:    modelOrDefault(model),
			Message:  strings.Join(args, " "),
			Examples: pairs,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, res.Answer)
		return nil
	},
}

func loadExamples(mode prompt.Mode, path string) ([]prompt.Pair, error) {
	if !mode.UsesExamples() {
		if path != "" {
			printWarning("--examples is ignored in %s mode", mode)
		}
		return nil, nil
	}
	if path == "" {
		return nil, fmt.Errorf("%s mode needs --examples", mode)
	}
	return dataset.LoadPairs(path)
}

func init() {
	for _, c := range []*cobra.Command{askCmd, batchCmd} {
		c.Flags().String("mode", string(prompt.ModeZeroShot), "prompt mode: zero-shot, few-shot, cor-zero-shot, cor-few-shot")
		c.Flags().String("model", "", "model name (default: ollama.model)")
		c.Flags().String("examples", "", "training pairs file (.yaml, .json, .jsonl)")
		c.Flags().Bool("legacy-few-shot", false, "keep only the last training pair in few-shot prompts")
		c.Flags().Bool("no-history", false, "do not record runs in the history")
	}
}

// --- batch ---

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run one prompt mode over a file of queries",
	Long: `Run one prompt mode over a file of queries.

Queries come from a .txt file (one per line), a .jsonl file of
{"id","message"} objects, or a YAML list of the same. Results are
written as JSONL in input order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		modeName, _ := cmd.Flags().GetString("mode")
		model, _ := cmd.Flags().GetString("model")
		examplesPath, _ := cmd.Flags().GetString("examples")
		legacy, _ := cmd.Flags().GetBool("legacy-few-shot")
		noHistory, _ := cmd.Flags().GetBool("no-history")
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		if input == "" {
			return errors.New("--input is required")
		}
		if concurrency <= 0 {
			concurrency = cfg.Batch.Concurrency
		}

		mode, err := prompt.ParseMode(modeName)
		if err != nil {
			return err
		}
		pairs, err := loadExamples(mode, examplesPath)
		if err != nil {
			return err
		}
		queries, err := dataset.LoadQueries(input)
		if err != nil {
			return err
		}

		// Progress and headers go to stderr so JSONL on stdout stays clean.
		status := batch.NewSyncWriter(cmd.ErrOrStderr())
		asm, cleanup, err := newAssembler(status, legacy, !noHistory)
		if err != nil {
			return err
		}
		defer cleanup()

		job := batch.Job{Mode: mode, Model: modelOrDefault(model), Examples: pairs, Queries: queries}
		printStep("Running %d queries (%s, %s, concurrency %d)", len(queries), job.Mode, job.Model, concurrency)

		start := time.Now()
		results, err := batch.NewRunner(asm, status, concurrency).Run(cmd.Context(), job)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if output != "" && output != "-" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			out = f
		}
		if err := batch.WriteJSONL(out, job, results); err != nil {
			return err
		}

		failed := batch.Failed(results)
		elapsed := time.Since(start).Round(time.Millisecond)
		if failed > 0 {
			printWarning("%d of %d queries failed (%s)", failed, len(results), elapsed)
			return nil
		}
		printSuccess("%d queries done in %s", len(results), elapsed)
		return nil
	},
}

func init() {
	batchCmd.Flags().String("input", "", "queries file (.txt, .jsonl, .yaml)")
	batchCmd.Flags().String("output", "", "results file (default: stdout)")
	batchCmd.Flags().Int("concurrency", 0, "parallel queries (default: batch.concurrency)")
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded prompt runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(store)

		runs, err := store.RecentRuns(limit, offset)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs found.")
			return nil
		}

		for _, r := range runs {
			msg := truncate(strings.ReplaceAll(r.Message, "\n", " "), 60)
			status := colorize(colorGreen, r.Status)
			if r.Status == storage.StatusFailed {
				status = colorize(colorRed, r.Status)
			}
			fmt.Fprintf(out, "%s  %-12s  %-13s  %-9s  %s\n",
				colorize(colorCyan, shortID(r.ID)),
				humanize.Time(r.CreatedAt),
				r.Mode,
				status,
				msg,
			)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single run with its transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(store)

		run, err := findRun(store, args[0])
		if err != nil {
			return err
		}
		calls, err := run.DecodeTranscript()
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"id":          run.ID,
			"created_at":  run.CreatedAt.Format(time.RFC3339),
			"mode":        run.Mode,
			"model":       run.Model,
			"message":     run.Message,
			"examples":    run.Examples,
			"answer":      run.Answer,
			"status":      run.Status,
			"error":       run.Error,
			"duration_ms": run.DurationMS,
			"transcript":  calls,
		})
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(store)

		run, err := findRun(store, args[0])
		if err != nil {
			return err
		}
		if err := store.DeleteRun(run.ID); err != nil {
			return err
		}
		printSuccess("Deleted run %s", run.ID)
		return nil
	},
}

// findRun resolves a full ID or the 8-character prefix shown by history list.
func findRun(store *storage.Store, id string) (storage.Run, error) {
	run, err := store.GetRun(id)
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.Run{}, err
	}

	runs, err := store.RecentRuns(1000, 0)
	if err != nil {
		return storage.Run{}, err
	}
	var match *storage.Run
	for i := range runs {
		if strings.HasPrefix(runs[i].ID, id) {
			if match != nil {
				return storage.Run{}, fmt.Errorf("run prefix %s is ambiguous", id)
			}
			match = &runs[i]
		}
	}
	if match == nil {
		return storage.Run{}, fmt.Errorf("run %s: %w", id, storage.ErrNotFound)
	}
	return *match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	historyListCmd.Flags().Int("offset", 0, "number of runs to skip")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", config.Location())
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value.\n\nKeys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
