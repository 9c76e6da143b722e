package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/guri-assistant/guri/pkg/cli"
	"github.com/guri-assistant/guri/pkg/kv"
	"github.com/guri-assistant/guri/pkg/memstore"
	"github.com/guri-assistant/guri/pkg/vecstore"
)

var memoryFlags struct {
	output string
	filter string
	kinds  []string
	topK   int
	kind   string
	source string
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect the long-term memory store",
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored records",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openMemory(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeStore()

		records, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		return printMemory(records)
	},
}

var memorySearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search records by meaning",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openMemory(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer closeStore()

		records, err := store.Query(args[0], memoryFlags.topK, memoryFlags.kinds...).Wait(cmd.Context())
		if err != nil {
			return err
		}
		return printMemory(records)
	},
}

var memoryUpdateCmd = &cobra.Command{
	Use:   "update <id> [content]",
	Short: "Edit a record's content or metadata",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		content := ""
		if len(args) == 2 {
			content = args[1]
		}
		if content == "" && memoryFlags.kind == "" && memoryFlags.source == "" {
			return fmt.Errorf("nothing to update: give new content, --kind or --source")
		}

		// Pull in the embedder when content changes so the edited
		// record stays searchable.
		store, closeStore, err := openMemory(cmd.Context(), content != "")
		if err != nil {
			return err
		}

		if _, err := store.Get(cmd.Context(), args[0]); err != nil {
			closeStore()
			return fmt.Errorf("record %s: %w", args[0], err)
		}
		store.Update(args[0], content, memstore.Metadata{
			Kind:   memoryFlags.kind,
			Source: memoryFlags.source,
		})
		closeStore()
		fmt.Println("updated", args[0])
		return nil
	},
}

var memoryDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete records by id",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openMemory(cmd.Context(), false)
		if err != nil {
			return err
		}

		for _, id := range args {
			if _, err := store.Get(cmd.Context(), id); err != nil {
				closeStore()
				return fmt.Errorf("record %s: %w", id, err)
			}
			store.Delete(id)
		}
		// Close drains the writer queue, flushing the deletes.
		closeStore()
		fmt.Printf("deleted %d record(s)\n", len(args))
		return nil
	},
}

func init() {
	memoryCmd.PersistentFlags().StringVarP(&memoryFlags.output, "output", "o", "yaml", "output format (yaml, json, raw)")
	memoryCmd.PersistentFlags().StringVar(&memoryFlags.filter, "filter", "", "jq expression applied to the output")
	memorySearchCmd.Flags().StringSliceVar(&memoryFlags.kinds, "kind", nil, "restrict to record kinds")
	memorySearchCmd.Flags().IntVar(&memoryFlags.topK, "top", 5, "number of results")
	memoryUpdateCmd.Flags().StringVar(&memoryFlags.kind, "kind", "", "new record kind")
	memoryUpdateCmd.Flags().StringVar(&memoryFlags.source, "source", "", "new record source")
	memoryCmd.AddCommand(memoryListCmd, memorySearchCmd, memoryUpdateCmd, memoryDeleteCmd)
	rootCmd.AddCommand(memoryCmd)
}

// openMemory opens the on-disk store. Search needs an embedder to turn
// the query into a vector, so withEmbedder pulls in the language model
// client; list and delete work offline.
func openMemory(ctx context.Context, withEmbedder bool) (*memstore.Store, func(), error) {
	paths, store, err := loadSettings()
	if err != nil {
		return nil, nil, err
	}

	db, err := kv.NewBadger(kv.BadgerOptions{Dir: paths.MemoryDir()})
	if err != nil {
		return nil, nil, fmt.Errorf("open memory db: %w", err)
	}

	cfg := memstore.Config{KV: db, Logger: slog.Default()}
	if withEmbedder {
		model, err := buildLLM(ctx, store.Get())
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		cfg.Embedder = model
		cfg.Index = vecstore.NewMemory()
	}

	mem := memstore.New(cfg)
	if err := mem.Start(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return mem, func() {
		mem.Close()
		db.Close()
	}, nil
}

func printMemory(records []memstore.Record) error {
	return cli.Print(records, cli.OutputOptions{
		Format: cli.OutputFormat(memoryFlags.output),
		Filter: memoryFlags.filter,
	})
}
