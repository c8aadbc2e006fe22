package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bureauhq/bureau/internal/ingest"
)

var (
	ingestDocType    string
	ingestDepartment string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file or directory]...",
	Short: "Index documents into the knowledge store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDocType, "type", "", "document type metadata (e.g. policy, guide)")
	ingestCmd.Flags().StringVar(&ingestDepartment, "department", "", "owning department metadata")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	metadata := map[string]string{}
	if ingestDocType != "" {
		metadata[ingest.MetaDocumentType] = ingestDocType
	}
	if ingestDepartment != "" {
		metadata[ingest.MetaDepartment] = ingestDepartment
	}

	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("walking %s: %w", arg, err)
		}
	}

	indexed := 0
	for _, file := range files {
		ids, err := a.Pipeline.IngestFile(ctx, file, metadata)
		switch {
		case err == nil:
			fmt.Printf("indexed %s (%d chunks)\n", file, len(ids))
			indexed++
		case errors.Is(err, ingest.ErrUnsupportedFormat):
			fmt.Printf("skipped %s (unsupported format)\n", file)
		default:
			return fmt.Errorf("ingesting %s: %w", file, err)
		}
	}

	fmt.Printf("done: %d of %d files indexed\n", indexed, len(files))
	return nil
}
