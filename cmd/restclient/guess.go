package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/nebula-restclient/pkg/record"
	"github.com/ajitpratap0/nebula-restclient/pkg/schema"
	"github.com/ajitpratap0/nebula-restclient/pkg/source"
)

func newGuessCmd() *cobra.Command {
	var recordsPath string
	var sampleSize int

	cmd := &cobra.Command{
		Use:   "guess SAMPLE",
		Short: "Print a columns section guessed from a sample JSON file",
		Long: `Guess reads a JSON lines or JSON document sample, such as a saved API
response, and prints a columns section to paste into a task configuration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := record.ParsePath(recordsPath)
			if err != nil {
				return err
			}
			src, err := source.OpenFile(args[0], source.FileOptions{RecordsPath: path})
			if err != nil {
				return err
			}
			defer src.Close()

			records, err := source.Drain(cmd.Context(), src)
			if err != nil {
				return err
			}
			samples := make([]map[string]interface{}, 0, len(records))
			for _, r := range records {
				if m, ok := r.Root().(map[string]interface{}); ok {
					samples = append(samples, m)
				}
			}

			columns, err := schema.NewTypeInferenceEngine(nil, sampleSize).InferColumns(samples)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(map[string]interface{}{"columns": columns}); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVar(&recordsPath, "records-path", "data", "Path of the record array inside each document")
	cmd.Flags().IntVar(&sampleSize, "sample-size", 100, "Records to inspect; 0 reads them all")
	return cmd
}
