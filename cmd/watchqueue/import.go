package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/amaumene/watchqueue/internal/api/handlers"
	"github.com/goccy/go-json"
	"github.com/schollz/progressbar/v3"
	"github.com/sourcegraph/conc/iter"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Add items from a JSON-lines file",
	Long: `Add items from a JSON-lines file, one item per line, using the same
fields as POST /api/items. Every line is parsed before anything is written;
items are then added in file order.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("owner", "", "owner identity (required)")
	importCmd.Flags().Bool("at-end", false, "append items to the back of the queue")
	importCmd.Flags().Bool("quiet", false, "disable the progress bar")
	importCmd.MarkFlagRequired("owner")
}

type importLine struct {
	number int
	raw    string
}

type parsedLine struct {
	req handlers.CreateItemRequest
	err error
}

func runImport(cmd *cobra.Command, args []string) error {
	owner, _ := cmd.Flags().GetString("owner")
	atEnd, _ := cmd.Flags().GetBool("at-end")
	quiet, _ := cmd.Flags().GetBool("quiet")

	lines, err := readLines(args[0])
	if err != nil {
		return err
	}

	parsed := iter.Map(lines, func(l *importLine) parsedLine {
		var req handlers.CreateItemRequest
		if err := json.Unmarshal([]byte(l.raw), &req); err != nil {
			return parsedLine{err: fmt.Errorf("line %d: %w", l.number, err)}
		}
		return parsedLine{req: req}
	})
	for _, p := range parsed {
		if p.err != nil {
			return p.err
		}
	}

	application, cleanup, err := bootstrap()
	if err != nil {
		return err
	}
	defer cleanup()

	var bar *progressbar.ProgressBar
	if !quiet {
		bar = progressbar.NewOptions(len(parsed),
			progressbar.OptionSetDescription("Importing"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("items"),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		)
	}

	added := 0
	for i, p := range parsed {
		in := p.req.Input()
		in.AtEnd = in.AtEnd || atEnd
		if _, err := application.Items.CreateItem(cmd.Context(), owner, in); err != nil {
			return fmt.Errorf("line %d: %w", lines[i].number, err)
		}
		added++
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	application.Logger.Info().Str("owner_id", owner).Int("added", added).Msg("Import finished")
	return nil
}

// readLines returns the non-blank lines of path with their 1-based line numbers
func readLines(path string) ([]importLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var lines []importLine
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		lines = append(lines, importLine{number: n, raw: raw})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}
