package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/gpttok/internal/envconfig"
	"github.com/born-ml/gpttok/internal/logutil"
	"github.com/born-ml/gpttok/tokenizer"
)

const version = "v0.1.0"

// NewCLI builds the gpttok command tree.
func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gpttok",
		Short: "GPT-2/GPT-3 byte-level BPE tokenizer",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
			slog.SetDefault(logutil.NewLogger(cmd.ErrOrStderr(), envconfig.LogLevel()))
		},
	}

	rootCmd.PersistentFlags().String("vocab", envconfig.Vocab(), "Vocabulary directory, tokenizer.json, .gguf file or encoding name")
	rootCmd.PersistentFlags().Int("cache-size", envconfig.CacheSize(), "Token cache entries: 0 unbounded, <0 disabled")

	cobra.EnableCommandSorting = false

	encodeCmd := &cobra.Command{
		Use:   "encode [text...]",
		Short: "Encode text to token ids",
		Long:  "Encode the arguments, joined by spaces, or standard input when no arguments are given. Prints a JSON array of ids.",
		RunE:  encodeHandler,
	}
	encodeCmd.Flags().Bool("lines", false, "Encode every input line separately and print one JSON array per line")

	decodeCmd := &cobra.Command{
		Use:   "decode [id...]",
		Short: "Decode token ids to text",
		Long:  "Decode the ids given as arguments, or a JSON array of ids read from standard input.",
		RunE:  decodeHandler,
	}

	countCmd := &cobra.Command{
		Use:   "count [text...]",
		Short: "Count the tokens of text",
		RunE:  countHandler,
	}

	exportCmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write the vocabulary to a GGUF file",
		Args:  cobra.ExactArgs(1),
		RunE:  exportHandler,
	}

	envCmd := &cobra.Command{
		Use:   "env",
		Short: "Show environment settings",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			vars := envconfig.AsMap()
			for _, k := range slices.Sorted(maps.Keys(vars)) {
				v := vars[k]
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%v\t# %s\n", v.Name, v.Value, v.Description)
			}
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gpttok %s\n", version)
		},
	}

	rootCmd.AddCommand(
		encodeCmd,
		decodeCmd,
		countCmd,
		exportCmd,
		envCmd,
		versionCmd,
	)

	return rootCmd
}

func loadEncoder(cmd *cobra.Command) (*tokenizer.Encoder, error) {
	vocab, err := cmd.Flags().GetString("vocab")
	if err != nil {
		return nil, err
	}
	cacheSize, err := cmd.Flags().GetInt("cache-size")
	if err != nil {
		return nil, err
	}

	cfg := tokenizer.DefaultConfig()
	cfg.CacheSize = cacheSize
	cfg.Parallel.NumWorkers = envconfig.NumParallel()
	cfg.Parallel.Enabled = cfg.Parallel.NumWorkers > 1

	enc, err := tokenizer.LoadWithConfig(vocab, cfg)
	if err != nil {
		return nil, err
	}
	if err := enc.Load(); err != nil {
		return nil, err
	}

	slog.Debug("encoder ready", "vocab", vocab, "tokens", enc.VocabSize(), "cache_size", cacheSize)
	return enc, nil
}

// inputText joins args, or reads all of stdin when there are none.
func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(b), nil
}

func encodeHandler(cmd *cobra.Command, args []string) error {
	enc, err := loadEncoder(cmd)
	if err != nil {
		return err
	}

	lines, err := cmd.Flags().GetBool("lines")
	if err != nil {
		return err
	}
	if lines {
		return encodeLines(cmd, enc, args)
	}

	text, err := inputText(cmd, args)
	if err != nil {
		return err
	}
	ids, err := enc.Encode(text)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), ids)
}

func encodeLines(cmd *cobra.Command, enc *tokenizer.Encoder, args []string) error {
	texts := args
	if len(texts) == 0 {
		sc := bufio.NewScanner(cmd.InOrStdin())
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for sc.Scan() {
			texts = append(texts, sc.Text())
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
	}

	batch, err := enc.EncodeBatch(cmd.Context(), texts)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(cmd.OutOrStdout())
	for _, ids := range batch {
		if err := writeJSON(w, ids); err != nil {
			return err
		}
	}
	return w.Flush()
}

func decodeHandler(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(cmd, args)
	if err != nil {
		return err
	}

	enc, err := loadEncoder(cmd)
	if err != nil {
		return err
	}

	text, err := enc.Decode(ids)
	if err != nil {
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), text)
	return err
}

func parseIDs(cmd *cobra.Command, args []string) ([]int32, error) {
	if len(args) == 0 {
		var ids []int32
		if err := json.NewDecoder(cmd.InOrStdin()).Decode(&ids); err != nil {
			return nil, fmt.Errorf("failed to read ids: expected a JSON array: %w", err)
		}
		return ids, nil
	}

	ids := make([]int32, len(args))
	for i, arg := range args {
		n, err := strconv.ParseInt(arg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid token id %q: %w", arg, err)
		}
		ids[i] = int32(n)
	}
	return ids, nil
}

func countHandler(cmd *cobra.Command, args []string) error {
	enc, err := loadEncoder(cmd)
	if err != nil {
		return err
	}

	text, err := inputText(cmd, args)
	if err != nil {
		return err
	}
	n, err := enc.Count(text)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
	return err
}

func exportHandler(cmd *cobra.Command, args []string) error {
	enc, err := loadEncoder(cmd)
	if err != nil {
		return err
	}
	v, err := enc.Vocabulary()
	if err != nil {
		return err
	}

	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	if err := tokenizer.WriteGGUF(f, v); err != nil {
		return errors.Join(err, f.Close())
	}
	if err := f.Close(); err != nil {
		return err
	}

	slog.Info("exported vocabulary", "file", args[0], "tokens", v.Size(), "merges", v.NumMerges())
	return nil
}

func writeJSON(w io.Writer, ids []int32) error {
	return json.NewEncoder(w).Encode(ids)
}
