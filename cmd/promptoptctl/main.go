// Command promptoptctl is a small operator CLI for exercising the
// optimization pipeline without standing up the HTTP server: it reads a
// JSON request from a file or stdin, runs it through the pipeline, and
// prints the optimized result.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"promptopt/internal/canonicalize"
	"promptopt/internal/config"
	"promptopt/internal/pipeline"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	gray  = color.New(color.FgHiBlack).SprintFunc()
)

type optimizeFile struct {
	TenantID    string                    `json:"tenant_id"`
	Model       string                    `json:"model"`
	MaxTokens   int                       `json:"max_tokens"`
	Messages    []canonicalize.Message    `json:"messages"`
	Tools       map[string]any            `json:"tools"`
	RAGContext  []canonicalize.Doc        `json:"rag_context"`
	ToolOutputs []canonicalize.ToolOutput `json:"tool_outputs"`
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var inputPath string

	root := &cobra.Command{
		Use:   "promptoptctl",
		Short: "Exercise the prompt optimization pipeline from the command line",
	}

	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "Run one request through the pipeline and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(inputPath)
		},
	}
	optimizeCmd.Flags().StringVarP(&inputPath, "input", "i", "", "path to a JSON request file; reads stdin if omitted")
	root.AddCommand(optimizeCmd)

	return root
}

func runOptimize(inputPath string) error {
	raw, err := readInput(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	var reqFile optimizeFile
	if err := json.Unmarshal(raw, &reqFile); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}

	cfg := config.Defaults()
	if reqFile.Model != "" {
		cfg.Model = reqFile.Model
	}
	if reqFile.MaxTokens > 0 {
		cfg.MaxInputTokens = reqFile.MaxTokens
	}

	pl := pipeline.New()
	result, err := pl.Optimize(context.Background(), pipeline.Request{
		TenantID:    reqFile.TenantID,
		Messages:    reqFile.Messages,
		Tools:       reqFile.Tools,
		RAGContext:  reqFile.RAGContext,
		ToolOutputs: reqFile.ToolOutputs,
		Config:      cfg,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s route=%s tokens %d -> %d (%.1f%% saved) fallback=%v\n",
		green("optimized"), result.Route, result.TokensBefore, result.TokensAfter,
		result.CompressionRatio*100, result.FallbackUsed)
	fmt.Println(gray(fmt.Sprintf("trace_id=%s latency_ms=%d", result.TraceID, result.LatencyMS)))

	out, err := json.MarshalIndent(result.Messages, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
