/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/perekladach/internal/detector"
	"github.com/valpere/perekladach/internal/orchestrator"
	"github.com/valpere/perekladach/internal/translator"
)

var (
	inputFile  string
	outputFile string
	sourceLang string
	targetLang string
	services   []string

	streamOutput  bool
	detectSource  bool
	recordHistory bool
	jsonOutput    bool
	verifyTarget  bool
	overallLimit  time.Duration
)

var translateCmd = &cobra.Command{
	Use:   "translate [text...]",
	Short: "Translate text with several providers at once",
	Long: `Translate text with several providers in parallel and print every
provider's outcome. Text comes from the arguments, --input, or stdin.

Providers are taken from --services, or the default set (OpenAI, DeepL,
Alibaba, Google web) when none are named. Credentials live in the config
file under "providers:", for example:

  providers:
    openai:
      apiKey: sk-...
    deepl:
      apiKey: ...
      timeout: 20

Use --stream to print partial output as it arrives.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputFile != "" && inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		text, err := readInput(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("nothing to translate")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), overallLimit)
		defer cancel()

		var det *detector.Detector
		if detectSource || verifyTarget {
			det = detector.New()
		}
		if detectSource {
			sourceLang = det.Resolve(text, sourceLang)
			zap.L().Debug("source language", zap.String("lang", sourceLang))
		}

		orch, _ := buildOrchestrator()
		req := translator.Request{
			Text:       text,
			SourceLang: sourceLang,
			TargetLang: targetLang,
			Services:   services,
			Config:     providersConfig(),
		}

		var results []translator.Result
		if streamOutput {
			results, err = runStream(ctx, cmd.OutOrStdout(), orch, req)
		} else {
			results, err = runAggregate(ctx, cmd.OutOrStdout(), orch, req)
		}

		if verifyTarget {
			verifyResults(cmd.ErrOrStderr(), det, results)
		}
		if recordHistory && len(results) > 0 {
			saveHistory(req, results)
		}
		if err != nil {
			return err
		}

		if outputFile != "" {
			return writeOutput(cmd.ErrOrStderr(), outputFile, results)
		}
		return nil
	},
}

func readInput(args []string, stdin io.Reader) (string, error) {
	switch {
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case inputFile != "":
		b, err := os.ReadFile(inputFile)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		return string(b), nil
	default:
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(b), nil
	}
}

func runAggregate(ctx context.Context, out io.Writer, orch *orchestrator.Orchestrator, req translator.Request) ([]translator.Result, error) {
	resp, err := orch.Execute(ctx, req)

	var allFailed *orchestrator.AllFailedError
	if errors.As(err, &allFailed) {
		printResults(out, allFailed.Results)
		return allFailed.Results, fmt.Errorf("all translation services failed")
	}
	if err != nil {
		return nil, err
	}

	printResults(out, resp.Results)
	return resp.Results, nil
}

func printResults(out io.Writer, results []translator.Result) {
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(translator.Response{Results: results})
		return
	}
	for _, r := range results {
		if r.Failed() {
			fmt.Fprintf(out, "[%s] error: %s\n", r.Name, r.Error)
			continue
		}
		if r.Latency > 0 {
			fmt.Fprintf(out, "[%s] (%s)\n%s\n\n", r.Name, r.Latency.Round(time.Millisecond), r.Text)
			continue
		}
		fmt.Fprintf(out, "[%s]\n%s\n\n", r.Name, r.Text)
	}
}

// runStream prints deltas directly when a single provider is asked and
// whole translations as each provider finishes otherwise.
func runStream(ctx context.Context, out io.Writer, orch *orchestrator.Orchestrator, req translator.Request) ([]translator.Result, error) {
	sink := orchestrator.NewChannelSink(64, 0)
	defer sink.Close()

	requestID := uuid.NewString()
	if err := orch.StartStream(ctx, req, requestID, sink); err != nil {
		return nil, err
	}

	live := len(req.Services) == 1 && !jsonOutput
	enc := json.NewEncoder(out)

	var results []translator.Result
	for ev := range sink.Events() {
		if jsonOutput {
			_ = enc.Encode(ev)
		}
		if ev.AllDone {
			break
		}
		if !ev.Done {
			if live {
				fmt.Fprint(out, ev.Delta)
			}
			continue
		}

		res := translator.Result{Name: ev.Service, Text: ev.Text, Error: ev.Error}
		results = append(results, res)
		switch {
		case jsonOutput:
		case live && res.Error == "":
			fmt.Fprintln(out)
		default:
			printResults(out, []translator.Result{res})
		}
	}

	for _, r := range results {
		if !r.Failed() {
			return results, nil
		}
	}
	return results, fmt.Errorf("all translation services failed")
}

// verifyResults warns about translations that do not look like the target
// language, which usually means a provider echoed the input.
func verifyResults(out io.Writer, det *detector.Detector, results []translator.Result) {
	for _, r := range results {
		if r.Failed() {
			continue
		}
		if ok, detected := det.Check(r.Text, targetLang); !ok {
			fmt.Fprintf(out, "Warning: %s output looks like %s, not %s\n", r.Name, detected, targetLang)
		}
	}
}

// writeOutput stores the first successful translation, which is the fastest
// one since results arrive in completion order.
func writeOutput(status io.Writer, path string, results []translator.Result) error {
	for _, r := range results {
		if r.Failed() {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(r.Text), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(status, "Saved %s translation to %s\n", r.Name, path)
		return nil
	}
	return fmt.Errorf("no successful translation to write")
}

func saveHistory(req translator.Request, results []translator.Result) {
	db, err := openHistory()
	if err != nil {
		zap.L().Warn("history disabled", zap.Error(err))
		return
	}
	defer db.Close()

	req.Config = nil
	id, err := db.Record(context.Background(), req, results)
	if err != nil {
		zap.L().Warn("failed to record history", zap.Error(err))
		return
	}
	zap.L().Debug("history recorded", zap.String("id", id))
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input file to translate")
	translateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the fastest successful translation to this file")
	translateCmd.Flags().StringVarP(&sourceLang, "source", "s", "auto", "Source language code")
	translateCmd.Flags().StringVarP(&targetLang, "target", "t", "", "Target language code (required)")
	translateCmd.Flags().StringSliceVar(&services, "services", nil, "Providers to use (comma-separated, default set if empty)")

	translateCmd.Flags().BoolVar(&streamOutput, "stream", false, "Print partial output as it arrives")
	translateCmd.Flags().BoolVar(&detectSource, "detect", true, "Detect the source language locally when it is auto")
	translateCmd.Flags().BoolVar(&recordHistory, "history", false, "Record the request and results in the history database")
	translateCmd.Flags().BoolVar(&verifyTarget, "verify", false, "Warn when a translation does not look like the target language")
	translateCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	translateCmd.Flags().DurationVar(&overallLimit, "timeout", 90*time.Second, "Overall deadline for the whole request")

	translateCmd.MarkFlagRequired("target")
}
