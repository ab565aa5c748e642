package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/docintel/internal/document"
	"github.com/JaimeStill/docintel/internal/pipeline"
)

var processFlags struct {
	file      string
	mediaType string
}

var processCmd = &cobra.Command{
	Use:   "process [intake/<name>]",
	Short: "Run one document through the pipeline",
	Long:  "Run the object at the given intake key through the pipeline. With --file,\nthe local file is first uploaded to intake/<basename>.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProcess,
}

func init() {
	f := processCmd.Flags()
	f.StringVarP(&processFlags.file, "file", "f", "", "Local file to upload to the intake prefix before processing")
	f.StringVar(&processFlags.mediaType, "media-type", "", "Declared media type overriding detection")
}

func runProcess(cmd *cobra.Command, args []string) error {
	if (len(args) == 0) == (processFlags.file == "") {
		return fmt.Errorf("provide either an intake key or --file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	key := ""
	if len(args) == 1 {
		key = args[0]
	} else {
		key, err = uploadIntake(ctx, a, processFlags.file)
		if err != nil {
			return err
		}
	}

	run, err := a.domain.Pipeline.Run(ctx, pipeline.Trigger{
		Bucket:    a.infra.Storage.Container(),
		Key:       key,
		MediaType: processFlags.mediaType,
	})
	if run == nil {
		return err
	}

	printRun(cmd, run)
	if err != nil {
		return fmt.Errorf("run %s failed: %w", run.ID, err)
	}
	return nil
}

func uploadIntake(ctx context.Context, a *app, file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	key := path.Join(document.IntakePrefix, filepath.Base(file))
	contentType := mime.TypeByExtension(filepath.Ext(file))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := a.infra.Storage.Upload(ctx, key, f, contentType); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

func printRun(cmd *cobra.Command, run *pipeline.Run) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", run.ID)
	fmt.Fprintf(out, "Document: %s\n", run.Reference.Key)
	fmt.Fprintf(out, "State:    %s\n", run.State)
	if run.Classification != nil {
		fmt.Fprintf(out, "Label:    %s (%.2f)\n", run.Classification.Label, run.Classification.Confidence)
	}
	if k := run.TextKey(); k != "" {
		fmt.Fprintf(out, "Text:     %s\n", k)
	}
	if k := run.ReportKey(); k != "" {
		fmt.Fprintf(out, "Report:   %s\n", k)
	}
	if run.State == pipeline.Failed {
		fmt.Fprintf(out, "Failed:   %s (%s) %s\n", run.FailedStage, run.ErrorKind, run.Error)
	}
	fmt.Fprintf(out, "Spans:\n")
	for _, s := range run.Spans {
		fmt.Fprintf(out, "  %-12s %-6s %v\n", s.Stage, s.Status, s.Duration)
	}
}
