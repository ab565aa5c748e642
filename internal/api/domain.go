package api

import (
	"fmt"

	"github.com/JaimeStill/docintel/internal/acquisition"
	"github.com/JaimeStill/docintel/internal/artifacts"
	"github.com/JaimeStill/docintel/internal/classify"
	"github.com/JaimeStill/docintel/internal/fields"
	"github.com/JaimeStill/docintel/internal/ocr"
	"github.com/JaimeStill/docintel/internal/pipeline"
	"github.com/JaimeStill/docintel/internal/prompts"
	"github.com/JaimeStill/docintel/internal/reasoning"
	"github.com/JaimeStill/docintel/internal/runs"
	"github.com/JaimeStill/docintel/internal/telemetry"
	"github.com/JaimeStill/docintel/pkg/lifecycle"
)

// Domain holds all domain systems that comprise the API and the triggers.
type Domain struct {
	Prompts   prompts.System
	Runs      runs.System
	Pipeline  *pipeline.Orchestrator
	Telemetry *telemetry.Emitter
}

// NewDomain creates all domain systems from the API runtime and assembles
// the pipeline over them.
func NewDomain(runtime *Runtime) (*Domain, error) {
	cfg := runtime.Config
	db := runtime.Database.Connection()

	overrides, err := prompts.LoadFile(cfg.Pipeline.PromptsFile)
	if err != nil {
		return nil, fmt.Errorf("prompt overrides: %w", err)
	}

	promptsSystem := prompts.New(db, runtime.Dialect, overrides, runtime.Logger, runtime.Pagination)
	runsSystem := runs.New(db, runtime.Dialect, cfg.Pipeline.Persistence.Policy(), runtime.Logger, runtime.Pagination)

	reasoner, err := reasoning.New(&cfg.Reasoning, runtime.Logger)
	if err != nil {
		return nil, fmt.Errorf("reasoning: %w", err)
	}

	emitter, err := telemetry.New(&cfg.Telemetry, runtime.Logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	writer := artifacts.NewWriter(
		runtime.Storage,
		cfg.Pipeline.Persistence.Policy(),
		cfg.Pipeline.ReplaceArtifacts,
		runtime.Logger,
	)

	acquirer := acquisition.New(
		runtime.Storage,
		ocr.New(&cfg.OCR, runtime.Logger),
		writer,
		acquisition.Options{
			Policy:   cfg.Pipeline.Extraction.Policy(),
			MaxBytes: cfg.Pipeline.MaxObjectSizeBytes(),
		},
		runtime.Logger,
	)

	reasoningPolicy := cfg.Pipeline.Reasoning.Policy()

	orchestrator := pipeline.New(
		pipeline.Deps{
			Store:    runtime.Storage,
			Acquirer: acquirer,
			Classifier: classify.New(reasoner, promptsSystem, classify.Options{
				Policy:   reasoningPolicy,
				MaxChars: cfg.Pipeline.MaxPromptChars,
			}, runtime.Logger),
			Extractor: fields.New(reasoner, promptsSystem, fields.Options{
				Policy:   reasoningPolicy,
				MaxChars: cfg.Pipeline.MaxPromptChars,
			}, runtime.Logger),
			Writer:   writer,
			Recorder: runsSystem,
			Emitter:  emitter,
		},
		pipeline.Options{WriteResult: cfg.Pipeline.WriteResult},
		runtime.Logger,
	)

	return &Domain{
		Prompts:   promptsSystem,
		Runs:      runsSystem,
		Pipeline:  orchestrator,
		Telemetry: emitter,
	}, nil
}

// Start registers the telemetry drain with the lifecycle coordinator.
func (d *Domain) Start(lc *lifecycle.Coordinator) error {
	return d.Telemetry.Start(lc)
}
