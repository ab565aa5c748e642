package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JaimeStill/docintel/internal/acquisition"
	"github.com/JaimeStill/docintel/internal/artifacts"
	"github.com/JaimeStill/docintel/internal/classify"
	"github.com/JaimeStill/docintel/internal/fields"
	"github.com/JaimeStill/docintel/internal/pipeline"
	"github.com/JaimeStill/docintel/internal/report"
)

func TestCanTransition(t *testing.T) {
	p := pipeline.Received
	for _, next := range []pipeline.State{
		pipeline.Acquiring,
		pipeline.Classifying,
		pipeline.Extracting,
		pipeline.Rendering,
		pipeline.Persisted,
	} {
		assert.True(t, pipeline.CanTransition(p, next), "%s -> %s", p, next)
		assert.True(t, pipeline.CanTransition(p, pipeline.Failed), "%s -> Failed", p)
		p = next
	}

	invalid := [][2]pipeline.State{
		{pipeline.Received, pipeline.Classifying},
		{pipeline.Acquiring, pipeline.Extracting},
		{pipeline.Classifying, pipeline.Acquiring},
		{pipeline.Rendering, pipeline.Rendering},
		{pipeline.Persisted, pipeline.Failed},
		{pipeline.Failed, pipeline.Acquiring},
		{pipeline.Failed, pipeline.Failed},
		{pipeline.Extracting, "Enhancing"},
		{"Enhancing", pipeline.Failed},
	}
	for _, tt := range invalid {
		assert.False(t, pipeline.CanTransition(tt[0], tt[1]), "%s -> %s", tt[0], tt[1])
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, pipeline.Persisted.Terminal())
	assert.True(t, pipeline.Failed.Terminal())
	assert.False(t, pipeline.Rendering.Terminal())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want pipeline.Kind
	}{
		{nil, ""},
		{fmt.Errorf("%w: %w", acquisition.ErrAcquisition, acquisition.ErrExtraction), pipeline.KindAcquisition},
		{acquisition.ErrExtraction, pipeline.KindExtraction},
		{fmt.Errorf("wrap: %w", classify.ErrClassification), pipeline.KindClassification},
		{fields.ErrFieldExtraction, pipeline.KindFieldExtraction},
		{report.ErrRender, pipeline.KindRender},
		{artifacts.ErrPersistence, pipeline.KindPersistence},
		{fmt.Errorf("%w: %w", pipeline.ErrCancelled, context.Canceled), pipeline.KindCancelled},
		{errors.New("boom"), pipeline.KindUnexpected},
		{pipeline.ErrInvalidTransition, pipeline.KindUnexpected},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, pipeline.KindOf(tt.err), "KindOf(%v)", tt.err)
	}
}
