package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"analyzer-backend/internal/extract"
	"analyzer-backend/internal/llm"
)

// Work carries the intermediate state of one job through its stages. It is
// owned by the single pipeline goroutine and never shared.
type Work struct {
	FileName  string
	MediaType string
	SizeBytes int64
	Data      []byte

	Text           string
	MetadataOnly   bool
	Interpretation string
	Translation    string
	Report         string
}

// Runner executes the content work of a single stage. Implementations must
// honor ctx cancellation and deadlines.
type Runner interface {
	RunStage(ctx context.Context, stage Stage, w *Work) error
}

// PipelineRunner is the default Runner: text extraction, interpretation and
// translation against the reply backend, and markdown formatting.
type PipelineRunner struct {
	LLM llm.Client
	// MaxPromptChars bounds how much extracted text is sent to the backend.
	MaxPromptChars int
}

const defaultMaxPromptChars = 10000

func (r *PipelineRunner) RunStage(ctx context.Context, stage Stage, w *Work) error {
	switch stage {
	case StageExtracting:
		return r.extract(ctx, w)
	case StageInterpreting:
		return r.interpret(ctx, w)
	case StageTranslating:
		return r.translate(ctx, w)
	case StageFormatting:
		return r.format(w)
	default:
		return fmt.Errorf("no work defined for stage %s", stage)
	}
}

func (r *PipelineRunner) extract(ctx context.Context, w *Work) error {
	text, err := extract.Text(ctx, w.Data, w.MediaType, w.FileName)
	if err != nil {
		if errors.Is(err, extract.ErrLegacyFormat) {
			w.MetadataOnly = true
			return nil
		}
		return fmt.Errorf("extract %s: %w", w.FileName, err)
	}
	w.Text = strings.TrimSpace(text)
	if w.Text == "" {
		w.MetadataOnly = true
	}
	return nil
}

func (r *PipelineRunner) interpret(ctx context.Context, w *Work) error {
	if w.MetadataOnly {
		w.Interpretation = fmt.Sprintf("No machine-readable text could be extracted from %s; the analysis covers file metadata only.", w.FileName)
		return nil
	}
	if r.LLM == nil {
		return errors.New("missing llm client")
	}

	text := w.Text
	limit := r.MaxPromptChars
	if limit <= 0 {
		limit = defaultMaxPromptChars
	}
	if len(text) > limit {
		text = text[:limit]
	}

	out, err := r.LLM.Complete(ctx, llm.InterpretPrompt(w.FileName, text))
	if err != nil {
		return fmt.Errorf("llm interpret: %w", err)
	}
	w.Interpretation = strings.TrimSpace(out)
	return nil
}

func (r *PipelineRunner) translate(ctx context.Context, w *Work) error {
	if w.MetadataOnly {
		w.Translation = w.Interpretation
		return nil
	}
	if r.LLM == nil {
		return errors.New("missing llm client")
	}
	out, err := r.LLM.Complete(ctx, llm.TranslatePrompt(w.Interpretation))
	if err != nil {
		return fmt.Errorf("llm translate: %w", err)
	}
	w.Translation = strings.TrimSpace(out)
	return nil
}

func (r *PipelineRunner) format(w *Work) error {
	w.Report = BuildReport(w, time.Now().UTC())
	if w.Report == "" {
		return errors.New("empty report")
	}
	return nil
}
