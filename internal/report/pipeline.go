package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medassist/internal/extract"
	"medassist/internal/llm"
	"medassist/internal/normalize"
	"medassist/internal/prompt"
	"medassist/internal/retrieve"
	"medassist/internal/vector"
)

// ExtractionFailedMessage is the user-facing text for documents that yield
// no readable text after every fallback. The LLM is never called in that
// case.
const ExtractionFailedMessage = "Unable to extract readable text from the report. " +
	"The file may be fully image-based or corrupted. Please upload a clear PDF or image."

// EmptyAnalysisMessage covers the rare case of a model call that succeeds
// but returns no usable text.
const EmptyAnalysisMessage = "The model returned an empty analysis. Please try again."

// State of a document as it moves through the pipeline.
type State int

const (
	StateReceived State = iota
	StateTextExtracted
	StateExtractionFailed // terminal
	StateAnalysisGenerated
	StateNormalized
	StatePersisted
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateTextExtracted:
		return "text_extracted"
	case StateExtractionFailed:
		return "extraction_failed"
	case StateAnalysisGenerated:
		return "analysis_generated"
	case StateNormalized:
		return "normalized"
	case StatePersisted:
		return "persisted"
	}
	return "unknown"
}

// Result of analyzing one document. On success Analysis holds the
// normalized report; otherwise Message holds the user-facing explanation.
type Result struct {
	State    State
	Text     string
	Analysis string
	Message  string
}

// Ok reports whether an analysis was produced.
func (r Result) Ok() bool { return r.Analysis != "" }

// TextExtractor produces plain text from an uploaded document.
type TextExtractor interface {
	Extract(doc extract.Document) (string, error)
}

// Pipeline runs extraction, structured-report prompting, normalization, and
// optional persistence of the (report, analysis) pair into the vector index.
type Pipeline struct {
	extractor TextExtractor
	client    llm.Client
	embedder  retrieve.Embedder
	index     vector.Index
	persist   bool
	log       zerolog.Logger
}

func NewPipeline(extractor TextExtractor, client llm.Client, embedder retrieve.Embedder, index vector.Index, persist bool, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		client:    client,
		embedder:  embedder,
		index:     index,
		persist:   persist,
		log:       log,
	}
}

// Analyze drives one document through
// received -> text extracted -> analysis generated -> normalized -> persisted.
// Every failure is recovered into a user-facing Result; nothing here is
// allowed to take down the serving process.
func (p *Pipeline) Analyze(ctx context.Context, doc extract.Document) Result {
	res := Result{State: StateReceived}

	text, err := p.extractor.Extract(doc)
	if err != nil {
		res.State = StateExtractionFailed
		res.Message = ExtractionFailedMessage
		if !errors.Is(err, extract.ErrNoText) {
			p.log.Error().Err(err).Msg("extraction failed")
		}
		return res
	}
	res.State = StateTextExtracted
	res.Text = text
	p.log.Info().Int("chars", len(text)).Msg("extracted report text")

	raw, err := llm.GenerateWithRetry(ctx, p.client, prompt.ComposeReport(text))
	if err != nil {
		p.log.Error().Err(err).Msg("analysis generation failed")
		res.Message = fmt.Sprintf("Error analyzing report: %v. Extracted text: '%s...'",
			err, prompt.Truncate(text, 500))
		return res
	}
	res.State = StateAnalysisGenerated

	res.Analysis = normalize.Normalize(raw)
	if res.Analysis == "" {
		res.Message = EmptyAnalysisMessage
		return res
	}
	res.State = StateNormalized

	if p.persist {
		if err := p.persistPair(ctx, text, res.Analysis); err != nil {
			p.log.Error().Err(err).Msg("failed to persist report into index")
		} else {
			res.State = StatePersisted
		}
	}
	return res
}

// persistPair appends the original report text and its analysis as two
// index entries, so future questions can retrieve past analyses as context.
// Entries carry a source tag distinguishing uploaded material from
// generated output; the retriever can filter on it.
func (p *Pipeline) persistPair(ctx context.Context, reportText, analysis string) error {
	reportVec, err := p.embedder.Embed(ctx, reportText)
	if err != nil {
		return err
	}
	analysisVec, err := p.embedder.Embed(ctx, analysis)
	if err != nil {
		return err
	}

	timestamp := time.Now().Format("20060102_150405")
	entries := []vector.Entry{
		{
			ID:     "report_" + uuid.NewString(),
			Vector: reportVec,
			Metadata: vector.Metadata{
				"type":      "medical_report",
				"content":   "original_report",
				"full_text": reportText,
				"timestamp": timestamp,
				"source":    "uploaded_document",
			},
		},
		{
			ID:     "analysis_" + uuid.NewString(),
			Vector: analysisVec,
			Metadata: vector.Metadata{
				"type":      "medical_analysis",
				"content":   "ai_analysis",
				"full_text": analysis,
				"timestamp": timestamp,
				"source":    "ai_generated",
			},
		},
	}
	return p.index.Add(ctx, entries)
}
