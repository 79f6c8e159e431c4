// Package pipeline orchestrates one processing run end to end: parse,
// transform, submit, report. Stages hand their failures to a
// report.Aggregator; the pipeline itself never inspects individual errors.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridianhq/custflow/internal/apiclient"
	"github.com/meridianhq/custflow/internal/ingest"
	"github.com/meridianhq/custflow/internal/logging"
	"github.com/meridianhq/custflow/internal/report"
	"github.com/meridianhq/custflow/internal/transform"
)

// Stage names the pipeline step a run stopped at.
type Stage string

const (
	StageInputValidation Stage = "input_validation"
	StageCSVParsing      Stage = "csv_parsing"
	StageTransformation  Stage = "transformation"
	StageAPISubmission   Stage = "api_submission"
	StageReporting       Stage = "reporting"
)

// Input is everything one run needs.
type Input struct {
	Content   []byte
	FileName  string
	Encoding  string
	Delimiter string
}

// Result carries every stage's output plus the terminal report. FailedStage
// is empty when the run reached the end; otherwise it names the stage that
// stopped the run early.
type Result struct {
	Ingest      ingest.Result          `json:"ingest"`
	Structure   ingest.StructureReport `json:"structure"`
	Transform   transform.BatchResult  `json:"transform"`
	Submission  apiclient.BatchResult  `json:"submission"`
	Output      report.Output          `json:"output"`
	FailedStage Stage                  `json:"failed_stage,omitempty"`
}

// Pipeline wires the stages together. Safe for concurrent use; each Run
// builds its own aggregator.
type Pipeline struct {
	client      *apiclient.Client
	transformer *transform.Transformer
	baseURL     string
}

// New creates a Pipeline. baseURL is rechecked per run so a misconfigured
// deployment fails before any rows are parsed.
func New(client *apiclient.Client, transformer *transform.Transformer, baseURL string) *Pipeline {
	return &Pipeline{client: client, transformer: transformer, baseURL: baseURL}
}

// Run executes one processing run. The returned error is non-nil only for
// report export failures; stage failures are recorded on the report and the
// run keeps going wherever it can. A panic anywhere in the stages is
// recovered into a critical system error on the report.
func (p *Pipeline) Run(ctx context.Context, in Input) (res Result, err error) {
	agg := report.NewAggregator()
	log := logging.WithFields(ctx, "run_id", agg.ProcessingID(), "file", in.FileName)

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panicked", "panic", fmt.Sprint(r))
			agg.AddSystemError(fmt.Sprintf("Unexpected error in processing flow: %v", r), nil)
			res, err = p.finish(log, agg, res)
		}
	}()

	warnings, vErr := ValidateInput(in.FileName, in.Content, p.baseURL)
	for _, w := range warnings {
		agg.AddWarning(w, nil)
	}
	if vErr != nil {
		log.Error("input validation failed", "error", vErr)
		agg.AddSystemError(vErr.Error(), nil)
		res.FailedStage = StageInputValidation
		return p.finish(log, agg, res)
	}

	log.Info("parsing input", "bytes", len(in.Content))
	res.Ingest = ingest.ParseFile(in.FileName, in.Content, ingest.Options{
		Encoding:  in.Encoding,
		Delimiter: in.Delimiter,
	})
	for _, pe := range res.Ingest.Errors {
		agg.AddParseError(pe)
	}
	if len(res.Ingest.Rows) == 0 {
		log.Error("no usable rows", "parse_errors", len(res.Ingest.Errors))
		res.FailedStage = StageCSVParsing
		return p.finish(log, agg, res)
	}
	log.Info("parsed input",
		"rows", len(res.Ingest.Rows),
		"encoding", res.Ingest.Metadata.Encoding,
		"delimiter", res.Ingest.Metadata.Delimiter)

	res.Structure = ingest.ValidateStructure(res.Ingest.Rows, res.Ingest.Headers,
		ingest.RequiredFields, ingest.OptionalFields)
	for _, w := range res.Structure.Warnings {
		agg.AddWarning(w, map[string]any{"check": "structure"})
	}
	if !res.Structure.Valid {
		for _, e := range res.Structure.Errors {
			agg.AddStructureError(e)
		}
		log.Error("structure validation failed", "errors", len(res.Structure.Errors))
		res.FailedStage = StageCSVParsing
		return p.finish(log, agg, res)
	}

	res.Transform = p.transformer.TransformBatch(res.Ingest.Rows)
	for _, f := range res.Transform.TransformFailures {
		agg.AddTransformFailure(f)
	}
	for _, f := range res.Transform.ValidationFailures {
		agg.AddValidationFailure(f)
	}
	log.Info("transformed rows",
		"successful", res.Transform.Summary.SuccessfulCount,
		"failed", res.Transform.Summary.FailedCount,
		"validation_errors", res.Transform.Summary.ValidationErrorCount)

	res.Submission = p.client.CreateBatch(ctx, res.Transform.Successful)
	for _, item := range res.Submission.Failures {
		agg.AddSubmissionFailure(item)
	}
	log.Info("submitted batch",
		"successful", res.Submission.Summary.SuccessfulCount,
		"failed", res.Submission.Summary.FailedCount)

	return p.finish(log, agg, res)
}

// finish builds the terminal report from whatever stages completed.
func (p *Pipeline) finish(log *slog.Logger, agg *report.Aggregator, res Result) (Result, error) {
	out, err := agg.Finalize(
		report.CSVStats{
			TotalRows: res.Ingest.Metadata.TotalRows,
			ValidRows: res.Ingest.Metadata.ValidRows,
		},
		report.TransformStats{
			SuccessfulCount:      res.Transform.Summary.SuccessfulCount,
			FailedCount:          res.Transform.Summary.FailedCount,
			ValidationErrorCount: res.Transform.Summary.ValidationErrorCount,
		},
		report.APIStats{
			SuccessfulCount: res.Submission.Summary.SuccessfulCount,
			FailedCount:     res.Submission.Summary.FailedCount,
		},
	)
	if err != nil {
		return res, fmt.Errorf("finalize run %s: %w", agg.ProcessingID(), err)
	}
	res.Output = out

	log.Info("run finished",
		"overall_success", out.Report.OverallSuccess,
		"success_rate", out.Report.SuccessRate,
		"errors", len(out.Report.Errors))
	return res, nil
}
