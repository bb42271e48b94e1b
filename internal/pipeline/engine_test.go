package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/docweave/docweave/internal/catalog"
	"github.com/docweave/docweave/internal/invoker"
	"github.com/docweave/docweave/internal/ocr"
	"github.com/docweave/docweave/internal/pipeline"
)

type scriptedInvoker struct {
	outputs map[string]string
	errs    map[string]error
	calls   []invoker.Request
}

func (s *scriptedInvoker) Invoke(_ context.Context, req invoker.Request) (*invoker.CallResponse, error) {
	s.calls = append(s.calls, req)
	if err, ok := s.errs[req.StepName]; ok {
		return nil, err
	}
	out, ok := s.outputs[req.StepName]
	if !ok {
		return nil, fmt.Errorf("unscripted step %q", req.StepName)
	}
	return &invoker.CallResponse{Text: out, InputTokens: 100, OutputTokens: 20}, nil
}

type scriptedExtractor struct {
	result *ocr.Result
	err    error
	calls  int
}

func (s *scriptedExtractor) Extract(context.Context, []byte) (*ocr.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type recordingSink struct {
	started    bool
	completed  bool
	cancelled  bool
	terminated bool
	reason     string
	message    string
	failedStep string
	failedMsg  string
	progress   []int

	cancelAfter int // progress updates before the cancel flag flips; -1 never
	updates     int
}

func (r *recordingSink) Started(context.Context, uuid.UUID) error {
	r.started = true
	return nil
}

func (r *recordingSink) Progress(_ context.Context, _ uuid.UUID, _ string, percent int) error {
	r.progress = append(r.progress, percent)
	r.updates++
	return nil
}

func (r *recordingSink) Completed(context.Context, uuid.UUID) error {
	r.completed = true
	return nil
}

func (r *recordingSink) Failed(_ context.Context, _ uuid.UUID, step, message string) error {
	r.failedStep = step
	r.failedMsg = message
	return nil
}

func (r *recordingSink) Terminated(_ context.Context, _ uuid.UUID, reason, message string) error {
	r.terminated = true
	r.reason = reason
	r.message = message
	return nil
}

func (r *recordingSink) Cancelled(context.Context, uuid.UUID) error {
	r.cancelled = true
	return nil
}

func (r *recordingSink) CancelRequested(context.Context, uuid.UUID) (bool, error) {
	return r.cancelAfter >= 0 && r.updates >= r.cancelAfter, nil
}

func newRecordingSink() *recordingSink {
	return &recordingSink{cancelAfter: -1}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testInput() pipeline.Input {
	return pipeline.Input{
		JobID:    uuid.New(),
		Document: []byte("%PDF-1.7 test"),
		Seed: map[string]string{
			pipeline.KeyDocumentID: uuid.NewString(),
			pipeline.KeyFilename:   "labs.pdf",
		},
	}
}

func invokedSteps(inv *scriptedInvoker) []string {
	names := make([]string, 0, len(inv.calls))
	for _, c := range inv.calls {
		names = append(names, c.StepName)
	}
	return names
}

func TestEngineRunResolvesClassAndCompletes(t *testing.T) {
	inv := &scriptedInvoker{outputs: map[string]string{
		"classify":        "LABORWERTE",
		"extract_values":  `{"hb": 14.2}`,
		"normalize_units": `{"hb_g_dl": 14.2}`,
		"persist_result":  "ok",
	}}
	ext := &scriptedExtractor{result: &ocr.Result{Text: "Hemoglobin 14.2", Confidence: 0.97, Engine: "fast"}}
	sink := newRecordingSink()

	engine := pipeline.NewEngine(inv, ext, sink, nil, testLogger())
	res, err := engine.Run(context.Background(), testInput(), testSnapshot())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if res.Outcome != pipeline.OutcomeCompleted {
		t.Fatalf("outcome = %q, want completed (err: %v)", res.Outcome, res.Err)
	}
	if res.StepsRun != 5 {
		t.Errorf("StepsRun = %d, want 5", res.StepsRun)
	}
	if res.ClassKey != "LABORWERTE" {
		t.Errorf("ClassKey = %q, want LABORWERTE", res.ClassKey)
	}

	wantOrder := []string{"classify", "extract_values", "normalize_units", "persist_result"}
	got := invokedSteps(inv)
	if len(got) != len(wantOrder) {
		t.Fatalf("model invocations = %v, want %v", got, wantOrder)
	}
	for i := range wantOrder {
		if got[i] != wantOrder[i] {
			t.Errorf("invocation[%d] = %q, want %q", i, got[i], wantOrder[i])
		}
	}
	if ext.calls != 1 {
		t.Errorf("extractor calls = %d, want 1", ext.calls)
	}

	if res.Context[pipeline.KeyDocumentClass] != "LABORWERTE" {
		t.Errorf("document_class = %q, want LABORWERTE", res.Context[pipeline.KeyDocumentClass])
	}
	if res.Context["extracted_text"] != "Hemoglobin 14.2" {
		t.Errorf("extracted_text = %q", res.Context["extracted_text"])
	}
	if res.Context[pipeline.KeyOCREngine] != "fast" {
		t.Errorf("ocr_engine = %q, want fast", res.Context[pipeline.KeyOCREngine])
	}
	if res.Context[pipeline.KeyOCRConfidence] != "0.97" {
		t.Errorf("ocr_confidence = %q, want 0.97", res.Context[pipeline.KeyOCRConfidence])
	}

	if !sink.started || !sink.completed {
		t.Errorf("sink transitions: started=%v completed=%v", sink.started, sink.completed)
	}
	if len(sink.progress) == 0 || sink.progress[len(sink.progress)-1] != 100 {
		t.Errorf("progress = %v, want final 100", sink.progress)
	}
}

func TestEngineRunRendersPromptFromContext(t *testing.T) {
	snap := testSnapshot()
	for i := range snap.Steps {
		if snap.Steps[i].Name == "classify" {
			snap.Steps[i].PromptTemplate = "Classify this document: {{extracted_text}}"
		}
	}

	inv := &scriptedInvoker{outputs: map[string]string{
		"classify":           "BEFUNDE",
		"summarize_findings": "summary",
		"persist_result":     "ok",
	}}
	ext := &scriptedExtractor{result: &ocr.Result{Text: "MRT unauffällig", Confidence: 0.91, Engine: "fast"}}
	sink := newRecordingSink()

	engine := pipeline.NewEngine(inv, ext, sink, nil, testLogger())
	if _, err := engine.Run(context.Background(), testInput(), snap); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(inv.calls) == 0 {
		t.Fatal("no model invocations")
	}
	want := "Classify this document: MRT unauffällig"
	if inv.calls[0].Prompt != want {
		t.Errorf("classify prompt = %q, want %q", inv.calls[0].Prompt, want)
	}
}

func TestEngineRunStopCondition(t *testing.T) {
	snap := testSnapshot()
	for i := range snap.Steps {
		if snap.Steps[i].Name == "classify" {
			snap.Steps[i].Stop = catalog.StopCondition{
				Values:             []string{"UNSUPPORTED"},
				TerminationReason:  "unsupported_document",
				TerminationMessage: "Document type is not supported.",
			}
		}
	}

	inv := &scriptedInvoker{outputs: map[string]string{
		"classify": "  unsupported  ", // trimmed, case-insensitive match
	}}
	ext := &scriptedExtractor{result: &ocr.Result{Text: "???", Confidence: 0.4, Engine: "accurate"}}
	sink := newRecordingSink()

	engine := pipeline.NewEngine(inv, ext, sink, nil, testLogger())
	res, err := engine.Run(context.Background(), testInput(), snap)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if res.Outcome != pipeline.OutcomeTerminated {
		t.Fatalf("outcome = %q, want terminated", res.Outcome)
	}
	if res.TerminationReason != "unsupported_document" {
		t.Errorf("reason = %q, want unsupported_document", res.TerminationReason)
	}
	if !sink.terminated || sink.message != "Document type is not supported." {
		t.Errorf("sink terminated=%v message=%q", sink.terminated, sink.message)
	}

	// Nothing past the terminating step runs.
	if got := invokedSteps(inv); len(got) != 1 {
		t.Errorf("model invocations after termination = %v", got)
	}
}

func TestEngineRunSkipsStepMissingContext(t *testing.T) {
	snap := testSnapshot()
	snap.Steps = append(snap.Steps, universalStep("redact_pii", 3, func(s *catalog.Step) {
		s.RequiredContext = []string{"patient_name"}
		s.OutputVariable = "redacted_text"
	}))

	inv := &scriptedInvoker{outputs: map[string]string{
		"classify":           "BEFUNDE",
		"summarize_findings": "summary",
		"persist_result":     "ok",
	}}
	ext := &scriptedExtractor{result: &ocr.Result{Text: "text", Confidence: 0.9, Engine: "fast"}}
	sink := newRecordingSink()

	engine := pipeline.NewEngine(inv, ext, sink, nil, testLogger())
	res, err := engine.Run(context.Background(), testInput(), snap)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if res.Outcome != pipeline.OutcomeCompleted {
		t.Fatalf("outcome = %q, want completed (err: %v)", res.Outcome, res.Err)
	}
	if _, ok := res.Context["redacted_text"]; ok {
		t.Error("skipped step wrote its output variable")
	}
	for _, name := range invokedSteps(inv) {
		if name == "redact_pii" {
			t.Error("skipped step was invoked")
		}
	}
	if len(sink.progress) == 0 || sink.progress[len(sink.progress)-1] != 100 {
		t.Errorf("progress = %v, want final 100 with skipped step counted", sink.progress)
	}
}

func TestEngineRunSkipsDisabledStep(t *testing.T) {
	snap := testSnapshot()
	for i := range snap.Steps {
		if snap.Steps[i].Name == "normalize_units" {
			snap.Steps[i].Enabled = false
		}
	}

	inv := &scriptedInvoker{outputs: map[string]string{
		"classify":       "LABORWERTE",
		"extract_values": "{}",
		"persist_result": "ok",
	}}
	ext := &scriptedExtractor{result: &ocr.Result{Text: "text", Confidence: 0.9, Engine: "fast"}}
	sink := newRecordingSink()

	engine := pipeline.NewEngine(inv, ext, sink, nil, testLogger())
	res, err := engine.Run(context.Background(), testInput(), snap)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if res.Outcome != pipeline.OutcomeCompleted {
		t.Fatalf("outcome = %q, want completed (err: %v)", res.Outcome, res.Err)
	}
	for _, name := range invokedSteps(inv) {
		if name == "normalize_units" {
			t.Error("disabled step was invoked")
		}
	}
}

func TestEngineRunBranchingMissingContextFails(t *testing.T) {
	snap := testSnapshot()
	// Disable text extraction so the branching step's required variable
	// never appears. Skipping classification would leave the class
	// unresolved, so this must fail the job instead.
	for i := range snap.Steps {
		if snap.Steps[i].Name == "extract_text" {
			snap.Steps[i].Enabled = false
		}
	}

	inv := &scriptedInvoker{outputs: map[string]string{}}
	ext := &scriptedExtractor{result: &ocr.Result{Text: "unused", Confidence: 0.9, Engine: "fast"}}
	sink := newRecordingSink()

	engine := pipeline.NewEngine(inv, ext, sink, nil, testLogger())
	res, err := engine.Run(context.Background(), testInput(), snap)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if res.Outcome != pipeline.OutcomeError {
		t.Fatalf("outcome = %q, want error", res.Outcome)
	}
	if !errors.Is(res.Err, pipeline.ErrBranchingSkipped) {
		t.Errorf("err = %v, want ErrBranchingSkipped", res.Err)
	}
	if sink.failedStep != "classify" {
		t.Errorf("failed step = %q, want classify", sink.failedStep)
	}
	if len(inv.calls) != 0 {
		t.Errorf("model invocations = %v, want none", invokedSteps(inv))
	}
}

func TestEngineRunUnknownBranchOutputFails(t *testing.T) {
	inv := &scriptedInvoker{outputs: map[string]string{
		"classify": "RECHNUNG",
	}}
	ext := &scriptedExtractor{result: &ocr.Result{Text: "text", Confidence: 0.9, Engine: "fast"}}
	sink := newRecordingSink()

	engine := pipeline.NewEngine(inv, ext, sink, nil, testLogger())
	res, err := engine.Run(context.Background(), testInput(), testSnapshot())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if res.Outcome != pipeline.OutcomeError {
		t.Fatalf("outcome = %q, want error", res.Outcome)
	}
	if !errors.Is(res.Err, pipeline.ErrUnknownClass) {
		t.Errorf("err = %v, want ErrUnknownClass", res.Err)
	}
}

func TestEngineRunStepFailure(t *testing.T) {
	inv := &scriptedInvoker{
		outputs: map[string]string{"classify": "LABORWERTE"},
		errs:    map[string]error{"extract_values": invoker.ErrServiceUnavailable},
	}
	ext := &scriptedExtractor{result: &ocr.Result{Text: "text", Confidence: 0.9, Engine: "fast"}}
	sink := newRecordingSink()

	engine := pipeline.NewEngine(inv, ext, sink, nil, testLogger())
	res, err := engine.Run(context.Background(), testInput(), testSnapshot())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if res.Outcome != pipeline.OutcomeError {
		t.Fatalf("outcome = %q, want error", res.Outcome)
	}
	if res.FailedStep != "extract_values" {
		t.Errorf("FailedStep = %q, want extract_values", res.FailedStep)
	}

	var stepErr *pipeline.StepError
	if !errors.As(res.Err, &stepErr) {
		t.Fatalf("err = %v, want StepError", res.Err)
	}
	if stepErr.Step != "extract_values" {
		t.Errorf("StepError.Step = %q, want extract_values", stepErr.Step)
	}
	if !errors.Is(stepErr, invoker.ErrServiceUnavailable) {
		t.Errorf("StepError does not unwrap to ErrServiceUnavailable: %v", stepErr)
	}

	// Steps after the failed one never run.
	for _, name := range invokedSteps(inv) {
		if name == "normalize_units" || name == "persist_result" {
			t.Errorf("step %q ran after failure", name)
		}
	}
}

func TestEngineRunCancellation(t *testing.T) {
	inv := &scriptedInvoker{outputs: map[string]string{
		"classify":       "LABORWERTE",
		"extract_values": "{}",
	}}
	ext := &scriptedExtractor{result: &ocr.Result{Text: "text", Confidence: 0.9, Engine: "fast"}}
	sink := newRecordingSink()
	sink.cancelAfter = 2 // flag flips after the second progress update

	engine := pipeline.NewEngine(inv, ext, sink, nil, testLogger())
	res, err := engine.Run(context.Background(), testInput(), testSnapshot())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if res.Outcome != pipeline.OutcomeCancelled {
		t.Fatalf("outcome = %q, want cancelled", res.Outcome)
	}
	if !sink.cancelled {
		t.Error("sink never marked cancelled")
	}
	if sink.completed {
		t.Error("cancelled job marked completed")
	}
	// The in-flight step finished; later steps never started.
	for _, name := range invokedSteps(inv) {
		if name == "normalize_units" || name == "persist_result" {
			t.Errorf("step %q ran after cancellation", name)
		}
	}
}

func TestEngineRunContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inv := &scriptedInvoker{outputs: map[string]string{}}
	ext := &scriptedExtractor{result: &ocr.Result{Text: "text", Confidence: 0.9, Engine: "fast"}}
	sink := newRecordingSink()

	engine := pipeline.NewEngine(inv, ext, sink, nil, testLogger())
	res, err := engine.Run(ctx, testInput(), testSnapshot())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if res.Outcome != pipeline.OutcomeCancelled {
		t.Fatalf("outcome = %q, want cancelled", res.Outcome)
	}
	if ext.calls != 0 {
		t.Errorf("extractor ran %d times under cancelled context", ext.calls)
	}
}

func TestEngineRunRecordsOCRUsage(t *testing.T) {
	var attempts []invoker.Attempt
	usage := usageFunc(func(_ context.Context, a invoker.Attempt) {
		attempts = append(attempts, a)
	})

	inv := &scriptedInvoker{outputs: map[string]string{
		"classify":        "LABORWERTE",
		"extract_values":  "{}",
		"normalize_units": "{}",
		"persist_result":  "ok",
	}}
	ext := &scriptedExtractor{result: &ocr.Result{Text: "text", Confidence: 0.9, Engine: "accurate"}}
	sink := newRecordingSink()

	engine := pipeline.NewEngine(inv, ext, sink, usage, testLogger())
	in := testInput()
	if _, err := engine.Run(context.Background(), in, testSnapshot()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(attempts) != 1 {
		t.Fatalf("recorded attempts = %d, want 1", len(attempts))
	}
	a := attempts[0]
	if a.JobID != in.JobID || a.StepName != "extract_text" {
		t.Errorf("attempt attribution = (%s, %s)", a.JobID, a.StepName)
	}
	if a.Model != "accurate" || a.Outcome != invoker.OutcomeSuccess {
		t.Errorf("attempt = model %q outcome %q", a.Model, a.Outcome)
	}
}

type usageFunc func(ctx context.Context, a invoker.Attempt)

func (f usageFunc) RecordAttempt(ctx context.Context, a invoker.Attempt) { f(ctx, a) }

func TestEngineNormalizesJSONOutput(t *testing.T) {
	snap := &catalog.Snapshot{
		Steps: []catalog.Step{
			universalStep("extract_entities", 1, func(s *catalog.Step) {
				s.OutputFormat = "json"
				s.OutputVariable = "entities"
				s.PromptTemplate = "extract"
			}),
		},
	}

	fenced := "```json\n{\"patient\": \"anonymous\"}\n```"
	inv := &scriptedInvoker{outputs: map[string]string{"extract_entities": fenced}}
	sink := newRecordingSink()

	engine := pipeline.NewEngine(inv, &scriptedExtractor{}, sink, nil, testLogger())
	res, err := engine.Run(context.Background(), testInput(), snap)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if res.Outcome != pipeline.OutcomeCompleted {
		t.Fatalf("outcome = %q, want completed (err: %v)", res.Outcome, res.Err)
	}
	if got := res.Context["entities"]; got != `{"patient": "anonymous"}` {
		t.Errorf("entities = %q, want fence stripped", got)
	}
}

func TestEngineRejectsMalformedJSONOutput(t *testing.T) {
	snap := &catalog.Snapshot{
		Steps: []catalog.Step{
			universalStep("extract_entities", 1, func(s *catalog.Step) {
				s.OutputFormat = "json"
				s.PromptTemplate = "extract"
			}),
		},
	}

	inv := &scriptedInvoker{outputs: map[string]string{"extract_entities": "Sure! Here are the entities:"}}
	sink := newRecordingSink()

	engine := pipeline.NewEngine(inv, &scriptedExtractor{}, sink, nil, testLogger())
	res, err := engine.Run(context.Background(), testInput(), snap)
	if err != nil {
		t.Fatalf("run returned infrastructure error: %v", err)
	}

	if res.Outcome != pipeline.OutcomeError {
		t.Fatalf("outcome = %q, want error", res.Outcome)
	}
	if sink.failedStep != "extract_entities" {
		t.Errorf("failed step = %q, want extract_entities", sink.failedStep)
	}
}
