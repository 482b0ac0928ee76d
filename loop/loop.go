// Package loop implements the kernel's turn scheduler (spec.md §4.F):
// drive the LLM transport call by call, gate and dispatch whatever tool
// calls the assistant emits, and apply the stage transitions that make
// the outline -> select -> summarize -> load pipeline actually move.
//
// Grounded on the teacher's AgentLoop/runLoop/callLLMWithRetry/
// executeToolCalls (loop.go): the retry-with-backoff wrapper around the
// transport call and the per-tool consecutive-failure circuit breaker are
// kept in structure, re-keyed to this kernel's stage-gated tool set.
package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ctxmetab/kernel/schema"
	"github.com/ctxmetab/kernel/state"
	"github.com/ctxmetab/kernel/tools"
	"github.com/ctxmetab/kernel/transport"
)

// selectClassTools gates extract_section behind stage==outline. spec.md
// §4.F also names storage.get/retrieval as select-class, but this repo's
// fixed tool surface (spec.md §6) has no storage/retrieval tool, so only
// extract_section is listed.
var selectClassTools = map[string]bool{"extract_section": true}

const desktopToolName = "computer_use"

// Config tunes retry/circuit-breaker behavior around tool dispatch and the
// transport call. Kernel tunables (MaxLLMCallsPerRun, ImportCapChars) live
// on state.Config instead, since they are spec-mandated kernel state, not
// loop-local policy.
type Config struct {
	// MaxRetries bounds how many times a failed transport call is retried
	// before the run aborts with that error.
	MaxRetries int
	// MaxToolErrors disables a tool name after this many consecutive
	// failures within one run (0 disables the breaker).
	MaxToolErrors int
}

// DefaultConfig matches the teacher's LoopConfig defaults for retry count;
// the breaker is off by default since spec.md does not mandate one.
func DefaultConfig() Config {
	return Config{MaxRetries: 3, MaxToolErrors: 0}
}

// Loop drives one kernel through repeated LLM calls and tool dispatches.
// Not safe for concurrent use: spec.md §5 requires the kernel it wraps
// never be driven by two callers at once.
type Loop struct {
	kernel    *state.Kernel
	transport transport.Transport
	registry  *tools.Registry
	executor  *tools.Executor
	cfg       Config
}

// New builds a Loop over an already-seeded kernel (state.New), a transport,
// and the tool registry the transport's function list is built from.
func New(kernel *state.Kernel, tr transport.Transport, registry *tools.Registry, executor *tools.Executor, cfg Config) *Loop {
	if cfg.MaxRetries <= 0 && cfg.MaxToolErrors == 0 {
		cfg = DefaultConfig()
	}
	return &Loop{kernel: kernel, transport: tr, registry: registry, executor: executor, cfg: cfg}
}

// Snapshot is one incremental yield of the run: the cumulative set of
// assistant/function messages produced so far (spec.md §4.F step 4: "yield
// response + partial incrementally"). Snapshots form a monotonic
// prefix-extension sequence (spec.md §9).
type Snapshot struct {
	Response []schema.Message
	Done     bool
}

// Run drives the kernel until the assistant replies with no tool call or
// the call budget is exhausted (spec.md §4.F/"Termination"). The returned
// channel is closed once a final, Done snapshot has been sent; a send on
// the error channel marks a failure that aborted the run early (a transport
// error after retries, context cancellation, or a journal write error).
func (l *Loop) Run(ctx context.Context) (<-chan Snapshot, <-chan error) {
	out := make(chan Snapshot, 32)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		initial := l.kernel.WorkingContext()
		var response []schema.Message
		toolErrors := make(map[string]int)

		budget := l.kernel.Config().MaxLLMCallsPerRun
		if budget <= 0 {
			budget = state.DefaultConfig().MaxLLMCallsPerRun
		}

		exhausted := true
		for call := 0; call < budget; call++ {
			messages := l.kernel.BeginLLMCall()

			final, err := l.callWithRetry(ctx, messages, out, response)
			if err != nil {
				errc <- err
				return
			}

			l.kernel.Append(final)
			response = append(response, final)
			out <- Snapshot{Response: cloneSnapshot(response)}

			more := l.handleAssistantOutput(ctx, final, toolErrors, &response, out)
			if !more {
				exhausted = false
				break
			}
		}

		if exhausted {
			log.Warn().Int("budget", budget).Msg("loop: call budget exhausted")
			notice := schema.NewFunctionMessage("policy_notice", "", "")
			notice.SetExtra("budget_exhausted", true)
			l.kernel.Append(notice)
			response = append(response, notice)
		}

		if len(response) > 0 {
			if err := l.kernel.RecordTurn(ctx, initial, response); err != nil {
				errc <- err
				return
			}
		}
		out <- Snapshot{Response: cloneSnapshot(response), Done: true}
	}()

	return out, errc
}

// callWithRetry wraps the transport call with exponential backoff on
// retryable (transport-kind) errors, following the teacher's
// callLLMWithRetry/retryDelay (loop.go), generalized to this kernel's
// schema.IsRetryable classifier instead of litellm.IsRetryableError since
// Transport is an interface and may not be litellm-backed.
func (l *Loop) callWithRetry(ctx context.Context, messages []schema.Message, out chan<- Snapshot, response []schema.Message) (schema.Message, error) {
	functions := l.registry.Schemas()

	var lastErr error
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		msgCh, errCh := l.transport.CallLLM(ctx, messages, functions)

		var final schema.Message
		var streamErr error
		for msgCh != nil || errCh != nil {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					msgCh = nil
					continue
				}
				final = msg
				out <- Snapshot{Response: append(cloneSnapshot(response), msg)}
			case err, ok := <-errCh:
				if !ok {
					errCh = nil
					continue
				}
				streamErr = err
			case <-ctx.Done():
				return schema.Message{}, ctx.Err()
			}
		}

		if streamErr == nil {
			return final, nil
		}
		lastErr = streamErr

		if !schema.IsRetryable(streamErr) || attempt == l.cfg.MaxRetries {
			return schema.Message{}, streamErr
		}

		delay := backoff(attempt)
		log.Warn().Err(streamErr).Int("attempt", attempt+1).Dur("delay", delay).Msg("loop: retrying transport call")

		select {
		case <-ctx.Done():
			return schema.Message{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return schema.Message{}, lastErr
}

// backoff is the teacher's exponential-backoff-capped-at-30s schedule
// (retryDelay, loop.go), minus the Retry-After lookup: that lookup inspects
// a litellm-specific error type not available through the generic
// Transport interface.
func backoff(attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// handleAssistantOutput detects tool use in the assistant's final message
// for this call, applies the summarize-candidate capture, and dispatches
// any tool call under stage gating. It returns false when the loop should
// stop (no tool call this turn).
func (l *Loop) handleAssistantOutput(ctx context.Context, final schema.Message, toolErrors map[string]int, response *[]schema.Message, out chan<- Snapshot) bool {
	useTool, name, args, _ := l.transport.DetectTool(final)

	if !useTool {
		if l.kernel.Stage() == state.StageSummarize {
			if _, hasCandidate := l.kernel.PeekSummaryCandidate(); !hasCandidate {
				l.captureSummaryCandidate(final)
			}
		}
		return false
	}

	funcID, _ := final.FunctionID()
	if funcID == "" {
		funcID = string(final.ID)
	}

	if violation, ok := l.stageViolation(name); ok {
		log.Debug().Str("tool", name).Str("stage", string(l.kernel.Stage())).Msg("loop: stage violation")
		reply := schema.NewFunctionMessage(name, funcID, "")
		reply.SetExtra("error", stageViolationMessage)
		reply.SetExtra("detail", violation)
		l.appendEphemeral(reply, response, out)
		return true
	}

	if l.cfg.MaxToolErrors > 0 && toolErrors[name] >= l.cfg.MaxToolErrors {
		log.Warn().Str("tool", name).Int("consecutive_errors", toolErrors[name]).Msg("loop: tool disabled by circuit breaker")
		reply := schema.NewFunctionMessage(name, funcID, "")
		reply.SetExtra("error", string(schema.ErrUnsupportedOp))
		reply.SetExtra("detail", fmt.Sprintf("tool %q disabled after %d consecutive errors", name, l.cfg.MaxToolErrors))
		l.appendEphemeral(reply, response, out)
		return true
	}

	result := l.executor.Execute(ctx, tools.ToolCall{
		ID:         funcID,
		Name:       name,
		Input:      json.RawMessage(args),
		FunctionID: funcID,
	})

	if result.IsError() {
		toolErrors[name]++
	} else {
		delete(toolErrors, name)
		// promote answers a refused promotion with an ok {promoted:false}
		// payload; only an accepted one moves the kernel.
		var ack struct {
			Promoted bool `json:"promoted"`
		}
		if name != "promote" || (json.Unmarshal(result.Data, &ack) == nil && ack.Promoted) {
			l.applyStageTransition(name)
		}
	}

	reply := l.buildFunctionReply(name, funcID, result)
	l.appendEphemeral(reply, response, out)
	return true
}

// stageViolation reports spec.md §4.F's stage-gating error text, if any,
// for dispatching tool name in the kernel's current stage.
func (l *Loop) stageViolation(name string) (string, bool) {
	stage := l.kernel.Stage()
	switch {
	case selectClassTools[name] && stage != state.StageOutline:
		return fmt.Sprintf("Select step %q called before outline.", name), true
	case name == "summarize" && stage != state.StageSelect:
		return "summarize called before select.", true
	case name == "promote" && stage != state.StageSummarize:
		return "promote called before summarize.", true
	default:
		return "", false
	}
}

const stageViolationMessage = "Reintegration requires outline → select → summarize → load."

// applyStageTransition advances the stage machine after a successful tool
// call (spec.md §4.F: "On successful tool calls: ...").
func (l *Loop) applyStageTransition(name string) {
	switch name {
	case "describe_file":
		l.kernel.SetImportStage(state.StageOutline)
	case "extract_section":
		l.kernel.SetImportStage(state.StageSelect)
	case "summarize":
		l.kernel.RequestSummary()
	case "promote":
		l.kernel.PromoteLastSummary()
	}
}

// captureSummaryCandidate truncates the plain-assistant reply to the
// import cap, collapses the working context down to {user, system} +
// promoted + this summary, and records it as the pending summary
// candidate (spec.md §4.F: "truncate its content to import_cap_chars,
// invoke replace_with_summary(messages, out), mark it as summary
// candidate").
func (l *Loop) captureSummaryCandidate(final schema.Message) {
	capChars := l.kernel.Config().ImportCapChars
	text, _ := tools.TruncateChars(final.Text(), capChars)
	final.Content = []schema.ContentItem{schema.Text(text)}
	l.kernel.ReplaceWithSummary(final)
	l.kernel.MarkSummaryCandidate(final.ID)
}

// buildFunctionReply truncates a tool result to the import cap, pairs it
// with the initiating call's function_id, and applies the desktop tool's
// screenshot post-processing (spec.md §4.E/§4.F).
func (l *Loop) buildFunctionReply(name, funcID string, result schema.ToolResult) schema.Message {
	payload, err := result.MarshalPayload()
	if err != nil {
		payload = []byte(`{"error":"unsupported_operation","detail":"result is not serializable"}`)
	}

	capChars := l.kernel.Config().ImportCapChars
	text, _ := tools.TruncateChars(string(payload), capChars)

	if name == desktopToolName && !result.IsError() {
		if screenshot, text2, ok := splitScreenshot(payload); ok {
			msg := schema.NewFunctionMessage(name, funcID, "")
			msg.Content = []schema.ContentItem{schema.Image(screenshot), schema.Text(text2)}
			return msg
		}
	}

	return schema.NewFunctionMessage(name, funcID, text)
}

// splitScreenshot extracts the "screenshot" field from a desktop tool's
// JSON payload, returning the remaining fields serialized back to text
// (spec.md §4.E's content rebuild).
func splitScreenshot(payload []byte) (path, text string, ok bool) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return "", "", false
	}
	raw, present := doc["screenshot"]
	if !present {
		return "", "", false
	}
	var p string
	if err := json.Unmarshal(raw, &p); err != nil || p == "" {
		return "", "", false
	}
	delete(doc, "screenshot")
	rest, err := json.Marshal(doc)
	if err != nil {
		rest = []byte("{}")
	}
	return p, string(rest), true
}

// appendEphemeral appends a function reply to both the kernel's working
// context and this run's response list, marking it ephemeral for exactly
// one call (spec.md §4.F: "mark ephemeral").
func (l *Loop) appendEphemeral(reply schema.Message, response *[]schema.Message, out chan<- Snapshot) {
	l.kernel.Append(reply)
	l.kernel.MarkEphemeral(reply.ID, state.KindTool, 1)
	*response = append(*response, reply)
	out <- Snapshot{Response: cloneSnapshot(*response)}
}

func cloneSnapshot(msgs []schema.Message) []schema.Message {
	out := make([]schema.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
