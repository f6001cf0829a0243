// Package engine is the composition root of a maestro run. It owns the
// RunState exclusively, drives the iteration loop, and wires the status
// parser, circuit breaker, phase machine, process monitor, and persistence
// together. One engine goroutine is the only writer of a run's state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrison/maestro/internal/breaker"
	"github.com/harrison/maestro/internal/budget"
	"github.com/harrison/maestro/internal/checklist"
	"github.com/harrison/maestro/internal/claude"
	"github.com/harrison/maestro/internal/config"
	"github.com/harrison/maestro/internal/history"
	"github.com/harrison/maestro/internal/logger"
	"github.com/harrison/maestro/internal/monitor"
	"github.com/harrison/maestro/internal/phase"
	"github.com/harrison/maestro/internal/state"
	"github.com/harrison/maestro/internal/status"
)

// Provider runs one blocking agent invocation. The engine depends only on
// this shape; claude.Invoker is the concrete backend.
type Provider interface {
	Invoke(ctx context.Context, req claude.Request) (*claude.Response, error)
}

// Logger is the logging surface the engine drives. ConsoleLogger,
// FileLogger, and NoOpLogger all satisfy it.
type Logger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogPhaseStart(phaseName string, cycle, iteration int)
	LogIterationResult(rec state.IterationRecord) error
	LogCycleProgress(cycle, completed, total int)
	LogRunSummary(snap *state.Snapshot, duration time.Duration)
	LogBreakerTrip(trip logger.BreakerTripDisplay)
}

// Options assembles an engine. Config is required; the remaining
// collaborators default from it.
type Options struct {
	Config *config.Config

	// Provider runs agent invocations. Required for Start and Resume;
	// Status works without one.
	Provider Provider

	// Store persists run state. Defaults to <state-dir>/runs.
	Store *state.Store

	// Monitor supervises invocations for stalls. Defaults from Config.
	Monitor *monitor.Monitor

	// Index is the optional cross-run history index. Nil disables indexing.
	Index *history.Index

	// Logger receives progress output. Defaults to a no-op logger.
	Logger Logger
}

// Engine supervises runs: it starts fresh ones, resumes persisted ones, and
// reports their status.
type Engine struct {
	cfg      *config.Config
	store    *state.Store
	provider Provider
	monitor  *monitor.Monitor
	breaker  *breaker.Breaker
	index    *history.Index
	log      Logger
}

// New builds an Engine from the given options.
func New(opts Options) (*Engine, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	store := opts.Store
	if store == nil {
		store = state.NewStore(filepath.Join(opts.Config.StateDir, "runs"))
	}

	mon := opts.Monitor
	if mon == nil {
		mon = monitor.New(monitor.Config{
			WorkDir:           opts.Config.WorkDir,
			PollInterval:      opts.Config.PollInterval,
			StallTimeout:      opts.Config.StallTimeout,
			HeartbeatInterval: opts.Config.HeartbeatInterval,
			Logger:            log,
		})
	}

	return &Engine{
		cfg:      opts.Config,
		store:    store,
		provider: opts.Provider,
		monitor:  mon,
		breaker:  breaker.New(opts.Config.BreakerWindow),
		index:    opts.Index,
		log:      log,
	}, nil
}

// Start creates a fresh run for the task prompt and drives its loop to a
// stop reason. The run ID is returned even when the loop ends in an error,
// so callers can point the operator at the run directory.
func (e *Engine) Start(ctx context.Context, taskPrompt string) (string, error) {
	taskPrompt = strings.TrimSpace(taskPrompt)
	if taskPrompt == "" {
		return "", ErrTaskRequired
	}
	if e.provider == nil {
		return "", errors.New("engine has no agent provider")
	}

	machine := phase.NewMachine(phase.Mode(e.cfg.Mode))
	now := time.Now()
	st := &state.RunState{
		RunID:        state.NewRunID(),
		Task:         taskPrompt,
		Mode:         e.cfg.Mode,
		Phase:        machine.First(),
		MaxCycles:    e.cfg.MaxCycles,
		CostLimitUSD: e.cfg.CostLimitUSD,
		Models: state.ModelSelection{
			Default: e.cfg.Models.Default,
			Plan:    e.cfg.Models.Plan,
			Review:  e.cfg.Models.Review,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.store.Create(st); err != nil {
		return "", err
	}

	lock, err := e.store.AcquireRunLock(st.RunID)
	if err != nil {
		return st.RunID, err
	}
	defer func() {
		lock.Unlock()
		os.Remove(lock.Path())
	}()

	e.log.LogInfo(fmt.Sprintf("Started run %s (mode %s, max cycles %d, cost limit $%.2f)",
		st.RunID, st.Mode, st.MaxCycles, st.CostLimitUSD))

	return st.RunID, e.run(ctx, st, machine)
}

// Resume loads a persisted run and continues its loop from exactly where it
// left off, with the current config's limits and models applied over the
// persisted ones. A run that had already stopped is revived: the stop reason
// is cleared and the loop re-evaluates the limits and the breaker window, so
// a still-exceeded ceiling or an unchanged failure pattern stops it again.
func (e *Engine) Resume(ctx context.Context, ref string) error {
	if e.provider == nil {
		return errors.New("engine has no agent provider")
	}

	runID, err := e.store.Resolve(ref)
	if err != nil {
		return err
	}

	st, err := e.store.Load(runID)
	if err != nil {
		return err
	}

	mode := phase.Mode(st.Mode)
	if !mode.IsValid() {
		return &state.CorruptStateError{
			Path: e.store.StatePath(runID),
			Err:  fmt.Errorf("unknown mode %q", st.Mode),
		}
	}
	machine := phase.NewMachine(mode)
	if !machine.Contains(st.Phase) {
		return &state.CorruptStateError{
			Path: e.store.StatePath(runID),
			Err:  fmt.Errorf("phase %s is not enabled in %s mode", st.Phase, st.Mode),
		}
	}

	lock, err := e.store.AcquireRunLock(runID)
	if err != nil {
		return err
	}
	defer func() {
		lock.Unlock()
		os.Remove(lock.Path())
	}()

	// The run keeps its mode, phase, and history; the operator dials come
	// from the current config, so a revived run can be given more cycles,
	// more budget, or different models.
	st.MaxCycles = e.cfg.MaxCycles
	st.CostLimitUSD = e.cfg.CostLimitUSD
	st.Models = state.ModelSelection{
		Default: e.cfg.Models.Default,
		Plan:    e.cfg.Models.Plan,
		Review:  e.cfg.Models.Review,
	}

	if st.Running() {
		e.log.LogInfo(fmt.Sprintf("Resuming run %s in %s (cycle %d, iteration %d)",
			st.RunID, st.Phase, st.Cycle+1, st.Iteration))
	} else {
		e.log.LogInfo(fmt.Sprintf("Resuming run %s (previously stopped: %s)", st.RunID, st.StopReason))
		st.StopReason = ""
	}

	if e.index != nil {
		if err := e.index.Reindex(ctx, st); err != nil {
			e.log.LogWarn(fmt.Sprintf("Could not reindex run history: %v", err))
		}
	}

	return e.run(ctx, st, machine)
}

// Status returns a read-only snapshot of a run. It never takes the run lock,
// so it works while another process drives the run.
func (e *Engine) Status(ref string) (*state.Snapshot, error) {
	runID, err := e.store.Resolve(ref)
	if err != nil {
		return nil, err
	}
	st, err := e.store.Load(runID)
	if err != nil {
		return nil, err
	}
	return st.Snapshot(), nil
}

// Store exposes the run store for callers that list runs directly.
func (e *Engine) Store() *state.Store {
	return e.store
}

// run drives the iteration loop until a stop reason is set or an
// infrastructure error aborts it.
func (e *Engine) run(ctx context.Context, st *state.RunState, machine *phase.Machine) error {
	runStart := time.Now()

	ledger := budget.NewLedger(st.CostLimitUSD)
	for _, rec := range st.Records {
		ledger.Add(budget.Entry{Timestamp: rec.Timestamp, Phase: rec.Phase, CostUSD: rec.CostDelta})
	}

	for {
		// Limits gate the next iteration; they never abort one in flight.
		if ctx.Err() != nil {
			return e.finish(st, state.StopCancelled, runStart)
		}
		if st.MaxCycles > 0 && st.Cycle >= st.MaxCycles {
			e.log.LogInfo(fmt.Sprintf("Run has completed %d of %d cycles", st.Cycle, st.MaxCycles))
			return e.finish(st, state.StopMaxCycles, runStart)
		}
		if ledger.Exceeded() {
			e.log.LogWarn(fmt.Sprintf("Cost limit reached: $%.2f of $%.2f spent", ledger.Total(), ledger.Limit()))
			return e.finish(st, state.StopCostLimit, runStart)
		}

		e.log.LogPhaseStart(st.Phase.String(), st.Cycle+1, st.Iteration+1)

		list := e.readChecklist()
		req := claude.Request{
			Prompt:       buildPrompt(st, list),
			SystemPrompt: systemPrompt(),
			Model:        modelFor(machine, st.Phase, st.Models),
		}

		iterStart := time.Now()
		resp, outcome, err := e.invoke(ctx, req)
		if outcome == monitor.OutcomeStalled {
			e.log.LogWarn(fmt.Sprintf("No activity for %s, retrying the iteration once", e.monitor.StallTimeout()))
			resp, outcome, err = e.invoke(ctx, req)
			if outcome == monitor.OutcomeStalled {
				e.log.LogError("Retry stalled as well, stopping the run")
				return e.finish(st, state.StopStalled, runStart)
			}
		}
		if outcome == monitor.OutcomeCancelled {
			return e.finish(st, state.StopCancelled, runStart)
		}
		if err != nil {
			e.log.LogError(fmt.Sprintf("Agent invocation failed: %v", err))
			return fmt.Errorf("invoke agent: %w", err)
		}
		if resp == nil {
			return errors.New("agent provider returned no response")
		}

		rec, source := e.buildRecord(resp, iterStart, st.Phase)
		rec = st.Append(rec)
		ledger.Add(budget.Entry{
			Timestamp: rec.Timestamp,
			Phase:     rec.Phase,
			Model:     req.Model,
			CostUSD:   rec.CostDelta,
			Source:    source,
		})

		_ = e.log.LogIterationResult(rec)
		if rate := ledger.CostPerHour(); rate > 0 {
			e.log.LogDebug(fmt.Sprintf("Spend: $%.4f total, $%.2f/h", ledger.Total(), rate))
		}

		e.writeArtifacts(st, resp, rec)

		// The breaker is consulted before the transition rule and the
		// limits, so the most specific diagnostic names the stop.
		var reason state.StopReason
		if trip := e.breaker.Check(st); trip != nil {
			e.log.LogBreakerTrip(trip)
			if err := e.store.AppendDecision(st.RunID, tripEntry(trip)); err != nil {
				e.log.LogWarn(fmt.Sprintf("Could not append to decisions.md: %v", err))
			}
			reason = trip.Reason
		} else {
			reason = e.transition(st, machine, rec)
		}

		st.StopReason = reason
		if err := e.store.Save(st); err != nil {
			return err
		}
		e.recordHistory(st)

		if reason != "" {
			e.summarize(st, runStart)
			return e.stopResult(st)
		}
	}
}

// invoke runs one supervised agent invocation. The closure captures the
// response; it is read only after Supervise returns, so the loop goroutine
// stays the only reader.
func (e *Engine) invoke(ctx context.Context, req claude.Request) (*claude.Response, monitor.Outcome, error) {
	var resp *claude.Response
	outcome, err := e.monitor.Supervise(ctx, func(inner context.Context) error {
		r, ierr := e.provider.Invoke(inner, req)
		resp = r
		return ierr
	})
	return resp, outcome, err
}

// buildRecord folds one agent response into an iteration record. Parse
// trouble degrades instead of erroring: a missing status block becomes a
// zero-progress record, a CLI failure an error record. Both feed the
// breaker's window.
func (e *Engine) buildRecord(resp *claude.Response, start time.Time, p phase.Phase) (state.IterationRecord, budget.Source) {
	rec := state.IterationRecord{
		Timestamp: start,
		Phase:     p,
		Duration:  resp.Duration,
	}

	var signalCost float64
	if resp.IsError {
		msg := strings.TrimSpace(resp.Stderr)
		if msg == "" {
			msg = strings.TrimSpace(resp.Text)
		}
		if msg == "" {
			msg = fmt.Sprintf("agent exited with code %d", resp.ExitCode)
		}
		rec.ErrorSignature = status.NormalizeErrorSignature(msg)
		e.log.LogWarn(fmt.Sprintf("Agent invocation failed (exit %d): %s", resp.ExitCode, rec.ErrorSignature))
	} else {
		sig, err := status.Parse(resp.Text)
		switch {
		case err != nil:
			rec.Degraded = true
			rec.DegradedReason = err.Error()
			e.log.LogWarn(fmt.Sprintf("Status block unusable: %v", err))
		case sig.Degraded:
			rec.Degraded = true
			rec.DegradedReason = sig.DegradedReason
			e.log.LogDebug(fmt.Sprintf("Degraded status: %s", sig.DegradedReason))
		default:
			rec.Status = sig.Status
			rec.ExitSignal = sig.ExitSignal
			rec.FilesChanged = sig.FilesChanged
			rec.ErrorSignature = sig.ErrorSignature
			rec.Recommendation = sig.Recommendation
			signalCost = sig.CostDelta
		}
	}

	delta, source := budget.ResolveDelta(resp.CostUSD, signalCost)
	rec.CostDelta = delta
	return rec, source
}

// transition applies the phase machine's decision for the completed
// iteration and returns a stop reason when the run is done.
func (e *Engine) transition(st *state.RunState, machine *phase.Machine, rec state.IterationRecord) state.StopReason {
	decision := machine.Decide(st.Phase, rec.ExitSignal, st.PhaseIterations())

	switch decision.Outcome {
	case phase.Stay:
		return ""

	case phase.RunComplete:
		e.log.LogInfo(fmt.Sprintf("%s reported no work left, the run is complete", st.Phase))
		return state.StopNoMoreWork

	case phase.Advance:
		e.log.LogInfo(fmt.Sprintf("%s complete, advancing to %s", st.Phase, decision.Next))
		st.Phase = decision.Next
		return ""

	case phase.CycleComplete:
		st.Cycle++
		e.archiveCycle(st)
		st.Phase = decision.Next
		if st.MaxCycles > 0 && st.Cycle >= st.MaxCycles {
			e.log.LogInfo(fmt.Sprintf("Cycle %d complete, reached the configured maximum", st.Cycle))
			return state.StopMaxCycles
		}
		e.log.LogInfo(fmt.Sprintf("Cycle %d complete, starting cycle %d in %s", st.Cycle, st.Cycle+1, st.Phase))
		return ""
	}
	return ""
}

// archiveCycle snapshots the working checklist into the run directory as
// plan-cycle-N.md. The checklist is re-read so the archive reflects edits
// made by the cycle's final iteration.
func (e *Engine) archiveCycle(st *state.RunState) {
	list := e.readChecklist()
	if list == nil {
		e.log.LogDebug("No plan.md to archive for the completed cycle")
	} else if err := e.store.ArchiveChecklist(st.RunID, st.Cycle, list.Content); err != nil {
		e.log.LogWarn(fmt.Sprintf("Could not archive plan.md: %v", err))
	} else {
		e.log.LogInfo(fmt.Sprintf("Archived plan.md for cycle %d (%s)", st.Cycle, list.Tally))
	}

	if st.MaxCycles > 0 {
		e.log.LogCycleProgress(st.Cycle, st.Cycle, st.MaxCycles)
	}
	if err := e.store.AppendDecision(st.RunID, fmt.Sprintf("## Cycle %d complete\n", st.Cycle)); err != nil {
		e.log.LogWarn(fmt.Sprintf("Could not append to decisions.md: %v", err))
	}
}

// readChecklist loads the advisory plan checklist from the working tree. A
// missing or unreadable checklist is not an error; prompts just omit it.
func (e *Engine) readChecklist() *checklist.Checklist {
	list, err := checklist.Read(filepath.Join(e.cfg.WorkDir, checklist.FileName))
	if err != nil {
		e.log.LogWarn(fmt.Sprintf("Could not read %s: %v", checklist.FileName, err))
		return nil
	}
	return list
}

// writeArtifacts refreshes the run directory's per-iteration files. The
// writes are advisory; failures warn and never interrupt the loop.
func (e *Engine) writeArtifacts(st *state.RunState, resp *claude.Response, rec state.IterationRecord) {
	if err := e.store.WriteLastOutput(st.RunID, []byte(resp.RawOutput)); err != nil {
		e.log.LogWarn(fmt.Sprintf("Could not write last-output.txt: %v", err))
	}
	if err := e.store.AppendDecision(st.RunID, decisionEntry(rec)); err != nil {
		e.log.LogWarn(fmt.Sprintf("Could not append to decisions.md: %v", err))
	}
}

// finish persists a stop reason decided outside the per-iteration flow:
// limits gating the next iteration, cancellation, or a double stall.
func (e *Engine) finish(st *state.RunState, reason state.StopReason, runStart time.Time) error {
	st.StopReason = reason
	st.UpdatedAt = time.Now()
	if err := e.store.Save(st); err != nil {
		e.log.LogError(fmt.Sprintf("Could not persist final state: %v", err))
		return err
	}
	e.recordHistory(st)
	e.summarize(st, runStart)
	return e.stopResult(st)
}

// recordHistory mirrors the run into the history index. Indexing is always
// best-effort: failures warn and never affect the run. The background
// context keeps the final row landing even after cancellation.
func (e *Engine) recordHistory(st *state.RunState) {
	if e.index == nil {
		return
	}
	if err := e.index.Record(context.Background(), st); err != nil {
		e.log.LogWarn(fmt.Sprintf("Could not index run history: %v", err))
	}
}

func (e *Engine) summarize(st *state.RunState, runStart time.Time) {
	e.log.LogRunSummary(st.Snapshot(), time.Since(runStart))
}

// stopResult maps the persisted stop reason to Start/Resume's return value.
func (e *Engine) stopResult(st *state.RunState) error {
	if stopFailure(st.StopReason) {
		return &StopError{RunID: st.RunID, Reason: st.StopReason}
	}
	return nil
}
