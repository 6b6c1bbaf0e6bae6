// Package orchestrator coordinates the config store, the plugin registry,
// and the process controller into atomic change→restart→verify→commit
// transactions.
//
// The target process cannot be reconfigured in memory: it reads its
// configuration and plugin set from disk at startup, and the only lever this
// hub holds is a supervisor restart. Every mutation therefore follows one
// protocol: make the staged state live, restart the process onto it, verify
// it is actually healthy, and either keep the new state or restore the
// pre-transaction snapshot (restarting back onto it). Canonical state and a
// verified restart land together or not at all.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"

	"scorehub.io/cli/internal/core/domain"
	"scorehub.io/cli/internal/core/ports"
	"scorehub.io/cli/internal/core/schema"
)

// VerifyConfig is the health verification budget applied after a restart.
type VerifyConfig struct {
	// Attempts is the maximum number of probe attempts.
	Attempts int
	// Interval is the initial delay between attempts; backoff grows from
	// here.
	Interval time.Duration
	// Timeout bounds the whole verification phase.
	Timeout time.Duration
}

// Result reports the outcome of one applyChange call.
type Result struct {
	TxID     uint64
	Status   domain.TxStatus
	Mutation string
}

// Orchestrator owns the single transaction lock for one target process. All
// mutations to the config store and plugin registry flow through ApplyChange;
// no other mutation path exists.
type Orchestrator struct {
	store      ports.ConfigStore
	registry   ports.PluginRegistry
	controller ports.ProcessController
	probe      ports.HealthProbe
	base       *schema.Schema

	process        string
	restartTimeout time.Duration
	verify         VerifyConfig

	// lock serializes transactions. It is held from Open through the
	// terminal state and only ever released by the call path that acquired
	// it.
	lock sync.Mutex
	seq  atomic.Uint64

	logger hclog.Logger
}

// New wires an orchestrator for one target process.
func New(
	store ports.ConfigStore,
	registry ports.PluginRegistry,
	controller ports.ProcessController,
	probe ports.HealthProbe,
	base *schema.Schema,
	process string,
	restartTimeout time.Duration,
	verify VerifyConfig,
	logger hclog.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:          store,
		registry:       registry,
		controller:     controller,
		probe:          probe,
		base:           base,
		process:        process,
		restartTimeout: restartTimeout,
		verify:         verify,
		logger:         logger.Named("orchestrator"),
	}
}

// ApplyChange runs one mutation through the full transaction state machine.
// A second call while a transaction is in flight fails fast with
// domain.ErrTransactionBusy rather than queuing.
func (o *Orchestrator) ApplyChange(ctx context.Context, m Mutation) (Result, error) {
	if !o.lock.TryLock() {
		return Result{}, domain.ErrTransactionBusy
	}
	defer o.lock.Unlock()

	tx := &domain.Transaction{
		ID:       o.seq.Add(1),
		Status:   domain.TxOpen,
		OpenedAt: time.Now(),
	}
	log := o.logger.With("tx", tx.ID, "mutation", m.Describe())
	log.Info("transaction opened")

	result := Result{TxID: tx.ID, Mutation: m.Describe()}
	err := o.run(ctx, tx, m, log)
	result.Status = tx.Status
	if err != nil {
		log.Error("transaction failed", "status", tx.Status.String(), "error", err)
		return result, err
	}
	log.Info("transaction committed")
	return result, nil
}

// run drives the transaction to a terminal state. Every exit path leaves
// tx.Status at TxCommitted or TxRolledBack.
func (o *Orchestrator) run(ctx context.Context, tx *domain.Transaction, m Mutation, log hclog.Logger) error {
	// Open: snapshot current truth into the staged working copy.
	doc, err := o.store.Read()
	if err != nil {
		tx.Status = domain.TxRolledBack
		return err
	}
	records, err := o.registry.List()
	if err != nil {
		tx.Status = domain.TxRolledBack
		return err
	}
	tx.SnapshotDoc = doc.Clone()
	tx.SnapshotRecords = domain.CloneRecords(records)
	tx.Doc = doc.Clone()
	tx.Records = domain.CloneRecords(records)

	// Stage the mutation in memory. Planning errors reject here with no side
	// effects of any kind.
	files, err := o.stageMutation(tx, m)
	if err != nil {
		tx.Status = domain.TxRolledBack
		return err
	}

	// Validated: staged document must satisfy the effective schema for the
	// staged plugin set.
	effective := schema.Effective(o.base, tx.Records)
	if err := o.store.Validate(tx.Doc, effective); err != nil {
		tx.Status = domain.TxRolledBack
		return err
	}
	tx.Status = domain.TxValidated
	log.Debug("staged state validated")

	// Caller-requested cancellation is honored up to the restart request;
	// after that the external process is already transitioning and the
	// protocol must reach a terminal state under its own phase timeouts.
	if err := ctx.Err(); err != nil {
		tx.Status = domain.TxRolledBack
		return err
	}
	ctx = context.WithoutCancel(ctx)

	// Applying: land staged state where the target process will read it,
	// place any new plugin files, and restart onto it.
	tx.Status = domain.TxApplying
	if err := o.placeFiles(files); err != nil {
		tx.Status = domain.TxRolledBack
		return err
	}
	if err := o.applyStaged(tx.Doc, tx.Records); err != nil {
		// The config commit may have landed before record staging failed;
		// put the snapshot back so disk matches the pre-transaction truth.
		restoreErr := o.restoreSnapshot(tx, log)
		o.revertFiles(files, log)
		tx.Status = domain.TxRolledBack
		return withRestoreStatus(err, restoreErr)
	}

	if err := o.controller.Restart(ctx, o.process, o.restartTimeout); err != nil {
		// The process never restarted: it keeps running under its old
		// in-memory configuration (or stays stopped). Restore the canonical
		// files so disk matches it again; no second restart is issued.
		restoreErr := o.restoreSnapshot(tx, log)
		o.revertFiles(files, log)
		tx.Status = domain.TxRolledBack
		return withRestoreStatus(err, restoreErr)
	}

	// Verifying: restart success only proves the supervisor saw the process
	// come back. Poll the liveness probe under the bounded retry budget.
	tx.Status = domain.TxVerifying
	attempts, verifyErr := o.verifyHealth(ctx)
	if verifyErr != nil {
		log.Warn("health verification failed, rolling back", "attempts", attempts, "error", verifyErr)
		restoreErr := o.restoreSnapshot(tx, log)
		o.revertFiles(files, log)
		tx.Status = domain.TxRolledBack

		// One restart back to the last known good state. If that also
		// fails the situation requires an operator; no further retries.
		if rbErr := o.controller.Restart(ctx, o.process, o.restartTimeout); rbErr != nil {
			return withRestoreStatus(&domain.UnrecoverableError{
				Cause:       &domain.HealthCheckFailedError{Attempts: attempts, Err: verifyErr, RollbackRestarted: false},
				RollbackErr: rbErr,
			}, restoreErr)
		}
		return withRestoreStatus(&domain.HealthCheckFailedError{Attempts: attempts, Err: verifyErr, RollbackRestarted: true}, restoreErr)
	}

	// Committed: staged state is already live; finish bookkeeping that only
	// makes sense once the new state is verified.
	if files.uninstall != "" {
		if err := o.registry.RemoveFiles(files.uninstall); err != nil {
			log.Warn("failed to remove uninstalled plugin files", "plugin", files.uninstall, "error", err)
		}
	}
	if files.update != nil {
		o.registry.DropStash(files.update.Manifest.ID)
	}
	tx.Status = domain.TxCommitted
	return nil
}

// stagedFiles tracks the file-level side effects a mutation needs during
// Applying and how to undo them on rollback.
type stagedFiles struct {
	install   *ports.PluginPackage
	update    *ports.PluginPackage
	uninstall string
}

// stageMutation applies the mutation to the transaction's in-memory working
// copy and returns the file-level work the Applying phase must do.
func (o *Orchestrator) stageMutation(tx *domain.Transaction, m Mutation) (stagedFiles, error) {
	now := time.Now()
	switch mut := m.(type) {
	case SetConfigValues:
		doc, err := tx.Doc.SetAll(mut.Values)
		if err != nil {
			return stagedFiles{}, err
		}
		tx.Doc = doc

	case EnablePlugin:
		plan, err := o.registry.PlanEnable(mut.ID)
		if err != nil {
			return stagedFiles{}, err
		}
		for _, id := range plan.Order {
			rec := findRecord(tx.Records, id)
			if rec == nil {
				return stagedFiles{}, fmt.Errorf("%w: %q", domain.ErrPluginNotFound, id)
			}
			rec.State = domain.StateEnabled
			rec.LastAppliedAt = now
			if err := o.mergeContributedDefaults(tx, rec); err != nil {
				return stagedFiles{}, err
			}
		}

	case DisablePlugin:
		plan, err := o.registry.PlanDisable(mut.ID)
		if err != nil {
			return stagedFiles{}, err
		}
		rec := findRecord(tx.Records, plan.Target)
		if rec == nil {
			return stagedFiles{}, fmt.Errorf("%w: %q", domain.ErrPluginNotFound, plan.Target)
		}
		rec.State = domain.StateDisabled
		rec.LastAppliedAt = now

	case InstallPlugin:
		if err := o.registry.CheckInstall(mut.Package); err != nil {
			return stagedFiles{}, err
		}
		tx.Records = append(tx.Records, domain.PluginRecord{
			Manifest:         mut.Package.Manifest,
			State:            domain.StateDisabled,
			InstalledVersion: mut.Package.Manifest.Version,
			LastAppliedAt:    now,
		})
		domain.SortRecords(tx.Records)
		pkg := mut.Package
		return stagedFiles{install: &pkg}, nil

	case UpdatePlugin:
		if err := o.registry.CheckUpdate(mut.Package); err != nil {
			return stagedFiles{}, err
		}
		rec := findRecord(tx.Records, mut.Package.Manifest.ID)
		if rec == nil {
			return stagedFiles{}, fmt.Errorf("%w: %q", domain.ErrPluginNotFound, mut.Package.Manifest.ID)
		}
		rec.Manifest = mut.Package.Manifest
		rec.InstalledVersion = mut.Package.Manifest.Version
		rec.LastAppliedAt = now
		if rec.State == domain.StateEnabled {
			if err := o.mergeContributedDefaults(tx, rec); err != nil {
				return stagedFiles{}, err
			}
		}
		pkg := mut.Package
		return stagedFiles{update: &pkg}, nil

	case UninstallPlugin:
		if err := o.registry.CheckUninstall(mut.ID); err != nil {
			return stagedFiles{}, err
		}
		kept := tx.Records[:0]
		for _, rec := range tx.Records {
			if rec.Manifest.ID != mut.ID {
				kept = append(kept, rec)
			}
		}
		tx.Records = kept
		return stagedFiles{uninstall: mut.ID}, nil

	default:
		return stagedFiles{}, fmt.Errorf("unknown mutation %T", m)
	}
	return stagedFiles{}, nil
}

// mergeContributedDefaults merges a plugin's contributed keys into the staged
// document using its declared defaults, leaving existing values alone.
func (o *Orchestrator) mergeContributedDefaults(tx *domain.Transaction, rec *domain.PluginRecord) error {
	for _, key := range rec.Manifest.ConfigKeys {
		if key.Default == nil || tx.Doc.Has(key.Key) {
			continue
		}
		doc, err := tx.Doc.Set(key.Key, key.Default)
		if err != nil {
			return err
		}
		tx.Doc = doc
	}
	return nil
}

// applyStaged lands the staged document and records at their live locations
// so the restarted process reads them.
func (o *Orchestrator) applyStaged(doc domain.ConfigDocument, records []domain.PluginRecord) error {
	handle, err := o.store.Stage(doc)
	if err != nil {
		return err
	}
	if err := o.store.Commit(handle); err != nil {
		o.store.Discard(handle)
		return err
	}
	stage, err := o.registry.StageRecords(records)
	if err != nil {
		return err
	}
	if err := o.registry.CommitRecords(stage); err != nil {
		o.registry.DiscardRecords(stage)
		return err
	}
	return nil
}

// restoreSnapshot puts the pre-transaction document and records back,
// byte-identical. A restore failure does not stop the rollback; the caller
// folds it into the surfaced transaction error.
func (o *Orchestrator) restoreSnapshot(tx *domain.Transaction, log hclog.Logger) error {
	if err := o.applyStaged(tx.SnapshotDoc, tx.SnapshotRecords); err != nil {
		log.Error("failed to restore pre-transaction snapshot", "error", err)
		return err
	}
	return nil
}

// withRestoreStatus folds a snapshot-restore failure into the surfaced
// transaction error so callers never assume canonical state was put back.
func withRestoreStatus(err, restoreErr error) error {
	if restoreErr == nil {
		return err
	}
	return &domain.SnapshotRestoreError{Cause: err, RestoreErr: restoreErr}
}

// placeFiles performs the file-level side of the Applying phase: new plugin
// files land in their namespace, an updated plugin's old files are stashed
// before the replacement payload goes in.
func (o *Orchestrator) placeFiles(files stagedFiles) error {
	if files.install != nil {
		if err := o.registry.PlaceFiles(*files.install); err != nil {
			return err
		}
	}
	if files.update != nil {
		id := files.update.Manifest.ID
		if err := o.registry.StashFiles(id); err != nil {
			return err
		}
		if err := o.registry.PlaceFiles(*files.update); err != nil {
			o.restoreStash(id, o.logger)
			return err
		}
	}
	return nil
}

// revertFiles undoes placeFiles on rollback.
func (o *Orchestrator) revertFiles(files stagedFiles, log hclog.Logger) {
	if files.install != nil {
		if err := o.registry.RemoveFiles(files.install.Manifest.ID); err != nil {
			log.Warn("failed to remove placed plugin files", "plugin", files.install.Manifest.ID, "error", err)
		}
	}
	if files.update != nil {
		o.restoreStash(files.update.Manifest.ID, log)
	}
}

func (o *Orchestrator) restoreStash(id string, log hclog.Logger) {
	if err := o.registry.RestoreFiles(id); err != nil {
		log.Error("failed to restore stashed plugin files", "plugin", id, "error", err)
	}
}

// verifyHealth polls the probe under exponential backoff, bounded by the
// verify budget. Returns the number of attempts made.
func (o *Orchestrator) verifyHealth(ctx context.Context) (int, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.verify.Interval
	bo.MaxInterval = o.verify.Interval * 4
	bo.MaxElapsedTime = o.verify.Timeout

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(o.verify.Attempts-1)), ctx)

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		return o.probe.Probe(ctx)
	}, policy)
	return attempts, err
}

// ReadConfig returns the canonical document. Never blocks on the transaction
// lock: readers see pre-transaction truth until a commit lands.
func (o *Orchestrator) ReadConfig() (domain.ConfigDocument, error) {
	return o.store.Read()
}

// ListPlugins returns the canonical plugin records. Never blocks on the
// transaction lock.
func (o *Orchestrator) ListPlugins() ([]domain.PluginRecord, error) {
	return o.registry.List()
}

// EffectiveSchema returns the schema currently in force: base keys plus the
// contributions of enabled plugins.
func (o *Orchestrator) EffectiveSchema() (*schema.Schema, error) {
	records, err := o.registry.List()
	if err != nil {
		return nil, err
	}
	return schema.Effective(o.base, records), nil
}

func findRecord(records []domain.PluginRecord, id string) *domain.PluginRecord {
	for i := range records {
		if records[i].Manifest.ID == id {
			return &records[i]
		}
	}
	return nil
}

// IsBusy reports whether a transaction is currently in flight. Advisory only;
// ApplyChange remains the authoritative gate.
func (o *Orchestrator) IsBusy() bool {
	if o.lock.TryLock() {
		o.lock.Unlock()
		return false
	}
	return true
}
