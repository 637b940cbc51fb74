package core

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/core/rawdb"
	"github.com/tos-network/tossig/core/types"
	"github.com/tos-network/tossig/log"
	"github.com/tos-network/tossig/metrics"
	"github.com/tos-network/tossig/params"
	"github.com/tos-network/tossig/sigdb"
)

// DefaultAccountCacheSize is the fallback capacity of the committed account
// cache.
const DefaultAccountCacheSize = 4096

var (
	batchExecutedCounter = metrics.NewRegisteredCounter("ledger/batch/executed", nil)
	batchFailedCounter   = metrics.NewRegisteredCounter("ledger/batch/failed", nil)
	headSequenceGauge    = metrics.NewRegisteredGauge("ledger/head", nil)
)

// Program is the contract between the ledger and a native program: one Run
// call per instruction dispatched to the program's identity. A non-nil error
// aborts the batch and rolls back everything it staged.
type Program interface {
	Run(ctx *Context) error
}

// Config holds the tunable knobs of a ledger.
type Config struct {
	// AccountCacheSize bounds the committed account LRU cache.
	AccountCacheSize int
}

// Ledger executes signed batches against program-owned account state. One
// batch runs at a time; its writes land in a journal that commits all or
// nothing together with the batch record.
type Ledger struct {
	db       sigdb.Database
	programs map[common.Identity]Program
	cache    *lru.Cache

	mu      sync.Mutex // serializes batch execution
	head    uint64
	hasHead bool

	subMu   sync.Mutex
	subs    map[int]chan<- *types.BatchRecord
	nextSub int

	logger log.Logger
}

// OwnedAccount pairs an account with its identity for listings.
type OwnedAccount struct {
	ID      common.Identity
	Account *types.Account
}

// NewLedger opens a ledger over db and registers the system program.
func NewLedger(db sigdb.Database, cfg Config) (*Ledger, error) {
	size := cfg.AccountCacheSize
	if size <= 0 {
		size = DefaultAccountCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	l := &Ledger{
		db:       db,
		programs: make(map[common.Identity]Program),
		cache:    cache,
		subs:     make(map[int]chan<- *types.BatchRecord),
		logger:   log.New("module", "ledger"),
	}
	if head, ok := rawdb.ReadHeadBatchSequence(db); ok {
		l.head, l.hasHead = head, true
		headSequenceGauge.Update(int64(head))
	}
	l.programs[params.SystemProgram] = systemProgram{}
	l.logger.Info("Ledger opened", "head", l.head, "accountCache", size)
	return l, nil
}

// RegisterProgram installs a native program under id. Programs are registered
// at startup, before batches flow.
func (l *Ledger) RegisterProgram(id common.Identity, p Program) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.programs[id]; ok {
		return ErrProgramExists
	}
	l.programs[id] = p
	l.logger.Info("Registered program", "identity", id)
	return nil
}

// Account returns a copy of the committed account stored under id, or nil.
func (l *Ledger) Account(id common.Identity) *types.Account {
	if cached, ok := l.cache.Get(id); ok {
		return cached.(*types.Account).Copy()
	}
	acc := rawdb.ReadAccount(l.db, id)
	if acc == nil {
		return nil
	}
	l.cache.Add(id, acc.Copy())
	return acc
}

// AccountsByOwner returns every committed account owned by the given program
// identity, in ascending identity order.
func (l *Ledger) AccountsByOwner(owner common.Identity) []OwnedAccount {
	var out []OwnedAccount
	it := rawdb.IterateAccounts(l.db)
	defer it.Release()
	for it.Next() {
		acc, err := types.DecodeAccount(it.Value())
		if err != nil {
			continue
		}
		if acc.Owner == owner {
			out = append(out, OwnedAccount{ID: rawdb.AccountIdentity(it.Key()), Account: acc})
		}
	}
	return out
}

// HeadSequence returns the sequence of the latest recorded batch. The second
// return is false when nothing has been executed yet.
func (l *Ledger) HeadSequence() (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head, l.hasHead
}

// BatchRecord returns the record stored under seq, or nil.
func (l *Ledger) BatchRecord(seq uint64) *types.BatchRecord {
	return rawdb.ReadBatchRecord(l.db, seq)
}

// BatchRecords returns up to limit records starting at sequence since.
func (l *Ledger) BatchRecords(since uint64, limit int) []*types.BatchRecord {
	if since == 0 {
		since = 1
	}
	var out []*types.BatchRecord
	for seq := since; limit <= 0 || len(out) < limit; seq++ {
		rec := rawdb.ReadBatchRecord(l.db, seq)
		if rec == nil {
			break
		}
		out = append(out, rec)
	}
	return out
}

// SubscribeBatchRecords registers ch to receive every record the ledger
// appends. Slow consumers miss records instead of blocking execution. The
// returned function cancels the subscription.
func (l *Ledger) SubscribeBatchRecords(ch chan<- *types.BatchRecord) func() {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	return func() {
		l.subMu.Lock()
		defer l.subMu.Unlock()
		delete(l.subs, id)
	}
}

func (l *Ledger) notify(rec *types.BatchRecord) {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	for _, ch := range l.subs {
		select {
		case ch <- rec:
		default:
		}
	}
}

// ExecuteBatch verifies, runs and records one batch. Structurally invalid or
// unauthorized batches are rejected with an error and leave no trace. Batches
// that reach execution always produce a record: on program failure the record
// carries the program's error verbatim and no state change survives.
func (l *Ledger) ExecuteBatch(batch *types.Batch) (*types.BatchRecord, error) {
	if err := batch.SanityCheck(); err != nil {
		return nil, err
	}
	if err := batch.VerifySignatures(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	j := newJournal(l)
	var execErr error
	for i := range batch.Instructions {
		program, ok := l.programs[batch.Instructions[i].Program]
		if !ok {
			execErr = ErrUnknownProgram
			break
		}
		if err := program.Run(newContext(j, batch, i)); err != nil {
			execErr = err
			break
		}
	}

	seq := uint64(1)
	if l.hasHead {
		seq = l.head + 1
	}
	rec := &types.BatchRecord{
		Sequence: seq,
		Hash:     batch.Hash(),
		Time:     uint64(time.Now().Unix()),
		Status:   types.BatchStatusOK,
		Raw:      batch.EncodeBinary(),
	}
	if execErr != nil {
		rec.Status = types.BatchStatusFailed
		rec.Error = execErr.Error()
	}

	// Stage the journal, the record and the head cursor into one database
	// batch so a crash cannot leave a half-applied state.
	dbBatch := l.db.NewBatch()
	if execErr == nil {
		j.commit(dbBatch)
	}
	rawdb.WriteBatchRecord(dbBatch, rec)
	rawdb.WriteHeadBatchSequence(dbBatch, seq)
	if err := dbBatch.Write(); err != nil {
		return nil, err
	}
	l.head, l.hasHead = seq, true
	headSequenceGauge.Update(int64(seq))

	if execErr == nil {
		j.each(func(id common.Identity, acc *types.Account) {
			l.cache.Add(id, acc.Copy())
		})
		batchExecutedCounter.Inc(1)
		l.logger.Info("Executed batch", "seq", seq, "hash", rec.Hash.TerminalString(), "instructions", len(batch.Instructions))
	} else {
		batchFailedCounter.Inc(1)
		l.logger.Warn("Batch failed", "seq", seq, "hash", rec.Hash.TerminalString(), "err", execErr)
	}
	l.notify(rec)
	return rec, nil
}
