package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/medweb3/medtrace/pkg/cache"
	"github.com/medweb3/medtrace/pkg/database/query"
	"github.com/medweb3/medtrace/pkg/ledger/account"
	"github.com/medweb3/medtrace/pkg/medtrace"
	"github.com/medweb3/medtrace/pkg/medtrace/processor"
	"github.com/medweb3/medtrace/pkg/metrics"
	"github.com/medweb3/medtrace/pkg/rate"
	"github.com/medweb3/medtrace/pkg/solana"
	"github.com/medweb3/medtrace/pkg/solana/system"
	sync_util "github.com/medweb3/medtrace/pkg/sync"
)

const (
	metricsStructName = "ledger.bank"

	slotsPerEpoch = 432_000
)

var (
	ErrAccountNotFound = account.ErrAccountNotFound
	ErrInvalidAirdrop  = errors.New("invalid airdrop")
	ErrAirdropLimited  = errors.New("airdrop rate limit exceeded")
)

// TransactionResult is the outcome of a transaction the bank accepted for
// processing. Err is set when the transaction was rejected or one of its
// instructions failed, in which case only the fee was charged.
type TransactionResult struct {
	Signature string
	Slot      uint64
	Fee       uint64
	Logs      []string
	Err       *solana.TransactionError
}

// Failure returns Err as an error, or nil on success
func (r *TransactionResult) Failure() error {
	if r.Err == nil {
		return nil
	}
	return r.Err
}

// Option configures a Bank
type Option func(*Bank)

// WithProgram registers an additional builtin program at id
func WithProgram(id ed25519.PublicKey, program solana.Program) Option {
	return func(b *Bank) {
		b.programs[base58.Encode(id)] = program
	}
}

// Bank is a single node ledger that executes transactions against an
// account.Store. Transactions touching disjoint accounts run in parallel,
// while conflicting transactions are serialized by account locks.
type Bank struct {
	log   *logrus.Entry
	conf  *conf
	clock Clock

	accounts account.Store
	locks    *sync_util.StripedLock
	programs map[string]solana.Program
	airdrops rate.Limiter

	statusCache cache.Cache[*TransactionResult]
	blockhashes cache.Cache[uint64]

	slotMu          sync.Mutex
	slot            uint64
	persistedSlot   uint64
	latestBlockhash solana.Blockhash
}

// New returns a Bank with the system and batch traceability programs
// deployed. The slot counter resumes from the clock sysvar persisted in store,
// if any.
func New(ctx context.Context, store account.Store, clock Clock, configProvider ConfigProvider, opts ...Option) (*Bank, error) {
	conf := configProvider()

	b := &Bank{
		log:      logrus.StandardLogger().WithField("type", "ledger/bank"),
		conf:     conf,
		clock:    clock,
		accounts: store,
		locks:    sync_util.NewStripedLock(uint(conf.lockStripes.Get(ctx))),
		programs: map[string]solana.Program{
			base58.Encode(system.SystemAccount): system.Program,
			base58.Encode(medtrace.PROGRAM_ID):  processor.Program,
		},
		airdrops:    rate.NewLimiter(conf.airdropsPerSecond.Get(ctx)),
		statusCache: cache.NewCache[*TransactionResult](int(conf.statusCacheSize.Get(ctx))),
		blockhashes: cache.NewCache[uint64](int(conf.maxRecentBlockhashes.Get(ctx))),
	}
	for _, opt := range opts {
		opt(b)
	}

	record, err := store.Get(ctx, base58.Encode(system.ClockSysVar))
	switch err {
	case nil:
		var persisted system.ClockAccount
		if err := persisted.Unmarshal(record.Data); err != nil {
			return nil, errors.Wrap(err, "invalid persisted clock sysvar")
		}
		b.slot = persisted.Slot
		b.persistedSlot = persisted.Slot
	case account.ErrAccountNotFound:
	default:
		return nil, errors.Wrap(err, "error loading persisted clock sysvar")
	}

	b.latestBlockhash = blockhashAt(b.slot)
	if err := b.blockhashes.Insert(blockhashKey(b.latestBlockhash), b.slot, 1); err != nil {
		return nil, err
	}

	b.log.WithField("slot", b.slot).Info("bank started")
	return b, nil
}

// SubmitTransaction decodes and processes a wire encoded transaction
func (b *Bank) SubmitTransaction(ctx context.Context, raw []byte) (*TransactionResult, error) {
	if len(raw) > solana.MaxTransactionSize {
		return &TransactionResult{Err: solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)}, nil
	}

	var txn solana.Transaction
	if err := txn.Unmarshal(raw); err != nil {
		b.log.WithError(err).Debug("failed to decode transaction")
		return &TransactionResult{Err: solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)}, nil
	}

	return b.ProcessTransaction(ctx, &txn)
}

// ProcessTransaction executes every instruction of txn atomically. The
// returned error is reserved for storage failures, in which case nothing was
// committed and the transaction may be retried.
func (b *Bank) ProcessTransaction(ctx context.Context, txn *solana.Transaction) (*TransactionResult, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "ProcessTransaction")
	defer tracer.End()

	start := time.Now()

	result, err := b.processTransaction(ctx, txn)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	tracer.AddAttributes(map[string]interface{}{
		"signature": result.Signature,
		"slot":      result.Slot,
	})
	tracer.OnError(result.Failure())

	metrics.RecordDuration(ctx, "Bank.ProcessTransaction", time.Since(start))
	metrics.RecordEvent(ctx, metrics.TransactionProcessedEventName, map[string]interface{}{
		"signature": result.Signature,
		"slot":      result.Slot,
		"success":   result.Err == nil,
	})
	if result.Err != nil {
		metrics.RecordEvent(ctx, metrics.InstructionFailedEventName, map[string]interface{}{
			"signature": result.Signature,
			"error":     result.Err.Error(),
		})
	}

	return result, nil
}

func (b *Bank) processTransaction(ctx context.Context, txn *solana.Transaction) (*TransactionResult, error) {
	sig := txn.ID()
	msg := &txn.Message

	log := b.log.WithFields(logrus.Fields{
		"method":    "ProcessTransaction",
		"signature": sig,
	})

	result := &TransactionResult{Signature: sig}
	reject := func(key solana.TransactionErrorKey, err error) (*TransactionResult, error) {
		log.WithError(err).WithField("reason", key).Debug("transaction rejected")
		result.Err = solana.NewTransactionError(key)
		return result, nil
	}

	if len(txn.Signatures) == 0 {
		return reject(solana.TransactionErrorMissingSignatureForFee, errors.New("no signatures"))
	}
	if err := msg.Sanitize(); err != nil {
		return reject(solana.TransactionErrorSanitizeFailure, err)
	}
	if _, err := txn.VerifySignatures(); err != nil {
		return reject(solana.TransactionErrorSignatureFailure, err)
	}
	if !b.blockhashes.Contains(blockhashKey(msg.RecentBlockhash)) {
		return reject(solana.TransactionErrorBlockhashNotFound, errors.New("unknown blockhash"))
	}

	var writable, readonly [][]byte
	for i, key := range msg.Accounts {
		if msg.IsWritable(i) && !b.isBuiltin(key) {
			writable = append(writable, key)
		} else {
			readonly = append(readonly, key)
		}
	}

	unlock := b.locks.LockAll(writable, readonly)
	defer unlock()

	if b.statusCache.Contains(sig) {
		return reject(solana.TransactionErrorAlreadyProcessed, errors.New("duplicate signature"))
	}

	accounts, err := b.loadAccounts(ctx, msg)
	if err != nil {
		log.WithError(err).Warn("failure loading transaction accounts")
		return nil, err
	}

	payer := accounts[0]
	fee := b.conf.lamportsPerSignature.Get(ctx) * uint64(len(txn.Signatures))
	if payer.Lamports == 0 {
		return reject(solana.TransactionErrorAccountNotFound, errors.New("fee payer has no lamports"))
	}
	if payer.Lamports < fee {
		return reject(solana.TransactionErrorInsufficientFundsForFee, errors.Errorf("fee payer has %d lamports, fee is %d", payer.Lamports, fee))
	}

	slot := b.nextSlot()
	log = log.WithField("slot", slot)

	if err := b.fillSysvars(ctx, accounts, slot); err != nil {
		log.WithError(err).Warn("invalid rent config, using default rent")
	}

	loaded := make([]*solana.AccountInfo, len(accounts))
	for i, info := range accounts {
		loaded[i] = info.Clone()
	}

	payer.Lamports -= fee
	feeCharged := payer.Clone()

	var logs []string
	for i, compiled := range msg.Instructions {
		programKey := msg.Accounts[compiled.ProgramIndex]

		infos := make([]*solana.AccountInfo, len(compiled.Accounts))
		for j, index := range compiled.Accounts {
			infos[j] = accounts[index]
		}

		logs = append(logs, "Program "+base58.Encode(programKey)+" invoke [1]")

		program, ok := b.programs[base58.Encode(programKey)]
		if !ok {
			err = errors.Wrapf(solana.ErrUnsupportedProgramID, "program %s", base58.Encode(programKey))
			logs = append(logs, "Program "+base58.Encode(programKey)+" failed: "+err.Error())
		} else {
			err = newInvocation(b, &logs, programKey, infos, 1).run(program, compiled.Data)
		}

		if err != nil {
			txErr, convErr := solana.TransactionErrorFromInstructionError(&solana.InstructionError{Index: i, Err: err})
			if convErr != nil {
				return nil, convErr
			}
			result.Err = txErr
			break
		}
	}

	var records []*account.Record
	if result.Err != nil {
		records = append(records, toRecord(feeCharged, slot))
	} else {
		for i, info := range accounts {
			if i != 0 && (!msg.IsWritable(i) || b.isBuiltin(info.Key) || !changed(loaded[i], info)) {
				continue
			}
			records = append(records, toRecord(info, slot))
		}
	}

	if err := b.accounts.Save(ctx, records...); err != nil {
		log.WithError(err).Warn("failure committing transaction")
		return nil, err
	}
	b.persistClock(ctx, slot)

	result.Slot = slot
	result.Fee = fee
	result.Logs = logs

	debugLogs := b.conf.debugLogs.Get(ctx)
	for _, line := range logs {
		if debugLogs {
			log.Info(line)
		} else {
			log.Debug(line)
		}
	}
	if result.Err != nil {
		log.WithError(result.Err).Info("transaction failed")
	}

	if err := b.statusCache.Insert(sig, result, 1); err != nil {
		log.WithError(err).Warn("failure caching transaction status")
	}
	return result, nil
}

// GetTransaction returns the result of a recently processed transaction
func (b *Bank) GetTransaction(signature string) (*TransactionResult, bool) {
	return b.statusCache.Retrieve(signature)
}

// GetLatestBlockhash returns the blockhash new transactions should reference
func (b *Bank) GetLatestBlockhash() solana.Blockhash {
	b.slotMu.Lock()
	defer b.slotMu.Unlock()
	return b.latestBlockhash
}

// GetSlot returns the slot of the most recently processed transaction
func (b *Bank) GetSlot() uint64 {
	b.slotMu.Lock()
	defer b.slotMu.Unlock()
	return b.slot
}

// GetAccountInfo returns the current state of the account at key
//
// ErrAccountNotFound is returned when the account has never been funded
func (b *Bank) GetAccountInfo(ctx context.Context, key ed25519.PublicKey) (*solana.AccountInfo, error) {
	if info := b.builtinAccount(ctx, key, b.GetSlot()); info != nil {
		return info, nil
	}

	record, err := b.accounts.Get(ctx, base58.Encode(key))
	if err != nil {
		return nil, err
	}
	return fromRecord(record)
}

// GetBalance returns the lamports held by key, or zero for unknown accounts
func (b *Bank) GetBalance(ctx context.Context, key ed25519.PublicKey) (uint64, error) {
	info, err := b.GetAccountInfo(ctx, key)
	if err == account.ErrAccountNotFound {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return info.Lamports, nil
}

// GetMinimumBalanceForRentExemption returns the lamports an account of size
// bytes must hold to be rent exempt
func (b *Bank) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) uint64 {
	rent, _ := b.conf.rentFor(ctx)
	return rent.MinimumBalance(size)
}

// GetProgramAccounts returns a page of the accounts owned by programID
func (b *Bank) GetProgramAccounts(ctx context.Context, programID ed25519.PublicKey, opts ...query.Option) ([]*account.Record, error) {
	return b.accounts.GetAllByOwner(ctx, base58.Encode(programID), opts...)
}

// RequestAirdrop credits lamports to key, creating a system account if needed
func (b *Bank) RequestAirdrop(ctx context.Context, key ed25519.PublicKey, lamports uint64) error {
	log := b.log.WithFields(logrus.Fields{
		"method":   "RequestAirdrop",
		"account":  base58.Encode(key),
		"lamports": lamports,
	})

	if len(key) != ed25519.PublicKeySize {
		return errors.Wrap(ErrInvalidAirdrop, "invalid account key")
	}
	if lamports == 0 {
		return errors.Wrap(ErrInvalidAirdrop, "lamports must be positive")
	}
	if b.isBuiltin(key) {
		return errors.Wrap(ErrInvalidAirdrop, "cannot fund a builtin account")
	}

	allowed, err := b.airdrops.Allow(base58.Encode(key))
	if err != nil {
		return err
	} else if !allowed {
		log.Debug("airdrop rate limited")
		return ErrAirdropLimited
	}

	unlock := b.locks.LockAll([][]byte{key}, nil)
	defer unlock()

	info, err := b.loadAccount(ctx, key)
	if err != nil {
		return err
	}
	if lamports > account.MaxLamports || info.Lamports > account.MaxLamports-lamports {
		return errors.Wrapf(ErrInvalidAirdrop, "balance would exceed %d lamports", uint64(account.MaxLamports))
	}
	info.Lamports += lamports

	if err := b.accounts.Save(ctx, toRecord(info, b.GetSlot())); err != nil {
		log.WithError(err).Warn("failure saving airdrop")
		return err
	}

	metrics.RecordCount(ctx, "Bank.Airdrop", lamports)
	metrics.RecordEvent(ctx, metrics.AirdropCreditedEventName, map[string]interface{}{
		"account":  base58.Encode(key),
		"lamports": lamports,
	})
	log.WithField("balance", info.Lamports).Debug("airdrop credited")
	return nil
}

func (b *Bank) nextSlot() uint64 {
	b.slotMu.Lock()
	defer b.slotMu.Unlock()

	b.slot++
	b.latestBlockhash = blockhashAt(b.slot)
	if err := b.blockhashes.Insert(blockhashKey(b.latestBlockhash), b.slot, 1); err != nil {
		b.log.WithError(err).Warn("failure recording blockhash")
	}
	return b.slot
}

// persistClock stores the clock sysvar so a restarted bank resumes from the
// latest slot. Older slots never overwrite newer ones.
func (b *Bank) persistClock(ctx context.Context, slot uint64) {
	b.slotMu.Lock()
	defer b.slotMu.Unlock()

	if slot <= b.persistedSlot {
		return
	}

	clock := b.clockSysvar(slot)
	err := b.accounts.Save(ctx, toRecord(clock, slot))
	if err != nil {
		b.log.WithError(err).Warn("failure persisting clock sysvar")
		return
	}
	b.persistedSlot = slot
}

func (b *Bank) isBuiltin(key ed25519.PublicKey) bool {
	if _, ok := b.programs[base58.Encode(key)]; ok {
		return true
	}
	return bytes.Equal(key, system.RentSysVar) || bytes.Equal(key, system.ClockSysVar)
}

func (b *Bank) loadAccounts(ctx context.Context, msg *solana.Message) ([]*solana.AccountInfo, error) {
	accounts := make([]*solana.AccountInfo, len(msg.Accounts))
	for i, key := range msg.Accounts {
		info, err := b.loadAccount(ctx, key)
		if err != nil {
			return nil, err
		}

		info.IsSigner = msg.IsSigner(i)
		info.IsWritable = msg.IsWritable(i) && !b.isBuiltin(key)
		accounts[i] = info
	}
	return accounts, nil
}

// loadAccount returns the account at key, or an empty system account when it
// doesn't exist yet.
func (b *Bank) loadAccount(ctx context.Context, key ed25519.PublicKey) (*solana.AccountInfo, error) {
	if info := b.builtinAccount(ctx, key, b.GetSlot()); info != nil {
		return info, nil
	}

	record, err := b.accounts.Get(ctx, base58.Encode(key))
	if err == account.ErrAccountNotFound {
		return &solana.AccountInfo{
			Key:   append(ed25519.PublicKey(nil), key...),
			Owner: append(ed25519.PublicKey(nil), system.SystemAccount...),
		}, nil
	} else if err != nil {
		return nil, err
	}
	return fromRecord(record)
}

// fillSysvars refreshes the sysvar accounts of a transaction for the slot it
// executes in.
func (b *Bank) fillSysvars(ctx context.Context, accounts []*solana.AccountInfo, slot uint64) error {
	rent, rentErr := b.conf.rentFor(ctx)
	for _, info := range accounts {
		switch {
		case bytes.Equal(info.Key, system.RentSysVar):
			info.Data = rent.Marshal()
		case bytes.Equal(info.Key, system.ClockSysVar):
			info.Data = b.clockSysvar(slot).Data
		}
	}
	return rentErr
}

func (b *Bank) builtinAccount(ctx context.Context, key ed25519.PublicKey, slot uint64) *solana.AccountInfo {
	switch {
	case bytes.Equal(key, system.RentSysVar):
		rent, _ := b.conf.rentFor(ctx)
		return sysvarAccount(key, rent.Marshal())
	case bytes.Equal(key, system.ClockSysVar):
		return b.clockSysvar(slot)
	}

	if _, ok := b.programs[base58.Encode(key)]; ok {
		return &solana.AccountInfo{
			Key:        append(ed25519.PublicKey(nil), key...),
			Owner:      append(ed25519.PublicKey(nil), system.NativeLoader...),
			Lamports:   1,
			Executable: true,
		}
	}
	return nil
}

func (b *Bank) clockSysvar(slot uint64) *solana.AccountInfo {
	epoch := slot / slotsPerEpoch
	clock := system.ClockAccount{
		Slot:                slot,
		Epoch:               epoch,
		LeaderScheduleEpoch: epoch + 1,
		UnixTimestamp:       b.clock.Now().Unix(),
	}
	return sysvarAccount(system.ClockSysVar, clock.Marshal())
}

func sysvarAccount(key ed25519.PublicKey, data []byte) *solana.AccountInfo {
	return &solana.AccountInfo{
		Key:      append(ed25519.PublicKey(nil), key...),
		Owner:    append(ed25519.PublicKey(nil), system.SysvarOwner...),
		Lamports: 1,
		Data:     data,
	}
}

func changed(before, after *solana.AccountInfo) bool {
	return before.Lamports != after.Lamports ||
		before.Executable != after.Executable ||
		!bytes.Equal(before.Owner, after.Owner) ||
		!bytes.Equal(before.Data, after.Data)
}

func toRecord(info *solana.AccountInfo, slot uint64) *account.Record {
	return &account.Record{
		Address:    base58.Encode(info.Key),
		Owner:      base58.Encode(info.Owner),
		Lamports:   info.Lamports,
		Data:       append([]byte(nil), info.Data...),
		Executable: info.Executable,
		Slot:       slot,
	}
}

func fromRecord(record *account.Record) (*solana.AccountInfo, error) {
	key, err := base58.Decode(record.Address)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid stored account address %q", record.Address)
	}
	owner, err := base58.Decode(record.Owner)
	if err != nil || len(owner) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid stored account owner %q", record.Owner)
	}

	return &solana.AccountInfo{
		Key:        key,
		Owner:      owner,
		Lamports:   record.Lamports,
		Data:       record.Data,
		Executable: record.Executable,
	}, nil
}

func blockhashAt(slot uint64) solana.Blockhash {
	h := sha256.New()
	h.Write([]byte("medtrace:blockhash"))
	_ = binary.Write(h, binary.LittleEndian, slot)

	var bh solana.Blockhash
	copy(bh[:], h.Sum(nil))
	return bh
}

func blockhashKey(bh solana.Blockhash) string {
	return base58.Encode(bh[:])
}
