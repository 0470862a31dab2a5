package ledger

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/medweb3/medtrace/pkg/solana"
)

const (
	// MaxInvokeDepth bounds nested cross program invocations, counting the
	// top level instruction as depth 1.
	MaxInvokeDepth = 4
)

type accountSnapshot struct {
	owner      ed25519.PublicKey
	lamports   uint64
	data       []byte
	executable bool
	writable   bool
}

// invocation is the runtime handed to a program for a single instruction, or
// a single cross program invocation nested within one.
type invocation struct {
	bank      *Bank
	logs      *[]string
	programID ed25519.PublicKey
	accounts  []*solana.AccountInfo
	depth     int

	pre map[string]accountSnapshot
}

func newInvocation(b *Bank, logs *[]string, programID ed25519.PublicKey, accounts []*solana.AccountInfo, depth int) *invocation {
	inv := &invocation{
		bank:      b,
		logs:      logs,
		programID: programID,
		accounts:  accounts,
		depth:     depth,
	}
	inv.snapshot()
	return inv
}

// Log implements solana.Runtime.Log
func (inv *invocation) Log(format string, args ...interface{}) {
	*inv.logs = append(*inv.logs, "Program log: "+fmt.Sprintf(format, args...))
}

// Invoke implements solana.Runtime.Invoke
func (inv *invocation) Invoke(instruction solana.Instruction, accounts ...*solana.AccountInfo) error {
	if inv.depth >= MaxInvokeDepth {
		return solana.ErrCallDepth
	}

	program, ok := inv.bank.programs[base58.Encode(instruction.Program)]
	if !ok {
		return errors.Wrapf(solana.ErrUnsupportedProgramID, "program %s", base58.Encode(instruction.Program))
	}

	var programPassed bool
	for _, info := range accounts {
		if bytes.Equal(info.Key, instruction.Program) {
			programPassed = true
			break
		}
	}
	if !programPassed {
		return errors.Wrapf(solana.ErrNotEnoughAccountKeys, "program %s not passed to invoke", base58.Encode(instruction.Program))
	}

	// Changes made by the caller so far must be legal before they become
	// visible to the callee.
	if err := inv.verify(); err != nil {
		return err
	}

	// The callee gets its own views, with privileges taken from the
	// instruction metas. Changes are copied back once it succeeds.
	views := make(map[string]*solana.AccountInfo)
	callerViews := make(map[string]*solana.AccountInfo)
	calleeAccounts := make([]*solana.AccountInfo, 0, len(instruction.Accounts))
	for _, meta := range instruction.Accounts {
		key := base58.Encode(meta.PublicKey)

		caller := findAccount(accounts, meta.PublicKey)
		if caller == nil {
			return errors.Wrapf(solana.ErrNotEnoughAccountKeys, "account %s not passed to invoke", key)
		}
		if meta.IsSigner && !caller.IsSigner {
			return errors.Wrapf(solana.ErrPrivilegeEscalation, "account %s is not a signer", key)
		}
		if meta.IsWritable && !caller.IsWritable {
			return errors.Wrapf(solana.ErrPrivilegeEscalation, "account %s is not writable", key)
		}
		if caller.IsBorrowed() {
			return errors.Wrapf(solana.ErrAccountBorrowFailed, "account %s is borrowed by the caller", key)
		}

		view, ok := views[key]
		if !ok {
			view = caller.Clone()
			view.IsSigner = false
			view.IsWritable = false
			views[key] = view
			callerViews[key] = caller
		}
		view.IsSigner = view.IsSigner || meta.IsSigner
		view.IsWritable = view.IsWritable || meta.IsWritable

		calleeAccounts = append(calleeAccounts, view)
	}

	*inv.logs = append(*inv.logs, fmt.Sprintf("Program %s invoke [%d]", base58.Encode(instruction.Program), inv.depth+1))

	callee := newInvocation(inv.bank, inv.logs, instruction.Program, calleeAccounts, inv.depth+1)
	if err := callee.run(program, instruction.Data); err != nil {
		return err
	}

	for key, view := range views {
		caller := callerViews[key]
		caller.Owner = view.Owner
		caller.Lamports = view.Lamports
		caller.Data = view.Data
		caller.Executable = view.Executable
	}

	// The callee's changes were verified against its own snapshot, so the
	// caller continues from the post invoke state.
	inv.snapshot()
	return nil
}

// run executes the program and verifies the account changes it made.
func (inv *invocation) run(program solana.Program, data []byte) error {
	id := base58.Encode(inv.programID)

	err := program.Process(inv, inv.programID, inv.accounts, data)
	if err == nil {
		err = inv.verify()
	}

	if err != nil {
		*inv.logs = append(*inv.logs, fmt.Sprintf("Program %s failed: %v", id, err))
		return err
	}

	*inv.logs = append(*inv.logs, fmt.Sprintf("Program %s success", id))
	return nil
}

func (inv *invocation) snapshot() {
	inv.pre = make(map[string]accountSnapshot, len(inv.accounts))
	for _, info := range inv.accounts {
		inv.pre[base58.Encode(info.Key)] = accountSnapshot{
			owner:      append(ed25519.PublicKey(nil), info.Owner...),
			lamports:   info.Lamports,
			data:       append([]byte(nil), info.Data...),
			executable: info.Executable,
			writable:   info.IsWritable,
		}
	}
}

// verify checks the changes made to every account since the last snapshot
// against what the invoked program was allowed to do.
func (inv *invocation) verify() error {
	var preTotal, postTotal uint64

	seen := make(map[string]struct{}, len(inv.accounts))
	for _, info := range inv.accounts {
		key := base58.Encode(info.Key)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		pre := inv.pre[key]
		if info.IsBorrowed() {
			return errors.Wrapf(solana.ErrAccountBorrowOutstanding, "account %s", key)
		}
		if err := inv.verifyAccount(key, pre, info); err != nil {
			return err
		}

		preTotal += pre.lamports
		postTotal += info.Lamports
	}

	if preTotal != postTotal {
		return errors.Wrapf(solana.ErrUnbalancedInstruction, "lamports before %d, after %d", preTotal, postTotal)
	}
	return nil
}

func (inv *invocation) verifyAccount(key string, pre accountSnapshot, post *solana.AccountInfo) error {
	ownedByProgram := bytes.Equal(pre.owner, inv.programID)

	if !bytes.Equal(pre.owner, post.Owner) {
		if !ownedByProgram || !pre.writable || pre.executable || !isZeroed(post.Data) {
			return errors.Wrapf(solana.ErrModifiedProgramID, "account %s", key)
		}
	}

	if pre.executable != post.Executable {
		return errors.Wrapf(solana.ErrModifiedProgramID, "account %s executable flag changed", key)
	}

	if pre.lamports != post.Lamports {
		if !pre.writable {
			return errors.Wrapf(solana.ErrReadonlyLamportChange, "account %s", key)
		}
		if post.Lamports < pre.lamports && !ownedByProgram {
			return errors.Wrapf(solana.ErrExternalLamportSpend, "account %s", key)
		}
	}

	if !bytes.Equal(pre.data, post.Data) {
		if !pre.writable {
			return errors.Wrapf(solana.ErrReadonlyDataModified, "account %s", key)
		}
		if !ownedByProgram || pre.executable {
			return errors.Wrapf(solana.ErrExternalDataModified, "account %s", key)
		}
	}

	return nil
}

func findAccount(accounts []*solana.AccountInfo, key ed25519.PublicKey) *solana.AccountInfo {
	for _, info := range accounts {
		if bytes.Equal(info.Key, key) {
			return info
		}
	}
	return nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
