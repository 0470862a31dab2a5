package ledger

import (
	"crypto/ed25519"
	"fmt"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medweb3/medtrace/pkg/solana"
	"github.com/medweb3/medtrace/pkg/solana/system"
	"github.com/medweb3/medtrace/pkg/testutil"
)

const (
	opSetData byte = iota
	opMoveLamport
	opMintLamport
	opLeaveBorrowed
	opInvokeTransfer
	opRecurse
	opAssign
	opSetExecutable
)

// probeProgram performs a single, possibly illegal, account mutation chosen
// by the first instruction byte.
var probeProgram = solana.ProgramFunc(func(rt solana.Runtime, programID ed25519.PublicKey, accounts []*solana.AccountInfo, data []byte) error {
	switch data[0] {
	case opSetData:
		accounts[0].Data = []byte{data[1]}
	case opMoveLamport:
		accounts[0].Lamports--
		accounts[1].Lamports++
	case opMintLamport:
		accounts[0].Lamports++
	case opLeaveBorrowed:
		buf, _, err := accounts[0].BorrowMutData()
		if err != nil {
			return err
		}
		buf[0] = 0xff
	case opInvokeTransfer:
		return rt.Invoke(system.Transfer(accounts[0].Key, accounts[1].Key, 1), accounts...)
	case opRecurse:
		metas := []solana.AccountMeta{solana.NewReadonlyAccountMeta(programID, false)}
		return rt.Invoke(solana.NewInstruction(programID, data, metas...), accounts...)
	case opAssign:
		accounts[0].Owner = append(ed25519.PublicKey(nil), accounts[1].Key...)
	case opSetExecutable:
		accounts[0].Executable = true
	}
	return nil
})

type runtimeEnv struct {
	*testEnv

	programID ed25519.PublicKey
	payer     ed25519.PrivateKey
	owned     ed25519.PublicKey
}

func setupRuntime(t *testing.T) *runtimeEnv {
	programID := testutil.GenerateSolanaKeys(t, 1)[0]
	env := setup(t, WithProgram(programID, probeProgram))

	payer := env.newFundedKey(t)
	owned := testutil.GenerateSolanaKeypair(t)
	result := env.submit(
		t,
		[]ed25519.PrivateKey{payer, owned},
		system.CreateAccount(public(payer), public(owned), programID, 1_000_000, 8),
	)
	require.NoError(t, result.Failure())

	return &runtimeEnv{
		testEnv:   env,
		programID: programID,
		payer:     payer,
		owned:     public(owned),
	}
}

func (e *runtimeEnv) probe(t *testing.T, data []byte, metas ...solana.AccountMeta) *TransactionResult {
	return e.submit(t, []ed25519.PrivateKey{e.payer}, solana.NewInstruction(e.programID, data, metas...))
}

func TestRuntime_OwnedAccountMutations(t *testing.T) {
	env := setupRuntime(t)

	result := env.probe(t, []byte{opSetData, 0x2a}, solana.NewAccountMeta(env.owned, false))
	require.NoError(t, result.Failure())
	assert.Equal(t, []byte{0x2a}, env.slotData(t, env.owned))

	before := env.balance(t, public(env.payer))
	result = env.probe(t, []byte{opMoveLamport}, solana.NewAccountMeta(env.owned, false), solana.NewAccountMeta(public(env.payer), true))
	require.NoError(t, result.Failure())
	assert.EqualValues(t, 999_999, env.balance(t, env.owned))
	assert.Equal(t, before-testFee+1, env.balance(t, public(env.payer)))

	programID := base58.Encode(env.programID)
	assert.Equal(t, []string{"Program " + programID + " invoke [1]", "Program " + programID + " success"}, result.Logs)
}

func TestRuntime_Violations(t *testing.T) {
	for _, tc := range []struct {
		name     string
		data     []byte
		metas    func(env *runtimeEnv) []solana.AccountMeta
		expected solana.InstructionErrorKey
	}{
		{
			name: "readonly data",
			data: []byte{opSetData, 0x01},
			metas: func(env *runtimeEnv) []solana.AccountMeta {
				return []solana.AccountMeta{solana.NewReadonlyAccountMeta(env.owned, false)}
			},
			expected: solana.InstructionErrorReadonlyDataModified,
		},
		{
			name: "external data",
			data: []byte{opSetData, 0x01},
			metas: func(env *runtimeEnv) []solana.AccountMeta {
				return []solana.AccountMeta{solana.NewAccountMeta(public(env.payer), true)}
			},
			expected: solana.InstructionErrorExternalDataModified,
		},
		{
			name: "readonly lamports",
			data: []byte{opMoveLamport},
			metas: func(env *runtimeEnv) []solana.AccountMeta {
				return []solana.AccountMeta{
					solana.NewReadonlyAccountMeta(env.owned, false),
					solana.NewAccountMeta(public(env.payer), true),
				}
			},
			expected: solana.InstructionErrorReadonlyLamportChange,
		},
		{
			name: "external lamport spend",
			data: []byte{opMoveLamport},
			metas: func(env *runtimeEnv) []solana.AccountMeta {
				return []solana.AccountMeta{
					solana.NewAccountMeta(public(env.payer), true),
					solana.NewAccountMeta(env.owned, false),
				}
			},
			expected: solana.InstructionErrorExternalLamportSpend,
		},
		{
			name: "unbalanced",
			data: []byte{opMintLamport},
			metas: func(env *runtimeEnv) []solana.AccountMeta {
				return []solana.AccountMeta{solana.NewAccountMeta(env.owned, false)}
			},
			expected: solana.InstructionErrorUnbalancedInstruction,
		},
		{
			name: "borrow outstanding",
			data: []byte{opLeaveBorrowed},
			metas: func(env *runtimeEnv) []solana.AccountMeta {
				return []solana.AccountMeta{solana.NewAccountMeta(env.owned, false)}
			},
			expected: solana.InstructionErrorAccountBorrowOutstanding,
		},
		{
			name: "foreign owner change",
			data: []byte{opAssign},
			metas: func(env *runtimeEnv) []solana.AccountMeta {
				return []solana.AccountMeta{
					solana.NewAccountMeta(public(env.payer), true),
					solana.NewReadonlyAccountMeta(env.programID, false),
				}
			},
			expected: solana.InstructionErrorModifiedProgramID,
		},
		{
			name: "executable flag",
			data: []byte{opSetExecutable},
			metas: func(env *runtimeEnv) []solana.AccountMeta {
				return []solana.AccountMeta{solana.NewAccountMeta(env.owned, false)}
			},
			expected: solana.InstructionErrorModifiedProgramID,
		},
		{
			name: "signer escalation",
			data: []byte{opInvokeTransfer},
			metas: func(env *runtimeEnv) []solana.AccountMeta {
				return []solana.AccountMeta{
					solana.NewAccountMeta(env.owned, false),
					solana.NewAccountMeta(public(env.payer), true),
					solana.NewReadonlyAccountMeta(system.SystemAccount, false),
				}
			},
			expected: solana.InstructionErrorPrivilegeEscalation,
		},
		{
			name: "call depth",
			data: []byte{opRecurse},
			metas: func(env *runtimeEnv) []solana.AccountMeta {
				return []solana.AccountMeta{solana.NewReadonlyAccountMeta(env.programID, false)}
			},
			expected: solana.InstructionErrorCallDepth,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := setupRuntime(t)

			ownedBefore, err := env.bank.GetAccountInfo(env.ctx, env.owned)
			require.NoError(t, err)
			payerBefore := env.balance(t, public(env.payer))

			result := env.probe(t, tc.data, tc.metas(env)...)
			require.NotNil(t, result.Err)
			instructionErr := result.Err.InstructionError()
			require.NotNil(t, instructionErr)
			assert.Equal(t, tc.expected, instructionErr.ErrorKey(), instructionErr.Error())

			ownedAfter, err := env.bank.GetAccountInfo(env.ctx, env.owned)
			require.NoError(t, err)
			assert.Equal(t, ownedBefore, ownedAfter)
			assert.Equal(t, payerBefore-testFee, env.balance(t, public(env.payer)))
		})
	}
}

func TestRuntime_Assign(t *testing.T) {
	env := setupRuntime(t)
	newOwner := testutil.GenerateSolanaKeys(t, 1)[0]

	// Data must be zeroed before an account can be handed to another program
	result := env.probe(t, []byte{opSetData, 0x01}, solana.NewAccountMeta(env.owned, false))
	require.NoError(t, result.Failure())

	result = env.probe(t, []byte{opAssign}, solana.NewAccountMeta(env.owned, false), solana.NewReadonlyAccountMeta(newOwner, false))
	require.NotNil(t, result.Err)
	assert.Equal(t, solana.InstructionErrorModifiedProgramID, result.Err.InstructionError().ErrorKey())

	result = env.probe(t, []byte{opSetData, 0x00}, solana.NewAccountMeta(env.owned, false))
	require.NoError(t, result.Failure())

	result = env.probe(t, []byte{opAssign}, solana.NewAccountMeta(env.owned, false), solana.NewReadonlyAccountMeta(newOwner, false))
	require.NoError(t, result.Failure())

	info, err := env.bank.GetAccountInfo(env.ctx, env.owned)
	require.NoError(t, err)
	assert.Equal(t, newOwner, info.Owner)
}

func TestRuntime_CrossProgramInvoke(t *testing.T) {
	env := setupRuntime(t)
	recipient := testutil.GenerateSolanaKeys(t, 1)[0]

	before := env.balance(t, public(env.payer))
	result := env.probe(
		t,
		[]byte{opInvokeTransfer},
		solana.NewAccountMeta(public(env.payer), true),
		solana.NewAccountMeta(recipient, false),
		solana.NewReadonlyAccountMeta(system.SystemAccount, false),
	)
	require.NoError(t, result.Failure())
	assert.Equal(t, before-testFee-1, env.balance(t, public(env.payer)))
	assert.EqualValues(t, 1, env.balance(t, recipient))

	programID := base58.Encode(env.programID)
	systemID := base58.Encode(system.SystemAccount)
	assert.Equal(t, []string{
		"Program " + programID + " invoke [1]",
		"Program " + systemID + " invoke [2]",
		"Program " + systemID + " success",
		"Program " + programID + " success",
	}, result.Logs)
}

func TestRuntime_CallDepthLogs(t *testing.T) {
	env := setupRuntime(t)

	result := env.probe(t, []byte{opRecurse}, solana.NewReadonlyAccountMeta(env.programID, false))
	require.NotNil(t, result.Err)

	programID := base58.Encode(env.programID)
	for depth := 1; depth <= MaxInvokeDepth; depth++ {
		assert.Contains(t, result.Logs, fmt.Sprintf("Program %s invoke [%d]", programID, depth))
	}
	assert.NotContains(t, result.Logs, fmt.Sprintf("Program %s invoke [%d]", programID, MaxInvokeDepth+1))
}
