package auth

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/medweb3/medtrace/pkg/medtrace"
	"github.com/medweb3/medtrace/pkg/solana"
)

// The predicates below never mutate their inputs. Each failure carries a
// distinct program error so callers can surface it directly.

// IsProgramOwned checks that slot's owner tag is programID.
func IsProgramOwned(programID ed25519.PublicKey, slot *solana.AccountInfo) error {
	if !slot.IsOwnedBy(programID) {
		return errors.Wrapf(medtrace.ErrWrongProgramOwner, "slot %s is owned by %s", base58.Encode(slot.Key), base58.Encode(slot.Owner))
	}
	return nil
}

// SignedBy checks that principal signed the enclosing transaction.
func SignedBy(principal *solana.AccountInfo) error {
	if !principal.IsSigner {
		return errors.Wrapf(medtrace.ErrMissingSignature, "%s did not sign", base58.Encode(principal.Key))
	}
	return nil
}

// MatchesCurrentOwner checks that principal is the batch's current owner.
func MatchesCurrentOwner(record *medtrace.BatchAccount, principal ed25519.PublicKey) error {
	if !bytes.Equal(record.CurrentOwner, principal) {
		return errors.Wrapf(medtrace.ErrNotCurrentOwner, "%s is not the current owner", base58.Encode(principal))
	}
	return nil
}

// IsActive checks that the batch has not been deactivated.
func IsActive(record *medtrace.BatchAccount) error {
	if !record.IsActive {
		return errors.Wrapf(medtrace.ErrBatchInactive, "batch %s is inactive", record.BatchId)
	}
	return nil
}
