package solana

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// AccountInfo is the view of an account handed to a program while an
// instruction executes. The host fills in IsSigner and IsWritable from the
// enclosing transaction.
//
// Data may only be modified through a borrow obtained from BorrowMutData. At
// most one borrow may be outstanding at a time, and the host rejects any
// instruction that returns while still holding one.
type AccountInfo struct {
	Key        ed25519.PublicKey
	Owner      ed25519.PublicKey
	Lamports   uint64
	Data       []byte
	Executable bool

	IsSigner   bool
	IsWritable bool

	borrowed bool
}

// IsOwnedBy returns whether the account's owner tag is the provided program.
func (a *AccountInfo) IsOwnedBy(program ed25519.PublicKey) bool {
	return bytes.Equal(a.Owner, program)
}

// IsUninitialized returns whether the account has never been allocated: it
// holds no lamports, no data, and is still owned by the system program.
func (a *AccountInfo) IsUninitialized(systemProgram ed25519.PublicKey) bool {
	return a.Lamports == 0 && len(a.Data) == 0 && (len(a.Owner) == 0 || a.IsOwnedBy(systemProgram))
}

// BorrowMutData returns a mutable view over the account data along with the
// function that releases it. The release function must be called on every
// exit path, which is most easily done with defer.
func (a *AccountInfo) BorrowMutData() ([]byte, func(), error) {
	if !a.IsWritable {
		return nil, func() {}, ErrReadonlyDataModified
	}
	if a.borrowed {
		return nil, func() {}, ErrAccountBorrowFailed
	}

	a.borrowed = true

	var released bool
	return a.Data, func() {
		if released {
			return
		}
		released = true
		a.borrowed = false
	}, nil
}

// IsBorrowed returns whether a mutable borrow of the account data is
// outstanding.
func (a *AccountInfo) IsBorrowed() bool {
	return a.borrowed
}

// Clone returns a deep copy of the account. Borrow state is not copied.
func (a *AccountInfo) Clone() *AccountInfo {
	cloned := &AccountInfo{
		Key:        make(ed25519.PublicKey, len(a.Key)),
		Owner:      make(ed25519.PublicKey, len(a.Owner)),
		Lamports:   a.Lamports,
		Data:       make([]byte, len(a.Data)),
		Executable: a.Executable,
		IsSigner:   a.IsSigner,
		IsWritable: a.IsWritable,
	}
	copy(cloned.Key, a.Key)
	copy(cloned.Owner, a.Owner)
	copy(cloned.Data, a.Data)
	return cloned
}

func (a *AccountInfo) String() string {
	return fmt.Sprintf(
		"AccountInfo{key=%s,owner=%s,lamports=%d,data_len=%d,executable=%t,signer=%t,writable=%t}",
		base58.Encode(a.Key),
		base58.Encode(a.Owner),
		a.Lamports,
		len(a.Data),
		a.Executable,
		a.IsSigner,
		a.IsWritable,
	)
}
