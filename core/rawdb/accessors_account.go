package rawdb

import (
	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/core/types"
	"github.com/tos-network/tossig/log"
	"github.com/tos-network/tossig/sigdb"
)

// ReadAccount retrieves the account stored under id, or nil when absent.
func ReadAccount(db sigdb.KeyValueReader, id common.Identity) *types.Account {
	data, _ := db.Get(accountKey(id))
	if len(data) == 0 {
		return nil
	}
	acc, err := types.DecodeAccount(data)
	if err != nil {
		log.Error("Invalid account record", "identity", id, "err", err)
		return nil
	}
	return acc
}

// HasAccount checks if the account corresponding to id is present in the db.
func HasAccount(db sigdb.KeyValueReader, id common.Identity) bool {
	ok, _ := db.Has(accountKey(id))
	return ok
}

// WriteAccount stores an account record.
func WriteAccount(db sigdb.KeyValueWriter, id common.Identity, acc *types.Account) {
	if err := db.Put(accountKey(id), acc.EncodeBinary()); err != nil {
		log.Crit("Failed to store account", "err", err)
	}
	accountUpdateCounter.Inc(1)
}

// DeleteAccount removes the account stored under id.
func DeleteAccount(db sigdb.KeyValueWriter, id common.Identity) {
	if err := db.Delete(accountKey(id)); err != nil {
		log.Crit("Failed to delete account", "err", err)
	}
}

// IterateAccounts returns an iterator over every stored account record. The
// iterator yields prefixed storage keys; use AccountIdentity to recover the
// account identity.
func IterateAccounts(db sigdb.Iteratee) sigdb.Iterator {
	return NewKeyLengthIterator(db.NewIterator(accountPrefix, nil), len(accountPrefix)+common.IdentityLength)
}

// AccountIdentity extracts the account identity from a storage key yielded by
// IterateAccounts.
func AccountIdentity(key []byte) common.Identity {
	return common.BytesToIdentity(key[len(accountPrefix):])
}
