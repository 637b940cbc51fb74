package rawdb

import (
	"bytes"
	"testing"

	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/core/types"
)

func TestAccountStorage(t *testing.T) {
	db := NewMemoryDatabase()

	id := common.HexToIdentity("0x0101010101010101010101010101010101010101010101010101010101010101")
	if acc := ReadAccount(db, id); acc != nil {
		t.Fatalf("non existent account returned: %v", acc)
	}
	if HasAccount(db, id) {
		t.Fatal("non existent account reported present")
	}
	acc := &types.Account{
		Owner: common.HexToIdentity("0x0000000000000000000000000000000000000000000000000000000053494731"),
		Data:  []byte{0x01, 0xaa, 0xbb},
	}
	WriteAccount(db, id, acc)
	if !HasAccount(db, id) {
		t.Fatal("stored account reported absent")
	}
	got := ReadAccount(db, id)
	if got == nil {
		t.Fatal("stored account not returned")
	}
	if got.Owner != acc.Owner || !bytes.Equal(got.Data, acc.Data) {
		t.Fatalf("retrieved account mismatch: %+v", got)
	}
	DeleteAccount(db, id)
	if acc := ReadAccount(db, id); acc != nil {
		t.Fatalf("deleted account returned: %v", acc)
	}
}

func TestBatchRecordStorage(t *testing.T) {
	db := NewMemoryDatabase()

	if rec := ReadBatchRecord(db, 1); rec != nil {
		t.Fatalf("non existent record returned: %v", rec)
	}
	if _, ok := ReadHeadBatchSequence(db); ok {
		t.Fatal("head sequence present on empty database")
	}
	rec := &types.BatchRecord{
		Sequence: 1,
		Hash:     common.HexToHash("0xdeadbeef"),
		Time:     1_700_000_000,
		Status:   types.BatchStatusOK,
		Raw:      bytes.Repeat([]byte{0x42}, 128),
	}
	WriteBatchRecord(db, rec)
	WriteHeadBatchSequence(db, rec.Sequence)

	got := ReadBatchRecord(db, 1)
	if got == nil {
		t.Fatal("stored record not returned")
	}
	if got.Sequence != rec.Sequence || got.Hash != rec.Hash || !bytes.Equal(got.Raw, rec.Raw) {
		t.Fatalf("retrieved record mismatch: %+v", got)
	}
	if seq, ok := ReadHeadBatchSequence(db); !ok || seq != 1 {
		t.Fatalf("head sequence: got %d/%v, want 1/true", seq, ok)
	}
	DeleteBatchRecord(db, 1)
	if rec := ReadBatchRecord(db, 1); rec != nil {
		t.Fatalf("deleted record returned: %v", rec)
	}
}

func TestIterateAccountsFiltersForeignKeys(t *testing.T) {
	db := NewMemoryDatabase()

	ids := []common.Identity{
		common.HexToIdentity("0x02"),
		common.HexToIdentity("0x01"),
		common.HexToIdentity("0x03"),
	}
	owner := common.HexToIdentity("0xff")
	for _, id := range ids {
		WriteAccount(db, id, &types.Account{Owner: owner, Data: []byte{id[31]}})
	}
	// Pollute the keyspace with entries that share the account prefix but have
	// the wrong key length; the iterator must skip them.
	if err := db.Put([]byte("aXX"), []byte{0x00}); err != nil {
		t.Fatalf("put: %v", err)
	}
	WriteBatchRecord(db, &types.BatchRecord{Sequence: 9, Status: types.BatchStatusOK})

	var seen []common.Identity
	it := IterateAccounts(db)
	for it.Next() {
		seen = append(seen, AccountIdentity(it.Key()))
	}
	it.Release()

	if len(seen) != len(ids) {
		t.Fatalf("iterated %d accounts, want %d", len(seen), len(ids))
	}
	// Iteration is by ascending storage key.
	for i := 1; i < len(seen); i++ {
		if bytes.Compare(seen[i-1][:], seen[i][:]) >= 0 {
			t.Fatalf("iteration out of order at %d: %x >= %x", i, seen[i-1], seen[i])
		}
	}
}
