package types

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	mapset "github.com/deckarep/golang-set"
	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/crypto"
	"github.com/tos-network/tossig/params"
)

// BatchSignatureLength is the byte size of one ed25519 batch signature.
const BatchSignatureLength = ed25519.SignatureSize

// BatchSignature is one ed25519 signature over the batch digest. Signer is
// the public key the signature verifies under.
type BatchSignature struct {
	Signer    common.Identity
	Signature [BatchSignatureLength]byte
}

// Batch is the atomic execution unit: an ordered list of instructions that
// either all commit or all roll back, plus the signatures authorizing them.
type Batch struct {
	Instructions []Instruction
	Signatures   []BatchSignature
}

// NewBatch assembles a batch from the given instructions.
func NewBatch(instructions ...Instruction) *Batch {
	b := &Batch{Instructions: make([]Instruction, 0, len(instructions))}
	for i := range instructions {
		b.Instructions = append(b.Instructions, instructions[i].Copy())
	}
	return b
}

// Copy returns a deep copy of the batch.
func (b *Batch) Copy() *Batch {
	cpy := &Batch{
		Instructions: make([]Instruction, 0, len(b.Instructions)),
		Signatures:   append([]BatchSignature(nil), b.Signatures...),
	}
	for i := range b.Instructions {
		cpy.Instructions = append(cpy.Instructions, b.Instructions[i].Copy())
	}
	return cpy
}

// SanityCheck enforces the structural batch limits. It does not verify
// signatures.
func (b *Batch) SanityCheck() error {
	if len(b.Instructions) == 0 {
		return ErrEmptyBatch
	}
	if len(b.Instructions) > params.MaxBatchInstructions {
		return ErrBatchTooLarge
	}
	for i := range b.Instructions {
		ix := &b.Instructions[i]
		if len(ix.Accounts) > params.MaxInstructionAccounts {
			return ErrTooManyAccounts
		}
		if len(ix.Data) > params.MaxInstructionDataSize {
			return ErrDataTooLarge
		}
		seen := mapset.NewThreadUnsafeSet()
		for _, meta := range ix.Accounts {
			if !seen.Add(meta.Key) {
				return ErrDuplicateAccount
			}
		}
	}
	if len(b.RequiredSigners()) > params.MaxBatchSigners || len(b.Signatures) > params.MaxBatchSigners {
		return ErrTooManySigners
	}
	return nil
}

// RequiredSigners returns the identities every signer-flagged account meta
// names, deduplicated, in first-appearance order.
func (b *Batch) RequiredSigners() []common.Identity {
	seen := mapset.NewThreadUnsafeSet()
	var out []common.Identity
	for i := range b.Instructions {
		for _, meta := range b.Instructions[i].Accounts {
			if meta.Signer && seen.Add(meta.Key) {
				out = append(out, meta.Key)
			}
		}
	}
	return out
}

// EncodeUnsigned returns the canonical unsigned encoding. The batch digest
// and every signature commit to exactly these bytes.
func (b *Batch) EncodeUnsigned() []byte {
	var buf bytes.Buffer
	buf.WriteString(params.BatchSigningPrefix)
	buf.WriteByte(params.BatchVersion)
	writeU16(&buf, uint16(len(b.Instructions)))
	for i := range b.Instructions {
		ix := &b.Instructions[i]
		buf.Write(ix.Program[:])
		writeU16(&buf, uint16(len(ix.Accounts)))
		for _, meta := range ix.Accounts {
			buf.Write(meta.Key[:])
			buf.WriteByte(meta.flags())
		}
		writeU32(&buf, uint32(len(ix.Data)))
		buf.Write(ix.Data)
	}
	return buf.Bytes()
}

// Hash returns the Keccak-256 digest of the unsigned encoding.
func (b *Batch) Hash() common.Hash {
	return crypto.Keccak256Hash(b.EncodeUnsigned())
}

// EncodeBinary returns the full signed encoding used on the wire and in
// storage: the unsigned encoding followed by the signature list.
func (b *Batch) EncodeBinary() []byte {
	var buf bytes.Buffer
	buf.Write(b.EncodeUnsigned())
	writeU16(&buf, uint16(len(b.Signatures)))
	for _, sig := range b.Signatures {
		buf.Write(sig.Signer[:])
		buf.Write(sig.Signature[:])
	}
	return buf.Bytes()
}

// Sign attaches an ed25519 signature over the batch digest. Signing twice
// with the same key replaces the earlier signature.
func (b *Batch) Sign(key ed25519.PrivateKey) error {
	if len(key) != ed25519.PrivateKeySize {
		return ErrInvalidKey
	}
	pub, ok := key.Public().(ed25519.PublicKey)
	if !ok || len(pub) != ed25519.PublicKeySize {
		return ErrInvalidKey
	}
	var sig BatchSignature
	sig.Signer = common.BytesToIdentity(pub)
	copy(sig.Signature[:], ed25519.Sign(key, b.Hash().Bytes()))

	for i := range b.Signatures {
		if b.Signatures[i].Signer == sig.Signer {
			b.Signatures[i] = sig
			return nil
		}
	}
	b.Signatures = append(b.Signatures, sig)
	return nil
}

// VerifySignatures checks that every attached signature verifies over the
// batch digest and that every required signer is covered by one.
func (b *Batch) VerifySignatures() error {
	digest := b.Hash()
	have := mapset.NewThreadUnsafeSet()
	for _, sig := range b.Signatures {
		if !ed25519.Verify(sig.Signer[:], digest.Bytes(), sig.Signature[:]) {
			return ErrSignatureInvalid
		}
		have.Add(sig.Signer)
	}
	for _, id := range b.RequiredSigners() {
		if !have.Contains(id) {
			return ErrSignerMissing
		}
	}
	return nil
}

// SignedBy reports whether the batch carries a signature from id. It does not
// verify the signature.
func (b *Batch) SignedBy(id common.Identity) bool {
	for _, sig := range b.Signatures {
		if sig.Signer == id {
			return true
		}
	}
	return false
}

// DecodeBatch parses a signed batch encoding. It rejects unknown versions,
// unknown meta flag bits, out-of-bound counts and trailing bytes.
func DecodeBatch(blob []byte) (*Batch, error) {
	r := batchReader{buf: blob}
	prefix, ok := r.take(len(params.BatchSigningPrefix))
	if !ok || string(prefix) != params.BatchSigningPrefix {
		return nil, ErrInvalidEncoding
	}
	version, ok := r.u8()
	if !ok || version != params.BatchVersion {
		return nil, ErrInvalidEncoding
	}
	count, ok := r.u16()
	if !ok {
		return nil, ErrInvalidEncoding
	}
	if count == 0 {
		return nil, ErrEmptyBatch
	}
	if int(count) > params.MaxBatchInstructions {
		return nil, ErrBatchTooLarge
	}
	batch := &Batch{Instructions: make([]Instruction, 0, count)}
	for i := 0; i < int(count); i++ {
		ix, err := decodeInstruction(&r)
		if err != nil {
			return nil, err
		}
		batch.Instructions = append(batch.Instructions, ix)
	}
	nsig, ok := r.u16()
	if !ok {
		return nil, ErrInvalidEncoding
	}
	if int(nsig) > params.MaxBatchSigners {
		return nil, ErrTooManySigners
	}
	for i := 0; i < int(nsig); i++ {
		var sig BatchSignature
		signer, ok := r.identity()
		if !ok {
			return nil, ErrInvalidEncoding
		}
		raw, ok := r.take(BatchSignatureLength)
		if !ok {
			return nil, ErrInvalidEncoding
		}
		sig.Signer = signer
		copy(sig.Signature[:], raw)
		batch.Signatures = append(batch.Signatures, sig)
	}
	if r.rest() != 0 {
		return nil, ErrInvalidEncoding
	}
	return batch, nil
}

func decodeInstruction(r *batchReader) (Instruction, error) {
	var ix Instruction
	program, ok := r.identity()
	if !ok {
		return ix, ErrInvalidEncoding
	}
	ix.Program = program

	nmeta, ok := r.u16()
	if !ok {
		return ix, ErrInvalidEncoding
	}
	if int(nmeta) > params.MaxInstructionAccounts {
		return ix, ErrTooManyAccounts
	}
	ix.Accounts = make([]AccountMeta, 0, nmeta)
	for i := 0; i < int(nmeta); i++ {
		key, ok := r.identity()
		if !ok {
			return ix, ErrInvalidEncoding
		}
		flags, ok := r.u8()
		if !ok || flags&^(metaFlagSigner|metaFlagWritable) != 0 {
			return ix, ErrInvalidEncoding
		}
		ix.Accounts = append(ix.Accounts, AccountMeta{
			Key:      key,
			Signer:   flags&metaFlagSigner != 0,
			Writable: flags&metaFlagWritable != 0,
		})
	}
	dlen, ok := r.u32()
	if !ok {
		return ix, ErrInvalidEncoding
	}
	if int(dlen) > params.MaxInstructionDataSize {
		return ix, ErrDataTooLarge
	}
	data, ok := r.take(int(dlen))
	if !ok {
		return ix, ErrInvalidEncoding
	}
	ix.Data = common.CopyBytes(data)
	return ix, nil
}

// batchReader is a bounds-checked cursor over an encoded batch.
type batchReader struct {
	buf []byte
	off int
}

func (r *batchReader) take(n int) ([]byte, bool) {
	if n < 0 || len(r.buf)-r.off < n {
		return nil, false
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, true
}

func (r *batchReader) u8() (byte, bool) {
	b, ok := r.take(1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (r *batchReader) u16() (uint16, bool) {
	b, ok := r.take(2)
	if !ok {
		return 0, false
	}
	return binary.BigEndian.Uint16(b), true
}

func (r *batchReader) u32() (uint32, bool) {
	b, ok := r.take(4)
	if !ok {
		return 0, false
	}
	return binary.BigEndian.Uint32(b), true
}

func (r *batchReader) identity() (common.Identity, bool) {
	var id common.Identity
	b, ok := r.take(common.IdentityLength)
	if !ok {
		return id, false
	}
	copy(id[:], b)
	return id, true
}

func (r *batchReader) rest() int {
	return len(r.buf) - r.off
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var scratch [2]byte
	binary.BigEndian.PutUint16(scratch[:], v)
	buf.Write(scratch[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], v)
	buf.Write(scratch[:])
}
