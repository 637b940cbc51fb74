// Package keyfile reads and writes plaintext JSON key files for batch
// signing identities and recovery keys.
package keyfile

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/crypto"
)

const version = 1

// Key types understood by the file format.
const (
	TypeEd25519   = "ed25519"
	TypeSecp256k1 = "secp256k1"
)

// Key is the in-memory form of a key file. Exactly one of the two private
// key fields is set, matching Type.
type Key struct {
	Id uuid.UUID // Version 4 "random" for unique id not derived from key data

	// Type names the key class stored in this file.
	Type string

	// Identity is the ed25519 public key. Set for ed25519 keys only.
	Identity common.Identity

	// Address is derived from the secp256k1 public key. Set for secp256k1
	// keys only.
	Address common.Address

	// Private material is always held in plaintext.
	Ed25519PrivateKey ed25519.PrivateKey
	ECDSAPrivateKey   *ecdsa.PrivateKey
}

type plainKeyJSON struct {
	Type       string `json:"type"`
	Identity   string `json:"identity,omitempty"`
	Address    string `json:"address,omitempty"`
	PrivateKey string `json:"privatekey"`
	Id         string `json:"id"`
	Version    int    `json:"version"`
}

func (k *Key) MarshalJSON() ([]byte, error) {
	keyJSON := plainKeyJSON{
		Id:      k.Id.String(),
		Version: version,
	}
	switch canonicalType(k.Type) {
	case TypeEd25519:
		if len(k.Ed25519PrivateKey) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("missing ed25519 private key")
		}
		keyJSON.Type = TypeEd25519
		keyJSON.Identity = hex.EncodeToString(k.Identity[:])
		keyJSON.PrivateKey = hex.EncodeToString(k.Ed25519PrivateKey.Seed())
	case TypeSecp256k1:
		if k.ECDSAPrivateKey == nil {
			return nil, fmt.Errorf("missing secp256k1 private key")
		}
		keyJSON.Type = TypeSecp256k1
		keyJSON.Address = hex.EncodeToString(k.Address[:])
		keyJSON.PrivateKey = hex.EncodeToString(crypto.FromECDSA(k.ECDSAPrivateKey))
	default:
		return nil, fmt.Errorf("unsupported key type: %s", k.Type)
	}
	return json.Marshal(keyJSON)
}

func (k *Key) UnmarshalJSON(j []byte) error {
	keyJSON := new(plainKeyJSON)
	if err := json.Unmarshal(j, keyJSON); err != nil {
		return err
	}
	id, err := uuid.Parse(keyJSON.Id)
	if err != nil {
		return err
	}
	k.Id = id

	// The public fields are re-derived from the private material so a stale
	// identity or address in the file cannot leak into signing flows.
	switch canonicalType(keyJSON.Type) {
	case TypeEd25519:
		priv, err := decodeEd25519PrivateKeyHex(keyJSON.PrivateKey)
		if err != nil {
			return err
		}
		k.Type = TypeEd25519
		k.Ed25519PrivateKey = priv
		k.ECDSAPrivateKey = nil
		k.Identity = common.BytesToIdentity(priv.Public().(ed25519.PublicKey))
		k.Address = common.Address{}
	case TypeSecp256k1:
		priv, err := crypto.HexToECDSA(keyJSON.PrivateKey)
		if err != nil {
			return err
		}
		k.Type = TypeSecp256k1
		k.ECDSAPrivateKey = priv
		k.Ed25519PrivateKey = nil
		k.Address = crypto.PubkeyToAddress(priv.PublicKey)
		k.Identity = common.Identity{}
	default:
		return fmt.Errorf("unsupported key type in key file: %s", keyJSON.Type)
	}
	return nil
}

// NewEd25519Key generates a batch signing key from the given randomness
// source.
func NewEd25519Key(rand io.Reader) (*Key, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(rand, seed); err != nil {
		return nil, err
	}
	return newKeyFromEd25519(ed25519.NewKeyFromSeed(seed))
}

// NewSecp256k1Key generates a recovery key from the given randomness source.
func NewSecp256k1Key(rand io.Reader) (*Key, error) {
	priv, err := ecdsa.GenerateKey(crypto.S256(), rand)
	if err != nil {
		return nil, err
	}
	return newKeyFromECDSA(priv)
}

func newKeyFromEd25519(priv ed25519.PrivateKey) (*Key, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 private key size: %d", len(priv))
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("could not create random uuid: %w", err)
	}
	return &Key{
		Id:                id,
		Type:              TypeEd25519,
		Identity:          common.BytesToIdentity(priv.Public().(ed25519.PublicKey)),
		Ed25519PrivateKey: append(ed25519.PrivateKey(nil), priv...),
	}, nil
}

func newKeyFromECDSA(priv *ecdsa.PrivateKey) (*Key, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("could not create random uuid: %w", err)
	}
	return &Key{
		Id:              id,
		Type:            TypeSecp256k1,
		Address:         crypto.PubkeyToAddress(priv.PublicKey),
		ECDSAPrivateKey: priv,
	}, nil
}

func canonicalType(keyType string) string {
	return strings.ToLower(strings.TrimSpace(keyType))
}

func decodeEd25519PrivateKeyHex(privHex string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(privHex)
	if err != nil {
		return nil, err
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, fmt.Errorf("invalid ed25519 private key size: %d", len(raw))
	}
}

// StoreKey writes the key to file as plaintext JSON, creating the parent
// directory when needed.
func StoreKey(file string, key *Key) error {
	content, err := json.Marshal(key)
	if err != nil {
		return err
	}
	return writeKeyFile(file, content)
}

// LoadKey reads a key file written by StoreKey.
func LoadKey(file string) (*Key, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	key := new(Key)
	if err := json.Unmarshal(raw, key); err != nil {
		return nil, fmt.Errorf("invalid key file %s: %w", file, err)
	}
	return key, nil
}

func writeTemporaryKeyFile(file string, content []byte) (string, error) {
	// Create the key directory with appropriate permissions
	// in case it is not present yet.
	const dirPerm = 0700
	if err := os.MkdirAll(filepath.Dir(file), dirPerm); err != nil {
		return "", err
	}
	// Atomic write: create a temporary hidden file first
	// then move it into place. TempFile assigns mode 0600.
	f, err := os.CreateTemp(filepath.Dir(file), "."+filepath.Base(file)+".tmp")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	f.Close()
	return f.Name(), nil
}

func writeKeyFile(file string, content []byte) error {
	name, err := writeTemporaryKeyFile(file, content)
	if err != nil {
		return err
	}
	return os.Rename(name, file)
}

// KeyFileName implements the naming convention for key files:
// UTC--<created_at UTC ISO8601>-<identity or address hex>
func KeyFileName(key *Key) string {
	ts := time.Now().UTC()
	public := hex.EncodeToString(key.Identity[:])
	if canonicalType(key.Type) == TypeSecp256k1 {
		public = hex.EncodeToString(key.Address[:])
	}
	return fmt.Sprintf("UTC--%s--%s", toISO8601(ts), public)
}

func toISO8601(t time.Time) string {
	var tz string
	name, offset := t.Zone()
	if name == "UTC" {
		tz = "Z"
	} else {
		tz = fmt.Sprintf("%03d00", offset/3600)
	}
	return fmt.Sprintf("%04d-%02d-%02dT%02d-%02d-%02d.%09d%s",
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), tz)
}
