package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/pkg/reexec"

	"github.com/tos-network/tossig/accounts/keyfile"
	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/core"
	"github.com/tos-network/tossig/core/rawdb"
	"github.com/tos-network/tossig/core/types"
	"github.com/tos-network/tossig/crypto"
	"github.com/tos-network/tossig/internal/cmdtest"
	"github.com/tos-network/tossig/params"
	"github.com/tos-network/tossig/rpc"
	"github.com/tos-network/tossig/secprecover"
	"github.com/tos-network/tossig/sigreg"
)

type testTossig struct {
	*cmdtest.TestCmd
}

// spawns tossig with the given command line args.
func runTossig(t *testing.T, args ...string) *testTossig {
	tt := new(testTossig)
	tt.TestCmd = cmdtest.NewTestCmd(t, tt)
	tt.Run("tossig-test", args...)
	return tt
}

// mustRunTossig runs the command to completion, draining its output, and
// fails the test on a non-zero exit.
func mustRunTossig(t *testing.T, args ...string) {
	t.Helper()
	tt := runTossig(t, args...)
	tt.Output()
	tt.WaitExit()
	if status := tt.ExitStatus(); status != 0 {
		t.Fatalf("tossig %v: exit status %d", args, status)
	}
}

func TestMain(m *testing.M) {
	// Run the app if we've been exec'd as "tossig-test" in runTossig.
	reexec.Register("tossig-test", func() {
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	})
	// check if we have been reexec'd
	if reexec.Init() {
		return
	}
	os.Exit(m.Run())
}

// newTestDaemon serves the registry programs over an in-memory ledger so the
// child processes have a live endpoint to talk to.
func newTestDaemon(t *testing.T) (*core.Ledger, string) {
	t.Helper()
	ledger, err := core.NewLedger(rawdb.NewMemoryDatabase(), core.Config{})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if err := ledger.RegisterProgram(params.SecpRecoverProgram, secprecover.Program{}); err != nil {
		t.Fatalf("register recovery: %v", err)
	}
	if err := ledger.RegisterProgram(params.SignerRegistryProgram, sigreg.NewProcessor(params.SecpRecoverProgram)); err != nil {
		t.Fatalf("register registry: %v", err)
	}
	srv := httptest.NewServer(rpc.NewServer(ledger, rpc.ServerConfig{}))
	t.Cleanup(srv.Close)
	return ledger, srv.URL
}

func writeEd25519Key(t *testing.T, dir, name string, seedByte byte) (*keyfile.Key, string) {
	t.Helper()
	seed := bytes.Repeat([]byte{seedByte}, ed25519.SeedSize)
	key := &keyfile.Key{
		Type:              keyfile.TypeEd25519,
		Ed25519PrivateKey: ed25519.NewKeyFromSeed(seed),
	}
	pub := key.Ed25519PrivateKey.Public().(ed25519.PublicKey)
	copy(key.Identity[:], pub)
	path := filepath.Join(dir, name)
	raw := fmt.Sprintf(`{"type":"ed25519","privatekey":"%x","id":"e3b59c0e-554b-43d9-af39-1a776a51c12f","version":1}`, seed)
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return key, path
}

func writeSecpKey(t *testing.T, dir, name, nibble string) (*keyfile.Key, string) {
	t.Helper()
	priv, err := crypto.HexToECDSA(strings.Repeat(nibble, 64))
	if err != nil {
		t.Fatalf("ecdsa key: %v", err)
	}
	key := &keyfile.Key{
		Type:            keyfile.TypeSecp256k1,
		Address:         crypto.PubkeyToAddress(priv.PublicKey),
		ECDSAPrivateKey: priv,
	}
	path := filepath.Join(dir, name)
	raw := fmt.Sprintf(`{"type":"secp256k1","privatekey":"%s","id":"e3b59c0e-554b-43d9-af39-1a776a51c12f","version":1}`, strings.Repeat(nibble, 64))
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return key, path
}

func TestGenerateInspect(t *testing.T) {
	keypath := filepath.Join(t.TempDir(), "signer.json")

	generate := runTossig(t, "generate", "--json", keypath)
	var genOut struct {
		Type     string `json:"type"`
		Identity string `json:"identity"`
	}
	if err := json.Unmarshal(generate.Output(), &genOut); err != nil {
		t.Fatalf("parse generate output: %v", err)
	}
	generate.WaitExit()
	if genOut.Type != "ed25519" {
		t.Errorf("type = %q, want ed25519", genOut.Type)
	}

	// The printed identity must match the stored key file.
	stored, err := keyfile.LoadKey(keypath)
	if err != nil {
		t.Fatalf("load stored key: %v", err)
	}
	if stored.Identity.Hex() != genOut.Identity {
		t.Errorf("identity mismatch: printed %s stored %s", genOut.Identity, stored.Identity.Hex())
	}

	inspect := runTossig(t, "inspect", "--json", "--private", keypath)
	var insOut struct {
		Type       string `json:"type"`
		Identity   string `json:"identity"`
		PublicKey  string `json:"publicKey"`
		PrivateKey string `json:"privateKey"`
	}
	if err := json.Unmarshal(inspect.Output(), &insOut); err != nil {
		t.Fatalf("parse inspect output: %v", err)
	}
	inspect.WaitExit()
	if insOut.Identity != genOut.Identity {
		t.Errorf("inspect identity = %s, want %s", insOut.Identity, genOut.Identity)
	}
	if "0x"+insOut.PublicKey != genOut.Identity {
		t.Errorf("public key %s does not match identity %s", insOut.PublicKey, genOut.Identity)
	}
	if len(insOut.PrivateKey) != 2*ed25519.SeedSize {
		t.Errorf("private key hex length = %d, want %d", len(insOut.PrivateKey), 2*ed25519.SeedSize)
	}
}

func TestGenerateSecp256k1(t *testing.T) {
	keypath := filepath.Join(t.TempDir(), "eth.json")

	generate := runTossig(t, "generate", "--type", "secp256k1", keypath)
	generate.ExpectRegexp(`Type:\s+secp256k1\nAddress:\s+(0x[0-9a-f]{40})\n`)
	generate.ExpectExit()

	stored, err := keyfile.LoadKey(keypath)
	if err != nil {
		t.Fatalf("load stored key: %v", err)
	}
	if stored.Type != keyfile.TypeSecp256k1 {
		t.Errorf("stored type = %q", stored.Type)
	}
}

func TestGenerateRefusesOverwrite(t *testing.T) {
	keypath := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(keypath, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	generate := runTossig(t, "generate", keypath)
	generate.ExpectExit()
	if status := generate.ExitStatus(); status == 0 {
		t.Error("expected non-zero exit when keyfile exists")
	}
}

func TestRegistryLifecycle(t *testing.T) {
	_, url := newTestDaemon(t)
	dir := t.TempDir()

	groupKey, groupPath := writeEd25519Key(t, dir, "group.json", 0x51)
	_, ownerPath := writeEd25519Key(t, dir, "owner.json", 0x52)
	signerKey, signerPath := writeEd25519Key(t, dir, "signer.json", 0x53)
	ethKey, ethPath := writeSecpKey(t, dir, "eth.json", "5")

	// Allocate and initialize the group.
	initGroup := runTossig(t, "init-signer-group",
		"--rpc", url, "--groupkey", groupPath, "--owner", ownerPath)
	initGroup.Expect("Group: " + groupKey.Identity.Hex() + "\n")
	initGroup.ExpectRegexp(`OK batch 1 \(0x[0-9a-f]{64}\)\n`)
	initGroup.ExpectExit()

	// Register the signer for the external address.
	initSigner := runTossig(t, "init-valid-signer",
		"--rpc", url, "--signerkey", signerPath, "--group", groupKey.Identity.Hex(),
		"--ownerkey", ownerPath, "--eth-key", ethPath)
	initSigner.ExpectRegexp(`OK batch 2 \(0x[0-9a-f]{64}\)\n`)
	initSigner.ExpectExit()

	// The listing now carries the signer.
	signers := runTossig(t, "signers", "--rpc", url, "--group", groupKey.Identity.Hex())
	listing := string(signers.Output())
	signers.WaitExit()
	if !strings.Contains(listing, signerKey.Identity.Hex()) {
		t.Errorf("signer listing missing identity:\n%s", listing)
	}
	if !strings.Contains(listing, ethKey.Address.Hex()) {
		t.Errorf("signer listing missing address:\n%s", listing)
	}

	// A signature from the external key validates.
	validate := runTossig(t, "validate-signature",
		"--rpc", url, "--signer", signerKey.Identity.Hex(), "--group", groupKey.Identity.Hex(),
		"--message", "hello", "--eth-key", ethPath)
	validate.ExpectRegexp(`OK batch 3 \(0x[0-9a-f]{64}\)\n`)
	validate.ExpectExit()

	// A signature from the wrong key is executed and recorded as failed.
	_, wrongPath := writeSecpKey(t, dir, "wrong.json", "6")
	badValidate := runTossig(t, "validate-signature",
		"--rpc", url, "--signer", signerKey.Identity.Hex(), "--group", groupKey.Identity.Hex(),
		"--message", "hello", "--eth-key", wrongPath)
	badValidate.ExpectRegexp(`FAILED batch 4: .+\n`)
	badValidate.ExpectExit()
	if status := badValidate.ExitStatus(); status == 0 {
		t.Error("expected non-zero exit for failed validation")
	}

	// Clearing the signer removes it from the listing.
	clear := runTossig(t, "clear-valid-signer",
		"--rpc", url, "--signer", signerKey.Identity.Hex(), "--group", groupKey.Identity.Hex(),
		"--ownerkey", ownerPath)
	clear.ExpectRegexp(`OK batch 5 \(0x[0-9a-f]{64}\)\n`)
	clear.ExpectExit()

	cleared := runTossig(t, "signers", "--json", "--rpc", url, "--group", groupKey.Identity.Hex())
	var remaining []json.RawMessage
	if err := json.Unmarshal(cleared.Output(), &remaining); err != nil {
		t.Fatalf("parse signers output: %v", err)
	}
	cleared.WaitExit()
	if len(remaining) != 0 {
		t.Errorf("expected empty signer list, got %d entries", len(remaining))
	}
}

func TestValidateWithRawSignature(t *testing.T) {
	_, url := newTestDaemon(t)
	dir := t.TempDir()

	groupKey, groupPath := writeEd25519Key(t, dir, "group.json", 0x61)
	_, ownerPath := writeEd25519Key(t, dir, "owner.json", 0x62)
	signerKey, signerPath := writeEd25519Key(t, dir, "signer.json", 0x63)
	ethKey, ethPath := writeSecpKey(t, dir, "eth.json", "7")

	mustRunTossig(t, "init-signer-group",
		"--rpc", url, "--groupkey", groupPath, "--owner", ownerPath)
	mustRunTossig(t, "init-valid-signer",
		"--rpc", url, "--signerkey", signerPath, "--group", groupKey.Identity.Hex(),
		"--ownerkey", ownerPath, "--eth-key", ethPath)

	// Sign out of band and feed the raw signature in.
	message := []byte("raw signature flow")
	sig, recid, err := secprecover.SignMessage(ethKey.ECDSAPrivateKey, message)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	raw := append(append([]byte{}, sig[:]...), recid)

	validate := runTossig(t, "validate-signature",
		"--rpc", url, "--signer", signerKey.Identity.Hex(), "--group", groupKey.Identity.Hex(),
		"--message", string(message),
		"--signature", fmt.Sprintf("0x%x", raw),
		"--address", ethKey.Address.Hex())
	validate.ExpectRegexp(`OK batch 3 \(0x[0-9a-f]{64}\)\n`)
	validate.ExpectExit()

	// The same signature split into 64 bytes plus --recovery-id.
	split := runTossig(t, "validate-signature",
		"--rpc", url, "--signer", signerKey.Identity.Hex(), "--group", groupKey.Identity.Hex(),
		"--message", string(message),
		"--signature", fmt.Sprintf("0x%x", sig[:]),
		"--recovery-id", fmt.Sprintf("%d", recid),
		"--address", ethKey.Address.Hex())
	split.ExpectRegexp(`OK batch 4 \(0x[0-9a-f]{64}\)\n`)
	split.ExpectExit()
}

func TestWatchPoll(t *testing.T) {
	ledger, url := newTestDaemon(t)
	dir := t.TempDir()

	_, groupPath := writeEd25519Key(t, dir, "group.json", 0x71)
	_, ownerPath := writeEd25519Key(t, dir, "owner.json", 0x72)
	mustRunTossig(t, "init-signer-group",
		"--rpc", url, "--groupkey", groupPath, "--owner", ownerPath)

	head, ok := ledger.HeadSequence()
	if !ok || head != 1 {
		t.Fatalf("head = %d ok=%v, want 1", head, ok)
	}

	watch := runTossig(t, "watch", "--rpc", url, "--since", "1")
	watch.ExpectRegexp(`OK batch 1 0x[0-9a-f]{64}`)
	watch.Interrupt()
	watch.WaitExit()
}

func TestWatchStream(t *testing.T) {
	ledger, url := newTestDaemon(t)

	watch := runTossig(t, "watch", "--rpc", url)

	// Feed batches until the subscription reports one; the first few may
	// land before the child has finished dialing.
	stop := make(chan struct{})
	go func() {
		for i := 0; i < 40; i++ {
			select {
			case <-stop:
				return
			case <-time.After(250 * time.Millisecond):
			}
			seed := bytes.Repeat([]byte{byte(0x80 + i)}, ed25519.SeedSize)
			key := ed25519.NewKeyFromSeed(seed)
			account := common.BytesToIdentity(key.Public().(ed25519.PublicKey))
			ix := core.NewCreateAccountInstruction(account, params.SignerRegistryProgram, 8)
			batch := types.NewBatch(ix)
			if err := batch.Sign(key); err != nil {
				return
			}
			if _, err := ledger.ExecuteBatch(batch); err != nil {
				return
			}
		}
	}()
	defer close(stop)

	watch.ExpectRegexp(`OK batch \d+ 0x[0-9a-f]{64}`)
	watch.Interrupt()
	watch.WaitExit()
}
