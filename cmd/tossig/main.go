// tossig is a command line client for the signer registry ledger. It manages
// key files, submits registry batches and inspects registry state.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/tos-network/tossig/accounts/keyfile"
	"github.com/tos-network/tossig/cmd/utils"
	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/common/hexutil"
	"github.com/tos-network/tossig/core/types"
	"github.com/tos-network/tossig/internal/flags"
	"github.com/tos-network/tossig/rpc"
)

const defaultKeyfileName = "keyfile.json"

// Git SHA1 commit hash of the release (set via linker flags)
var gitCommit = ""
var gitDate = ""

var app *cli.App

func init() {
	app = flags.NewApp(gitCommit, gitDate, "a signer registry client")
	app.Commands = []*cli.Command{
		commandGenerate,
		commandInspect,
		commandInitGroup,
		commandInitSigner,
		commandClearSigner,
		commandValidate,
		commandSigners,
		commandWatch,
	}
}

// Commonly used command line flags.
var (
	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "output JSON instead of human-readable format",
	}
	rpcFlag = &cli.StringFlag{
		Name:  "rpc",
		Usage: "JSON-RPC endpoint of the ledger daemon",
		Value: "http://127.0.0.1:8645",
	}
	jwtSecretFlag = &cli.StringFlag{
		Name:  "jwtsecret",
		Usage: "path to a JWT secret matching the daemon's (32-byte hex)",
	}
)

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newClient dials the daemon named by the --rpc flag.
func newClient(ctx *cli.Context) *rpc.Client {
	var opts []rpc.ClientOption
	if secret := utils.LoadJWTSecret(ctx.String(jwtSecretFlag.Name)); secret != nil {
		opts = append(opts, rpc.WithJWT(secret))
	}
	return rpc.NewClient(ctx.String(rpcFlag.Name), opts...)
}

// mustPrintJSON prints the JSON encoding of the given object and
// exits the program with an error message when marshaling fails.
func mustPrintJSON(jsonObject interface{}) {
	str, err := json.MarshalIndent(jsonObject, "", "  ")
	if err != nil {
		utils.Fatalf("Failed to marshal JSON object: %v", err)
	}
	fmt.Println(string(str))
}

// resolveIdentity accepts either a hex encoded identity or the path of a key
// file whose identity should be used.
func resolveIdentity(value string) common.Identity {
	if value == "" {
		utils.Fatalf("Missing account identity")
	}
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		raw, err := hexutil.Decode(value)
		if err != nil {
			utils.Fatalf("Invalid identity %q: %v", value, err)
		}
		if len(raw) != common.IdentityLength {
			utils.Fatalf("Invalid identity %q: need %d bytes, got %d", value, common.IdentityLength, len(raw))
		}
		return common.BytesToIdentity(raw)
	}
	key := loadKeyfile(value)
	if key.Type != keyfile.TypeEd25519 {
		utils.Fatalf("Key file %s holds a %s key, need ed25519", value, key.Type)
	}
	return key.Identity
}

func resolveAddress(value string) common.Address {
	raw, err := hexutil.Decode(value)
	if err != nil {
		utils.Fatalf("Invalid address %q: %v", value, err)
	}
	if len(raw) != common.AddressLength {
		utils.Fatalf("Invalid address %q: need %d bytes, got %d", value, common.AddressLength, len(raw))
	}
	return common.BytesToAddress(raw)
}

func loadKeyfile(path string) *keyfile.Key {
	key, err := keyfile.LoadKey(path)
	if err != nil {
		utils.Fatalf("Failed to load the key file at '%s': %v", path, err)
	}
	return key
}

// loadSigningKey loads an ed25519 key file used to sign batches.
func loadSigningKey(path string) *keyfile.Key {
	key := loadKeyfile(path)
	if key.Type != keyfile.TypeEd25519 {
		utils.Fatalf("Key file %s holds a %s key, batches are signed with ed25519 keys", path, key.Type)
	}
	return key
}

// submitBatch signs the batch with the given keys, submits it and reports
// the outcome. A failed batch exits non-zero.
func submitBatch(ctx *cli.Context, batch *types.Batch, signers ...*keyfile.Key) {
	for _, key := range signers {
		if err := batch.Sign(key.Ed25519PrivateKey); err != nil {
			utils.Fatalf("Failed to sign batch: %v", err)
		}
	}
	status, err := newClient(ctx).SubmitBatch(context.Background(), batch)
	if err != nil {
		utils.Fatalf("Batch rejected: %v", err)
	}
	if ctx.Bool(jsonFlag.Name) {
		mustPrintJSON(status)
		if status.Status != "ok" {
			os.Exit(1)
		}
		return
	}
	if status.Status == "ok" {
		fmt.Printf("%s batch %d (%s)\n", color.GreenString("OK"), status.Sequence, status.Hash.Hex())
		return
	}
	fmt.Printf("%s batch %d: %s\n", color.RedString("FAILED"), status.Sequence, status.Error)
	os.Exit(1)
}
