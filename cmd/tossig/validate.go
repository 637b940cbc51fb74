package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/tos-network/tossig/cmd/utils"
	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/common/hexutil"
	"github.com/tos-network/tossig/core/types"
	"github.com/tos-network/tossig/params"
	"github.com/tos-network/tossig/rpc"
	"github.com/tos-network/tossig/secprecover"
	"github.com/tos-network/tossig/sigreg"
)

var (
	messageFlag = &cli.StringFlag{
		Name:  "message",
		Usage: "message whose signature should be validated",
	}
	signatureFlag = &cli.StringFlag{
		Name:  "signature",
		Usage: "hex encoded signature of the message: 65 bytes [R || S || V], or 64 bytes with --recovery-id",
	}
	recoveryIDFlag = &cli.UintFlag{
		Name:  "recovery-id",
		Usage: "recovery id accompanying a 64-byte --signature",
	}
	sinceFlag = &cli.Uint64Flag{
		Name:  "since",
		Usage: "replay batch records starting at this sequence",
	}
)

var commandValidate = &cli.Command{
	Name:      "validate-signature",
	Usage:     "validate an external signature on the ledger",
	ArgsUsage: " ",
	Description: `
Submit a batch that recovers the external signature on chain and checks it
against a valid signer record. The signature is taken from --signature, or
produced locally from a secp256k1 key file given with --eth-key.

The batch needs no ledger signatures: both instructions only read the
registry accounts.`,
	Flags: []cli.Flag{
		jsonFlag,
		rpcFlag,
		jwtSecretFlag,
		signerFlag,
		groupFlag,
		messageFlag,
		ethKeyFlag,
		signatureFlag,
		recoveryIDFlag,
		addressFlag,
		utils.RegistryIdentityFlag,
		utils.RecoveryIdentityFlag,
	},
	Action: func(ctx *cli.Context) error {
		utils.CheckExclusive(ctx, ethKeyFlag, signatureFlag)
		utils.CheckExclusive(ctx, ethKeyFlag, recoveryIDFlag)
		registry := utils.MakeProgramIdentity(ctx, utils.RegistryIdentityFlag, params.SignerRegistryProgram)
		recovery := utils.MakeProgramIdentity(ctx, utils.RecoveryIdentityFlag, params.SecpRecoverProgram)
		signer := resolveIdentity(ctx.String(signerFlag.Name))
		group := resolveIdentity(ctx.String(groupFlag.Name))
		if !ctx.IsSet(messageFlag.Name) {
			utils.Fatalf("Missing --%s", messageFlag.Name)
		}
		message := []byte(ctx.String(messageFlag.Name))

		var (
			signature  [sigreg.SignatureSize]byte
			recoveryID byte
			address    common.Address
		)
		switch {
		case ctx.String(ethKeyFlag.Name) != "":
			key := loadKeyfile(ctx.String(ethKeyFlag.Name))
			if key.ECDSAPrivateKey == nil {
				utils.Fatalf("Key file %s holds a %s key, need secp256k1", ctx.String(ethKeyFlag.Name), key.Type)
			}
			var err error
			signature, recoveryID, err = secprecover.SignMessage(key.ECDSAPrivateKey, message)
			if err != nil {
				utils.Fatalf("Failed to sign message: %v", err)
			}
			address = key.Address
		case ctx.String(signatureFlag.Name) != "":
			raw, err := hexutil.Decode(ctx.String(signatureFlag.Name))
			if err != nil {
				utils.Fatalf("Invalid --%s: %v", signatureFlag.Name, err)
			}
			switch {
			case ctx.IsSet(recoveryIDFlag.Name):
				if len(raw) != sigreg.SignatureSize {
					utils.Fatalf("Invalid --%s: need %d bytes with --%s, got %d",
						signatureFlag.Name, sigreg.SignatureSize, recoveryIDFlag.Name, len(raw))
				}
				if id := ctx.Uint(recoveryIDFlag.Name); id > 3 {
					utils.Fatalf("Invalid --%s: %d is not a recovery id", recoveryIDFlag.Name, id)
				}
				recoveryID = byte(ctx.Uint(recoveryIDFlag.Name))
			case len(raw) == sigreg.SignatureSize+1:
				recoveryID = raw[sigreg.SignatureSize]
			default:
				utils.Fatalf("Invalid --%s: need %d bytes, got %d", signatureFlag.Name, sigreg.SignatureSize+1, len(raw))
			}
			copy(signature[:], raw[:sigreg.SignatureSize])
			address = resolveAddress(ctx.String(addressFlag.Name))
		default:
			utils.Fatalf("Either --%s or --%s is required", ethKeyFlag.Name, signatureFlag.Name)
		}

		recoverIx, err := secprecover.NewRecoverInstruction(recovery, address, signature, recoveryID, message, 0)
		if err != nil {
			utils.Fatalf("Failed to build recover instruction: %v", err)
		}
		validateIx, err := sigreg.NewValidateSignatureInstruction(registry, signer, group, signature, recoveryID, message)
		if err != nil {
			utils.Fatalf("Failed to build validate instruction: %v", err)
		}
		submitBatch(ctx, types.NewBatch(recoverIx, validateIx))
		return nil
	},
}

var commandWatch = &cli.Command{
	Name:      "watch",
	Usage:     "stream executed batch records",
	ArgsUsage: " ",
	Description: `
Stream batch records as the ledger executes them, over websocket when the
daemon allows it, falling back to HTTP polling. Validated messages carried by
successful registry batches are printed alongside the record.`,
	Flags: []cli.Flag{
		jsonFlag,
		rpcFlag,
		jwtSecretFlag,
		sinceFlag,
		utils.RegistryIdentityFlag,
	},
	Action: func(ctx *cli.Context) error {
		client := newClient(ctx)
		if ctx.IsSet(sinceFlag.Name) {
			return pollRecords(ctx, client, ctx.Uint64(sinceFlag.Name))
		}
		sub, err := client.SubscribeBatchRecords(context.Background())
		if err != nil {
			fmt.Println("websocket unavailable, polling instead:", err)
			since := uint64(1)
			if head, headErr := client.HeadBatch(context.Background()); headErr == nil && head != nil {
				since = head.Sequence + 1
			}
			return pollRecords(ctx, client, since)
		}
		defer sub.Unsubscribe()
		for {
			select {
			case rec, ok := <-sub.Records():
				if !ok {
					return nil
				}
				printRecord(ctx, rec)
			case err := <-sub.Err():
				return err
			}
		}
	},
}

func pollRecords(ctx *cli.Context, client *rpc.Client, since uint64) error {
	next := since
	for {
		records, err := client.BatchRecords(context.Background(), next, 64)
		if err != nil {
			return err
		}
		for _, rec := range records {
			printRecord(ctx, rec)
			next = rec.Sequence + 1
		}
		if len(records) == 0 {
			time.Sleep(time.Second)
		}
	}
}

func printRecord(ctx *cli.Context, rec *rpc.BatchRecordResult) {
	if ctx.Bool(jsonFlag.Name) {
		line, err := json.Marshal(rec)
		if err != nil {
			utils.Fatalf("Failed to marshal record: %v", err)
		}
		fmt.Println(string(line))
		return
	}
	status := color.GreenString("OK")
	if rec.Status != "ok" {
		status = color.RedString("FAILED")
	}
	fmt.Printf("%s batch %d %s", status, rec.Sequence, rec.Hash.Hex())
	if rec.Error != "" {
		fmt.Printf(" error=%q", rec.Error)
	}
	fmt.Println()
	if rec.Status == "ok" {
		registry := utils.MakeProgramIdentity(ctx, utils.RegistryIdentityFlag, params.SignerRegistryProgram)
		for _, msg := range validatedMessages(rec.Raw, registry) {
			fmt.Printf("  validated %q\n", msg)
		}
	}
}

// validatedMessages extracts the messages of the validate operations carried
// by a successful batch.
func validatedMessages(raw []byte, registry common.Identity) []string {
	batch, err := types.DecodeBatch(raw)
	if err != nil {
		return nil
	}
	var msgs []string
	for _, ix := range batch.Instructions {
		if ix.Program != registry {
			continue
		}
		op, err := sigreg.DecodeOperation(ix.Data)
		if err != nil {
			continue
		}
		if v, ok := op.(sigreg.ValidateSignature); ok {
			msgs = append(msgs, string(v.Message))
		}
	}
	return msgs
}
