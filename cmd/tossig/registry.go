package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/tos-network/tossig/accounts/keyfile"
	"github.com/tos-network/tossig/cmd/utils"
	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/core"
	"github.com/tos-network/tossig/core/types"
	"github.com/tos-network/tossig/params"
	"github.com/tos-network/tossig/sigreg"
)

var (
	groupKeyFlag = &cli.StringFlag{
		Name:  "groupkey",
		Usage: "key file of the new signer group account",
	}
	signerKeyFlag = &cli.StringFlag{
		Name:  "signerkey",
		Usage: "key file of the new valid signer account",
	}
	ownerFlag = &cli.StringFlag{
		Name:  "owner",
		Usage: "group owner: hex identity or key file path",
	}
	ownerKeyFlag = &cli.StringFlag{
		Name:  "ownerkey",
		Usage: "key file of the group owner, signs the batch",
	}
	groupFlag = &cli.StringFlag{
		Name:  "group",
		Usage: "signer group account: hex identity or key file path",
	}
	signerFlag = &cli.StringFlag{
		Name:  "signer",
		Usage: "valid signer account: hex identity or key file path",
	}
	addressFlag = &cli.StringFlag{
		Name:  "address",
		Usage: "hex encoded 20-byte external signer address",
	}
	ethKeyFlag = &cli.StringFlag{
		Name:  "eth-key",
		Usage: "secp256k1 key file of the external signer",
	}
	noCreateFlag = &cli.BoolFlag{
		Name:  "no-create",
		Usage: "assume the account already exists instead of allocating it",
	}
)

var commandInitGroup = &cli.Command{
	Name:      "init-signer-group",
	Usage:     "allocate and initialize a signer group account",
	ArgsUsage: " ",
	Description: `
Allocate a signer group account on the ledger and initialize it with the
given owner. The batch is signed with the group account's key; the owner is
recorded, not authenticated.`,
	Flags: []cli.Flag{
		jsonFlag,
		rpcFlag,
		jwtSecretFlag,
		groupKeyFlag,
		ownerFlag,
		noCreateFlag,
		utils.RegistryIdentityFlag,
	},
	Action: func(ctx *cli.Context) error {
		registry := utils.MakeProgramIdentity(ctx, utils.RegistryIdentityFlag, params.SignerRegistryProgram)
		groupKey := loadSigningKey(ctx.String(groupKeyFlag.Name))
		owner := resolveIdentity(ctx.String(ownerFlag.Name))
		if !ctx.Bool(jsonFlag.Name) {
			fmt.Println("Group:", groupKey.Identity.Hex())
		}

		initIx, err := sigreg.NewInitSignerGroupInstruction(registry, groupKey.Identity, owner)
		if err != nil {
			utils.Fatalf("Failed to build instruction: %v", err)
		}
		var batch *types.Batch
		if ctx.Bool(noCreateFlag.Name) {
			batch = types.NewBatch(initIx)
		} else {
			createIx := core.NewCreateAccountInstruction(groupKey.Identity, registry, sigreg.SignerGroupSize)
			batch = types.NewBatch(createIx, initIx)
		}
		submitBatch(ctx, batch, groupKey)
		return nil
	},
}

var commandInitSigner = &cli.Command{
	Name:      "init-valid-signer",
	Usage:     "allocate and initialize a valid signer account",
	ArgsUsage: " ",
	Description: `
Allocate a valid signer account, bind it to a signer group and record the
external address it may sign for. The batch is signed with the signer
account's key and the group owner's key.

The external address comes from --address, or is derived from a secp256k1
key file given with --eth-key.`,
	Flags: []cli.Flag{
		jsonFlag,
		rpcFlag,
		jwtSecretFlag,
		signerKeyFlag,
		groupFlag,
		ownerKeyFlag,
		addressFlag,
		ethKeyFlag,
		noCreateFlag,
		utils.RegistryIdentityFlag,
	},
	Action: func(ctx *cli.Context) error {
		utils.CheckExclusive(ctx, addressFlag, ethKeyFlag)
		registry := utils.MakeProgramIdentity(ctx, utils.RegistryIdentityFlag, params.SignerRegistryProgram)
		signerKey := loadSigningKey(ctx.String(signerKeyFlag.Name))
		group := resolveIdentity(ctx.String(groupFlag.Name))
		ownerKey := loadSigningKey(ctx.String(ownerKeyFlag.Name))
		address := externalAddress(ctx)

		initIx, err := sigreg.NewInitValidSignerInstruction(registry, signerKey.Identity, group, ownerKey.Identity, address)
		if err != nil {
			utils.Fatalf("Failed to build instruction: %v", err)
		}
		var batch *types.Batch
		if ctx.Bool(noCreateFlag.Name) {
			batch = types.NewBatch(initIx)
		} else {
			createIx := core.NewCreateAccountInstruction(signerKey.Identity, registry, sigreg.ValidSignerSize)
			batch = types.NewBatch(createIx, initIx)
		}
		submitBatch(ctx, batch, signerKey, ownerKey)
		return nil
	},
}

var commandClearSigner = &cli.Command{
	Name:      "clear-valid-signer",
	Usage:     "clear a valid signer account",
	ArgsUsage: " ",
	Description: `
Clear a valid signer record so the external address can no longer validate
messages for the group. The batch is signed with the group owner's key.`,
	Flags: []cli.Flag{
		jsonFlag,
		rpcFlag,
		jwtSecretFlag,
		signerFlag,
		groupFlag,
		ownerKeyFlag,
		utils.RegistryIdentityFlag,
	},
	Action: func(ctx *cli.Context) error {
		registry := utils.MakeProgramIdentity(ctx, utils.RegistryIdentityFlag, params.SignerRegistryProgram)
		signer := resolveIdentity(ctx.String(signerFlag.Name))
		group := resolveIdentity(ctx.String(groupFlag.Name))
		ownerKey := loadSigningKey(ctx.String(ownerKeyFlag.Name))

		clearIx, err := sigreg.NewClearValidSignerInstruction(registry, signer, group, ownerKey.Identity)
		if err != nil {
			utils.Fatalf("Failed to build instruction: %v", err)
		}
		submitBatch(ctx, types.NewBatch(clearIx), ownerKey)
		return nil
	},
}

var commandSigners = &cli.Command{
	Name:      "signers",
	Usage:     "list the valid signers of a group",
	ArgsUsage: " ",
	Flags: []cli.Flag{
		jsonFlag,
		rpcFlag,
		jwtSecretFlag,
		groupFlag,
	},
	Action: func(ctx *cli.Context) error {
		group := resolveIdentity(ctx.String(groupFlag.Name))
		signers, err := newClient(ctx).ValidSigners(context.Background(), group)
		if err != nil {
			utils.Fatalf("Failed to list signers: %v", err)
		}
		if ctx.Bool(jsonFlag.Name) {
			mustPrintJSON(signers)
			return nil
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Signer", "Address", "Version"})
		table.SetAutoWrapText(false)
		for _, s := range signers {
			table.Append([]string{s.Account.Hex(), s.Address.Hex(), strconv.Itoa(int(s.Version))})
		}
		table.Render()
		return nil
	},
}

// externalAddress resolves the external signer address from --address or
// --eth-key.
func externalAddress(ctx *cli.Context) common.Address {
	if path := ctx.String(ethKeyFlag.Name); path != "" {
		key := loadKeyfile(path)
		if key.Type != keyfile.TypeSecp256k1 {
			utils.Fatalf("Key file %s holds a %s key, need secp256k1", path, key.Type)
		}
		return key.Address
	}
	if hexAddr := ctx.String(addressFlag.Name); hexAddr != "" {
		return resolveAddress(hexAddr)
	}
	utils.Fatalf("Either --%s or --%s is required", addressFlag.Name, ethKeyFlag.Name)
	return common.Address{}
}
