package main

import (
	crand "crypto/rand"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tos-network/tossig/accounts/keyfile"
	"github.com/tos-network/tossig/cmd/utils"
)

type outputGenerate struct {
	Type     string `json:"type"`
	Identity string `json:"identity,omitempty"`
	Address  string `json:"address,omitempty"`
}

var keyTypeFlag = &cli.StringFlag{
	Name:  "type",
	Usage: "key type to generate (`ed25519` default, supports `secp256k1`)",
	Value: keyfile.TypeEd25519,
}

var commandGenerate = &cli.Command{
	Name:      "generate",
	Aliases:   []string{"keygen"},
	Usage:     "generate new key file",
	ArgsUsage: "[ <keyfile> ]",
	Description: `
Generate a new key file.

Batch signing identities use ed25519 keys; external signing keys checked by
the recovery program use secp256k1 keys. The key file is written in plaintext,
keep it somewhere safe.
`,
	Flags: []cli.Flag{
		jsonFlag,
		keyTypeFlag,
	},
	Action: func(ctx *cli.Context) error {
		// Check if keyfile path given and make sure it doesn't already exist.
		keyfilepath := ctx.Args().First()
		if keyfilepath == "" {
			keyfilepath = defaultKeyfileName
		}
		if _, err := os.Stat(keyfilepath); err == nil {
			utils.Fatalf("Keyfile already exists at %s.", keyfilepath)
		} else if !os.IsNotExist(err) {
			utils.Fatalf("Error checking if keyfile exists: %v", err)
		}

		var (
			key *keyfile.Key
			err error
		)
		switch ctx.String(keyTypeFlag.Name) {
		case keyfile.TypeEd25519:
			key, err = keyfile.NewEd25519Key(crand.Reader)
		case keyfile.TypeSecp256k1:
			key, err = keyfile.NewSecp256k1Key(crand.Reader)
		default:
			utils.Fatalf("Key type %q is not supported", ctx.String(keyTypeFlag.Name))
		}
		if err != nil {
			utils.Fatalf("Failed to generate key: %v", err)
		}
		if err := keyfile.StoreKey(keyfilepath, key); err != nil {
			utils.Fatalf("Failed to write keyfile to %s: %v", keyfilepath, err)
		}

		out := outputGenerate{Type: key.Type}
		switch key.Type {
		case keyfile.TypeEd25519:
			out.Identity = key.Identity.Hex()
		case keyfile.TypeSecp256k1:
			out.Address = key.Address.Hex()
		}
		if ctx.Bool(jsonFlag.Name) {
			mustPrintJSON(out)
		} else {
			fmt.Println("Type:    ", out.Type)
			if out.Identity != "" {
				fmt.Println("Identity:", out.Identity)
			}
			if out.Address != "" {
				fmt.Println("Address: ", out.Address)
			}
		}
		return nil
	},
}
