package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tos-network/tossig/accounts/keyfile"
	"github.com/tos-network/tossig/cmd/utils"
	"github.com/tos-network/tossig/crypto"
)

type outputInspect struct {
	Type       string `json:"type"`
	Identity   string `json:"identity,omitempty"`
	Address    string `json:"address,omitempty"`
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey,omitempty"`
}

var privateFlag = &cli.BoolFlag{
	Name:  "private",
	Usage: "include the private key in the output",
}

var commandInspect = &cli.Command{
	Name:      "inspect",
	Usage:     "inspect a key file",
	ArgsUsage: "<keyfile>",
	Description: `
Print various information about the key file.

Private key information can be printed by using the --private flag;
make sure to use this feature with great caution!`,
	Flags: []cli.Flag{
		jsonFlag,
		privateFlag,
	},
	Action: func(ctx *cli.Context) error {
		key := loadKeyfile(ctx.Args().First())

		showPrivate := ctx.Bool(privateFlag.Name)
		out := outputInspect{Type: key.Type}
		switch key.Type {
		case keyfile.TypeEd25519:
			pub, ok := key.Ed25519PrivateKey.Public().(ed25519.PublicKey)
			if !ok {
				utils.Fatalf("Failed to derive ed25519 public key")
			}
			out.Identity = key.Identity.Hex()
			out.PublicKey = hex.EncodeToString(pub)
			if showPrivate {
				out.PrivateKey = hex.EncodeToString(key.Ed25519PrivateKey.Seed())
			}
		case keyfile.TypeSecp256k1:
			if key.ECDSAPrivateKey == nil {
				utils.Fatalf("Missing ECDSA private key material")
			}
			out.Address = key.Address.Hex()
			out.PublicKey = hex.EncodeToString(crypto.FromECDSAPub(&key.ECDSAPrivateKey.PublicKey))
			if showPrivate {
				out.PrivateKey = hex.EncodeToString(crypto.FromECDSA(key.ECDSAPrivateKey))
			}
		default:
			utils.Fatalf("Unsupported key type in key file: %s", key.Type)
		}

		if ctx.Bool(jsonFlag.Name) {
			mustPrintJSON(out)
		} else {
			fmt.Println("Type:          ", out.Type)
			if out.Identity != "" {
				fmt.Println("Identity:      ", out.Identity)
			}
			if out.Address != "" {
				fmt.Println("Address:       ", out.Address)
			}
			fmt.Println("Public key:    ", out.PublicKey)
			if showPrivate {
				fmt.Println("Private key:   ", out.PrivateKey)
			}
		}
		return nil
	},
}
