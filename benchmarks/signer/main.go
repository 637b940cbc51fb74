package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"fmt"
	"sort"
	"time"

	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/core/types"
	"github.com/tos-network/tossig/crypto"
	"github.com/tos-network/tossig/params"
	"github.com/tos-network/tossig/secprecover"
	"github.com/tos-network/tossig/sigreg"
)

type result struct {
	name      string
	signUS    float64
	verifyUS  float64
	signOps   float64
	verifyOps float64
}

func bench(n int, fn func()) time.Duration {
	start := time.Now()
	for i := 0; i < n; i++ {
		fn()
	}
	return time.Since(start)
}

func perOpUS(d time.Duration, n int) float64 {
	return float64(d.Microseconds()) / float64(n)
}

func perSecOps(d time.Duration, n int) float64 {
	return float64(n) / d.Seconds()
}

func main() {
	signOps := flag.Int("sign-ops", 5000, "number of sign operations")
	verifyOps := flag.Int("verify-ops", 5000, "number of verify operations")
	flag.Parse()

	if *signOps <= 0 || *verifyOps <= 0 {
		panic("sign-ops and verify-ops must be > 0")
	}

	message := []byte("signer benchmark message")
	digest := crypto.Keccak256(message)
	out := make([]result, 0, 3)

	// secp256k1: the external-signature path the recovery program runs for
	// every validate operation.
	{
		key, err := crypto.GenerateKey()
		if err != nil {
			panic(err)
		}
		address := crypto.PubkeyToAddress(key.PublicKey)
		sig, err := crypto.Sign(digest, key)
		if err != nil {
			panic(err)
		}

		dSign := bench(*signOps, func() {
			if _, err := crypto.Sign(digest, key); err != nil {
				panic(err)
			}
		})
		dVerify := bench(*verifyOps, func() {
			pubkey, err := crypto.Ecrecover(digest, sig)
			if err != nil {
				panic(err)
			}
			if common.BytesToAddress(crypto.Keccak256(pubkey[1:])[12:]) != address {
				panic("secp256k1 recover mismatch")
			}
		})
		out = append(out, result{
			name:      "secp256k1",
			signUS:    perOpUS(dSign, *signOps),
			verifyUS:  perOpUS(dVerify, *verifyOps),
			signOps:   perSecOps(dSign, *signOps),
			verifyOps: perSecOps(dVerify, *verifyOps),
		})
	}

	// ed25519: the batch signature primitive.
	{
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			panic(err)
		}
		sig := ed25519.Sign(priv, digest)

		dSign := bench(*signOps, func() {
			_ = ed25519.Sign(priv, digest)
		})
		dVerify := bench(*verifyOps, func() {
			if !ed25519.Verify(pub, digest, sig) {
				panic("ed25519 verify failed")
			}
		})
		out = append(out, result{
			name:      "ed25519",
			signUS:    perOpUS(dSign, *signOps),
			verifyUS:  perOpUS(dVerify, *verifyOps),
			signOps:   perSecOps(dSign, *signOps),
			verifyOps: perSecOps(dVerify, *verifyOps),
		})
	}

	// batch: the full admission pipeline for a recover+validate batch, codec
	// and digest work included.
	{
		ethKey, err := crypto.GenerateKey()
		if err != nil {
			panic(err)
		}
		extSig, recid, err := secprecover.SignMessage(ethKey, message)
		if err != nil {
			panic(err)
		}
		recoverIx, err := secprecover.NewRecoverInstruction(
			params.SecpRecoverProgram, crypto.PubkeyToAddress(ethKey.PublicKey),
			extSig, recid, message, 0)
		if err != nil {
			panic(err)
		}
		var signer, group common.Identity
		signer[0], group[0] = 1, 2
		validateIx, err := sigreg.NewValidateSignatureInstruction(
			params.SignerRegistryProgram, signer, group, extSig, recid, message)
		if err != nil {
			panic(err)
		}
		batch := types.NewBatch(recoverIx, validateIx)

		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			panic(err)
		}
		dSign := bench(*signOps, func() {
			if err := batch.Sign(priv); err != nil {
				panic(err)
			}
		})
		blob := batch.EncodeBinary()
		dVerify := bench(*verifyOps, func() {
			decoded, err := types.DecodeBatch(blob)
			if err != nil {
				panic(err)
			}
			if err := decoded.VerifySignatures(); err != nil {
				panic(err)
			}
		})
		out = append(out, result{
			name:      "batch",
			signUS:    perOpUS(dSign, *signOps),
			verifyUS:  perOpUS(dVerify, *verifyOps),
			signOps:   perSecOps(dSign, *signOps),
			verifyOps: perSecOps(dVerify, *verifyOps),
		})
	}

	fmt.Printf("Signer benchmark on this machine (sign-ops=%d, verify-ops=%d)\n", *signOps, *verifyOps)
	fmt.Println("- The batch row includes codec and digest work; no network overhead")
	fmt.Printf("%-14s %10s %12s %10s %12s\n", "Algorithm", "sign us", "sign ops/s", "verify us", "verify ops/s")
	for _, r := range out {
		fmt.Printf("%-14s %10.2f %12.0f %10.2f %12.0f\n", r.name, r.signUS, r.signOps, r.verifyUS, r.verifyOps)
	}

	bySign := append([]result(nil), out...)
	sort.Slice(bySign, func(i, j int) bool { return bySign[i].signUS < bySign[j].signUS })
	fmt.Print("\nSign speed rank (fast -> slow): ")
	for i, r := range bySign {
		if i > 0 {
			fmt.Print(" > ")
		}
		fmt.Print(r.name)
	}

	byVerify := append([]result(nil), out...)
	sort.Slice(byVerify, func(i, j int) bool { return byVerify[i].verifyUS < byVerify[j].verifyUS })
	fmt.Print("\nVerify speed rank (fast -> slow): ")
	for i, r := range byVerify {
		if i > 0 {
			fmt.Print(" > ")
		}
		fmt.Print(r.name)
	}
	fmt.Println()
}
