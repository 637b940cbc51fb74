// Package utils contains internal helper functions for tossig commands.
package utils

import (
	"flag"
	"reflect"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/tos-network/tossig/params"
)

func Test_SplitTagsFlag(t *testing.T) {
	tests := []struct {
		name string
		args string
		want map[string]string
	}{
		{
			"2 tags case",
			"host=localhost,role=ledger",
			map[string]string{
				"host": "localhost",
				"role": "ledger",
			},
		},
		{
			"1 tag case",
			"host=localhost123",
			map[string]string{
				"host": "localhost123",
			},
		},
		{
			"empty case",
			"",
			map[string]string{},
		},
		{
			"garbage",
			"smth=smthelse=123",
			map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitTagsFlag(tt.args); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitTagsFlag() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		args string
		want []string
	}{
		{"", nil},
		{"  ", nil},
		{"http://a.example", []string{"http://a.example"}},
		{" http://a.example , http://b.example ", []string{"http://a.example", "http://b.example"}},
		{",,x,", []string{"x"}},
	}
	for _, tt := range tests {
		if got := SplitAndTrim(tt.args); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitAndTrim(%q) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestMakeProgramIdentity(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "default identity", args: nil, want: params.SignerRegistryProgram.Hex()},
		{
			name: "identity flag",
			args: []string{"--registry.identity=0x1122334455667788990011223344556677889900112233445566778899001122"},
			want: "0x1122334455667788990011223344556677889900112233445566778899001122",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := cli.NewApp()
			app.Flags = []cli.Flag{RegistryIdentityFlag}

			set := flag.NewFlagSet("test", flag.ContinueOnError)
			for _, f := range app.Flags {
				if err := f.Apply(set); err != nil {
					t.Fatalf("apply flag: %v", err)
				}
			}
			if err := set.Parse(tt.args); err != nil {
				t.Fatalf("parse flags: %v", err)
			}
			ctx := cli.NewContext(app, set, nil)
			if got := MakeProgramIdentity(ctx, RegistryIdentityFlag, params.SignerRegistryProgram); got.Hex() != tt.want {
				t.Fatalf("identity = %s, want %s", got.Hex(), tt.want)
			}
		})
	}
}
