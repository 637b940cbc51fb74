package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"

	"github.com/tos-network/tossig/cmd/utils"
	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/core"
	"github.com/tos-network/tossig/internal/flags"
	"github.com/tos-network/tossig/metrics"
	"github.com/tos-network/tossig/params"
)

var dumpConfigCommand = &cli.Command{
	Action:      dumpConfig,
	Name:        "dumpconfig",
	Usage:       "Show configuration values",
	ArgsUsage:   "[<file>]",
	Flags:       flags.Merge(nodeFlags, rpcFlags),
	Description: `The dumpconfig command shows configuration values.`,
}

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// nodeConfig holds the daemon settings that are not ledger or metrics
// related.
type nodeConfig struct {
	DataDir   string
	HTTPHost  string
	HTTPPort  int
	HTTPCors  []string
	JWTSecret string `toml:",omitempty"`

	// Program identities are flag-only overrides, kept out of the file.
	registryIdentity common.Identity
	recoveryIdentity common.Identity
}

type tossigdConfig struct {
	Node    nodeConfig
	Ledger  core.Config
	Metrics metrics.Config
}

func defaultNodeConfig() nodeConfig {
	return nodeConfig{
		DataDir:          utils.DefaultDataDir(),
		HTTPHost:         "127.0.0.1",
		HTTPPort:         8645,
		registryIdentity: params.SignerRegistryProgram,
		recoveryIdentity: params.SecpRecoverProgram,
	}
}

func loadConfig(file string, cfg *tossigdConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig resolves the daemon configuration: defaults, then the config
// file, then command line flags.
func makeConfig(ctx *cli.Context) tossigdConfig {
	cfg := tossigdConfig{
		Node:    defaultNodeConfig(),
		Ledger:  core.Config{AccountCacheSize: core.DefaultAccountCacheSize},
		Metrics: metrics.DefaultConfig,
	}
	if file := ctx.String(utils.ConfigFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			utils.Fatalf("%v", err)
		}
	}
	setNodeConfig(ctx, &cfg.Node)
	utils.SetLedgerConfig(ctx, &cfg.Ledger)
	applyMetricConfig(ctx, &cfg.Metrics)
	return cfg
}

func setNodeConfig(ctx *cli.Context, cfg *nodeConfig) {
	if ctx.IsSet(utils.DataDirFlag.Name) {
		cfg.DataDir = ctx.String(utils.DataDirFlag.Name)
	}
	if ctx.IsSet(utils.HTTPListenAddrFlag.Name) {
		cfg.HTTPHost = ctx.String(utils.HTTPListenAddrFlag.Name)
	}
	if ctx.IsSet(utils.HTTPPortFlag.Name) {
		cfg.HTTPPort = ctx.Int(utils.HTTPPortFlag.Name)
	}
	if ctx.IsSet(utils.HTTPCORSDomainFlag.Name) {
		cfg.HTTPCors = utils.SplitAndTrim(ctx.String(utils.HTTPCORSDomainFlag.Name))
	}
	if ctx.IsSet(utils.JWTSecretFlag.Name) {
		cfg.JWTSecret = ctx.String(utils.JWTSecretFlag.Name)
	}
	cfg.registryIdentity = utils.MakeProgramIdentity(ctx, utils.RegistryIdentityFlag, cfg.registryIdentity)
	cfg.recoveryIdentity = utils.MakeProgramIdentity(ctx, utils.RecoveryIdentityFlag, cfg.recoveryIdentity)
}

func applyMetricConfig(ctx *cli.Context, cfg *metrics.Config) {
	if ctx.IsSet(utils.MetricsEnabledFlag.Name) {
		cfg.Enabled = ctx.Bool(utils.MetricsEnabledFlag.Name)
	}
	if ctx.IsSet(utils.MetricsEnableInfluxDBFlag.Name) {
		cfg.EnableInfluxDB = ctx.Bool(utils.MetricsEnableInfluxDBFlag.Name)
	}
	if ctx.IsSet(utils.MetricsInfluxDBEndpointFlag.Name) {
		cfg.InfluxDBEndpoint = ctx.String(utils.MetricsInfluxDBEndpointFlag.Name)
	}
	if ctx.IsSet(utils.MetricsInfluxDBTokenFlag.Name) {
		cfg.InfluxDBToken = ctx.String(utils.MetricsInfluxDBTokenFlag.Name)
	}
	if ctx.IsSet(utils.MetricsInfluxDBBucketFlag.Name) {
		cfg.InfluxDBBucket = ctx.String(utils.MetricsInfluxDBBucketFlag.Name)
	}
	if ctx.IsSet(utils.MetricsInfluxDBOrganizationFlag.Name) {
		cfg.InfluxDBOrganization = ctx.String(utils.MetricsInfluxDBOrganizationFlag.Name)
	}
	if ctx.IsSet(utils.MetricsInfluxDBTagsFlag.Name) {
		cfg.InfluxDBTags = ctx.String(utils.MetricsInfluxDBTagsFlag.Name)
	}
}

func dumpConfig(ctx *cli.Context) error {
	cfg := makeConfig(ctx)
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}

	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	dump.Write(out)
	return nil
}
