package utils

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	godebug "runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	gopsutil "github.com/shirou/gopsutil/mem"
	"github.com/urfave/cli/v2"

	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/common/hexutil"
	"github.com/tos-network/tossig/core"
	"github.com/tos-network/tossig/core/rawdb"
	"github.com/tos-network/tossig/internal/flags"
	"github.com/tos-network/tossig/log"
	"github.com/tos-network/tossig/metrics"
	"github.com/tos-network/tossig/metrics/influxdb"
	"github.com/tos-network/tossig/params"
	"github.com/tos-network/tossig/sigdb"
)

// databaseHandles is the file descriptor allowance handed to leveldb.
const databaseHandles = 512

var (
	ConfigFileFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "TOML configuration file",
		Category: flags.LedgerCategory,
	}
	DataDirFlag = &cli.StringFlag{
		Name:     "datadir",
		Usage:    "Data directory for the ledger database",
		Value:    DefaultDataDir(),
		Category: flags.LedgerCategory,
	}
	CacheFlag = &cli.IntFlag{
		Name:     "cache",
		Usage:    "Megabytes of memory allocated to internal database caching",
		Value:    128,
		Category: flags.LedgerCategory,
	}
	CacheAccountsFlag = &cli.IntFlag{
		Name:     "cache.accounts",
		Usage:    "Number of committed accounts held in the in-memory cache",
		Value:    core.DefaultAccountCacheSize,
		Category: flags.LedgerCategory,
	}
	RegistryIdentityFlag = &cli.StringFlag{
		Name:     "registry.identity",
		Usage:    "Program identity the signer registry is served under (hex)",
		Category: flags.RegistryCategory,
	}
	RecoveryIdentityFlag = &cli.StringFlag{
		Name:     "recovery.identity",
		Usage:    "Program identity the signature recovery program is served under (hex)",
		Category: flags.RegistryCategory,
	}

	HTTPListenAddrFlag = &cli.StringFlag{
		Name:     "http.addr",
		Usage:    "HTTP-RPC server listening interface",
		Value:    "127.0.0.1",
		Category: flags.APICategory,
	}
	HTTPPortFlag = &cli.IntFlag{
		Name:     "http.port",
		Usage:    "HTTP-RPC server listening port",
		Value:    8645,
		Category: flags.APICategory,
	}
	HTTPCORSDomainFlag = &cli.StringFlag{
		Name:     "http.corsdomain",
		Usage:    "Comma separated list of domains from which to accept cross origin requests (browser enforced)",
		Category: flags.APICategory,
	}
	JWTSecretFlag = &cli.StringFlag{
		Name:     "http.jwtsecret",
		Usage:    "Path to a JWT secret used to gate the RPC endpoint (32-byte hex)",
		Category: flags.APICategory,
	}

	VerbosityFlag = &cli.IntFlag{
		Name:     "verbosity",
		Usage:    "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value:    3,
		Category: flags.LoggingCategory,
	}

	MetricsEnabledFlag = &cli.BoolFlag{
		Name:     "metrics",
		Usage:    "Enable metrics collection and reporting",
		Category: flags.MetricsCategory,
	}
	MetricsEnableInfluxDBFlag = &cli.BoolFlag{
		Name:     "metrics.influxdb",
		Usage:    "Enable metrics export to an InfluxDB v2 instance",
		Category: flags.MetricsCategory,
	}
	MetricsInfluxDBEndpointFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.endpoint",
		Usage:    "InfluxDB API endpoint to report metrics to",
		Value:    metrics.DefaultConfig.InfluxDBEndpoint,
		Category: flags.MetricsCategory,
	}
	MetricsInfluxDBTokenFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.token",
		Usage:    "Token to authorize access to the InfluxDB instance",
		Value:    metrics.DefaultConfig.InfluxDBToken,
		Category: flags.MetricsCategory,
	}
	MetricsInfluxDBBucketFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.bucket",
		Usage:    "InfluxDB bucket name to push reported metrics to",
		Value:    metrics.DefaultConfig.InfluxDBBucket,
		Category: flags.MetricsCategory,
	}
	MetricsInfluxDBOrganizationFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.organization",
		Usage:    "InfluxDB organization name to push reported metrics to",
		Value:    metrics.DefaultConfig.InfluxDBOrganization,
		Category: flags.MetricsCategory,
	}
	MetricsInfluxDBTagsFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.tags",
		Usage:    "Comma-separated InfluxDB tags (key/values) attached to all measurements",
		Value:    metrics.DefaultConfig.InfluxDBTags,
		Category: flags.MetricsCategory,
	}
)

// DefaultDataDir is the default data directory to use for the ledger
// database.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Tossig")
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "Tossig")
	default:
		return filepath.Join(home, ".tossig")
	}
}

// SetupLogging configures the root logger from the verbosity flag.
func SetupLogging(ctx *cli.Context) {
	usecolor := isatty.IsTerminal(os.Stderr.Fd()) && os.Getenv("TERM") != "dumb"
	output := io.Writer(os.Stderr)
	if usecolor {
		output = colorable.NewColorableStderr()
	}
	handler := log.StreamHandler(output, log.TerminalFormat(usecolor))
	log.Root().SetHandler(log.LvlFilterHandler(log.Lvl(ctx.Int(VerbosityFlag.Name)), handler))
}

// SetupMetrics starts the InfluxDB reporter when metrics are enabled.
func SetupMetrics(ctx *cli.Context) {
	if !metrics.Enabled {
		return
	}
	log.Info("Enabling metrics collection")
	if ctx.Bool(MetricsEnableInfluxDBFlag.Name) {
		endpoint := ctx.String(MetricsInfluxDBEndpointFlag.Name)
		token := ctx.String(MetricsInfluxDBTokenFlag.Name)
		bucket := ctx.String(MetricsInfluxDBBucketFlag.Name)
		organization := ctx.String(MetricsInfluxDBOrganizationFlag.Name)
		tagsMap := SplitTagsFlag(ctx.String(MetricsInfluxDBTagsFlag.Name))

		log.Info("Enabling metrics export to InfluxDB", "endpoint", endpoint, "bucket", bucket)
		go influxdb.InfluxDBV2WithTags(metrics.DefaultRegistry, 10*time.Second, endpoint, token, bucket, organization, "tossig.", tagsMap)
	}
}

// SetLedgerConfig applies ledger related command line flags to the config.
func SetLedgerConfig(ctx *cli.Context, cfg *core.Config) {
	if ctx.IsSet(CacheAccountsFlag.Name) {
		cfg.AccountCacheSize = ctx.Int(CacheAccountsFlag.Name)
	}
	// Cap the cache allowance and tune the garbage collector
	mem, err := gopsutil.VirtualMemory()
	if err == nil {
		if 32<<(^uintptr(0)>>63) == 32 && mem.Total > 2*1024*1024*1024 {
			log.Warn("Lowering memory allowance on 32bit arch", "available", mem.Total/1024/1024, "addressable", 2*1024)
			mem.Total = 2 * 1024 * 1024 * 1024
		}
		allowance := int(mem.Total / 1024 / 1024 / 3)
		if cache := ctx.Int(CacheFlag.Name); cache > allowance {
			log.Warn("Sanitizing cache to Go's GC limits", "provided", cache, "updated", allowance)
			ctx.Set(CacheFlag.Name, strconv.Itoa(allowance))
		}
	}
	// Ensure Go's GC ignores the database cache for trigger percentage
	cache := ctx.Int(CacheFlag.Name)
	gogc := math.Max(20, math.Min(100, 100/(float64(cache)/1024)))

	log.Debug("Sanitizing Go's GC trigger", "percent", int(gogc))
	godebug.SetGCPercent(int(gogc))
}

// MakeLedgerDatabase opens the ledger leveldb under the given data directory.
func MakeLedgerDatabase(ctx *cli.Context, datadir string) sigdb.Database {
	if datadir == "" {
		Fatalf("No data directory set, use --%s", DataDirFlag.Name)
	}
	db, err := rawdb.NewLevelDBDatabase(filepath.Join(datadir, "ledger"), ctx.Int(CacheFlag.Name), databaseHandles, "tossig/db/ledger/", false)
	if err != nil {
		Fatalf("Could not open database: %v", err)
	}
	return db
}

// MakeProgramIdentity resolves a program identity flag, falling back to
// fallback when unset.
func MakeProgramIdentity(ctx *cli.Context, flag *cli.StringFlag, fallback common.Identity) common.Identity {
	if !ctx.IsSet(flag.Name) {
		return fallback
	}
	raw, err := hexutil.Decode(ctx.String(flag.Name))
	if err != nil {
		Fatalf("Invalid --%s: %v", flag.Name, err)
	}
	if len(raw) != common.IdentityLength {
		Fatalf("Invalid --%s: need %d bytes, got %d", flag.Name, common.IdentityLength, len(raw))
	}
	return common.BytesToIdentity(raw)
}

// LoadJWTSecret loads and validates the 32-byte hex secret stored at path,
// returning nil when no path is given.
func LoadJWTSecret(path string) []byte {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		Fatalf("Could not read JWT secret %s: %v", path, err)
	}
	secret, err := hexutil.Decode(strings.TrimSpace(string(data)))
	if err != nil || len(secret) != 32 {
		Fatalf("Invalid JWT secret in %s: need 32 bytes of hex", path)
	}
	return secret
}

// SplitAndTrim splits input separated by a comma and trims excessive white
// space from the substrings.
func SplitAndTrim(input string) (ret []string) {
	l := strings.Split(input, ",")
	for _, r := range l {
		if r = strings.TrimSpace(r); r != "" {
			ret = append(ret, r)
		}
	}
	return ret
}

// SplitTagsFlag parses a comma separated list of key=value metrics tags.
func SplitTagsFlag(tagsFlag string) map[string]string {
	tags := strings.Split(tagsFlag, ",")
	tagsMap := map[string]string{}

	for _, t := range tags {
		if t != "" {
			kv := strings.Split(t, "=")
			if len(kv) == 2 {
				tagsMap[kv[0]] = kv[1]
			}
		}
	}
	return tagsMap
}

// CheckExclusive verifies that only a single instance of the provided flags
// was set by the user. Each flag might optionally be followed by a string
// type to specialize it further.
func CheckExclusive(ctx *cli.Context, args ...interface{}) {
	set := make([]string, 0, 1)
	for i := 0; i < len(args); i++ {
		// Make sure the next argument is a flag and skip if not set
		flag, ok := args[i].(cli.Flag)
		if !ok {
			panic(fmt.Sprintf("invalid argument, not cli.Flag type: %T", args[i]))
		}
		// Check if next arg extends current and expand its name if so
		name := flag.Names()[0]

		if i+1 < len(args) {
			switch option := args[i+1].(type) {
			case string:
				// Extended flag check, make sure value set doesn't conflict with passed in option
				if ctx.String(flag.Names()[0]) == option {
					name += "=" + option
					set = append(set, "--"+name)
				}
				// shift arguments and continue
				i++
				continue

			case cli.Flag:
			default:
				panic(fmt.Sprintf("invalid argument, not cli.Flag or string extension: %T", args[i+1]))
			}
		}
		// Mark the flag if it's set
		if ctx.IsSet(flag.Names()[0]) {
			set = append(set, "--"+name)
		}
	}
	if len(set) > 1 {
		Fatalf("Flags %v can't be used at the same time", strings.Join(set, ", "))
	}
}
