package flags

import "github.com/urfave/cli/v2"

const (
	LedgerCategory   = "LEDGER"
	APICategory      = "API"
	AccountCategory  = "ACCOUNT"
	RegistryCategory = "SIGNER REGISTRY"
	LoggingCategory  = "LOGGING AND DEBUGGING"
	MetricsCategory  = "METRICS AND STATS"
	MiscCategory     = "MISC"
)

func init() {
	cli.HelpFlag.(*cli.BoolFlag).Category = MiscCategory
	cli.VersionFlag.(*cli.BoolFlag).Category = MiscCategory
}
