package consts

const (
	EVMDecimals    = 18
	NonEVMDecimals = 9

	EVMSymbol    = "ETH"
	NonEVMSymbol = "SOL"

	EVMChainName    = "Base"
	NonEVMChainName = "Solana"

	EVMExplorerTxURL    = "https://basescan.org/tx/"
	NonEVMExplorerTxURL = "https://explorer.solana.com/tx/"
)

// Job names registered with the job status manager.
const (
	JobReconcileEVM    = "reconcile_evm"
	JobReconcileNonEVM = "reconcile_nonevm"
	JobSnapshot        = "activity_snapshot"
)

const (
	DefaultListLimit     = 20
	MaxListLimit         = 500
	DefaultActivityHours = 24
	MaxActivityHours     = 720
)
