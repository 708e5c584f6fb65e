package notifier

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dwarvesf/onchain-tracker/internal/consts"
	"github.com/dwarvesf/onchain-tracker/internal/model"
)

const (
	evmColor    = 5814783
	nonEVMColor = 9055202
)

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embed struct {
	Title     string       `json:"title"`
	Color     int          `json:"color"`
	Fields    []embedField `json:"fields"`
	Timestamp string       `json:"timestamp"`
}

// Message is the Discord-compatible webhook payload.
type Message struct {
	Embeds []embed `json:"embeds"`
}

type chainDisplay struct {
	name       string
	emoji      string
	color      int
	symbol     string
	decimals   int
	explorerTx string
}

func displayOf(network model.Network) chainDisplay {
	if network == model.NetworkNonEVM {
		return chainDisplay{
			name:       consts.NonEVMChainName,
			emoji:      "🟣",
			color:      nonEVMColor,
			symbol:     consts.NonEVMSymbol,
			decimals:   consts.NonEVMDecimals,
			explorerTx: consts.NonEVMExplorerTxURL,
		}
	}
	return chainDisplay{
		name:       consts.EVMChainName,
		emoji:      "🔵",
		color:      evmColor,
		symbol:     consts.EVMSymbol,
		decimals:   consts.EVMDecimals,
		explorerTx: consts.EVMExplorerTxURL,
	}
}

// displayAmount formats the value in its own asset. Native records without
// decimals fall back to the chain's native precision.
func displayAmount(tx model.Transaction, d chainDisplay) (string, string) {
	decimals, symbol := tx.Decimals, d.symbol
	if tx.IsNative() {
		if decimals == 0 {
			decimals = d.decimals
		}
	} else if tx.Asset != "" {
		symbol = tx.Asset
	}
	value := &model.Web3BigInt{Value: tx.Value, Decimal: decimals}
	return value.Format(int32(min(6, decimals))), symbol
}

// FormatMessage renders tx as a single embed with shortened addresses and an explorer link.
func FormatMessage(tx model.Transaction) Message {
	d := displayOf(tx.Network)
	amount, symbol := displayAmount(tx, d)

	return Message{
		Embeds: []embed{{
			Title: d.emoji + " New Transaction on " + strings.ToUpper(d.name),
			Color: d.color,
			Fields: []embedField{
				{Name: "From", Value: "`" + shortenAddress(tx.FromAddress) + "`", Inline: true},
				{Name: "To", Value: "`" + shortenAddress(tx.ToAddress) + "`", Inline: true},
				{Name: "Value", Value: amount + " " + symbol, Inline: true},
				{Name: "Hash", Value: "[View on Explorer](" + d.explorerTx + tx.Hash + ")", Inline: false},
			},
			Timestamp: time.Unix(tx.Timestamp, 0).UTC().Format(time.RFC3339),
		}},
	}
}

// shortenAddress keeps the first 10 and last 8 characters.
func shortenAddress(addr string) string {
	if addr == "" {
		return "unknown"
	}
	if len(addr) <= 18 {
		return addr
	}
	return addr[:10] + "..." + addr[len(addr)-8:]
}

// IdempotencyKey is stable per (network, hash) so a sink can drop redeliveries.
func IdempotencyKey(tx model.Transaction) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(tx.Key())).String()
}
