package evmrpc

// transfer categories queried from alchemy_getAssetTransfers
var transferCategories = []string{"external", "erc20", "erc721", "erc1155"}

type assetTransfersParams struct {
	FromBlock        string   `json:"fromBlock"`
	ToBlock          string   `json:"toBlock"`
	FromAddress      string   `json:"fromAddress,omitempty"`
	ToAddress        string   `json:"toAddress,omitempty"`
	Category         []string `json:"category"`
	WithMetadata     bool     `json:"withMetadata"`
	ExcludeZeroValue bool     `json:"excludeZeroValue"`
	MaxCount         string   `json:"maxCount"`
	Order            string   `json:"order"`
	PageKey          string   `json:"pageKey,omitempty"`
}

type assetTransfersResult struct {
	Transfers []assetTransfer `json:"transfers"`
	PageKey   string          `json:"pageKey"`
}

type assetTransfer struct {
	BlockNum    string        `json:"blockNum"`
	UniqueID    string        `json:"uniqueId"`
	Hash        string        `json:"hash"`
	From        string        `json:"from"`
	To          *string       `json:"to"`
	Asset       *string       `json:"asset"`
	Category    string        `json:"category"`
	RawContract rawContract   `json:"rawContract"`
	Metadata    *transferMeta `json:"metadata"`
}

type rawContract struct {
	Value   *string `json:"value"`
	Address *string `json:"address"`
	Decimal *string `json:"decimal"`
}

type transferMeta struct {
	BlockTimestamp string `json:"blockTimestamp"`
}
