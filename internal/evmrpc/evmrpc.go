package evmrpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/dwarvesf/onchain-tracker/internal/chain"
	"github.com/dwarvesf/onchain-tracker/internal/consts"
	"github.com/dwarvesf/onchain-tracker/internal/model"
	"github.com/dwarvesf/onchain-tracker/internal/utils/config"
	"github.com/dwarvesf/onchain-tracker/internal/utils/logger"
)

type Options struct {
	Confirmations uint64
	PageSize      int
	MaxPages      int
}

type EvmRPC struct {
	client *rpc.Client
	eth    *ethclient.Client
	logger *logger.Logger
	opts   Options
}

func New(appConfig *config.AppConfig, logger *logger.Logger) (*EvmRPC, error) {
	client, err := rpc.Dial(appConfig.Chain.EVMEndpoint())
	if err != nil {
		return nil, err
	}

	return NewWithClient(client, logger, Options{
		Confirmations: appConfig.Chain.EVMConfirmations,
		PageSize:      appConfig.Chain.PageSize,
		MaxPages:      appConfig.Chain.MaxPages,
	}), nil
}

func NewWithClient(client *rpc.Client, logger *logger.Logger, opts Options) *EvmRPC {
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	return &EvmRPC{
		client: client,
		eth:    ethclient.NewClient(client),
		logger: logger,
		opts:   opts,
	}
}

func (e *EvmRPC) Network() model.Network {
	return model.NetworkEVM
}

func (e *EvmRPC) LatestBlock(ctx context.Context) (uint64, error) {
	n, err := e.eth.BlockNumber(ctx)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// Fetch queries transfers sent from and received by address starting at sinceBlock,
// oldest first, and collapses them to one record per transaction hash.
// When a direction hits the page limit the result stops at the last block that
// direction reached, so the records returned have no gap above sinceBlock.
func (e *EvmRPC) Fetch(ctx context.Context, address string, sinceBlock uint64) ([]model.Transaction, error) {
	if !common.IsHexAddress(address) {
		return nil, chain.Permanent(fmt.Errorf("invalid address %q", address))
	}

	latest, err := e.LatestBlock(ctx)
	if err != nil {
		e.logger.Error("[EvmRPC][Fetch][LatestBlock]", map[string]string{
			"address": address,
			"error":   err.Error(),
		})
		return nil, err
	}

	var (
		transfers []assetTransfer
		ceiling   uint64 = math.MaxUint64
	)
	for _, direction := range []string{"from", "to"} {
		params := assetTransfersParams{
			FromBlock:    hexutil.EncodeUint64(sinceBlock),
			ToBlock:      "latest",
			Category:     transferCategories,
			WithMetadata: true,
			MaxCount:     hexutil.EncodeUint64(uint64(e.opts.PageSize)),
			Order:        "asc",
		}
		if direction == "from" {
			params.FromAddress = address
		} else {
			params.ToAddress = address
		}

		page, truncated, err := e.assetTransfers(ctx, params)
		if err != nil {
			e.logger.Error("[EvmRPC][Fetch][alchemy_getAssetTransfers]", map[string]string{
				"address":   address,
				"direction": direction,
				"error":     err.Error(),
			})
			return nil, err
		}
		if truncated {
			reached := sinceBlock
			if len(page) > 0 {
				if reached, err = blockOf(page[len(page)-1]); err != nil {
					return nil, err
				}
			}
			ceiling = min(ceiling, reached)
		}
		transfers = append(transfers, page...)
	}

	if ceiling != math.MaxUint64 {
		e.logger.Warn("[EvmRPC][Fetch] page limit reached, later blocks are left for the next fetch", map[string]string{
			"address":       address,
			"through_block": fmt.Sprintf("%d", ceiling),
		})
		if transfers, err = upTo(transfers, ceiling); err != nil {
			return nil, err
		}
	}

	txs, err := e.normalize(ctx, transfers, latest)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("[EvmRPC][Fetch] fetched transfers", map[string]string{
		"address":      address,
		"since_block":  fmt.Sprintf("%d", sinceBlock),
		"latest_block": fmt.Sprintf("%d", latest),
		"transfers":    fmt.Sprintf("%d", len(transfers)),
		"transactions": fmt.Sprintf("%d", len(txs)),
	})
	return txs, nil
}

// assetTransfers follows page keys up to MaxPages. truncated reports that a
// page key was still pending when the limit was hit.
func (e *EvmRPC) assetTransfers(ctx context.Context, params assetTransfersParams) ([]assetTransfer, bool, error) {
	var transfers []assetTransfer
	for page := 0; page < e.opts.MaxPages; page++ {
		var result assetTransfersResult
		if err := e.client.CallContext(ctx, &result, "alchemy_getAssetTransfers", params); err != nil {
			return nil, false, classify(err)
		}
		transfers = append(transfers, result.Transfers...)
		if result.PageKey == "" {
			return transfers, false, nil
		}
		params.PageKey = result.PageKey
	}
	return transfers, true, nil
}

func upTo(transfers []assetTransfer, ceiling uint64) ([]assetTransfer, error) {
	kept := make([]assetTransfer, 0, len(transfers))
	for _, t := range transfers {
		blockNumber, err := blockOf(t)
		if err != nil {
			return nil, err
		}
		if blockNumber <= ceiling {
			kept = append(kept, t)
		}
	}
	return kept, nil
}

func blockOf(t assetTransfer) (uint64, error) {
	blockNumber, err := hexutil.DecodeUint64(t.BlockNum)
	if err != nil {
		return 0, chain.Transient(fmt.Errorf("malformed block number %q: %w", t.BlockNum, err))
	}
	return blockNumber, nil
}

func (e *EvmRPC) normalize(ctx context.Context, transfers []assetTransfer, latest uint64) ([]model.Transaction, error) {
	byHash := make(map[string]int)
	values := make(map[string]*big.Int)
	var txs []model.Transaction

	for _, t := range transfers {
		blockNumber, err := blockOf(t)
		if err != nil {
			return nil, err
		}

		value := rawValue(t.RawContract)
		symbol, token, decimals := assetOf(t)
		candidate := model.Transaction{
			Hash:         strings.ToLower(t.Hash),
			Network:      model.NetworkEVM,
			FromAddress:  t.From,
			ToAddress:    deref(t.To),
			Value:        value.String(),
			Asset:        symbol,
			TokenAddress: token,
			Decimals:     decimals,
			BlockNumber:  blockNumber,
			Status:       e.status(blockNumber, latest),
		}

		idx, seen := byHash[candidate.Hash]
		if seen {
			if !replaces(txs[idx], values[candidate.Hash], candidate, value) {
				continue
			}
			candidate.Timestamp = txs[idx].Timestamp
			txs[idx] = candidate
			values[candidate.Hash] = value
			continue
		}

		candidate.Timestamp, err = e.timestamp(ctx, t, blockNumber)
		if err != nil {
			return nil, err
		}
		byHash[candidate.Hash] = len(txs)
		values[candidate.Hash] = value
		txs = append(txs, candidate)
	}

	return txs, nil
}

// replaces decides which transfer stands for a transaction that moved several.
// Amounts are only compared within one asset. Across assets a native transfer
// with value wins, then any transfer with value over a zero-value one.
func replaces(current model.Transaction, currentValue *big.Int, candidate model.Transaction, candidateValue *big.Int) bool {
	if current.TokenAddress == candidate.TokenAddress {
		return candidateValue.Cmp(currentValue) > 0
	}
	currentNative := current.IsNative() && currentValue.Sign() > 0
	candidateNative := candidate.IsNative() && candidateValue.Sign() > 0
	if currentNative != candidateNative {
		return candidateNative
	}
	return currentValue.Sign() == 0 && candidateValue.Sign() > 0
}

// assetOf returns the symbol, token contract and decimals of a transfer.
// External transfers move the native currency and have no contract.
func assetOf(t assetTransfer) (string, string, int) {
	if t.Category == "external" || t.Category == "internal" {
		symbol := deref(t.Asset)
		if symbol == "" {
			symbol = consts.EVMSymbol
		}
		return symbol, "", consts.EVMDecimals
	}

	var decimals int
	if t.RawContract.Decimal != nil {
		// alchemy pads some values, e.g. 0x06
		d, err := strconv.ParseUint(strings.TrimPrefix(*t.RawContract.Decimal, "0x"), 16, 8)
		if err == nil {
			decimals = int(d)
		}
	}
	return deref(t.Asset), strings.ToLower(deref(t.RawContract.Address)), decimals
}

func (e *EvmRPC) status(blockNumber, latest uint64) model.TransactionStatus {
	if latest < blockNumber {
		return model.TransactionStatusPending
	}
	if latest-blockNumber+1 >= e.opts.Confirmations {
		return model.TransactionStatusConfirmed
	}
	return model.TransactionStatusPending
}

// timestamp prefers the transfer metadata and falls back to the block header.
func (e *EvmRPC) timestamp(ctx context.Context, t assetTransfer, blockNumber uint64) (int64, error) {
	if t.Metadata != nil && t.Metadata.BlockTimestamp != "" {
		ts, err := time.Parse(time.RFC3339, t.Metadata.BlockTimestamp)
		if err == nil {
			return ts.Unix(), nil
		}
	}

	header, err := e.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return 0, classify(err)
	}
	return int64(header.Time), nil
}

func rawValue(rc rawContract) *big.Int {
	if rc.Value == nil || *rc.Value == "" || *rc.Value == "0x" {
		return new(big.Int)
	}
	v, err := hexutil.DecodeBig(*rc.Value)
	if err != nil {
		// leading zeros are common in raw values
		v, ok := new(big.Int).SetString(strings.TrimPrefix(*rc.Value, "0x"), 16)
		if !ok {
			return new(big.Int)
		}
		return v
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func classify(err error) error {
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return chain.ClassifyHTTPStatus(httpErr.StatusCode, err)
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return chain.ClassifyJSONRPCCode(rpcErr.ErrorCode(), err)
	}
	return chain.Classify(err)
}
