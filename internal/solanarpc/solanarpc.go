package solanarpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"github.com/dwarvesf/onchain-tracker/internal/chain"
	"github.com/dwarvesf/onchain-tracker/internal/consts"
	"github.com/dwarvesf/onchain-tracker/internal/model"
	"github.com/dwarvesf/onchain-tracker/internal/utils/config"
	"github.com/dwarvesf/onchain-tracker/internal/utils/logger"
)

type Options struct {
	PageSize int
	MaxPages int
	// ResolveTransfers enables getTransaction lookups for from/to/value.
	ResolveTransfers bool
}

type SolanaRPC struct {
	client *rpc.Client
	logger *logger.Logger
	opts   Options
}

func New(appConfig *config.AppConfig, logger *logger.Logger) *SolanaRPC {
	return NewWithClient(rpc.New(appConfig.Chain.SolanaEndpoint()), logger, Options{
		PageSize:         appConfig.Chain.PageSize,
		MaxPages:         appConfig.Chain.MaxPages,
		ResolveTransfers: true,
	})
}

func NewWithClient(client *rpc.Client, logger *logger.Logger, opts Options) *SolanaRPC {
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	return &SolanaRPC{
		client: client,
		logger: logger,
		opts:   opts,
	}
}

func (s *SolanaRPC) Network() model.Network {
	return model.NetworkNonEVM
}

func (s *SolanaRPC) LatestBlock(ctx context.Context) (uint64, error) {
	slot, err := s.client.GetSlot(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, classify(err)
	}
	return slot, nil
}

// Fetch walks signatures newest first down to sinceBlock and returns the records
// oldest first. When more than PageSize*MaxPages signatures qualify, only the oldest
// are kept so the result has no gap above sinceBlock.
func (s *SolanaRPC) Fetch(ctx context.Context, address string, sinceBlock uint64) ([]model.Transaction, error) {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return nil, chain.Permanent(fmt.Errorf("invalid address %q: %w", address, err))
	}

	sigs, err := s.signatures(ctx, address, sinceBlock)
	if err != nil {
		s.logger.Error("[SolanaRPC][Fetch][getSignaturesForAddress]", map[string]string{
			"address": address,
			"error":   err.Error(),
		})
		return nil, err
	}
	if limit := s.opts.PageSize * s.opts.MaxPages; len(sigs) > limit {
		s.logger.Warn("[SolanaRPC][Fetch][truncated]", map[string]string{
			"address": address,
			"found":   strconv.Itoa(len(sigs)),
			"kept":    strconv.Itoa(limit),
		})
		sigs = sigs[len(sigs)-limit:]
	}

	blockTimes := make(map[uint64]int64)
	txs := make([]model.Transaction, 0, len(sigs))
	for _, sig := range sigs {
		tx := model.Transaction{
			Hash:        sig.Signature,
			Network:     model.NetworkNonEVM,
			FromAddress: address,
			Value:       "0",
			Asset:       consts.NonEVMSymbol,
			Decimals:    consts.NonEVMDecimals,
			BlockNumber: sig.Slot,
			Status:      signatureStatus(sig),
		}
		if sig.BlockTime != nil {
			tx.Timestamp = *sig.BlockTime
		}

		if s.opts.ResolveTransfers && tx.Status != model.TransactionStatusFailed {
			if err := s.resolveTransfer(ctx, address, &tx); err != nil {
				s.logger.Warn("[SolanaRPC][Fetch][resolveTransfer]", map[string]string{
					"signature": sig.Signature,
					"error":     err.Error(),
				})
				if chain.IsTransient(err) {
					return nil, err
				}
			}
		}

		if tx.Timestamp == 0 {
			ts, ok := blockTimes[sig.Slot]
			if !ok {
				if ts, err = s.blockTime(ctx, sig.Slot); err != nil {
					s.logger.Error("[SolanaRPC][Fetch][getBlockTime]", map[string]string{
						"slot":  strconv.FormatUint(sig.Slot, 10),
						"error": err.Error(),
					})
					return nil, err
				}
				blockTimes[sig.Slot] = ts
			}
			tx.Timestamp = ts
		}
		txs = append(txs, tx)
	}

	slices.Reverse(txs)
	return txs, nil
}

// signatures returns signatures newest first. A first run (sinceBlock 0) stops after
// MaxPages; an incremental run pages until it passes sinceBlock.
func (s *SolanaRPC) signatures(ctx context.Context, address string, sinceBlock uint64) ([]signatureInfo, error) {
	var (
		out    []signatureInfo
		before string
	)
	for page := 0; sinceBlock > 0 || page < s.opts.MaxPages; page++ {
		opts := rpc.M{
			"limit":      s.opts.PageSize,
			"commitment": rpc.CommitmentConfirmed,
		}
		if before != "" {
			opts["before"] = before
		}

		var batch []signatureInfo
		if err := s.client.RPCCallForInto(ctx, &batch, "getSignaturesForAddress", []interface{}{address, opts}); err != nil {
			return nil, classify(err)
		}

		for _, sig := range batch {
			if sig.Slot < sinceBlock {
				return out, nil
			}
			out = append(out, sig)
		}
		if len(batch) < s.opts.PageSize || batch[len(batch)-1].Signature == before {
			break
		}
		before = batch[len(batch)-1].Signature
	}
	return out, nil
}

func (s *SolanaRPC) blockTime(ctx context.Context, slot uint64) (int64, error) {
	var ts *int64
	if err := s.client.RPCCallForInto(ctx, &ts, "getBlockTime", []interface{}{slot}); err != nil {
		return 0, classify(err)
	}
	if ts == nil {
		return 0, chain.Transient(fmt.Errorf("no block time for slot %d", slot))
	}
	return *ts, nil
}

func signatureStatus(sig signatureInfo) model.TransactionStatus {
	switch {
	case sig.Err != nil:
		return model.TransactionStatusFailed
	case sig.ConfirmationStatus == string(rpc.ConfirmationStatusFinalized):
		return model.TransactionStatusConfirmed
	default:
		return model.TransactionStatusPending
	}
}

// resolveTransfer derives counterparty and value from the lamport balance change of address.
func (s *SolanaRPC) resolveTransfer(ctx context.Context, address string, tx *model.Transaction) error {
	sig, err := solana.SignatureFromBase58(tx.Hash)
	if err != nil {
		return err
	}

	var parsed *parsedTransaction
	params := []interface{}{sig, rpc.M{
		"encoding":                       solana.EncodingJSONParsed,
		"commitment":                     rpc.CommitmentConfirmed,
		"maxSupportedTransactionVersion": 0,
	}}
	if err := s.client.RPCCallForInto(ctx, &parsed, "getTransaction", params); err != nil {
		return classify(err)
	}
	if parsed == nil || parsed.Meta == nil {
		return rpc.ErrNotFound
	}
	if tx.Timestamp == 0 && parsed.BlockTime != nil {
		tx.Timestamp = *parsed.BlockTime
	}

	from, to, value, ok := transferFromBalances(address, parsed)
	if !ok {
		return fmt.Errorf("address %s not found in transaction accounts", address)
	}
	tx.FromAddress, tx.ToAddress, tx.Value = from, to, value.String()
	return nil
}

func transferFromBalances(address string, parsed *parsedTransaction) (string, string, *big.Int, bool) {
	keys := parsed.Transaction.Message.AccountKeys
	meta := parsed.Meta
	if len(keys) == 0 || len(meta.PreBalances) != len(keys) || len(meta.PostBalances) != len(keys) {
		return "", "", nil, false
	}

	deltas := make([]*big.Int, len(keys))
	watchedIdx := -1
	for i := range keys {
		deltas[i] = new(big.Int).Sub(
			new(big.Int).SetUint64(meta.PostBalances[i]),
			new(big.Int).SetUint64(meta.PreBalances[i]),
		)
		if keys[i].Pubkey == address {
			watchedIdx = i
		}
	}
	if watchedIdx < 0 {
		return "", "", nil, false
	}

	feePayer := keys[0].Pubkey
	delta := deltas[watchedIdx]

	switch delta.Sign() {
	case -1:
		value := new(big.Int).Neg(delta)
		if watchedIdx == 0 {
			value.Sub(value, new(big.Int).SetUint64(meta.Fee))
		}
		if value.Sign() < 0 {
			value.SetInt64(0)
		}
		return address, counterparty(keys, deltas, watchedIdx, 1, ""), value, true
	case 1:
		return counterparty(keys, deltas, watchedIdx, -1, feePayer), address, delta, true
	default:
		return feePayer, address, new(big.Int), true
	}
}

// counterparty picks the account whose balance moved furthest in direction sign.
func counterparty(keys []accountKey, deltas []*big.Int, skip, sign int, fallback string) string {
	best := fallback
	var bestDelta *big.Int
	for i, d := range deltas {
		if i == skip || d.Sign() != sign {
			continue
		}
		abs := new(big.Int).Abs(d)
		if bestDelta == nil || abs.Cmp(bestDelta) > 0 {
			best, bestDelta = keys[i].Pubkey, abs
		}
	}
	return best
}

func classify(err error) error {
	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) {
		return chain.ClassifyHTTPStatus(httpErr.Code, err)
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return chain.ClassifyJSONRPCCode(rpcErr.Code, err)
	}
	return chain.Classify(err)
}
