// Package pingpong reads Ping and Pong events of the PingPong contract
// from a node and resolves who sent each pong.
package pingpong

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ledgerwatch/log/v3"
)

type PingEvent struct {
	TxHash      common.Hash
	BlockNumber uint64
	LogIndex    uint
}

type PongEvent struct {
	TxHash      common.Hash
	PingTxHash  common.Hash
	BlockNumber uint64
	LogIndex    uint
	Sender      common.Address
}

// Transaction is the subset of eth_getTransactionByHash the checker needs.
// BlockNumber is nil while the transaction is pending.
type Transaction struct {
	Hash        common.Hash    `json:"hash"`
	From        common.Address `json:"from"`
	BlockNumber *hexutil.Big   `json:"blockNumber"`
}

// Backend is what Contract needs from a node.
type Backend interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BatchCallContext(ctx context.Context, b []rpc.BatchElem) error
}

// Node is an ethclient sharing its rpc connection for batch calls.
type Node struct {
	*ethclient.Client
	raw *rpc.Client
}

func Dial(ctx context.Context, url string) (*Node, error) {
	raw, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("rpc.Dial: %w", err)
	}
	return &Node{Client: ethclient.NewClient(raw), raw: raw}, nil
}

func (n *Node) BatchCallContext(ctx context.Context, b []rpc.BatchElem) error {
	return n.raw.BatchCallContext(ctx, b)
}

type Contract struct {
	backend   Backend
	address   common.Address
	abi       abi.ABI
	pingRef   abi.Argument
	batchSize int
	logger    log.Logger
}

func NewContract(backend Backend, address common.Address, contractAbi abi.ABI, logger log.Logger, batchSize int) (*Contract, error) {
	pingRef, err := checkEvents(contractAbi)
	if err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	c := &Contract{
		backend:   backend,
		address:   address,
		abi:       contractAbi,
		pingRef:   pingRef,
		batchSize: batchSize,
		logger:    logger,
	}
	logger.Info("Contract attached", "address", address.Hex())
	return c, nil
}

func (c *Contract) filter(ctx context.Context, event string, fromBlock uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{c.abi.Events[event].ID}},
	}
	logs, err := c.backend.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("FilterLogs(%s): %w", event, err)
	}

	live := make([]types.Log, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		live = append(live, lg)
	}
	return live, nil
}

// Pings returns every Ping emitted at or after fromBlock, in node order.
func (c *Contract) Pings(ctx context.Context, fromBlock uint64) ([]PingEvent, error) {
	c.logger.Info("Get all pings", "since block", fromBlock)
	logs, err := c.filter(ctx, PingEventName, fromBlock)
	if err != nil {
		return nil, err
	}

	pings := make([]PingEvent, len(logs))
	for i, lg := range logs {
		pings[i] = PingEvent{TxHash: lg.TxHash, BlockNumber: lg.BlockNumber, LogIndex: lg.Index}
	}
	return pings, nil
}

// Pongs returns every Pong emitted at or after fromBlock whose transaction
// was sent by candidate. Senders are resolved in batches.
func (c *Contract) Pongs(ctx context.Context, fromBlock uint64, candidate common.Address) ([]PongEvent, error) {
	c.logger.Info("Get all pongs", "from", candidate.Hex(), "since block", fromBlock)
	logs, err := c.filter(ctx, PongEventName, fromBlock)
	if err != nil {
		return nil, err
	}

	all := make([]PongEvent, 0, len(logs))
	var txHashes []common.Hash
	seen := make(map[common.Hash]struct{}, len(logs))
	for _, lg := range logs {
		pong, err := c.decodePong(lg)
		if err != nil {
			return nil, err
		}
		all = append(all, pong)
		if _, ok := seen[lg.TxHash]; !ok {
			seen[lg.TxHash] = struct{}{}
			txHashes = append(txHashes, lg.TxHash)
		}
	}

	txs, err := c.Transactions(ctx, txHashes)
	if err != nil {
		return nil, err
	}
	senders := make(map[common.Hash]common.Address, len(txs))
	for i, tx := range txs {
		if tx == nil {
			c.logger.Warn("Pong transaction not found, skipping", "txHash", txHashes[i].Hex())
			continue
		}
		senders[txHashes[i]] = tx.From
	}

	pongs := make([]PongEvent, 0, len(all))
	for _, pong := range all {
		sender, ok := senders[pong.TxHash]
		if !ok || sender != candidate {
			continue
		}
		pong.Sender = sender
		pongs = append(pongs, pong)
	}
	c.logger.Debug("Filtered pongs by sender", "total", len(all), "candidate", len(pongs))
	return pongs, nil
}

func (c *Contract) decodePong(lg types.Log) (PongEvent, error) {
	event := c.abi.Events[PongEventName]
	fields := make(map[string]interface{})

	if len(event.Inputs.NonIndexed()) > 0 {
		if err := c.abi.UnpackIntoMap(fields, PongEventName, lg.Data); err != nil {
			return PongEvent{}, fmt.Errorf("UnpackIntoMap(%s) tx %s: %w", PongEventName, lg.TxHash.Hex(), err)
		}
	}

	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(indexed) > 0 {
		if len(lg.Topics) == 0 {
			return PongEvent{}, fmt.Errorf("pong log in tx %s has no topics", lg.TxHash.Hex())
		}
		if err := abi.ParseTopicsIntoMap(fields, indexed, lg.Topics[1:]); err != nil {
			return PongEvent{}, fmt.Errorf("ParseTopicsIntoMap(%s) tx %s: %w", PongEventName, lg.TxHash.Hex(), err)
		}
	}

	ref, ok := fields[c.pingRef.Name].([32]byte)
	if !ok {
		return PongEvent{}, fmt.Errorf("pong log in tx %s: %q is %T, want [32]byte", lg.TxHash.Hex(), c.pingRef.Name, fields[c.pingRef.Name])
	}
	return PongEvent{
		TxHash:      lg.TxHash,
		PingTxHash:  common.Hash(ref),
		BlockNumber: lg.BlockNumber,
		LogIndex:    lg.Index,
	}, nil
}

// Transaction looks up a single transaction; it returns nil, nil when the
// node does not know the hash.
func (c *Contract) Transaction(ctx context.Context, hash common.Hash) (*Transaction, error) {
	txs, err := c.Transactions(ctx, []common.Hash{hash})
	if err != nil {
		return nil, err
	}
	return txs[0], nil
}

// Transactions looks up hashes in batches of the configured size. The
// result is index-aligned with hashes, unknown hashes map to nil.
func (c *Contract) Transactions(ctx context.Context, hashes []common.Hash) ([]*Transaction, error) {
	txs := make([]*Transaction, len(hashes))
	for start := 0; start < len(hashes); start += c.batchSize {
		end := start + c.batchSize
		if end > len(hashes) {
			end = len(hashes)
		}

		batch := make([]rpc.BatchElem, end-start)
		for i := range batch {
			batch[i] = rpc.BatchElem{
				Method: "eth_getTransactionByHash",
				Args:   []interface{}{hashes[start+i]},
				Result: &txs[start+i],
			}
		}
		if err := c.backend.BatchCallContext(ctx, batch); err != nil {
			return nil, fmt.Errorf("BatchCallContext: %w", err)
		}
		for i, elem := range batch {
			if elem.Error == nil {
				continue
			}
			if errors.Is(elem.Error, rpc.ErrNoResult) {
				txs[start+i] = nil
				continue
			}
			return nil, fmt.Errorf("eth_getTransactionByHash %s: %w", hashes[start+i].Hex(), elem.Error)
		}
	}
	return txs, nil
}
