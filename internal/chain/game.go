package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"bribeLedger/internal/model"
)

// GameReader issues read-only view calls against the game contract that is
// the source of truth for pools, epochs, and raid losses.
type GameReader struct {
	client  *Client
	address common.Address
}

// NewGameReader binds a reader to the game contract on one chain.
func NewGameReader(client *Client, address common.Address) *GameReader {
	return &GameReader{client: client, address: address}
}

// NumberOfPools returns the total pool count.
func (g *GameReader) NumberOfPools(ctx context.Context) (uint64, error) {
	values, err := g.call(ctx, "getNumberOfPools")
	if err != nil {
		return 0, err
	}
	count, err := asBigInt(values[0])
	if err != nil {
		return 0, fmt.Errorf("getNumberOfPools: %w", err)
	}
	return count.Uint64(), nil
}

// PoolData returns the per-pool metadata for a pool id.
func (g *GameReader) PoolData(ctx context.Context, id uint64) (model.PoolData, error) {
	values, err := g.call(ctx, "getPoolData", new(big.Int).SetUint64(id))
	if err != nil {
		return model.PoolData{}, err
	}
	if len(values) < 4 {
		return model.PoolData{}, fmt.Errorf("getPoolData: expected 4 outputs, got %d", len(values))
	}

	name, ok := values[0].(string)
	if !ok {
		return model.PoolData{}, fmt.Errorf("getPoolData name: unexpected type %T", values[0])
	}
	staked, err := asBigInt(values[1])
	if err != nil {
		return model.PoolData{}, fmt.Errorf("getPoolData stakedVolume: %w", err)
	}
	stakers, err := asBigInt(values[2])
	if err != nil {
		return model.PoolData{}, fmt.Errorf("getPoolData stakerCount: %w", err)
	}
	pooled, err := asBigInt(values[3])
	if err != nil {
		return model.PoolData{}, fmt.Errorf("getPoolData pooledRewards: %w", err)
	}

	return model.PoolData{
		Name:          name,
		StakedVolume:  staked,
		StakerCount:   stakers.Uint64(),
		PooledRewards: pooled,
	}, nil
}

// CurrentEpoch returns the current epoch number.
func (g *GameReader) CurrentEpoch(ctx context.Context) (uint64, error) {
	values, err := g.call(ctx, "getCurrentEpoch")
	if err != nil {
		return 0, err
	}
	epoch, err := asBigInt(values[0])
	if err != nil {
		return 0, fmt.Errorf("getCurrentEpoch: %w", err)
	}
	return epoch.Uint64(), nil
}

// RaidLosses returns the volume a pool lost to raids.
func (g *GameReader) RaidLosses(ctx context.Context, id uint64) (*big.Int, error) {
	values, err := g.call(ctx, "getBudsLostToRaids", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	lost, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("getBudsLostToRaids: %w", err)
	}
	return lost, nil
}

// IsWhitelisted returns the pool eligibility flag.
func (g *GameReader) IsWhitelisted(ctx context.Context, id uint64) (bool, error) {
	values, err := g.call(ctx, "isWhitelistedPoolById", new(big.Int).SetUint64(id))
	if err != nil {
		return false, err
	}
	flag, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("isWhitelistedPoolById: unexpected type %T", values[0])
	}
	return flag, nil
}

func (g *GameReader) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	parsed, err := GameABI()
	if err != nil {
		return nil, fmt.Errorf("parse game abi: %w", err)
	}

	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &g.address, Data: data}
	resp, err := g.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	v, ok := value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected type %T", value)
	}
	return v, nil
}
