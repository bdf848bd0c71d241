package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func transferLog(from, to common.Address, value *big.Int) types.Log {
	return types.Log{
		BlockNumber: 1234,
		TxHash:      common.HexToHash("0xdeadbeef"),
		Index:       2,
		Topics: []common.Hash{
			TransferTopic(),
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: common.LeftPadBytes(value.Bytes(), 32),
	}
}

func TestParseTransferLog(t *testing.T) {
	from := common.HexToAddress("0xAAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa")
	to := common.HexToAddress("0xBBbBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbBb")

	event, err := ParseTransferLog("berachain", transferLog(from, to, big.NewInt(500)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if event.Chain != "berachain" {
		t.Fatalf("chain = %q", event.Chain)
	}
	if event.BlockNumber != 1234 || event.LogIndex != 2 {
		t.Fatalf("position mismatch: block=%d index=%d", event.BlockNumber, event.LogIndex)
	}
	if event.From != "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" {
		t.Fatalf("from = %q, want lowercase hex", event.From)
	}
	if event.To != "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb" {
		t.Fatalf("to = %q, want lowercase hex", event.To)
	}
	if event.Value.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("value = %s, want 500", event.Value)
	}
}

func TestParseTransferLogRejectsWrongTopicCount(t *testing.T) {
	log := types.Log{Topics: []common.Hash{TransferTopic()}}
	if _, err := ParseTransferLog("berachain", log); err == nil {
		t.Fatalf("expected error for missing indexed topics")
	}
}

func TestParseTransferLogRejectsWrongEvent(t *testing.T) {
	log := types.Log{
		Topics: []common.Hash{
			common.HexToHash("0x01"),
			common.BytesToHash(common.HexToAddress("0x1").Bytes()),
			common.BytesToHash(common.HexToAddress("0x2").Bytes()),
		},
	}
	if _, err := ParseTransferLog("berachain", log); err == nil {
		t.Fatalf("expected error for non-transfer topic0")
	}
}

func TestLowerHex(t *testing.T) {
	addr := common.HexToAddress("0xAbCdEf0123456789aBcDeF0123456789AbCdEf01")
	if got := LowerHex(addr); got != "0xabcdef0123456789abcdef0123456789abcdef01" {
		t.Fatalf("LowerHex = %q", got)
	}
}
