package reconcile

import (
	"fmt"
	"math/big"

	"bribeLedger/internal/model"
)

// attribute builds the per-sender totals for a window of transfer events.
// A sender with several transfers in the window gets the sum of all of them;
// duplicate (tx hash, log index) pairs are counted once.
func attribute(events []model.TransferEvent) map[string]*big.Int {
	totals := make(map[string]*big.Int)
	seen := make(map[string]struct{}, len(events))

	for _, event := range events {
		id := fmt.Sprintf("%s:%d", event.TxHash, event.LogIndex)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		if event.Value == nil || event.Value.Sign() <= 0 {
			continue
		}

		total, ok := totals[event.From]
		if !ok {
			total = new(big.Int)
			totals[event.From] = total
		}
		total.Add(total, event.Value)
	}

	return totals
}
