package payout

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SwapAPI is a client for the external swap aggregator's HTTP API. It only
// builds transactions; submission goes through a TxSender.
type SwapAPI struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSwapAPI(baseURL, apiKey string) *SwapAPI {
	return &SwapAPI{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{},
	}
}

// SwapTx is an aggregator-built transaction ready for submission.
type SwapTx struct {
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data"`
	Value *hexutil.Big   `json:"value"`
}

// Request converts a SwapTx to a TxRequest.
func (t SwapTx) Request() TxRequest {
	req := TxRequest{To: t.To, Data: t.Data}
	if t.Value != nil {
		req.Value = (*big.Int)(t.Value)
	}
	return req
}

// Allowance returns the aggregator router's current allowance for token
// spent from owner.
func (a *SwapAPI) Allowance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	var resp struct {
		Allowance string `json:"allowance"`
	}
	params := url.Values{}
	params.Set("token", token.Hex())
	params.Set("from", owner.Hex())
	if err := a.get(ctx, "/v1/approve/allowance", params, &resp); err != nil {
		return nil, err
	}

	allowance, ok := new(big.Int).SetString(resp.Allowance, 10)
	if !ok {
		return nil, fmt.Errorf("parse allowance %q", resp.Allowance)
	}
	return allowance, nil
}

// ApproveTx builds an approval transaction for the router to spend amount
// of token.
func (a *SwapAPI) ApproveTx(ctx context.Context, token common.Address, amount *big.Int) (SwapTx, error) {
	var resp struct {
		Tx SwapTx `json:"tx"`
	}
	params := url.Values{}
	params.Set("token", token.Hex())
	params.Set("amount", amount.String())
	if err := a.get(ctx, "/v1/approve", params, &resp); err != nil {
		return SwapTx{}, err
	}
	return resp.Tx, nil
}

// BuildSwapTx builds a swap transaction from tokenIn to tokenOut.
func (a *SwapAPI) BuildSwapTx(ctx context.Context, tokenIn, tokenOut, to common.Address, amount *big.Int, slippage float64) (SwapTx, error) {
	var resp struct {
		Tx SwapTx `json:"tx"`
	}
	params := url.Values{}
	params.Set("tokenIn", tokenIn.Hex())
	params.Set("tokenOut", tokenOut.Hex())
	params.Set("to", to.Hex())
	params.Set("amount", amount.String())
	params.Set("slippage", strconv.FormatFloat(slippage, 'f', -1, 64))
	if err := a.get(ctx, "/v1/swap", params, &resp); err != nil {
		return SwapTx{}, err
	}
	return resp.Tx, nil
}

func (a *SwapAPI) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("swap api %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("swap api %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
