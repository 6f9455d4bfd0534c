package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"

	devnet "github.com/branched-services/go-devnet"
	"github.com/branched-services/go-devnet/abi"
	"github.com/branched-services/go-devnet/felt"
	"github.com/branched-services/go-devnet/vm"
)

// gatewayURL returns the base URL of the gateway under test, or skips.
// The flow only uses the builtin account class, so any stock devnet
// binary works.
func gatewayURL(t *testing.T) string {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "1" {
		t.Skip("Set INTEGRATION_TEST=1 to run integration tests")
	}
	url := os.Getenv("DEVNET_GATEWAY")
	if url == "" {
		url = "http://127.0.0.1:5050"
	}
	return url
}

func postJSON(t *testing.T, url string, body any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Failed to POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST %s returned %d: %s", url, resp.StatusCode, payload)
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Failed to decode response %q: %v", payload, err)
	}
	return decoded
}

func getJSON(t *testing.T, url string) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Failed to GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s returned %d: %s", url, resp.StatusCode, payload)
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Failed to decode response %q: %v", payload, err)
	}
	return decoded
}

func deployAccount(t *testing.T, base string, publicKey *felt.Felt, salt uint64) string {
	t.Helper()
	def := vm.AccountDefinition()
	body := postJSON(t, base+"/gateway/add_transaction", map[string]any{
		"type": "DEPLOY",
		"contract_definition": map[string]any{
			"abi":     json.RawMessage(def.RawABI()),
			"program": felt.HexSlice(def.Bytecode()),
		},
		"constructor_calldata":  []string{publicKey.Hex()},
		"contract_address_salt": felt.New(salt).Hex(),
	})
	address, ok := body["address"].(string)
	if !ok {
		t.Fatalf("Deploy response missing address: %v", body)
	}
	return address
}

func callOverGateway(t *testing.T, base, address, method string, calldata []*felt.Felt) []string {
	t.Helper()
	body := postJSON(t, base+"/feeder_gateway/call_contract", map[string]any{
		"contract_address":     address,
		"entry_point_selector": abi.SelectorFromName(method).Hex(),
		"calldata":             felt.HexSlice(calldata),
	})
	raw, ok := body["result"].([]any)
	if !ok {
		t.Fatalf("Call response missing result: %v", body)
	}
	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = v.(string)
	}
	return out
}

// TestAccountLifecycle drives a live gateway end to end: deploy two
// accounts, read their views, then submit a multicall from the first
// that reads the second's public key and pays exactly the estimated fee.
func TestAccountLifecycle(t *testing.T) {
	base := gatewayURL(t)

	alive, err := http.Get(base + "/is_alive")
	if err != nil {
		t.Fatalf("Gateway not reachable at %s: %v", base, err)
	}
	alive.Body.Close()
	if alive.StatusCode != http.StatusOK {
		t.Fatalf("is_alive returned %d", alive.StatusCode)
	}

	callerKey := felt.New(0xabc123)
	targetKey := felt.New(0xdef456)
	caller := deployAccount(t, base, callerKey, 77)
	target := deployAccount(t, base, targetKey, 78)

	got := callOverGateway(t, base, caller, "get_public_key", nil)
	if len(got) != 1 || got[0] != callerKey.Hex() {
		t.Errorf("get_public_key returned %v, want [%s]", got, callerKey.Hex())
	}

	nonce := callOverGateway(t, base, caller, "get_nonce", nil)[0]
	execCalldata := devnet.BuildMulticallCalldata([]devnet.AccountCall{
		{To: felt.MustParse(target), Method: "get_public_key"},
	}, felt.MustParse(nonce))

	estimate := postJSON(t, base+"/feeder_gateway/estimate_fee", map[string]any{
		"contract_address":     caller,
		"entry_point_selector": abi.SelectorFromName("execute").Hex(),
		"calldata":             felt.HexSlice(execCalldata),
	})
	amount, ok := estimate["amount"].(string)
	if !ok {
		t.Fatalf("Estimate response missing amount: %v", estimate)
	}

	submitted := postJSON(t, base+"/gateway/add_transaction", map[string]any{
		"type":                 "INVOKE_FUNCTION",
		"contract_address":     caller,
		"entry_point_selector": abi.SelectorFromName("execute").Hex(),
		"calldata":             felt.HexSlice(execCalldata),
		"max_fee":              amount,
	})
	hash, ok := submitted["transaction_hash"].(string)
	if !ok {
		t.Fatalf("Invoke response missing transaction_hash: %v", submitted)
	}

	status := getJSON(t, fmt.Sprintf("%s/feeder_gateway/get_transaction_status?transactionHash=%s", base, hash))
	if status["tx_status"] != "ACCEPTED_ON_L2" {
		t.Fatalf("Transaction status = %v, want ACCEPTED_ON_L2 (reason: %v)",
			status["tx_status"], status["tx_failure_reason"])
	}

	nonceAfter := callOverGateway(t, base, caller, "get_nonce", nil)[0]
	if nonceAfter == nonce {
		t.Errorf("Nonce did not advance past %s", nonce)
	}

	tx := getJSON(t, fmt.Sprintf("%s/feeder_gateway/get_transaction?transactionHash=%s", base, hash))
	if tx["status"] != "ACCEPTED_ON_L2" {
		t.Errorf("get_transaction status = %v, want ACCEPTED_ON_L2", tx["status"])
	}

	trace := getJSON(t, fmt.Sprintf("%s/feeder_gateway/get_transaction_trace?transactionHash=%s", base, hash))
	invocation, ok := trace["function_invocation"].(map[string]any)
	if !ok {
		t.Fatalf("Trace missing function_invocation: %v", trace)
	}
	inner, _ := invocation["internal_calls"].([]any)
	if len(inner) != 1 {
		t.Errorf("Trace has %d internal calls, want 1", len(inner))
	}
}
