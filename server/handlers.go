package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	devnet "github.com/branched-services/go-devnet"
	"github.com/branched-services/go-devnet/dump"
	"github.com/branched-services/go-devnet/felt"
)

// addTransactionRequest is the gateway's submission envelope. The type
// field selects which of the remaining fields apply.
type addTransactionRequest struct {
	Type devnet.TxType `json:"type"`

	// DEPLOY fields.
	ContractDefinition *contractDefinitionBody `json:"contract_definition,omitempty"`
	ConstructorCall    []string                `json:"constructor_calldata,omitempty"`
	Salt               string                  `json:"contract_address_salt,omitempty"`

	// INVOKE_FUNCTION fields.
	ContractAddress    string   `json:"contract_address,omitempty"`
	EntryPointSelector string   `json:"entry_point_selector,omitempty"`
	Calldata           []string `json:"calldata,omitempty"`
	Signature          []string `json:"signature,omitempty"`
	MaxFee             string   `json:"max_fee,omitempty"`
}

type contractDefinitionBody struct {
	ABI     json.RawMessage `json:"abi"`
	Program []string        `json:"program"`
}

func (s *Server) addTransaction(c *gin.Context) {
	var req addTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("parsing transaction: %w", err))
		return
	}

	switch req.Type {
	case devnet.TxDeploy:
		s.deploy(c, &req)
	case devnet.TxInvoke:
		s.invoke(c, &req)
	default:
		badRequest(c, fmt.Errorf("unknown transaction type %q", req.Type))
	}
}

func (s *Server) deploy(c *gin.Context, req *addTransactionRequest) {
	if req.ContractDefinition == nil {
		badRequest(c, fmt.Errorf("deploy needs a contract_definition"))
		return
	}
	bytecode, err := felt.ParseSlice(req.ContractDefinition.Program)
	if err != nil {
		badRequest(c, err)
		return
	}
	def, err := devnet.NewContractDefinition(req.ContractDefinition.ABI, bytecode)
	if err != nil {
		badRequest(c, err)
		return
	}
	calldata, err := felt.ParseSlice(req.ConstructorCall)
	if err != nil {
		badRequest(c, err)
		return
	}
	var salt *felt.Felt
	if req.Salt != "" {
		if salt, err = felt.Parse(req.Salt); err != nil {
			badRequest(c, err)
			return
		}
	}

	rec, w, err := s.d.Deploy(c.Request.Context(), def, calldata, salt)
	if err != nil && rec == nil {
		serverError(c, err)
		return
	}
	body := gin.H{
		"code":             "TRANSACTION_RECEIVED",
		"transaction_hash": rec.Hash.Hex(),
	}
	if w != nil {
		body["address"] = w.Address().Hex()
	}
	c.JSON(http.StatusOK, body)
}

// invokeCall parses the shared invoke/call fields of a request.
func (req *addTransactionRequest) invokeCall() (address, selector *felt.Felt, calldata, signature []*felt.Felt, err error) {
	if address, err = felt.Parse(req.ContractAddress); err != nil {
		return
	}
	if selector, err = felt.Parse(req.EntryPointSelector); err != nil {
		return
	}
	if calldata, err = felt.ParseSlice(req.Calldata); err != nil {
		return
	}
	signature, err = felt.ParseSlice(req.Signature)
	return
}

func (s *Server) invoke(c *gin.Context, req *addTransactionRequest) {
	address, selector, calldata, signature, err := req.invokeCall()
	if err != nil {
		badRequest(c, err)
		return
	}
	maxFee := felt.Zero()
	if req.MaxFee != "" {
		if maxFee, err = felt.Parse(req.MaxFee); err != nil {
			badRequest(c, err)
			return
		}
	}

	rec, err := s.d.Invoke(c.Request.Context(), address, selector, calldata,
		devnet.WithMaxFee(maxFee), devnet.WithSignature(signature...))
	if rec == nil {
		// Rejections still produce a record; only pre-ledger failures
		// (unknown contract) land here.
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":             "TRANSACTION_RECEIVED",
		"transaction_hash": rec.Hash.Hex(),
	})
}

type callRequest struct {
	ContractAddress    string   `json:"contract_address"`
	EntryPointSelector string   `json:"entry_point_selector"`
	Calldata           []string `json:"calldata"`
	Signature          []string `json:"signature"`
}

func (s *Server) callContract(c *gin.Context) {
	var req callRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("parsing call: %w", err))
		return
	}
	address, err := felt.Parse(req.ContractAddress)
	if err != nil {
		badRequest(c, err)
		return
	}
	selector, err := felt.Parse(req.EntryPointSelector)
	if err != nil {
		badRequest(c, err)
		return
	}
	calldata, err := felt.ParseSlice(req.Calldata)
	if err != nil {
		badRequest(c, err)
		return
	}

	_, info, err := s.d.Call(c.Request.Context(), address, selector, calldata)
	if err != nil {
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": felt.HexSlice(info.Call.Retdata)})
}

func (s *Server) estimateFee(c *gin.Context) {
	var req callRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("parsing estimate: %w", err))
		return
	}
	address, err := felt.Parse(req.ContractAddress)
	if err != nil {
		badRequest(c, err)
		return
	}
	selector, err := felt.Parse(req.EntryPointSelector)
	if err != nil {
		badRequest(c, err)
		return
	}
	calldata, err := felt.ParseSlice(req.Calldata)
	if err != nil {
		badRequest(c, err)
		return
	}

	fee, err := s.d.EstimateFee(c.Request.Context(), address, selector, calldata)
	if err != nil {
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"amount": fee.Dec(), "unit": "wei"})
}

// txHashParam parses the transactionHash query parameter.
func txHashParam(c *gin.Context) (*felt.Felt, error) {
	raw := c.Query("transactionHash")
	if raw == "" {
		return nil, fmt.Errorf("missing transactionHash parameter")
	}
	return felt.Parse(raw)
}

func (s *Server) getTransactionStatus(c *gin.Context) {
	hash, err := txHashParam(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	body := gin.H{"tx_status": s.d.TransactionStatus(hash)}
	if rec, err := s.d.Transaction(hash); err == nil && rec.FailureReason != "" {
		body["tx_failure_reason"] = rec.FailureReason
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) getTransaction(c *gin.Context) {
	hash, err := txHashParam(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	rec, err := s.d.Transaction(hash)
	if err != nil {
		serverError(c, err)
		return
	}

	tx := gin.H{
		"transaction_hash": rec.Hash.Hex(),
		"type":             rec.Type,
		"contract_address": rec.Contract.Hex(),
		"calldata":         felt.HexSlice(rec.Calldata),
		"max_fee":          rec.MaxFee.Hex(),
	}
	if rec.Selector != nil {
		tx["entry_point_selector"] = rec.Selector.Hex()
	}
	if len(rec.Signature) > 0 {
		tx["signature"] = felt.HexSlice(rec.Signature)
	}
	body := gin.H{
		"status":            rec.Status,
		"transaction":       tx,
		"transaction_index": rec.Index,
	}
	if rec.FailureReason != "" {
		body["transaction_failure_reason"] = gin.H{"error_message": rec.FailureReason}
	}
	c.JSON(http.StatusOK, body)
}

// traceFrame renders one call frame of an execution trace.
func traceFrame(info *devnet.CallInfo) gin.H {
	inner := make([]gin.H, 0, len(info.InnerCalls))
	for _, call := range info.InnerCalls {
		inner = append(inner, traceFrame(call))
	}
	events := make([]gin.H, 0, len(info.Events))
	for _, ev := range info.Events {
		events = append(events, gin.H{
			"from_address": ev.From.Hex(),
			"keys":         felt.HexSlice(ev.Keys),
			"data":         felt.HexSlice(ev.Data),
		})
	}
	return gin.H{
		"contract_address": info.Contract.Hex(),
		"selector":         info.Selector.Hex(),
		"caller_address":   info.Caller.Hex(),
		"calldata":         felt.HexSlice(info.Calldata),
		"result":           felt.HexSlice(info.Retdata),
		"internal_calls":   inner,
		"events":           events,
	}
}

func (s *Server) getTransactionTrace(c *gin.Context) {
	hash, err := txHashParam(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	rec, err := s.d.Transaction(hash)
	if err != nil {
		serverError(c, err)
		return
	}
	if rec.Info == nil {
		serverError(c, fmt.Errorf("transaction %s has no trace", hash.Hex()))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"function_invocation": traceFrame(rec.Info.Call),
		"actual_fee":          rec.Info.ActualFee.Hex(),
		"execution_resources": gin.H{
			"n_steps":          rec.Info.Resources.Steps,
			"n_storage_reads":  rec.Info.Resources.StorageReads,
			"n_storage_writes": rec.Info.Resources.StorageWrites,
			"n_inner_calls":    rec.Info.Resources.InnerCalls,
		},
	})
}

// contractParam parses the contractAddress query parameter and resolves
// the wrapper.
func (s *Server) contractParam(c *gin.Context) (*devnet.ContractWrapper, bool) {
	raw := c.Query("contractAddress")
	if raw == "" {
		badRequest(c, fmt.Errorf("missing contractAddress parameter"))
		return nil, false
	}
	address, err := felt.Parse(raw)
	if err != nil {
		badRequest(c, err)
		return nil, false
	}
	w, err := s.d.Contract(address)
	if err != nil {
		serverError(c, err)
		return nil, false
	}
	return w, true
}

func (s *Server) getCode(c *gin.Context) {
	w, ok := s.contractParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"abi":      json.RawMessage(w.Definition().RawABI()),
		"bytecode": felt.HexSlice(w.Definition().Bytecode()),
	})
}

func (s *Server) getFullContract(c *gin.Context) {
	w, ok := s.contractParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"abi":     json.RawMessage(w.Definition().RawABI()),
		"program": felt.HexSlice(w.Definition().Bytecode()),
	})
}

type pathRequest struct {
	Path string `json:"path"`
}

func (s *Server) dumpState(c *gin.Context) {
	var req pathRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Path == "" {
		badRequest(c, fmt.Errorf("dump needs a path"))
		return
	}
	if err := dump.Save(req.Path, s.d.Dump()); err != nil {
		serverError(c, err)
		return
	}
	s.log.Info("state dumped", zap.String("path", req.Path))
	c.JSON(http.StatusOK, gin.H{"code": "DUMPED"})
}

func (s *Server) loadState(c *gin.Context) {
	var req pathRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Path == "" {
		badRequest(c, fmt.Errorf("load needs a path"))
		return
	}
	image, err := dump.Load(req.Path)
	if err != nil {
		serverError(c, err)
		return
	}
	if err := s.d.Restore(image); err != nil {
		serverError(c, err)
		return
	}
	s.log.Info("state loaded", zap.String("path", req.Path))
	c.JSON(http.StatusOK, gin.H{"code": "LOADED"})
}
