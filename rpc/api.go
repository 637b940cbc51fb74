package rpc

import (
	"encoding/json"

	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/common/hexutil"
	"github.com/tos-network/tossig/core/types"
	"github.com/tos-network/tossig/params"
	"github.com/tos-network/tossig/sigreg"
)

// maxRecordPage caps one tossig_batchRecords reply.
const maxRecordPage = 1024

// BatchStatus reports the outcome of a submitted batch.
type BatchStatus struct {
	Hash     common.Hash `json:"hash"`
	Sequence uint64      `json:"sequence"`
	Status   string      `json:"status"`
	Error    string      `json:"error,omitempty"`
}

// AccountResult is the raw view of one ledger account.
type AccountResult struct {
	Owner common.Identity `json:"owner"`
	Data  hexutil.Bytes   `json:"data"`
}

// SignerGroupResult is the decoded view of a signer group account.
type SignerGroupResult struct {
	Account     common.Identity `json:"account"`
	Version     uint8           `json:"version"`
	Owner       common.Identity `json:"owner"`
	Initialized bool            `json:"initialized"`
}

// ValidSignerResult is the decoded view of a valid signer account.
type ValidSignerResult struct {
	Account     common.Identity `json:"account"`
	Version     uint8           `json:"version"`
	Group       common.Identity `json:"group"`
	Address     common.Address  `json:"address"`
	Initialized bool            `json:"initialized"`
}

// BatchRecordResult mirrors types.BatchRecord on the wire. Raw holds the
// full signed batch encoding.
type BatchRecordResult struct {
	Sequence uint64        `json:"sequence"`
	Hash     common.Hash   `json:"hash"`
	Time     uint64        `json:"time"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Raw      hexutil.Bytes `json:"raw"`
}

func statusString(status uint8) string {
	switch status {
	case types.BatchStatusOK:
		return "ok"
	case types.BatchStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func newBatchRecordResult(rec *types.BatchRecord) *BatchRecordResult {
	return &BatchRecordResult{
		Sequence: rec.Sequence,
		Hash:     rec.Hash,
		Time:     rec.Time,
		Status:   statusString(rec.Status),
		Error:    rec.Error,
		Raw:      rec.Raw,
	}
}

// submitBatch decodes a base64 signed batch, executes it and reports the
// outcome. Batches failing admission (malformed or missing signatures) are
// rejected with CodeBatchRejected and leave no record.
func (s *Server) submitBatch(args []json.RawMessage) (interface{}, *JSONError) {
	var encoded []byte
	if jerr := decodeArg(args, 0, &encoded); jerr != nil {
		return nil, jerr
	}
	batch, err := types.DecodeBatch(encoded)
	if err != nil {
		return nil, invalidParams("batch: %v", err)
	}
	rec, err := s.ledger.ExecuteBatch(batch)
	if err != nil {
		return nil, &JSONError{Code: CodeBatchRejected, Message: err.Error()}
	}
	return &BatchStatus{
		Hash:     rec.Hash,
		Sequence: rec.Sequence,
		Status:   statusString(rec.Status),
		Error:    rec.Error,
	}, nil
}

func (s *Server) getAccount(args []json.RawMessage) (interface{}, *JSONError) {
	var id common.Identity
	if jerr := decodeArg(args, 0, &id); jerr != nil {
		return nil, jerr
	}
	acct := s.ledger.Account(id)
	if acct == nil {
		return nil, nil
	}
	return &AccountResult{Owner: acct.Owner, Data: acct.Data}, nil
}

func (s *Server) getSignerGroup(args []json.RawMessage) (interface{}, *JSONError) {
	var id common.Identity
	if jerr := decodeArg(args, 0, &id); jerr != nil {
		return nil, jerr
	}
	acct := s.ledger.Account(id)
	if acct == nil {
		return nil, nil
	}
	if acct.Owner != params.SignerRegistryProgram {
		return nil, &JSONError{Code: CodeInvalidRecord, Message: "not a signer registry account"}
	}
	group, err := sigreg.DecodeSignerGroup(acct.Data)
	if err != nil {
		return nil, &JSONError{Code: CodeInvalidRecord, Message: err.Error()}
	}
	return &SignerGroupResult{
		Account:     id,
		Version:     group.Version,
		Owner:       group.Owner,
		Initialized: group.Initialized(),
	}, nil
}

func (s *Server) getValidSigner(args []json.RawMessage) (interface{}, *JSONError) {
	var id common.Identity
	if jerr := decodeArg(args, 0, &id); jerr != nil {
		return nil, jerr
	}
	acct := s.ledger.Account(id)
	if acct == nil {
		return nil, nil
	}
	if acct.Owner != params.SignerRegistryProgram {
		return nil, &JSONError{Code: CodeInvalidRecord, Message: "not a signer registry account"}
	}
	signer, err := sigreg.DecodeValidSigner(acct.Data)
	if err != nil {
		return nil, &JSONError{Code: CodeInvalidRecord, Message: err.Error()}
	}
	return &ValidSignerResult{
		Account:     id,
		Version:     signer.Version,
		Group:       signer.Group,
		Address:     signer.Address,
		Initialized: signer.Initialized(),
	}, nil
}

// listValidSigners walks every registry-owned account and returns the
// initialized signers enrolled in the given group.
func (s *Server) listValidSigners(args []json.RawMessage) (interface{}, *JSONError) {
	var group common.Identity
	if jerr := decodeArg(args, 0, &group); jerr != nil {
		return nil, jerr
	}
	signers := make([]*ValidSignerResult, 0)
	for _, owned := range s.ledger.AccountsByOwner(params.SignerRegistryProgram) {
		signer, err := sigreg.DecodeValidSigner(owned.Account.Data)
		if err != nil || !signer.Initialized() || signer.Group != group {
			continue
		}
		signers = append(signers, &ValidSignerResult{
			Account:     owned.ID,
			Version:     signer.Version,
			Group:       signer.Group,
			Address:     signer.Address,
			Initialized: true,
		})
	}
	return signers, nil
}

func (s *Server) batchRecords(args []json.RawMessage) (interface{}, *JSONError) {
	var since uint64
	if jerr := decodeArg(args, 0, &since); jerr != nil {
		return nil, jerr
	}
	limit := 0
	if len(args) > 1 {
		if jerr := decodeArg(args, 1, &limit); jerr != nil {
			return nil, jerr
		}
	}
	if limit <= 0 || limit > maxRecordPage {
		limit = maxRecordPage
	}
	records := s.ledger.BatchRecords(since, limit)
	out := make([]*BatchRecordResult, 0, len(records))
	for _, rec := range records {
		out = append(out, newBatchRecordResult(rec))
	}
	return out, nil
}

func (s *Server) headBatch([]json.RawMessage) (interface{}, *JSONError) {
	seq, ok := s.ledger.HeadSequence()
	if !ok {
		return nil, nil
	}
	rec := s.ledger.BatchRecord(seq)
	if rec == nil {
		return nil, nil
	}
	return newBatchRecordResult(rec), nil
}
