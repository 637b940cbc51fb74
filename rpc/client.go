package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/core/types"
)

// ClientOption tweaks a Client at construction.
type ClientOption func(*Client)

// WithHTTPClient substitutes the transport used for calls.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// Client talks to a Server. The typed wrappers cover the whole tossig_
// namespace; CallContext is the escape hatch underneath them.
type Client struct {
	endpoint string
	http     *http.Client
	auth     func(http.Header) error
	lastID   uint64
}

// NewClient connects to the JSON-RPC endpoint at endpoint (http or https).
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{endpoint: endpoint, http: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CallContext performs a JSON-RPC call with positional args, decoding the
// result into result when non-nil. Server-side errors come back as
// *JSONError.
func (c *Client) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if args == nil {
		args = []interface{}{}
	}
	params, err := json.Marshal(args)
	if err != nil {
		return err
	}
	id := strconv.AppendUint(nil, atomic.AddUint64(&c.lastID, 1), 10)
	body, err := json.Marshal(&jsonrpcMessage{Version: vsn, ID: id, Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.auth != nil {
		if err := c.auth(req.Header); err != nil {
			return err
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("rpc: %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	var msg jsonrpcMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return err
	}
	if msg.Error != nil {
		return msg.Error
	}
	if result == nil || len(msg.Result) == 0 {
		return nil
	}
	return json.Unmarshal(msg.Result, result)
}

// SubmitBatch submits a signed batch for execution and returns its recorded
// outcome. A non-nil error means the batch was turned away unrecorded.
func (c *Client) SubmitBatch(ctx context.Context, batch *types.Batch) (*BatchStatus, error) {
	var status BatchStatus
	if err := c.CallContext(ctx, &status, "tossig_submitBatch", batch.EncodeBinary()); err != nil {
		return nil, err
	}
	return &status, nil
}

// Account fetches the raw account under id, or nil when absent.
func (c *Client) Account(ctx context.Context, id common.Identity) (*AccountResult, error) {
	var account *AccountResult
	err := c.CallContext(ctx, &account, "tossig_getAccount", id)
	return account, err
}

// SignerGroup fetches the decoded signer group record under id, or nil when
// the account is absent.
func (c *Client) SignerGroup(ctx context.Context, id common.Identity) (*SignerGroupResult, error) {
	var group *SignerGroupResult
	err := c.CallContext(ctx, &group, "tossig_getSignerGroup", id)
	return group, err
}

// ValidSigner fetches the decoded valid signer record under id, or nil when
// the account is absent.
func (c *Client) ValidSigner(ctx context.Context, id common.Identity) (*ValidSignerResult, error) {
	var signer *ValidSignerResult
	err := c.CallContext(ctx, &signer, "tossig_getValidSigner", id)
	return signer, err
}

// ValidSigners lists the initialized signers enrolled in group.
func (c *Client) ValidSigners(ctx context.Context, group common.Identity) ([]*ValidSignerResult, error) {
	var signers []*ValidSignerResult
	err := c.CallContext(ctx, &signers, "tossig_listValidSigners", group)
	return signers, err
}

// BatchRecords pages through execution records starting at sequence since
// (0 means from the beginning). The server caps the page size.
func (c *Client) BatchRecords(ctx context.Context, since uint64, limit int) ([]*BatchRecordResult, error) {
	var records []*BatchRecordResult
	err := c.CallContext(ctx, &records, "tossig_batchRecords", since, limit)
	return records, err
}

// HeadBatch fetches the most recent execution record, or nil on a fresh
// ledger.
func (c *Client) HeadBatch(ctx context.Context) (*BatchRecordResult, error) {
	var record *BatchRecordResult
	err := c.CallContext(ctx, &record, "tossig_headBatch")
	return record, err
}

// RecordSubscription is a live feed of batch records over a websocket.
type RecordSubscription struct {
	conn    *websocket.Conn
	records chan *BatchRecordResult
	errc    chan error
	quit    chan struct{}
	once    sync.Once
}

// SubscribeBatchRecords opens the websocket feed. The records channel closes
// after a transport failure or Unsubscribe; a failure is reported on Err.
func (c *Client) SubscribeBatchRecords(ctx context.Context) (*RecordSubscription, error) {
	endpoint, err := wsEndpoint(c.endpoint)
	if err != nil {
		return nil, err
	}
	header := make(http.Header)
	if c.auth != nil {
		if err := c.auth(header); err != nil {
			return nil, err
		}
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, err
	}
	sub := &RecordSubscription{
		conn:    conn,
		records: make(chan *BatchRecordResult, recordSendBuffer),
		errc:    make(chan error, 1),
		quit:    make(chan struct{}),
	}
	go sub.read()
	return sub, nil
}

// Records returns the feed channel.
func (sub *RecordSubscription) Records() <-chan *BatchRecordResult { return sub.records }

// Err reports the terminal transport error, if any.
func (sub *RecordSubscription) Err() <-chan error { return sub.errc }

// Unsubscribe tears the feed down. Safe to call more than once.
func (sub *RecordSubscription) Unsubscribe() {
	sub.once.Do(func() {
		close(sub.quit)
		sub.conn.Close()
	})
}

func (sub *RecordSubscription) read() {
	defer close(sub.records)
	for {
		rec := new(BatchRecordResult)
		if err := sub.conn.ReadJSON(rec); err != nil {
			select {
			case <-sub.quit:
			default:
				sub.errc <- err
			}
			return
		}
		select {
		case sub.records <- rec:
		case <-sub.quit:
			return
		}
	}
}

func wsEndpoint(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("rpc: endpoint scheme %q not supported", u.Scheme)
	}
	u.Path = "/ws"
	return u.String(), nil
}
