// Package client is the typed facade over the call queue. It shapes API
// bodies, enqueues calls, and waits for their single result. Callers own
// their own timeout via ctx; an unread result is dropped, never leaked.
package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

import (
	"github.com/LauraMoney42/derrite-go/internal/queue"
	"github.com/LauraMoney42/derrite-go/internal/types"
)

// Client submits reports and fetches the report list through the queue.
type Client struct {
	baseURL string
	q       *queue.Queue
	log     *slog.Logger
}

func New(baseURL string, q *queue.Queue, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{baseURL: baseURL, q: q, log: logger}
}

// SubmitReport enqueues a POST /report call and waits for its result.
func (c *Client) SubmitReport(ctx context.Context, req ReportRequest) (*SubmitResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, types.WrapCallError(types.ErrClient, "encode report", err)
	}

	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	call := queue.NewCall(types.KindSubmit, types.Payload{
		Method: http.MethodPost,
		URL:    c.baseURL + "/report",
		Header: hdr,
		Body:   body,
	})

	res, err := c.await(ctx, call)
	if err != nil {
		return nil, err
	}

	var sr SubmitResponse
	if err := json.Unmarshal(res.Body, &sr); err != nil {
		return nil, types.WrapCallError(types.ErrClient, "decode submit response", err)
	}
	return &sr, nil
}

// FetchReports enqueues a GET /reports/all call and returns the report list.
func (c *Client) FetchReports(ctx context.Context) ([]Report, error) {
	call := queue.NewCall(types.KindFetchList, types.Payload{
		Method: http.MethodGet,
		URL:    c.baseURL + "/reports/all",
	})

	res, err := c.await(ctx, call)
	if err != nil {
		return nil, err
	}

	var env reportsEnvelope
	if err := json.Unmarshal(res.Body, &env); err != nil {
		return nil, types.WrapCallError(types.ErrClient, "decode reports response", err)
	}
	if !env.Success {
		return nil, types.NewCallError(types.ErrClient, "server reported failure")
	}
	return env.Reports, nil
}

func (c *Client) await(ctx context.Context, call *queue.Call) (types.Result, error) {
	c.q.Enqueue(call)
	select {
	case <-ctx.Done():
		// The result channel is buffered; the queue resolves it later and
		// the value is simply dropped.
		return types.Result{}, ctx.Err()
	case res := <-call.Result():
		if res.Err != nil {
			return types.Result{}, res.Err
		}
		return res, nil
	}
}
