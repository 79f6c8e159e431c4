package apiclient

// customers.go exposes the customer endpoint operations. Batch creation is
// strictly sequential and preserves input order so outcome index i always
// corresponds to input record i.

import (
	"context"
	"net/url"
	"strconv"

	"github.com/meridianhq/custflow/internal/transform"
)

// BatchItem correlates one submitted record with its outcome.
type BatchItem struct {
	Index   int              `json:"customer_index"`
	Record  transform.Record `json:"customer_data"`
	Outcome Outcome          `json:"outcome"`
}

// BatchSummary aggregates one batch submission.
type BatchSummary struct {
	Total           int               `json:"total_customers"`
	SuccessfulCount int               `json:"successful_count"`
	FailedCount     int               `json:"failed_count"`
	ErrorsByKind    map[ErrorKind]int `json:"api_errors"`
}

// BatchResult is the outcome of submitting one batch of records.
type BatchResult struct {
	Successes []BatchItem  `json:"successful_creations"`
	Failures  []BatchItem  `json:"failed_creations"`
	Summary   BatchSummary `json:"summary"`
}

// Create creates a single customer.
func (c *Client) Create(ctx context.Context, record transform.Record) Outcome {
	return c.do(ctx, "POST", "/customers", record, nil)
}

// CreateBatch creates customers one at a time with individual error
// handling. A failed record never aborts the batch.
func (c *Client) CreateBatch(ctx context.Context, records []transform.Record) BatchResult {
	result := BatchResult{
		Summary: BatchSummary{
			Total:        len(records),
			ErrorsByKind: make(map[ErrorKind]int),
		},
	}

	for i, record := range records {
		outcome := c.Create(ctx, record)
		item := BatchItem{Index: i, Record: record, Outcome: outcome}

		if outcome.Success {
			result.Successes = append(result.Successes, item)
			result.Summary.SuccessfulCount++
			continue
		}

		kind := outcome.Kind
		if kind == "" {
			kind = KindUnknown
		}
		result.Summary.ErrorsByKind[kind]++
		result.Failures = append(result.Failures, item)
		result.Summary.FailedCount++
	}

	return result
}

// Get fetches a customer by ID.
func (c *Client) Get(ctx context.Context, customerID string) Outcome {
	return c.do(ctx, "GET", "/customers/"+url.PathEscape(customerID), nil, nil)
}

// List fetches customers with pagination.
func (c *Client) List(ctx context.Context, limit, page int) Outcome {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("page", strconv.Itoa(page))
	return c.do(ctx, "GET", "/customers", nil, params)
}

// Update replaces a customer.
func (c *Client) Update(ctx context.Context, customerID string, record transform.Record) Outcome {
	return c.do(ctx, "PUT", "/customers/"+url.PathEscape(customerID), record, nil)
}

// Delete removes a customer.
func (c *Client) Delete(ctx context.Context, customerID string) Outcome {
	return c.do(ctx, "DELETE", "/customers/"+url.PathEscape(customerID), nil, nil)
}
