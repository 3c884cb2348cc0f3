// Package google mirrors the ledger into a Google Sheet, one row per customer
// keyed by the customer ID in column A.
package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	applog "ledger/internal/log"
)

// Options configures New. One of CredentialsJSON or CredentialsFile is required.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *applog.Logger

	// mu serializes row lookups with the writes that depend on them.
	mu           sync.Mutex
	headerLoaded bool
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options, logger *applog.Logger) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	credentialsJSON, err := loadCredentials(opts)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, opts.SpreadsheetID, opts.SheetName, logger), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *applog.Logger) *Client {
	if sheetName == "" {
		sheetName = "Customers"
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.WithComponent(applog.ComponentSheets),
	}
}

func loadCredentials(opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		return []byte(opts.CredentialsJSON), nil
	case opts.CredentialsFile != "":
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// newHTTPClientWithPooling keeps connections to the Sheets API warm between events.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// UpsertCustomer writes row over the existing row with the same ID, or
// appends it after the last used row. It returns the 1-based row number.
func (c *Client) UpsertCustomer(ctx context.Context, row CustomerRow) (int, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDs(ctx)
	if err != nil {
		return 0, err
	}

	if !c.headerLoaded {
		if len(ids) == 0 {
			if err := c.writeRow(ctx, 1, Header()); err != nil {
				return 0, fmt.Errorf("write header: %w", err)
			}
			ids = [][]any{{Header()[0]}}
		}
		c.headerLoaded = true
	}

	n := findRow(ids, row.ID)
	if n == 0 {
		n = len(ids) + 1
	}
	if err := c.writeRow(ctx, n, row.Values()); err != nil {
		return 0, fmt.Errorf("write customer %s: %w", row.ID, err)
	}
	c.logger.DebugContext(ctx, "Customer row written",
		applog.FieldCustomerID, row.ID,
		applog.FieldSheetRow, n)
	return n, nil
}

// DeleteCustomer clears the row holding id. It returns 0 when no row matched.
func (c *Client) DeleteCustomer(ctx context.Context, id string) (int, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDs(ctx)
	if err != nil {
		return 0, err
	}
	n := findRow(ids, id)
	if n == 0 {
		return 0, nil
	}
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rowRange(c.sheetName, n), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("clear row %d in sheet %s: %w", n, c.sheetName, err)
	}
	c.logger.DebugContext(ctx, "Customer row cleared",
		applog.FieldCustomerID, id,
		applog.FieldSheetRow, n)
	return n, nil
}

func (c *Client) readIDs(ctx context.Context) ([][]any, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, a1(c.sheetName, "A:A")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read ids from sheet %s: %w", c.sheetName, err)
	}
	return resp.Values, nil
}

func (c *Client) writeRow(ctx context.Context, n int, values []any) error {
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rowRange(c.sheetName, n), vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}
