package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	applog "travelbook/internal/log"
	ports "travelbook/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultCacheValidDuration = 2 * time.Minute

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID   string
	SheetName       string // base name; the current year is prefixed
	CredentialsJSON string
	CredentialsFile string
	// Year overrides the year used for the sheet name; zero means the current year.
	Year int
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	expensesSheet string

	// Column A (expense ids) is cached so consecutive writes do not reread it.
	mu                 sync.Mutex
	cachedIDs          []string
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
	sheetID            *int64
}

// Ensure interface conformance
var _ ports.Mirror = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
// Extra options are passed to the Sheets service.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	if len(opts) == 0 {
		credentials, err := readCredentials(ctx, cfg.CredentialsJSON, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(credentials),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = "Expenses"
	}
	year := cfg.Year
	if year == 0 {
		year = time.Now().Year()
	}

	applog.For(ctx, applog.ComponentSheets).InfoContext(ctx, "Google Sheets client created",
		"sheet", yearPrefixedName(base, year))

	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		expensesSheet:      yearPrefixedName(base, year),
		cacheValidDuration: defaultCacheValidDuration,
	}, nil
}

// readCredentials prefers inline JSON, then the file, then GOOGLE_APPLICATION_CREDENTIALS.
func readCredentials(ctx context.Context, inline, file string) ([]byte, error) {
	inline = strings.TrimSpace(inline)
	file = strings.TrimSpace(file)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		applog.For(ctx, applog.ComponentSheets).DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		applog.For(ctx, applog.ComponentSheets).DebugContext(ctx, "Read service account credentials", "path", file, "size", len(data))
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// SheetName returns the name of the sheet rows are written to.
func (c *Client) SheetName() string {
	return c.expensesSheet
}

// InvalidateRowCache forces the next operation to reread column A.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheExpiresAt = time.Time{}
}

// ids returns column A, from cache when still valid.
func (c *Client) ids(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	if time.Now().Before(c.cacheExpiresAt) {
		ids := append([]string(nil), c.cachedIDs...)
		c.mu.Unlock()
		return ids, nil
	}
	c.mu.Unlock()

	rng := fmt.Sprintf("%s!A:A", c.expensesSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	ids := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) > 0 {
			ids[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}

	c.mu.Lock()
	c.cachedIDs = ids
	c.cachedRowCount = len(ids)
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()

	return append([]string(nil), ids...), nil
}

// Append writes row, overwriting the row that already holds the same expense
// id or appending after the last used row.
func (c *Client) Append(ctx context.Context, row ports.ExpenseRow) (string, error) {
	if row.ExpenseID <= 0 {
		return "", fmt.Errorf("invalid expense id %d", row.ExpenseID)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	ids, err := c.ids(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get sheet dimensions for %s: %w", c.expensesSheet, err)
	}

	target := indexOf(ids, strconv.FormatInt(row.ExpenseID, 10)) + 1
	appended := target == 0
	if appended {
		target = len(ids) + 1
	}

	rng := fmt.Sprintf("%s!A%d:H%d", c.expensesSheet, target, target)
	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		c.InvalidateRowCache()
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}

	if appended {
		c.mu.Lock()
		if len(c.cachedIDs) == target-1 {
			c.cachedIDs = append(c.cachedIDs, strconv.FormatInt(row.ExpenseID, 10))
			c.cachedRowCount = len(c.cachedIDs)
		} else {
			c.cacheExpiresAt = time.Time{}
		}
		c.mu.Unlock()
	}

	applog.For(ctx, applog.ComponentSheets).DebugContext(ctx, "Expense row written",
		applog.FieldExpenseID, row.ExpenseID,
		"range", rng,
		"appended", appended)

	return rng, nil
}

// DeleteExpense removes the row holding expenseID. A missing row is not an error.
func (c *Client) DeleteExpense(ctx context.Context, expenseID int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	c.InvalidateRowCache()
	ids, err := c.ids(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(ids, strconv.FormatInt(expenseID, 10))
	if idx < 0 {
		applog.For(ctx, applog.ComponentSheets).DebugContext(ctx, "Expense row already absent", applog.FieldExpenseID, expenseID)
		return nil
	}

	sheetID, err := c.lookupSheetID(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(idx),
					EndIndex:   int64(idx + 1),
					// Zero is a valid sheet id and row index.
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	c.InvalidateRowCache()
	if err != nil {
		return fmt.Errorf("delete row %d of %s: %w", idx+1, c.expensesSheet, err)
	}

	applog.For(ctx, applog.ComponentSheets).DebugContext(ctx, "Expense row deleted", applog.FieldExpenseID, expenseID, "row", idx+1)
	return nil
}

func (c *Client) lookupSheetID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	if c.sheetID != nil {
		id := *c.sheetID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	for _, s := range resp.Sheets {
		if s.Properties != nil && s.Properties.Title == c.expensesSheet {
			id := s.Properties.SheetId
			c.mu.Lock()
			c.sheetID = &id
			c.mu.Unlock()
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.expensesSheet)
}

// ListRows reads every row of the expenses sheet that parses as an expense.
func (c *Client) ListRows(ctx context.Context) ([]ports.ExpenseRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:H", c.expensesSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseExpenseRows(resp.Values), nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.TrimSpace(v) == target {
			return i
		}
	}
	return -1
}
