package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"wuuf-analytics/internal/config"
	apperrors "wuuf-analytics/internal/errors"
	"wuuf-analytics/internal/models"
)

const defaultSheetsBaseURL = "https://sheets.googleapis.com"

var sheetsScopes = []string{
	"https://www.googleapis.com/auth/spreadsheets.readonly",
	"https://www.googleapis.com/auth/drive.readonly",
}

// SheetsLoader reads worksheets through the Google Sheets v4 REST API.
type SheetsLoader struct {
	spreadsheetID string
	client        *http.Client
	baseURL       string
}

type SheetsOption func(*SheetsLoader)

func WithBaseURL(base string) SheetsOption {
	return func(l *SheetsLoader) {
		if base != "" {
			l.baseURL = strings.TrimRight(base, "/")
		}
	}
}

func NewSheetsLoader(spreadsheetID string, client *http.Client, opts ...SheetsOption) *SheetsLoader {
	if client == nil {
		client = http.DefaultClient
	}
	l := &SheetsLoader{
		spreadsheetID: spreadsheetID,
		client:        client,
		baseURL:       defaultSheetsBaseURL,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewSheetsHTTPClient authenticates with the service account from
// cfg.CredentialsJSON, falling back to cfg.CredentialsFile.
func NewSheetsHTTPClient(ctx context.Context, cfg config.SourceConfig) (*http.Client, error) {
	raw := []byte(cfg.CredentialsJSON)
	if len(raw) == 0 {
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("%w: service account credentials file not found: %v",
				apperrors.ErrSourceUnavailable, err)
		}
		raw = b
	}

	jwtConfig, err := google.JWTConfigFromJSON(raw, sheetsScopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid service account credentials format: %v",
			apperrors.ErrMalformedCredential, err)
	}

	return &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: &oauth2.Transport{
			Source: jwtConfig.TokenSource(ctx),
			Base:   http.DefaultTransport,
		},
	}, nil
}

type valueRange struct {
	Range  string  `json:"range"`
	Values [][]any `json:"values"`
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

type spreadsheetMeta struct {
	Sheets []struct {
		Properties struct {
			Title string `json:"title"`
		} `json:"properties"`
	} `json:"sheets"`
}

func (l *SheetsLoader) LoadTable(ctx context.Context, name string) (*models.RawTable, error) {
	q := url.Values{}
	q.Set("valueRenderOption", "UNFORMATTED_VALUE")
	q.Set("dateTimeRenderOption", "SERIAL_NUMBER")
	q.Set("majorDimension", "ROWS")
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?%s",
		l.baseURL, url.PathEscape(l.spreadsheetID), url.PathEscape("'"+name+"'"), q.Encode())

	resp, err := l.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := readAPIError(resp.Body)
		if resp.StatusCode == http.StatusBadRequest && strings.Contains(apiErr, "Unable to parse range") {
			return nil, &apperrors.TableNotFoundError{Table: name, Available: l.sheetTitles(ctx)}
		}
		return nil, l.statusError(resp.StatusCode, apiErr)
	}

	var payload valueRange
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s values: %w", name, err)
	}

	return StripIncomplete(tableFromValues(name, payload.Values)), nil
}

// SheetTitles lists the worksheet names of the spreadsheet.
func (l *SheetsLoader) SheetTitles(ctx context.Context) ([]string, error) {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s?fields=%s",
		l.baseURL, url.PathEscape(l.spreadsheetID), url.QueryEscape("sheets.properties.title"))

	resp, err := l.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, l.statusError(resp.StatusCode, readAPIError(resp.Body))
	}

	var meta spreadsheetMeta
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode spreadsheet metadata: %w", err)
	}

	titles := make([]string, 0, len(meta.Sheets))
	for _, s := range meta.Sheets {
		titles = append(titles, s.Properties.Title)
	}
	return titles, nil
}

func (l *SheetsLoader) sheetTitles(ctx context.Context) []string {
	titles, err := l.SheetTitles(ctx)
	if err != nil {
		return nil
	}
	return titles
}

func (l *SheetsLoader) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to reach Google Sheets: %v", apperrors.ErrSourceUnavailable, err)
	}
	return resp, nil
}

func (l *SheetsLoader) statusError(status int, apiErr string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: Google Sheets API error: %s. Check if the sheet is shared with the service account",
			apperrors.ErrSourceUnavailable, apiErr)
	case http.StatusNotFound:
		return fmt.Errorf("%w: spreadsheet not found with ID: %s", apperrors.ErrSourceUnavailable, l.spreadsheetID)
	default:
		return fmt.Errorf("%w: Google Sheets API error (HTTP %d): %s", apperrors.ErrSourceUnavailable, status, apiErr)
	}
}

func readAPIError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return err.Error()
	}
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// tableFromValues turns a header-first value grid into a raw table. Trailing
// blank cells are omitted by the API, so short rows are padded with nil.
func tableFromValues(name string, values [][]any) *models.RawTable {
	table := &models.RawTable{Name: name}
	if len(values) == 0 {
		return table
	}

	header := make([]string, len(values[0]))
	for i, cell := range values[0] {
		header[i] = strings.TrimSpace(FormatCell(cell))
	}
	table.Columns = header

	for _, record := range values[1:] {
		row := make(models.RawRow, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			var cell any
			if i < len(record) {
				cell = record[i]
			}
			if models.IsBlank(cell) {
				cell = nil
			}
			row[col] = cell
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}
