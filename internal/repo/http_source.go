package repo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/utils"
)

// maxPages stops runaway pagination against a misbehaving upstream.
const maxPages = 10000

// HTTPOptions configures an HTTPSource.
type HTTPOptions struct {
	BaseURL      string
	AccountsPath string
	IssuesPath   string
	// ItemsField and TotalField are gjson paths into each page.
	ItemsField string
	TotalField string
	PageSize   int
	APIKey     string
	Timeout    time.Duration
}

// HTTPSource pages through the account and issue record APIs.
type HTTPSource struct {
	opts       HTTPOptions
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPSource constructs a source targeting the configured record API.
func NewHTTPSource(opts HTTPOptions, logger *slog.Logger) *HTTPSource {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ItemsField == "" {
		opts.ItemsField = "items"
	}
	if opts.TotalField == "" {
		opts.TotalField = "total"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 500
	}
	return &HTTPSource{
		opts:    opts,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		logger: logger,
	}
}

// Accounts fetches every account record.
func (s *HTTPSource) Accounts(ctx context.Context) ([]models.RawRecord, error) {
	return s.fetchAll(ctx, s.resolvePath(s.opts.AccountsPath))
}

// Issues fetches every issue record.
func (s *HTTPSource) Issues(ctx context.Context) ([]models.RawRecord, error) {
	return s.fetchAll(ctx, s.resolvePath(s.opts.IssuesPath))
}

func (s *HTTPSource) fetchAll(ctx context.Context, endpoint string) ([]models.RawRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("record client not initialised")
	}
	if endpoint == "" {
		return nil, fmt.Errorf("record API base URL not configured")
	}

	var records []models.RawRecord
	for page, offset := 0, 0; page < maxPages; page++ {
		body, err := s.getJSON(ctx, endpoint, offset)
		if err != nil {
			return nil, err
		}

		items := gjson.GetBytes(body, s.opts.ItemsField)
		paged := items.IsArray()
		if !paged {
			// Unpaginated endpoints return the bare array.
			items = gjson.ParseBytes(body)
		}
		if !items.IsArray() {
			return nil, utils.NewAppError("repo.http", endpoint, fmt.Errorf("response has no %q array", s.opts.ItemsField))
		}
		batch, err := decodeItems(items)
		if err != nil {
			return nil, utils.NewAppError("repo.http", endpoint, err)
		}
		records = append(records, batch...)
		if !paged {
			return records, nil
		}

		offset += len(batch)
		if total := gjson.GetBytes(body, s.opts.TotalField); total.Exists() {
			if int64(offset) >= total.Int() {
				break
			}
		} else if len(batch) < s.opts.PageSize {
			break
		}
		if len(batch) == 0 {
			break
		}
	}
	s.logger.Debug("fetched records", slog.String("endpoint", endpoint), slog.Int("count", len(records)))
	return records, nil
}

func decodeItems(items gjson.Result) ([]models.RawRecord, error) {
	var (
		out []models.RawRecord
		err error
	)
	i := 0
	items.ForEach(func(_, item gjson.Result) bool {
		obj, ok := item.Value().(map[string]any)
		if !ok {
			err = fmt.Errorf("item %d is not an object", i)
			return false
		}
		out = append(out, models.RawRecord(obj))
		i++
		return true
	})
	return out, err
}

func (s *HTTPSource) resolvePath(p string) string {
	if s.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return s.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (s *HTTPSource) getJSON(ctx context.Context, endpoint string, offset int) ([]byte, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, utils.NewAppError("repo.http", "parse endpoint", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(s.opts.PageSize))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.opts.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, utils.NewAppError("repo.http", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, utils.NewAppError("repo.http", endpoint, fmt.Errorf("record API returned %s", resp.Status))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.NewAppError("repo.http", "read response", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, utils.NewAppError("repo.http", endpoint, fmt.Errorf("response is not valid JSON"))
	}
	return body, nil
}
