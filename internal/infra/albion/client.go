package albion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marketwatch/internal/domain"
	"marketwatch/internal/infra"

	"github.com/go-resty/resty/v2"
)

// Albion Online Data Project constants
const (
	// ChunkSize is the number of identifiers batched into one price request.
	ChunkSize = 64

	DefaultTimeout = 5 * time.Second

	pricesPath = "/api/v2/stats/prices/"
	goldPath   = "/api/v2/stats/gold"
)

// Client is the price feed REST client. It holds no mutable state besides the
// underlying HTTP client and is safe for concurrent use. It never retries.
type Client struct {
	baseURL string // may contain %s for the region prefix
	http    *resty.Client
	logger  *slog.Logger
}

// NewClient creates a feed client from the application config.
func NewClient(cfg *infra.Config) *Client {
	return NewClientWithOptions(cfg.Feed.BaseURL, cfg.FeedTimeout(), cfg.Feed.UserAgent)
}

// NewClientWithOptions creates a client with explicit settings.
func NewClientWithOptions(baseURL string, timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = infra.DefaultUserAgent
	}

	http := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http,
		logger:  slog.Default().With("module", "albion_client"),
	}
}

func (c *Client) hostFor(region domain.Region) string {
	if strings.Contains(c.baseURL, "%s") {
		return fmt.Sprintf(c.baseURL, region.FeedPrefix())
	}
	return c.baseURL
}

// FetchPrices returns the price records of itemIDs at the given quality.
// An empty cities list asks the feed for every city.
func (c *Client) FetchPrices(ctx context.Context, region domain.Region, itemIDs []string, quality domain.Quality, cities []domain.City) ([]domain.PriceRecord, error) {
	if !region.Valid() {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidRegion, region)
	}
	if len(itemIDs) == 0 {
		return nil, errors.New("fetch prices: no item identifiers")
	}
	if !quality.Valid() {
		quality = domain.QualityNormal
	}

	escaped := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		escaped[i] = url.PathEscape(id)
	}

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("qualities", strconv.Itoa(int(quality)))
	if len(cities) > 0 {
		names := make([]string, len(cities))
		for i, city := range cities {
			names[i] = string(city)
		}
		req.SetQueryParam("locations", strings.Join(names, ","))
	}

	body, err := c.get(req, region, "prices", c.hostFor(region)+pricesPath+strings.Join(escaped, ",")+".json")
	if err != nil {
		return nil, err
	}

	var records []domain.PriceRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, &domain.FetchError{Op: "prices", Region: region, Reason: domain.FetchTransport, Err: fmt.Errorf("decode: %w", err)}
	}
	return records, nil
}

// FetchGold returns the latest count gold price samples.
func (c *Client) FetchGold(ctx context.Context, region domain.Region, count int) ([]domain.GoldRecord, error) {
	if !region.Valid() {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidRegion, region)
	}
	if count <= 0 {
		count = 3
	}

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("count", strconv.Itoa(count))

	body, err := c.get(req, region, "gold", c.hostFor(region)+goldPath)
	if err != nil {
		return nil, err
	}

	var records []domain.GoldRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, &domain.FetchError{Op: "gold", Region: region, Reason: domain.FetchTransport, Err: fmt.Errorf("decode: %w", err)}
	}
	return records, nil
}

// get performs the call and maps every failure onto a FetchError.
func (c *Client) get(req *resty.Request, region domain.Region, op, reqURL string) ([]byte, error) {
	resp, err := req.Get(reqURL)
	if err != nil {
		reason := domain.FetchTransport
		if isTimeout(err) {
			reason = domain.FetchTimeout
		}
		c.logger.Error("Feed request failed",
			slog.String("op", op),
			slog.String("region", region.String()),
			slog.String("reason", reason.String()),
			slog.Any("error", err))
		return nil, &domain.FetchError{Op: op, Region: region, Reason: reason, Err: err}
	}

	if !resp.IsSuccess() {
		c.logger.Error("Feed returned bad status",
			slog.String("op", op),
			slog.String("region", region.String()),
			slog.Int("status", resp.StatusCode()))
		return nil, &domain.FetchError{Op: op, Region: region, Reason: domain.FetchBadStatus, StatusCode: resp.StatusCode()}
	}

	return resp.Body(), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Chunk splits ids into consecutive batches of at most size identifiers.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = ChunkSize
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
