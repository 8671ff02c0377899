package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/book-library/library/internal/errs"
	"github.com/Astemirdum/book-library/library/internal/model"
	cb "github.com/Astemirdum/book-library/pkg/circuit_breaker"
	"github.com/Astemirdum/book-library/pkg/jsonx"
)

const DefaultURL = "https://www.googleapis.com/books/v1/volumes"

type Config struct {
	URL     string        `envconfig:"METADATA_URL" default:"https://www.googleapis.com/books/v1/volumes"`
	APIKey  string        `envconfig:"METADATA_API_KEY"`
	Timeout time.Duration `envconfig:"METADATA_TIMEOUT" default:"10s"`
	Breaker cb.Config
}

// Service looks books up on the Google Books volumes API.
type Service struct {
	log    *zap.Logger
	client *http.Client
	cfg    Config
	cb     cb.CircuitBreaker
}

func NewService(log *zap.Logger, cfg Config) *Service {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Service{
		log:    log.Named("metadata"),
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		cb:     cb.New(cfg.Breaker),
	}
}

func (s *Service) CB() cb.CircuitBreaker {
	return s.cb
}

type volumesResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title       string   `json:"title"`
			Authors     []string `json:"authors"`
			Description string   `json:"description"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// Lookup returns metadata of the first volume matching isbn.
// errs.ErrLookupNotFound means the provider answered but knows no such book;
// errs.ErrUpstreamUnavailable means the provider could not be asked.
func (s *Service) Lookup(ctx context.Context, isbn string) (model.BookMetadata, error) {
	var (
		meta  model.BookMetadata
		found bool
	)
	err := s.cb.Call(func() error {
		var err error
		meta, found, err = s.fetch(ctx, isbn)
		return err
	})
	if err != nil {
		s.log.Warn("lookup failed", zap.String("isbn", isbn), zap.Stringer("breaker", s.cb.State()), zap.Error(err))
		return model.BookMetadata{}, errors.WithMessage(errs.ErrUpstreamUnavailable, err.Error())
	}
	if !found {
		return model.BookMetadata{}, errs.ErrLookupNotFound
	}
	return meta, nil
}

func (s *Service) fetch(ctx context.Context, isbn string) (model.BookMetadata, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	q := url.Values{"q": []string{"isbn:" + isbn}}
	if s.cfg.APIKey != "" {
		q.Set("key", s.cfg.APIKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return model.BookMetadata{}, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return model.BookMetadata{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return model.BookMetadata{}, false, fmt.Errorf("metadata provider status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.BookMetadata{}, false, err
	}
	var vr volumesResponse
	if err := jsonx.Unmarshal(data, &vr); err != nil {
		return model.BookMetadata{}, false, errors.Wrap(err, "decode volumes")
	}
	if len(vr.Items) == 0 {
		return model.BookMetadata{}, false, nil
	}

	info := vr.Items[0].VolumeInfo
	author := "Unknown"
	if len(info.Authors) > 0 {
		author = strings.Join(info.Authors, ", ")
	}
	return model.BookMetadata{
		Title:       info.Title,
		Author:      author,
		Description: info.Description,
	}, true, nil
}
