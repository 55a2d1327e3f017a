package provision

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ppp/pppctl/internal/assets"
	"github.com/ppp/pppctl/internal/constants"
	appErrors "github.com/ppp/pppctl/internal/errors"
	"github.com/ppp/pppctl/internal/logger"
)

// FunctionSource is where a catalog function's source text comes from:
// either a StaticFile or a Generated payload.
type FunctionSource interface {
	isFunctionSource()
}

// StaticFile is a source file resolved through a SourceLoader.
type StaticFile string

// Generated produces the source text on demand.
type Generated func(ctx context.Context) (string, error)

func (StaticFile) isFunctionSource() {}
func (Generated) isFunctionSource()  {}

// FunctionSpec is one entry of the function catalog.
type FunctionSpec struct {
	Name   string
	Source FunctionSource
}

var staticCatalog = []FunctionSpec{
	{Name: "eval", Source: StaticFile("eval.js")},
	{Name: "aggregate", Source: StaticFile("aggregate.js")},
	{Name: "bulkWrite", Source: StaticFile("bulk-write.js")},
	{Name: "count", Source: StaticFile("count.js")},
	{Name: "deleteMany", Source: StaticFile("delete-many.js")},
	{Name: "deleteOne", Source: StaticFile("delete-one.js")},
	{Name: "distinct", Source: StaticFile("distinct.js")},
	{Name: "find", Source: StaticFile("find.js")},
	{Name: "findOne", Source: StaticFile("find-one.js")},
	{Name: "findOneAndDelete", Source: StaticFile("find-one-and-delete.js")},
	{Name: "findOneAndReplace", Source: StaticFile("find-one-and-replace.js")},
	{Name: "findOneAndUpdate", Source: StaticFile("find-one-and-update.js")},
	{Name: "insertMany", Source: StaticFile("insert-many.js")},
	{Name: "insertOne", Source: StaticFile("insert-one.js")},
	{Name: "updateMany", Source: StaticFile("update-many.js")},
	{Name: "updateOne", Source: StaticFile("update-one.js")},
}

// Catalog returns the ordered function catalog, ending with the generated credentials function.
func Catalog(credentials Generated) []FunctionSpec {
	catalog := make([]FunctionSpec, 0, len(staticCatalog)+1)
	catalog = append(catalog, staticCatalog...)
	return append(catalog, FunctionSpec{Name: constants.CloudCredentialsFunc, Source: credentials})
}

// SourceLoader resolves StaticFile paths.
type SourceLoader interface {
	Load(ctx context.Context, path string) (string, error)
}

// FSLoader reads sources from a file system, by default the embedded catalog.
type FSLoader struct {
	FS fs.FS
}

// EmbeddedSources reads the sources compiled into the binary.
func EmbeddedSources() FSLoader {
	return FSLoader{FS: assets.Functions()}
}

// Load implements SourceLoader.
func (l FSLoader) Load(_ context.Context, path string) (string, error) {
	data, err := fs.ReadFile(l.FS, path)
	if err != nil {
		return "", fmt.Errorf("failed to read function source %s: %w", path, err)
	}
	return string(data), nil
}

// HTTPLoader downloads sources relative to a base URL.
type HTTPLoader struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPLoader creates a loader fetching <baseURL>/<path>.
func NewHTTPLoader(baseURL string, timeout time.Duration, log *slog.Logger) *HTTPLoader {
	return &HTTPLoader{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

// Load implements SourceLoader.
func (l *HTTPLoader) Load(ctx context.Context, path string) (string, error) {
	u := l.baseURL + "/" + strings.TrimLeft(path, "/")
	logger.DeriveRequestLogger(ctx, l.logger).Debug("calling external service", "context", map[string]any{
		"operation": "FunctionSource.Get",
		"url":       u,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(constants.CacheControlHeader, constants.NoCache)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch function source %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read function source %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", appErrors.ErrRemoteCallFailed(resp.StatusCode, "could not fetch function source "+path, string(body))
	}
	return string(body), nil
}

// resolveSource turns any FunctionSource into source text.
func resolveSource(ctx context.Context, loader SourceLoader, src FunctionSource) (string, error) {
	switch s := src.(type) {
	case StaticFile:
		return loader.Load(ctx, string(s))
	case Generated:
		return s(ctx)
	default:
		return "", fmt.Errorf("unsupported function source %T", src)
	}
}
