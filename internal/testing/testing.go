// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/tiagowl/ImgMigrator/internal/models"
	"golang.org/x/oauth2"
)

// MockSource is an in-memory [services.Source].
//
// Items are served in order; Data holds payloads keyed by source ID. Errors keyed by ID fail
// individual downloads.
type MockSource struct {
	mu sync.Mutex

	Items        []models.TransferItem
	Data         map[string][]byte
	Metadata     map[string]*models.TransferItem
	Count        int
	Invalid      bool
	ListErr      error
	DownloadErrs map[string]error

	// OnDownload runs before each download with the number of downloads so far.
	OnDownload func(n int)

	Token     *oauth2.Token
	Downloads []string
	Lists     int
}

func (m *MockSource) Name() string { return "mock source" }

func (m *MockSource) Authenticate(ctx context.Context, token *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Token = token
	return nil
}

func (m *MockSource) VerifyCredentials(ctx context.Context) bool { return !m.Invalid }

func (m *MockSource) CountItems(ctx context.Context) int { return m.Count }

func (m *MockSource) ListItems(ctx context.Context, limit, offset int) ([]models.TransferItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lists++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	if offset >= len(m.Items) {
		return []models.TransferItem{}, nil
	}
	end := min(offset+limit, len(m.Items))
	return append([]models.TransferItem(nil), m.Items[offset:end]...), nil
}

func (m *MockSource) GetMetadata(ctx context.Context, id string) (*models.TransferItem, error) {
	if meta, ok := m.Metadata[id]; ok {
		return meta, nil
	}
	return nil, errors.New("no metadata")
}

func (m *MockSource) Download(ctx context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	m.Downloads = append(m.Downloads, id)
	n := len(m.Downloads)
	hook := m.OnDownload
	m.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if err, ok := m.DownloadErrs[id]; ok {
		return nil, err
	}
	if data, ok := m.Data[id]; ok {
		return data, nil
	}
	return []byte("data-" + id), nil
}

// Upload is one item stored by [MockSink].
type Upload struct {
	Name        string
	MimeType    string
	ContainerID string
	Data        []byte
}

// MockSink is an in-memory [services.Sink].
type MockSink struct {
	mu sync.Mutex

	Invalid      bool
	ContainerErr error
	PutErrs      map[string]error

	Token      *oauth2.Token
	Containers []string
	Uploads    []Upload
}

func (m *MockSink) Name() string { return "mock sink" }

func (m *MockSink) Authenticate(ctx context.Context, token *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Token = token
	return nil
}

func (m *MockSink) VerifyConnection(ctx context.Context) bool { return !m.Invalid }

func (m *MockSink) CreateContainer(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ContainerErr != nil {
		return "", m.ContainerErr
	}
	m.Containers = append(m.Containers, name)
	return fmt.Sprintf("container-%d", len(m.Containers)), nil
}

func (m *MockSink) PutItem(ctx context.Context, data []byte, name, mimeType, containerID string) (string, error) {
	if err, ok := m.PutErrs[name]; ok {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Uploads = append(m.Uploads, Upload{Name: name, MimeType: mimeType, ContainerID: containerID, Data: data})
	return fmt.Sprintf("remote-%d", len(m.Uploads)), nil
}

// UploadNames returns the names stored so far.
func (m *MockSink) UploadNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.Uploads))
	for i, u := range m.Uploads {
		names[i] = u.Name
	}
	return names
}

// NewItems builds n items named photo-<i>.jpg with IDs id-<i>.
func NewItems(n int) []models.TransferItem {
	items := make([]models.TransferItem, n)
	for i := range items {
		items[i] = models.TransferItem{
			SourceID:    fmt.Sprintf("id-%d", i),
			DisplayName: fmt.Sprintf("photo-%d.jpg", i),
			SizeBytes:   int64(100 + i),
		}
	}
	return items
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
