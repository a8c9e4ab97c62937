package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/andresuchdata/backoffice/backend-go/internal/domain"
	"github.com/andresuchdata/backoffice/backend-go/internal/storage"
	"github.com/shopspring/decimal"
)

type fakeReportRepo struct {
	mu      sync.Mutex
	revenue decimal.Decimal
	cogs    decimal.Decimal
	opCosts decimal.Decimal
	err     error
	calls   int
	windows []domain.ReportWindow
}

func (f *fakeReportRepo) record(w domain.ReportWindow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.windows = append(f.windows, w)
}

func (f *fakeReportRepo) SumRevenue(ctx context.Context, w domain.ReportWindow) (decimal.Decimal, error) {
	f.record(w)
	return f.revenue, nil
}

func (f *fakeReportRepo) SumCOGS(ctx context.Context, w domain.ReportWindow) (decimal.Decimal, error) {
	f.record(w)
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.cogs, nil
}

func (f *fakeReportRepo) SumOperationalCosts(ctx context.Context, w domain.ReportWindow) (decimal.Decimal, error) {
	f.record(w)
	return f.opCosts, nil
}

type memoryCache struct {
	mu          sync.Mutex
	entries     map[string]domain.ProfitLossSummary
	invalidated int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]domain.ProfitLossSummary)}
}

func cacheKey(w domain.ReportWindow, p domain.ReportPeriod) string {
	return fmt.Sprintf("%s|%s|%s", p, w.Start, w.BranchID)
}

func (c *memoryCache) Get(ctx context.Context, w domain.ReportWindow, p domain.ReportPeriod) (*domain.ProfitLossSummary, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[cacheKey(w, p)]
	if !ok {
		return nil, false, nil
	}
	return &s, true, nil
}

func (c *memoryCache) Set(ctx context.Context, w domain.ReportWindow, p domain.ReportPeriod, s *domain.ProfitLossSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(w, p)] = *s
	return nil
}

func (c *memoryCache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]domain.ProfitLossSummary)
	c.invalidated++
	return nil
}

type fakeDumper struct {
	payload  string
	dumpErr  error
	restored []string
	restErr  error
}

func (d *fakeDumper) Extension() string { return "sql" }

func (d *fakeDumper) Dump(ctx context.Context, w io.Writer) error {
	if d.dumpErr != nil {
		return d.dumpErr
	}
	_, err := io.WriteString(w, d.payload)
	return err
}

func (d *fakeDumper) Restore(ctx context.Context, r io.Reader) error {
	if d.restErr != nil {
		return d.restErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	d.restored = append(d.restored, string(b))
	return nil
}

type memoryStorage struct {
	objects   map[string][]byte
	infos     []storage.ObjectInfo
	uploadErr error
}

func (m *memoryStorage) ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	out := make([]storage.ObjectInfo, 0)
	for _, info := range m.infos {
		if strings.HasPrefix(info.Key, prefix) {
			out = append(out, info)
		}
	}
	return out, nil
}

func (m *memoryStorage) DownloadObject(ctx context.Context, key, destPath string) error {
	data, ok := m.objects[key]
	if !ok {
		return fmt.Errorf("object %s not found", key)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(destPath, data, 0o644)
}

func (m *memoryStorage) UploadObject(ctx context.Context, key string, r io.Reader, size int64) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = buf.Bytes()
	return nil
}
