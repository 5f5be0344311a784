package workbooks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loopvinyl/tco2eq-v3/config"
	"github.com/xuri/excelize/v2"
)

// Handle represents an in-memory workbook reference paired with metadata for
// TTL eviction. Version counts committed writes so cursors and cached
// profiles can detect staleness.
type Handle struct {
	ID        string
	Path      string
	Source    string
	File      *excelize.File
	LoadedAt  time.Time
	ExpiresAt time.Time
	mu        sync.RWMutex
	version   int64
}

// Handle sources.
const (
	SourceFile = "file"
	SourceURL  = "url"
)

// WorkbookGate coordinates capacity for open workbook handles (backed by
// runtime.Controller).
type WorkbookGate interface {
	AcquireWorkbook(ctx context.Context) error
	ReleaseWorkbook()
}

// PathValidator abstracts filesystem path validation. Implementations return
// a canonical absolute path if allowed, or an error when denied.
type PathValidator interface {
	ValidateOpenPath(path string) (string, error)
}

// Manager owns workbook lifecycle: opening, TTL eviction, per-handle
// read/write coordination, and de-duplication of path opens.
type Manager struct {
	mu           sync.RWMutex
	handles      map[string]*Handle
	byPath       map[string]string
	ttl          time.Duration
	cleanupEvery time.Duration
	clock        func() time.Time
	gate         WorkbookGate
	stopCh       chan struct{}
	cleanupWG    sync.WaitGroup
	validator    PathValidator

	fetchTimeout  time.Duration
	maxFetchBytes int64
}

// NewManager constructs a lifecycle manager with TTL-bearing handle cache.
// Pass ttl or cleanupEvery <= 0 to use defaults from config.
// Gate can be nil for tests; clock defaults to time.Now when nil.
func NewManager(ttl, cleanupEvery time.Duration, gate WorkbookGate, clock func() time.Time) *Manager {
	if ttl <= 0 {
		ttl = config.DefaultWorkbookIdleTTL
	}
	if cleanupEvery <= 0 {
		cleanupEvery = config.DefaultWorkbookCleanupPeriod
	}
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		handles:       make(map[string]*Handle),
		byPath:        make(map[string]string),
		ttl:           ttl,
		cleanupEvery:  cleanupEvery,
		clock:         clock,
		gate:          gate,
		stopCh:        make(chan struct{}),
		fetchTimeout:  config.DefaultFetchTimeout,
		maxFetchBytes: config.DefaultMaxFetchBytes,
	}
}

// SetValidator installs the path allow-list check applied by Open and
// GetOrOpenByPath. Call before serving requests.
func (m *Manager) SetValidator(v PathValidator) { m.validator = v }

// SetFetchLimits overrides the URL ingestion byte cap and timeout.
func (m *Manager) SetFetchLimits(maxBytes int64, timeout time.Duration) {
	if maxBytes > 0 {
		m.maxFetchBytes = maxBytes
	}
	if timeout > 0 {
		m.fetchTimeout = timeout
	}
}

// Start launches periodic eviction of expired handles.
func (m *Manager) Start() {
	m.cleanupWG.Add(1)
	ticker := time.NewTicker(m.cleanupEvery)
	go func() {
		defer m.cleanupWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.EvictExpired()
			}
		}
	}()
}

// Close stops background cleanup and closes all open handles.
func (m *Manager) Close(ctx context.Context) error {
	close(m.stopCh)
	done := make(chan struct{})
	go func() { m.cleanupWG.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, h := range m.handles {
		h.mu.Lock()
		_ = h.File.Close()
		h.mu.Unlock()
		delete(m.handles, id)
		if h.Path != "" {
			delete(m.byPath, h.Path)
		}
		if m.gate != nil {
			m.gate.ReleaseWorkbook()
		}
	}
	return nil
}

// ErrHandleNotFound indicates an unknown or expired handle ID.
var ErrHandleNotFound = errors.New("workbooks: handle not found")

// ErrUnsupportedFormat indicates a path whose extension is not an Excel
// workbook format.
var ErrUnsupportedFormat = errors.New("workbooks: unsupported format")

var allowedExts = map[string]bool{
	".xlsx": true,
	".xlsm": true,
	".xltx": true,
	".xltm": true,
}

// Open opens a workbook from the given path, registers a TTL-bearing handle,
// and returns its ID. The manager enforces open-workbook capacity via the
// gate when provided.
func (m *Manager) Open(ctx context.Context, path string) (string, error) {
	if err := m.acquire(ctx); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !allowedExts[ext] {
		m.release()
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	canonical := path
	if m.validator != nil {
		c, err := m.validator.ValidateOpenPath(path)
		if err != nil {
			m.release()
			return "", err
		}
		canonical = c
	} else if abs, err := filepath.Abs(path); err == nil {
		canonical = abs
	}

	f, err := excelize.OpenFile(canonical)
	if err != nil {
		m.release()
		return "", err
	}
	h := m.newHandle(f, canonical, SourceFile)

	m.mu.Lock()
	m.handles[h.ID] = h
	m.byPath[canonical] = h.ID
	m.mu.Unlock()

	return h.ID, nil
}

// GetOrOpenByPath reuses an existing handle for the same canonical path or
// opens a fresh one. Returns the handle ID and the canonical path.
func (m *Manager) GetOrOpenByPath(ctx context.Context, path string) (string, string, error) {
	canonical := path
	if m.validator != nil {
		c, err := m.validator.ValidateOpenPath(path)
		if err != nil {
			return "", "", err
		}
		canonical = c
	} else if abs, err := filepath.Abs(path); err == nil {
		canonical = abs
	}

	m.mu.RLock()
	id, ok := m.byPath[canonical]
	m.mu.RUnlock()
	if ok {
		if _, live := m.Get(id); live {
			return id, canonical, nil
		}
	}

	id, err := m.Open(ctx, canonical)
	if err != nil {
		return "", "", err
	}
	return id, canonical, nil
}

// Adopt registers an existing excelize.File as a managed handle. Used by URL
// ingestion and tests.
func (m *Manager) Adopt(ctx context.Context, f *excelize.File) (string, error) {
	if f == nil {
		return "", fmt.Errorf("workbooks: nil file")
	}
	if err := m.acquire(ctx); err != nil {
		return "", err
	}
	h := m.newHandle(f, "", SourceFile)
	m.mu.Lock()
	m.handles[h.ID] = h
	m.mu.Unlock()
	return h.ID, nil
}

func (m *Manager) newHandle(f *excelize.File, path, source string) *Handle {
	loadedAt := m.clock()
	return &Handle{
		ID:        uuid.NewString(),
		Path:      path,
		Source:    source,
		File:      f,
		LoadedAt:  loadedAt,
		ExpiresAt: loadedAt.Add(m.ttl),
	}
}

// Get returns the handle when present and refreshes its TTL.
func (m *Manager) Get(id string) (*Handle, bool) {
	m.mu.RLock()
	h, ok := m.handles[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	// Refresh TTL on access (idle timeout semantics)
	now := m.clock()
	h.mu.Lock()
	h.ExpiresAt = now.Add(m.ttl)
	h.mu.Unlock()
	return h, true
}

// Version reports the committed-write counter for a handle.
func (m *Manager) Version(id string) (int64, bool) {
	m.mu.RLock()
	h, ok := m.handles[id]
	m.mu.RUnlock()
	if !ok {
		return 0, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.version, true
}

// WithRead obtains a shared read lock for the handle and executes fn with
// the workbook and its current version.
func (m *Manager) WithRead(id string, fn func(*excelize.File, int64) error) error {
	h, ok := m.Get(id)
	if !ok {
		return ErrHandleNotFound
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return fn(h.File, h.version)
}

// WithWrite obtains an exclusive write lock for the handle and executes fn.
// The version bumps even when fn fails since a partial write may have
// touched the file.
func (m *Manager) WithWrite(id string, fn func(*excelize.File) error) error {
	h, ok := m.Get(id)
	if !ok {
		return ErrHandleNotFound
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	err := fn(h.File)
	h.version++
	return err
}

// CloseHandle closes and removes a handle by ID, releasing capacity via the
// gate.
func (m *Manager) CloseHandle(ctx context.Context, id string) error {
	m.mu.Lock()
	h, ok := m.handles[id]
	if ok {
		delete(m.handles, id)
		if h.Path != "" {
			delete(m.byPath, h.Path)
		}
	}
	m.mu.Unlock()
	if !ok {
		return ErrHandleNotFound
	}
	// Ensure no other readers/writers are inside the workbook.
	h.mu.Lock()
	err := h.File.Close()
	h.mu.Unlock()
	m.release()
	return err
}

// EvictExpired scans for expired handles and closes them.
func (m *Manager) EvictExpired() {
	now := m.clock()
	var expired []*Handle

	m.mu.RLock()
	for _, h := range m.handles {
		h.mu.RLock()
		isExpired := now.After(h.ExpiresAt)
		h.mu.RUnlock()
		if isExpired {
			expired = append(expired, h)
		}
	}
	m.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	// Close outside of read lock; remove from map under write lock.
	for _, h := range expired {
		h.mu.Lock()
		_ = h.File.Close()
		h.mu.Unlock()

		m.mu.Lock()
		delete(m.handles, h.ID)
		if h.Path != "" {
			delete(m.byPath, h.Path)
		}
		m.mu.Unlock()
		m.release()
	}
}

// Count returns the current number of cached handles.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handles)
}

func (m *Manager) acquire(ctx context.Context) error {
	if m.gate == nil {
		return nil
	}
	return m.gate.AcquireWorkbook(ctx)
}

func (m *Manager) release() {
	if m.gate == nil {
		return
	}
	m.gate.ReleaseWorkbook()
}

// Close releases the underlying excelize file resources for a single handle.
func (h *Handle) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return h.File.Close()
}

// Expired reports whether the handle has reached its TTL.
func (h *Handle) Expired(now time.Time) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return now.After(h.ExpiresAt)
}
