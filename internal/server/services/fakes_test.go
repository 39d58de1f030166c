package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/dbx"
	"github.com/dmitrijs2005/usersvc/internal/server/blobstore"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/avatars"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/users"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// --- repositories ---

type fakeAvatarsRepo struct {
	mu      sync.Mutex
	records map[int64]*models.AvatarRecord

	getErr    error
	upsertErr error
	deleteErr error
	locErr    error
	upserts   int

	// afterLocations runs once the Locations snapshot has been taken.
	afterLocations func()
}

func newFakeAvatarsRepo() *fakeAvatarsRepo {
	return &fakeAvatarsRepo{records: map[int64]*models.AvatarRecord{}}
}

func (f *fakeAvatarsRepo) GetByUserID(_ context.Context, userID int64) (*models.AvatarRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.records[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeAvatarsRepo) Upsert(_ context.Context, rec *models.AvatarRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	cp := *rec
	f.records[rec.UserID] = &cp
	f.upserts++
	return nil
}

func (f *fakeAvatarsRepo) Delete(_ context.Context, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	_, ok := f.records[userID]
	delete(f.records, userID)
	return ok, nil
}

func (f *fakeAvatarsRepo) Locations(context.Context) ([]string, error) {
	f.mu.Lock()
	if f.locErr != nil {
		f.mu.Unlock()
		return nil, f.locErr
	}
	var out []string
	for _, r := range f.records {
		out = append(out, r.Location)
	}
	hook := f.afterLocations
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *fakeAvatarsRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeUsersRepo struct {
	mu        sync.Mutex
	created   []*models.User
	createErr error
	getErr    error
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, u)
	return u, nil
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.created {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, common.ErrNotFound
}

type fakeRepoManager struct {
	avatars *fakeAvatarsRepo
	users   *fakeUsersRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository     { return m.users }
func (m *fakeRepoManager) Avatars(dbx.DBTX) avatars.Repository { return m.avatars }

// --- blob store ---

type memBlobs struct {
	mu        sync.Mutex
	data      map[string][]byte
	mod       map[string]time.Time
	writeErr  error
	readErr   error
	deleteErr error
	writes    int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{data: map[string][]byte{}, mod: map[string]time.Time{}}
}

func (m *memBlobs) Write(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.data[key] = append([]byte(nil), data...)
	m.mod[key] = time.Now()
	m.writes++
	return nil
}

func (m *memBlobs) Read(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	b, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, blobstore.ErrNotExist)
	}
	return b, nil
}

func (m *memBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.data[key]; !ok {
		return fmt.Errorf("%s: %w", key, blobstore.ErrNotExist)
	}
	delete(m.data, key)
	delete(m.mod, key)
	return nil
}

func (m *memBlobs) List(context.Context) ([]blobstore.Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []blobstore.Info
	for k := range m.data {
		out = append(out, blobstore.Info{Key: k, ModTime: m.mod[k]})
	}
	return out, nil
}

func (m *memBlobs) Stat(_ context.Context, key string) (blobstore.Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return blobstore.Info{}, fmt.Errorf("%s: %w", key, blobstore.ErrNotExist)
	}
	return blobstore.Info{Key: key, ModTime: m.mod[key]}, nil
}

func (m *memBlobs) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *memBlobs) age(key string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mod[key] = time.Now().Add(-d)
}

// --- upstreams ---

type fakeDirectory struct {
	mu        sync.Mutex
	users     map[int64]*models.User
	fetchErr  error
	createID  int64
	createErr error
	fetches   int
	creates   int
}

func (f *fakeDirectory) Create(_ context.Context, _ models.NewUser) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	return f.createID, f.createErr
}

func (f *fakeDirectory) FetchByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, common.ErrNotFound)
	}
	return u, nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	data  map[string][]byte
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.data[url]
	if !ok {
		return nil, fmt.Errorf("%w: status 404", common.ErrUpstreamUnavailable)
	}
	return b, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSink struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSink) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to+"|"+subject+"|"+body)
	return f.err
}

type fakePublisher struct {
	mu       sync.Mutex
	keys     []string
	payloads [][]byte
	accepted bool
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, key string, payload []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.payloads = append(f.payloads, payload)
	return f.accepted, f.err
}

func (f *fakePublisher) Close() error { return nil }
