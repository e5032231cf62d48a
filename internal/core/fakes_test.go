package core

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xferlogic/gateway/internal/store"
)

type memStore struct {
	mu       sync.Mutex
	users    map[string]*store.User
	seq      int64
	usage    []store.UsageRecord
	usageErr error

	// raceOnCreate makes CreateUser report a duplicate even though the
	// preceding lookup found nothing.
	raceOnCreate bool
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*store.User{}, seq: 1}
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateUser(_ context.Context, email, passwordHash string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[email]; ok || m.raceOnCreate {
		return nil, store.ErrDuplicateEmail
	}
	u := &store.User{ID: m.seq, Email: email, PasswordHash: passwordHash, CreatedAt: time.Now()}
	m.seq++
	m.users[email] = u
	return u, nil
}

func (m *memStore) CreateUsageRecord(ctx context.Context, rec *store.UsageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.usageErr != nil {
		return m.usageErr
	}
	m.usage = append(m.usage, *rec)
	return nil
}

func (m *memStore) usageRecords() []store.UsageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.UsageRecord(nil), m.usage...)
}

func (m *memStore) userCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

type fakeTextProvider struct {
	name    string
	result  *TextResult
	err     error
	prompts []string
}

func (f *fakeTextProvider) Name() string { return f.name }

func (f *fakeTextProvider) GenerateText(_ context.Context, prompt string) (*TextResult, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	return &res, nil
}

type fakeImageProvider struct {
	url string
	err error
}

func (f *fakeImageProvider) GenerateImage(_ context.Context, _ string) (*ImageResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ImageResult{URL: f.url, EstimatedCost: ImageFlatCost}, nil
}

var errUpstream = errors.New("rate limit reached for requests")

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
