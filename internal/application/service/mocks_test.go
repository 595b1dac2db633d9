package service

import (
	"context"
	"io"
	"sync"

	"github.com/garyjia/discussion-review/internal/domain/apperr"
	"github.com/garyjia/discussion-review/internal/domain/entity"
	"github.com/garyjia/discussion-review/internal/domain/report"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// mockUserRepo keeps users in a map unless a func field overrides the call
type mockUserRepo struct {
	users map[string]*entity.AuthorizedUser

	upsertFunc      func(ctx context.Context, u *entity.AuthorizedUser) error
	deleteFunc      func(ctx context.Context, email string) error
	countByRoleFunc func(ctx context.Context, role entity.Role) (int, error)
}

func newMockUserRepo(users ...*entity.AuthorizedUser) *mockUserRepo {
	m := &mockUserRepo{users: make(map[string]*entity.AuthorizedUser)}
	for _, u := range users {
		m.users[u.Email] = u
	}
	return m
}

func (m *mockUserRepo) Upsert(ctx context.Context, u *entity.AuthorizedUser) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, u)
	}
	cp := *u
	m.users[u.Email] = &cp
	return nil
}

func (m *mockUserRepo) Get(ctx context.Context, email string) (*entity.AuthorizedUser, error) {
	u, ok := m.users[email]
	if !ok {
		return nil, apperr.NotFound("user.get", "user %s not found", email)
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) List(ctx context.Context) ([]*entity.AuthorizedUser, error) {
	out := make([]*entity.AuthorizedUser, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *mockUserRepo) Delete(ctx context.Context, email string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, email)
	}
	if _, ok := m.users[email]; !ok {
		return apperr.NotFound("user.delete", "user %s not found", email)
	}
	delete(m.users, email)
	return nil
}

func (m *mockUserRepo) CountByRole(ctx context.Context, role entity.Role) (int, error) {
	if m.countByRoleFunc != nil {
		return m.countByRoleFunc(ctx, role)
	}
	n := 0
	for _, u := range m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

type sentCard struct {
	title string
	lines []string
}

type mockSender struct {
	mu    sync.Mutex
	texts []string
	cards []sentCard

	sendTextFunc func(ctx context.Context, text string) error
	sendCardFunc func(ctx context.Context, title string, lines []string) error
}

func (m *mockSender) SendText(ctx context.Context, text string) error {
	if m.sendTextFunc != nil {
		return m.sendTextFunc(ctx, text)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return nil
}

func (m *mockSender) SendCard(ctx context.Context, title string, lines []string) error {
	if m.sendCardFunc != nil {
		return m.sendCardFunc(ctx, title, lines)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards = append(m.cards, sentCard{title: title, lines: lines})
	return nil
}

type mockExporter struct {
	writeFunc func(w io.Writer, r *report.BottleneckReport) error
}

func (m *mockExporter) WriteBottleneckReport(w io.Writer, r *report.BottleneckReport) error {
	if m.writeFunc != nil {
		return m.writeFunc(w, r)
	}
	_, err := w.Write([]byte("xlsx"))
	return err
}

type mockStorage struct {
	files map[string][]byte
}

func (m *mockStorage) Save(ctx context.Context, path string, content []byte) error {
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[path] = content
	return nil
}

func (m *mockStorage) Read(ctx context.Context, path string) ([]byte, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, apperr.NotFound("storage.read", "%s not found", path)
	}
	return content, nil
}

func (m *mockStorage) Exists(ctx context.Context, path string) bool {
	_, ok := m.files[path]
	return ok
}

func (m *mockStorage) GetFullPath(relativePath string) string {
	return "/exports/" + relativePath
}
