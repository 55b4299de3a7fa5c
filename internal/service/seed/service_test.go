package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/splax/userseed/internal/domain"
	"github.com/splax/userseed/internal/repository"
	"github.com/splax/userseed/pkg/config"
	"github.com/splax/userseed/pkg/crypto"
)

// memStore is a non-transactional in-memory user store.
type memStore struct {
	users       []domain.User
	nextID      int
	deleteCalls int
	insertCalls int
	deleteErr   error
	insertErr   error
}

func (m *memStore) DeleteAllUsers(ctx context.Context) (int64, error) {
	m.deleteCalls++
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	n := int64(len(m.users))
	m.users = nil
	return n, nil
}

func (m *memStore) InsertUsers(ctx context.Context, users []domain.User) ([]domain.User, error) {
	m.insertCalls++
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	stored := make([]domain.User, 0, len(users))
	for _, u := range users {
		m.nextID++
		u.ID = fmt.Sprintf("user-%d", m.nextID)
		u.CreatedAt = time.Date(2026, time.January, 1, 0, 0, m.nextID, 0, time.UTC)
		stored = append(stored, u)
	}
	m.users = append(m.users, stored...)
	return append([]domain.User(nil), stored...), nil
}

// txStore adds snapshot/restore transactions on top of memStore.
type txStore struct {
	*memStore
	commits   int
	rollbacks int
	commitErr error
}

func (s *txStore) InTx(ctx context.Context, fn func(repository.UserStore) error) error {
	snapshot := append([]domain.User(nil), s.users...)
	if err := fn(s.memStore); err != nil {
		s.users = snapshot
		s.rollbacks++
		return err
	}
	if s.commitErr != nil {
		s.users = snapshot
		s.rollbacks++
		return s.commitErr
	}
	s.commits++
	return nil
}

func existingUsers(n int) []domain.User {
	users := make([]domain.User, 0, n)
	for i := 0; i < n; i++ {
		users = append(users, domain.User{
			ID:    fmt.Sprintf("old-%d", i),
			Name:  fmt.Sprintf("Old %d", i),
			Email: fmt.Sprintf("old%d@example.com", i),
			Role:  domain.RoleUser,
		})
	}
	return users
}

func threeUserDataset() Dataset {
	return Dataset{Users: []SeedUser{
		{Name: "Admin", Email: "admin@example.com", Password: "admin123", Role: domain.RoleAdmin},
		{Name: "Jane", Email: "jane@example.com", Password: "pw-jane", Role: domain.RoleUser},
		{Name: "John", Email: "john@example.com", Password: "pw-john", Role: domain.RoleUser},
	}}
}

func devConfig() config.APIConfig {
	return config.APIConfig{Environment: config.EnvDevelopment, BcryptCost: bcrypt.MinCost}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func contentKeys(users []domain.User) []string {
	keys := make([]string, 0, len(users))
	for _, u := range users {
		keys = append(keys, u.Name+"|"+u.Email+"|"+u.Role)
	}
	sort.Strings(keys)
	return keys
}

func datasetKeys(ds Dataset) []string {
	keys := make([]string, 0, ds.Len())
	for _, u := range ds.Users {
		keys = append(keys, u.Name+"|"+u.Email+"|"+u.Role)
	}
	sort.Strings(keys)
	return keys
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestReseedDeniedOutsideDevelopment(t *testing.T) {
	for _, env := range []config.Environment{"prod", "production", "staging", ""} {
		store := &memStore{users: existingUsers(2)}
		cfg := devConfig()
		cfg.Environment = env
		svc := New(store, threeUserDataset(), quietLogger(), cfg)

		result, err := svc.ReseedUsers(context.Background(), "ip:10.0.0.1")

		var authErr *AuthorizationError
		if !errors.As(err, &authErr) {
			t.Fatalf("env %q: expected AuthorizationError, got %v", env, err)
		}
		if authErr.StatusCode() != 403 || authErr.Message() != "Permission denied." {
			t.Fatalf("env %q: unexpected error shape: %d %q", env, authErr.StatusCode(), authErr.Message())
		}
		if store.deleteCalls != 0 || store.insertCalls != 0 {
			t.Fatalf("env %q: store touched: delete=%d insert=%d", env, store.deleteCalls, store.insertCalls)
		}
		if len(store.users) != 2 || len(result.Inserted) != 0 {
			t.Fatalf("env %q: unexpected state: users=%d inserted=%d", env, len(store.users), len(result.Inserted))
		}
	}
}

func TestReseedReplacesExistingUsers(t *testing.T) {
	store := &memStore{users: existingUsers(5)}
	ds := threeUserDataset()
	svc := New(store, ds, quietLogger(), devConfig())

	result, err := svc.ReseedUsers(context.Background(), "ip:127.0.0.1")
	if err != nil {
		t.Fatalf("ReseedUsers returned error: %v", err)
	}
	if result.Deleted != 5 {
		t.Fatalf("expected 5 deleted, got %d", result.Deleted)
	}
	if len(result.Inserted) != 3 || len(store.users) != 3 {
		t.Fatalf("expected 3 users, got inserted=%d stored=%d", len(result.Inserted), len(store.users))
	}
	if !equalStrings(contentKeys(store.users), datasetKeys(ds)) {
		t.Fatalf("store content %v does not match dataset %v", contentKeys(store.users), datasetKeys(ds))
	}
	for i, u := range result.Inserted {
		if u.ID != store.users[i].ID {
			t.Fatalf("inserted[%d] id %q does not match store id %q", i, u.ID, store.users[i].ID)
		}
		if err := crypto.ComparePassword(u.PasswordHash, ds.Users[i].Password); err != nil {
			t.Fatalf("inserted[%d] password hash mismatch: %v", i, err)
		}
	}
}

func TestReseedIsIdempotent(t *testing.T) {
	store := &txStore{memStore: &memStore{users: existingUsers(1)}}
	svc := New(store, threeUserDataset(), quietLogger(), devConfig())
	ctx := context.Background()

	first, err := svc.ReseedUsers(ctx, "test")
	if err != nil {
		t.Fatalf("first reseed: %v", err)
	}
	afterFirst := contentKeys(store.users)

	second, err := svc.ReseedUsers(ctx, "test")
	if err != nil {
		t.Fatalf("second reseed: %v", err)
	}
	if !equalStrings(afterFirst, contentKeys(store.users)) {
		t.Fatalf("content changed between reseeds: %v vs %v", afterFirst, contentKeys(store.users))
	}
	if second.Deleted != int64(len(first.Inserted)) {
		t.Fatalf("second reseed should delete the first seed: deleted=%d", second.Deleted)
	}
	if first.Inserted[0].ID == second.Inserted[0].ID {
		t.Fatalf("expected fresh identities on each reseed")
	}
	if store.commits != 2 {
		t.Fatalf("expected 2 commits, got %d", store.commits)
	}
}

func TestReseedInsertFailureWithoutTransactionLeavesEmpty(t *testing.T) {
	fault := errors.New("disk full")
	store := &memStore{users: existingUsers(4), insertErr: fault}
	svc := New(store, threeUserDataset(), quietLogger(), devConfig())

	result, err := svc.ReseedUsers(context.Background(), "test")

	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if storageErr.Op != OpInsert || !errors.Is(err, fault) {
		t.Fatalf("unexpected storage error: %+v", storageErr)
	}
	if len(store.users) != 0 {
		t.Fatalf("expected empty store after failed insert, got %d users", len(store.users))
	}
	if len(result.Inserted) != 0 {
		t.Fatalf("no users should be reported on failure")
	}
}

func TestReseedInsertFailureInTransactionKeepsUsers(t *testing.T) {
	fault := errors.New("unique violation")
	store := &txStore{memStore: &memStore{users: existingUsers(4), insertErr: fault}}
	svc := New(store, threeUserDataset(), quietLogger(), devConfig())

	_, err := svc.ReseedUsers(context.Background(), "test")

	var storageErr *StorageError
	if !errors.As(err, &storageErr) || storageErr.Op != OpInsert {
		t.Fatalf("expected insert StorageError, got %v", err)
	}
	if store.rollbacks != 1 || store.commits != 0 {
		t.Fatalf("expected rollback, got commits=%d rollbacks=%d", store.commits, store.rollbacks)
	}
	if len(store.users) != 4 {
		t.Fatalf("expected previous users to survive, got %d", len(store.users))
	}
}

func TestReseedDeleteFailure(t *testing.T) {
	fault := errors.New("connection reset")
	store := &memStore{users: existingUsers(2), deleteErr: fault}
	svc := New(store, threeUserDataset(), quietLogger(), devConfig())

	_, err := svc.ReseedUsers(context.Background(), "test")

	var storageErr *StorageError
	if !errors.As(err, &storageErr) || storageErr.Op != OpDelete || !errors.Is(err, fault) {
		t.Fatalf("expected delete StorageError wrapping fault, got %v", err)
	}
	if store.insertCalls != 0 {
		t.Fatalf("insert must not run after a failed delete")
	}
}

func TestReseedCommitFailureIsStorageError(t *testing.T) {
	fault := errors.New("serialization failure")
	store := &txStore{memStore: &memStore{users: existingUsers(1)}, commitErr: fault}
	svc := New(store, threeUserDataset(), quietLogger(), devConfig())

	_, err := svc.ReseedUsers(context.Background(), "test")

	var storageErr *StorageError
	if !errors.As(err, &storageErr) || storageErr.Op != OpTransaction || !errors.Is(err, fault) {
		t.Fatalf("expected transaction StorageError, got %v", err)
	}
	if len(store.users) != 1 {
		t.Fatalf("expected previous user to survive, got %d", len(store.users))
	}
}

func TestReseedEmptyDatasetTouchesNothing(t *testing.T) {
	store := &memStore{users: existingUsers(2)}
	svc := New(store, Dataset{}, quietLogger(), devConfig())

	if _, err := svc.ReseedUsers(context.Background(), "test"); !errors.Is(err, errEmptyDataset) {
		t.Fatalf("expected errEmptyDataset, got %v", err)
	}
	if store.deleteCalls != 0 {
		t.Fatalf("delete must not run for an empty dataset")
	}
}

func TestReseedLogsActor(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	cfg := devConfig()
	cfg.Environment = config.EnvProduction
	svc := New(&memStore{}, threeUserDataset(), log, cfg)

	_, _ = svc.ReseedUsers(context.Background(), "user:42")

	out := buf.String()
	if !strings.Contains(out, "user reseed denied") || !strings.Contains(out, "actor=user:42") {
		t.Fatalf("expected denial audit record, got %q", out)
	}
}
