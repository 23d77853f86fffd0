//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/rules"
	sqlstore "github.com/marmos91/aclgate/pkg/rules/store/sql"
	"github.com/marmos91/aclgate/pkg/rules/storetest"
)

// sampleRule builds a read-only rule for the given subject and path.
func sampleRule(t *testing.T, folderID int64, subject, path string) acl.Rule {
	t.Helper()
	s, err := acl.ParseSubject(subject)
	if err != nil {
		t.Fatalf("bad subject %q: %v", subject, err)
	}
	return acl.Rule{
		FolderID:    folderID,
		Subject:     s,
		Path:        path,
		Mask:        acl.PermissionAll,
		Permissions: acl.PermissionRead,
	}
}

// postgresHelper manages the PostgreSQL container for rule store tests.
type postgresHelper struct {
	container testcontainers.Container
	host      string
	port      int
}

var (
	sharedHelper *postgresHelper
	helperOnce   sync.Once
)

// newPostgresHelper starts a PostgreSQL container once per test run, or
// connects to an external instance configured via environment.
func newPostgresHelper(t *testing.T) *postgresHelper {
	t.Helper()

	helperOnce.Do(func() {
		ctx := context.Background()

		if host := os.Getenv("POSTGRES_HOST"); host != "" {
			port := 5432
			if p := os.Getenv("POSTGRES_PORT"); p != "" {
				port, _ = strconv.Atoi(p)
			}
			sharedHelper = &postgresHelper{host: host, port: port}
			return
		}

		// PostgreSQL logs the ready line twice during startup (bootstrap,
		// then the final listener), so wait for the second occurrence.
		container, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("aclgate_test"),
			postgres.WithUsername("aclgate_test"),
			postgres.WithPassword("aclgate_test"),
			testcontainers.WithWaitStrategyAndDeadline(5*time.Minute,
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			),
		)
		if err != nil {
			t.Fatalf("failed to start postgres container: %v", err)
		}

		host, err := container.Host(ctx)
		if err != nil {
			_ = container.Terminate(ctx)
			t.Fatalf("failed to get container host: %v", err)
		}
		port, err := container.MappedPort(ctx, "5432")
		if err != nil {
			_ = container.Terminate(ctx)
			t.Fatalf("failed to get container port: %v", err)
		}

		sharedHelper = &postgresHelper{
			container: container,
			host:      host,
			port:      port.Int(),
		}
	})

	return sharedHelper
}

func (ph *postgresHelper) config() sqlstore.PostgresConfig {
	database := os.Getenv("POSTGRES_DATABASE")
	if database == "" {
		database = "aclgate_test"
	}
	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		user = "aclgate_test"
	}
	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		password = "aclgate_test"
	}

	return sqlstore.PostgresConfig{
		Host:     ph.host,
		Port:     ph.port,
		Database: database,
		User:     user,
		Password: password,
		SSLMode:  "disable",
	}
}

// newStore opens a fresh store and wipes any rules left by earlier tests.
// All tests share one database, so isolation comes from the wipe, not from
// separate schemas.
func (ph *postgresHelper) newStore(t *testing.T) rules.Store {
	t.Helper()
	ctx := context.Background()

	store, err := sqlstore.New(&sqlstore.Config{
		Type:     sqlstore.DatabaseTypePostgres,
		Postgres: ph.config(),
	})
	if err != nil {
		t.Fatalf("failed to create postgres rule store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	folders, err := store.ListFolders(ctx)
	if err != nil {
		t.Fatalf("failed to list folders: %v", err)
	}
	for _, folderID := range folders {
		rs, err := store.ListRules(ctx, folderID)
		if err != nil {
			t.Fatalf("failed to list rules: %v", err)
		}
		for _, r := range rs {
			if err := store.DeleteRule(ctx, r.FolderID, r.Subject, r.Path); err != nil {
				t.Fatalf("failed to wipe rule: %v", err)
			}
		}
	}

	return store
}

// TestPostgresRuleStore_Integration runs the store conformance suite against
// a real PostgreSQL server.
func TestPostgresRuleStore_Integration(t *testing.T) {
	helper := newPostgresHelper(t)

	storetest.RunConformanceSuite(t, func(t *testing.T) rules.Store {
		return helper.newStore(t)
	})
}

// TestPostgresRuleStore_Persistence verifies rules survive a store reopen,
// which the in-memory conformance runs cannot cover.
func TestPostgresRuleStore_Persistence(t *testing.T) {
	helper := newPostgresHelper(t)
	ctx := context.Background()

	store := helper.newStore(t)

	rule := sampleRule(t, 77, "user:alice", "/projects/q3")
	if err := store.SetRule(ctx, rule); err != nil {
		t.Fatalf("SetRule failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := sqlstore.New(&sqlstore.Config{
		Type:     sqlstore.DatabaseTypePostgres,
		Postgres: helper.config(),
	})
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetRule(ctx, rule.FolderID, rule.Subject, rule.Path)
	if err != nil {
		t.Fatalf("GetRule after reopen failed: %v", err)
	}
	if got.Permissions != rule.Permissions || got.Mask != rule.Mask {
		t.Errorf("reopened rule = %+v, want %+v", got, rule)
	}
}

// TestPostgresRuleStore_ConcurrentWriters exercises upsert contention on the
// (folder, subject, path) unique key.
func TestPostgresRuleStore_ConcurrentWriters(t *testing.T) {
	helper := newPostgresHelper(t)
	ctx := context.Background()

	store := helper.newStore(t)
	rule := sampleRule(t, 88, "group:staff", "/shared")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := rule
			if i%2 == 1 {
				r.Permissions = acl.PermissionRead.Add(acl.PermissionUpdate)
			}
			if err := store.SetRule(ctx, r); err != nil {
				errs <- fmt.Errorf("writer %d: %w", i, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	rs, err := store.ListRules(ctx, rule.FolderID)
	if err != nil {
		t.Fatalf("ListRules failed: %v", err)
	}
	if len(rs) != 1 {
		t.Errorf("got %d rules after racing upserts, want 1", len(rs))
	}
}
