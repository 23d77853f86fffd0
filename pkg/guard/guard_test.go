package guard_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/aclgate/pkg/acl"
	memcache "github.com/marmos91/aclgate/pkg/cache/provider/memory"
	"github.com/marmos91/aclgate/pkg/guard"
	"github.com/marmos91/aclgate/pkg/rules"
	memrules "github.com/marmos91/aclgate/pkg/rules/store/memory"
	"github.com/marmos91/aclgate/pkg/storage"
	memstorage "github.com/marmos91/aclgate/pkg/storage/memory"
)

const (
	testFolderID  = int64(1)
	testStorageID = "docs-storage"
)

var annaSubject = acl.Subject{Type: acl.SubjectUser, ID: "anna"}

// ============================================================================
// Test Doubles
// ============================================================================

// countingSource wraps a Source and counts calls per resolution kind.
type countingSource struct {
	rules.Source

	mu           sync.Mutex
	singleCalls  int
	batchCalls   int
	subtreeCalls int
}

func (s *countingSource) GetPermissions(ctx context.Context, folderID int64, storageID, path string) (acl.Permissions, error) {
	s.mu.Lock()
	s.singleCalls++
	s.mu.Unlock()
	return s.Source.GetPermissions(ctx, folderID, storageID, path)
}

func (s *countingSource) GetRelevantRulesForPaths(ctx context.Context, storageID string, paths []string, recursive bool) (*acl.RuleSet, error) {
	s.mu.Lock()
	s.batchCalls++
	s.mu.Unlock()
	return s.Source.GetRelevantRulesForPaths(ctx, storageID, paths, recursive)
}

func (s *countingSource) GetSubtreePermissions(ctx context.Context, folderID int64, storageID, path string) (acl.Permissions, error) {
	s.mu.Lock()
	s.subtreeCalls++
	s.mu.Unlock()
	return s.Source.GetSubtreePermissions(ctx, folderID, storageID, path)
}

func (s *countingSource) counts() (single, batch, subtree int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.singleCalls, s.batchCalls, s.subtreeCalls
}

// failingSource returns a fixed error from every resolving method.
type failingSource struct {
	err error
}

func (s *failingSource) GetPermissions(context.Context, int64, string, string) (acl.Permissions, error) {
	return acl.PermissionNone, s.err
}

func (s *failingSource) GetRelevantRulesForPaths(context.Context, string, []string, bool) (*acl.RuleSet, error) {
	return nil, s.err
}

func (s *failingSource) ApplyRules(int64, string, *acl.RuleSet) acl.Permissions {
	return acl.PermissionAll
}

func (s *failingSource) GetSubtreePermissions(context.Context, int64, string, string) (acl.Permissions, error) {
	return acl.PermissionNone, s.err
}

// stallingSource blocks the first GetPermissions call until its context is
// cancelled; every later call returns immediately. started is closed when
// the first call begins.
type stallingSource struct {
	started   chan struct{}
	startOnce sync.Once
	first     chan struct{}
	firstOnce sync.Once
}

func newStallingSource() *stallingSource {
	return &stallingSource{
		started: make(chan struct{}),
		first:   make(chan struct{}),
	}
}

func (s *stallingSource) GetPermissions(ctx context.Context, _ int64, _, _ string) (acl.Permissions, error) {
	stall := false
	s.firstOnce.Do(func() { stall = true })
	if stall {
		s.startOnce.Do(func() { close(s.started) })
		<-ctx.Done()
		return acl.PermissionNone, ctx.Err()
	}
	return acl.PermissionAll, nil
}

func (s *stallingSource) GetRelevantRulesForPaths(context.Context, string, []string, bool) (*acl.RuleSet, error) {
	return acl.NewRuleSet(), nil
}

func (s *stallingSource) ApplyRules(int64, string, *acl.RuleSet) acl.Permissions {
	return acl.PermissionAll
}

func (s *stallingSource) GetSubtreePermissions(context.Context, int64, string, string) (acl.Permissions, error) {
	return acl.PermissionAll, nil
}

// fakeGuardMetrics counts guard observations.
type fakeGuardMetrics struct {
	mu            sync.Mutex
	denials       map[string]int
	resolutions   int
	invalidations int
}

func newFakeGuardMetrics() *fakeGuardMetrics {
	return &fakeGuardMetrics{denials: make(map[string]int)}
}

func (m *fakeGuardMetrics) RecordDenial(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denials[operation]++
}

func (m *fakeGuardMetrics) ObserveRuleResolution(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolutions++
}

func (m *fakeGuardMetrics) RecordInvalidation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidations++
}

func (m *fakeGuardMetrics) snapshot() (denials map[string]int, resolutions, invalidations int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	denials = make(map[string]int, len(m.denials))
	for op, n := range m.denials {
		denials[op] = n
	}
	return denials, m.resolutions, m.invalidations
}

// ============================================================================
// Test Environment
// ============================================================================

// newService builds a rule service resolving for anna in group staff,
// bound to the test storage.
func newService(t *testing.T, store rules.Store) *rules.Service {
	t.Helper()
	service, err := rules.NewService(rules.ServiceConfig{
		Store:    store,
		Subjects: acl.SubjectsFor("anna", "staff"),
	})
	if err != nil {
		t.Fatalf("NewService() failed: %v", err)
	}
	service.BindStorage(testStorageID, testFolderID)
	return service
}

func scopeOpts(extra ...guard.Option) []guard.Option {
	return append([]guard.Option{
		guard.WithFolderID(testFolderID),
		guard.WithStorageID(testStorageID),
	}, extra...)
}

// testEnv wires a guard over real in-memory pieces: a memory backend and a
// memory rule store behind a rules.Service.
type testEnv struct {
	backend *memstorage.MemoryStorage
	store   *memrules.MemoryRuleStore
	source  *countingSource
	guard   *guard.GuardedStorage
}

func newTestEnv(t *testing.T, opts ...guard.Option) *testEnv {
	t.Helper()

	backend := memstorage.New()
	store := memrules.New()
	source := &countingSource{Source: newService(t, store)}

	g := guard.New(backend, source, scopeOpts(opts...)...)
	t.Cleanup(func() {
		if err := g.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	})

	return &testEnv{backend: backend, store: store, source: source, guard: g}
}

// mkdir and write seed the backend directly, bypassing the guard.
func (e *testEnv) mkdir(t *testing.T, dirs ...string) {
	t.Helper()
	for _, dir := range dirs {
		if err := e.backend.Mkdir(context.Background(), dir); err != nil {
			t.Fatalf("Mkdir(%q) failed: %v", dir, err)
		}
	}
}

func (e *testEnv) write(t *testing.T, path, content string) {
	t.Helper()
	if err := e.backend.WriteFile(context.Background(), path, []byte(content)); err != nil {
		t.Fatalf("WriteFile(%q) failed: %v", path, err)
	}
}

// setRule stores a rule for anna at path.
func (e *testEnv) setRule(t *testing.T, path string, mask, perms acl.Permissions) {
	t.Helper()
	rule := acl.Rule{
		FolderID:    testFolderID,
		Subject:     annaSubject,
		Path:        path,
		Mask:        mask,
		Permissions: perms,
	}
	if err := e.store.SetRule(context.Background(), rule); err != nil {
		t.Fatalf("SetRule(%q) failed: %v", path, err)
	}
}

// ============================================================================
// Read Gating
// ============================================================================

func TestReadDeniedLooksAbsent(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)
	env.mkdir(t, "secret")
	env.write(t, "secret/report.txt", "classified")
	env.setRule(t, "secret", acl.PermissionAll, acl.PermissionNone)

	if _, err := env.guard.ReadFile(ctx, "secret/report.txt"); !storage.IsNotFoundError(err) {
		t.Errorf("ReadFile() error = %v, want NotFound", err)
	}
	if _, err := env.guard.Stat(ctx, "secret/report.txt"); !storage.IsNotFoundError(err) {
		t.Errorf("Stat() error = %v, want NotFound", err)
	}
	if _, err := env.guard.Size(ctx, "secret/report.txt"); !storage.IsNotFoundError(err) {
		t.Errorf("Size() error = %v, want NotFound", err)
	}
	if _, err := env.guard.OpenRead(ctx, "secret/report.txt"); !storage.IsNotFoundError(err) {
		t.Errorf("OpenRead() error = %v, want NotFound", err)
	}
	if _, err := env.guard.Hash(ctx, storage.HashSHA256, "secret/report.txt"); !storage.IsNotFoundError(err) {
		t.Errorf("Hash() error = %v, want NotFound", err)
	}
	if _, err := env.guard.ETag(ctx, "secret/report.txt"); !storage.IsNotFoundError(err) {
		t.Errorf("ETag() error = %v, want NotFound", err)
	}
	if _, err := env.guard.MTime(ctx, "secret/report.txt"); !storage.IsNotFoundError(err) {
		t.Errorf("MTime() error = %v, want NotFound", err)
	}

	exists, err := env.guard.Exists(ctx, "secret/report.txt")
	if err != nil {
		t.Fatalf("Exists() failed: %v", err)
	}
	if exists {
		t.Error("Exists() = true, want false for invisible path")
	}
	isDir, err := env.guard.IsDir(ctx, "secret")
	if err != nil {
		t.Fatalf("IsDir() failed: %v", err)
	}
	if isDir {
		t.Error("IsDir() = true, want false for invisible path")
	}
	isFile, err := env.guard.IsFile(ctx, "secret/report.txt")
	if err != nil {
		t.Fatalf("IsFile() failed: %v", err)
	}
	if isFile {
		t.Error("IsFile() = true, want false for invisible path")
	}

	// The backend still holds the file; only the guard hides it.
	if exists, _ := env.backend.Exists(ctx, "secret/report.txt"); !exists {
		t.Fatal("backend should still hold the file")
	}
}

func TestReadAllowedPassesThrough(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)
	env.mkdir(t, "docs")
	env.write(t, "docs/a.txt", "hello")

	data, err := env.guard.ReadFile(ctx, "docs/a.txt")
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("content mismatch: got %q", data)
	}

	size, err := env.guard.Size(ctx, "docs/a.txt")
	if err != nil || size != 5 {
		t.Errorf("Size() = (%d, %v), want (5, nil)", size, err)
	}
}

// Revoking READ alone zeroes the whole bitmask: a subject that cannot see
// a path cannot mutate it either, whatever other bits the rules leave.
func TestNoReadMeansNoAccess(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)
	env.mkdir(t, "docs")
	env.setRule(t, "docs", acl.PermissionRead, acl.PermissionNone)

	if err := env.guard.WriteFile(ctx, "docs/new.txt", []byte("x")); !storage.IsPermissionDeniedError(err) {
		t.Errorf("WriteFile() error = %v, want PermissionDenied", err)
	}
	if err := env.guard.Mkdir(ctx, "docs/sub"); !storage.IsPermissionDeniedError(err) {
		t.Errorf("Mkdir() error = %v, want PermissionDenied", err)
	}
	if exists, _ := env.backend.Exists(ctx, "docs/new.txt"); exists {
		t.Error("denied write must not reach the backend")
	}
}

func TestShareBitSatisfiesReadGateInShareScope(t *testing.T) {
	ctx := t.Context()

	seed := func(env *testEnv) {
		env.mkdir(t, "shared")
		env.write(t, "shared/doc.txt", "via share")
		// Only the SHARE bit survives on the subtree.
		env.setRule(t, "shared", acl.PermissionAll, acl.PermissionShare)
	}

	plain := newTestEnv(t)
	seed(plain)
	if _, err := plain.guard.ReadFile(ctx, "shared/doc.txt"); !storage.IsNotFoundError(err) {
		t.Errorf("outside a share: ReadFile() error = %v, want NotFound", err)
	}

	inShare := newTestEnv(t, guard.WithInShare(true))
	seed(inShare)
	data, err := inShare.guard.ReadFile(ctx, "shared/doc.txt")
	if err != nil {
		t.Fatalf("inside a share: ReadFile() failed: %v", err)
	}
	if string(data) != "via share" {
		t.Errorf("content mismatch: got %q", data)
	}
}

func TestGateVisibility(t *testing.T) {
	tests := []struct {
		name    string
		perms   acl.Permissions
		inShare bool
		want    acl.Permissions
	}{
		{"read passes", acl.PermissionRead | acl.PermissionUpdate, false, acl.PermissionRead | acl.PermissionUpdate},
		{"no read zeroes everything", acl.PermissionUpdate | acl.PermissionCreate, false, acl.PermissionNone},
		{"share alone fails outside shares", acl.PermissionShare, false, acl.PermissionNone},
		{"share alone passes in shares", acl.PermissionShare, true, acl.PermissionShare},
		{"read still passes in shares", acl.PermissionRead, true, acl.PermissionRead},
		{"nothing stays nothing", acl.PermissionNone, true, acl.PermissionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := guard.GateVisibility(tt.perms, tt.inShare); got != tt.want {
				t.Errorf("GateVisibility(%v, %v) = %v, want %v", tt.perms, tt.inShare, got, tt.want)
			}
		})
	}
}

// ============================================================================
// Caching
// ============================================================================

func TestEffectivePermissionsResolvedOnce(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)
	env.mkdir(t, "docs")
	env.write(t, "docs/a.txt", "x")

	first, err := env.guard.Permissions(ctx, "docs/a.txt")
	if err != nil {
		t.Fatalf("Permissions() failed: %v", err)
	}
	second, err := env.guard.Permissions(ctx, "docs/a.txt")
	if err != nil {
		t.Fatalf("Permissions() failed: %v", err)
	}
	if first != second {
		t.Errorf("repeat resolution differs: %v then %v", first, second)
	}

	if single, _, _ := env.source.counts(); single != 1 {
		t.Errorf("rule source resolved %d times, want 1", single)
	}
}

func TestSharedTierServesSecondInstance(t *testing.T) {
	ctx := t.Context()
	provider := memcache.New()

	first := newTestEnv(t, guard.WithSharedCache(provider))
	first.mkdir(t, "docs")
	first.write(t, "docs/a.txt", "x")
	if _, err := first.guard.Permissions(ctx, "docs/a.txt"); err != nil {
		t.Fatalf("Permissions() failed: %v", err)
	}

	second := newTestEnv(t, guard.WithSharedCache(provider))
	second.mkdir(t, "docs")
	second.write(t, "docs/a.txt", "x")
	if _, err := second.guard.Permissions(ctx, "docs/a.txt"); err != nil {
		t.Fatalf("Permissions() failed: %v", err)
	}

	if single, _, _ := second.source.counts(); single != 0 {
		t.Errorf("second instance resolved %d times, want 0 (shared tier hit)", single)
	}
}

// ============================================================================
// Non-Gated Operations
// ============================================================================

func TestPermissionsIntersectsBackendMask(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)
	env.mkdir(t, "docs")
	env.write(t, "docs/a.txt", "x")
	env.backend.SetPermissions("docs/a.txt", acl.PermissionRead|acl.PermissionUpdate)
	env.setRule(t, "docs", acl.PermissionUpdate, acl.PermissionNone)

	got, err := env.guard.Permissions(ctx, "docs/a.txt")
	if err != nil {
		t.Fatalf("Permissions() failed: %v", err)
	}
	if got != acl.PermissionRead {
		t.Errorf("Permissions() = %v, want read only", got)
	}
}

func TestPermissionsZeroForInvisiblePath(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)
	env.mkdir(t, "secret")
	env.setRule(t, "secret", acl.PermissionAll, acl.PermissionNone)

	got, err := env.guard.Permissions(ctx, "secret")
	if err != nil {
		t.Fatalf("Permissions() failed: %v", err)
	}
	if got != acl.PermissionNone {
		t.Errorf("Permissions() = %v, want none", got)
	}
}

func TestFreeSpaceUngated(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)
	env.setRule(t, "", acl.PermissionAll, acl.PermissionNone)

	free, err := env.guard.FreeSpace(ctx)
	if err != nil {
		t.Fatalf("FreeSpace() failed: %v", err)
	}
	if free <= 0 {
		t.Errorf("FreeSpace() = %d, want positive", free)
	}
}

// ============================================================================
// Stat Rewrites
// ============================================================================

func TestStatRewritesPermissions(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t)
	env.mkdir(t, "docs")
	env.write(t, "docs/a.txt", "x")
	env.setRule(t, "docs", acl.PermissionUpdate, acl.PermissionNone)

	info, err := env.guard.Stat(ctx, "docs/a.txt")
	if err != nil {
		t.Fatalf("Stat() failed: %v", err)
	}
	want := acl.PermissionAll.Remove(acl.PermissionUpdate)
	if info.Permissions != want {
		t.Errorf("Permissions = %v, want %v", info.Permissions, want)
	}
	if info.ScanPermissions == nil || *info.ScanPermissions != acl.PermissionAll {
		t.Errorf("ScanPermissions = %v, want preserved backend mask", info.ScanPermissions)
	}
}

// ============================================================================
// Errors and Metrics
// ============================================================================

func TestSourceErrorsPropagate(t *testing.T) {
	ctx := t.Context()
	errBoom := errors.New("rule backend down")
	g := guard.New(memstorage.New(), &failingSource{err: errBoom}, scopeOpts()...)
	t.Cleanup(func() { _ = g.Close() })

	if _, err := g.ReadFile(ctx, "docs/a.txt"); !errors.Is(err, errBoom) {
		t.Errorf("ReadFile() error = %v, want wrapped source error", err)
	}
	if _, err := g.Exists(ctx, "docs/a.txt"); !errors.Is(err, errBoom) {
		t.Errorf("Exists() error = %v, want wrapped source error", err)
	}
	if err := g.WriteFile(ctx, "docs/a.txt", nil); !errors.Is(err, errBoom) {
		t.Errorf("WriteFile() error = %v, want wrapped source error", err)
	}
}

func TestMetricsObservations(t *testing.T) {
	ctx := t.Context()
	metrics := newFakeGuardMetrics()
	env := newTestEnv(t, guard.WithMetrics(metrics))
	env.mkdir(t, "secret", "docs")
	env.setRule(t, "secret", acl.PermissionAll, acl.PermissionNone)

	if _, err := env.guard.ReadFile(ctx, "secret/x.txt"); !storage.IsNotFoundError(err) {
		t.Fatalf("ReadFile() error = %v, want NotFound", err)
	}
	if err := env.guard.WriteFile(ctx, "docs/a.txt", []byte("x")); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	denials, resolutions, invalidations := metrics.snapshot()
	if denials["read_file"] != 1 {
		t.Errorf("read_file denials = %d, want 1", denials["read_file"])
	}
	if invalidations != 1 {
		t.Errorf("invalidations = %d, want 1", invalidations)
	}
	if resolutions == 0 {
		t.Error("expected at least one rule resolution observation")
	}
}

// ============================================================================
// Standalone Gate
// ============================================================================

func TestAccessGateCheckPermissions(t *testing.T) {
	ctx := t.Context()
	store := memrules.New()
	service := newService(t, store)
	rule := acl.Rule{
		FolderID:    testFolderID,
		Subject:     annaSubject,
		Path:        "docs",
		Mask:        acl.PermissionDelete,
		Permissions: acl.PermissionNone,
	}
	if err := store.SetRule(ctx, rule); err != nil {
		t.Fatalf("SetRule() failed: %v", err)
	}

	gate := guard.NewAccessGate(service, scopeOpts()...)

	ok, err := gate.CheckPermissions(ctx, "docs/a.txt", acl.PermissionRead)
	if err != nil || !ok {
		t.Errorf("CheckPermissions(read) = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = gate.CheckPermissions(ctx, "docs/a.txt", acl.PermissionDelete)
	if err != nil || ok {
		t.Errorf("CheckPermissions(delete) = (%v, %v), want (false, nil)", ok, err)
	}

	effective, err := gate.EffectivePermissions(ctx, "docs/a.txt")
	if err != nil {
		t.Fatalf("EffectivePermissions() failed: %v", err)
	}
	if want := acl.PermissionAll.Remove(acl.PermissionDelete); effective != want {
		t.Errorf("EffectivePermissions() = %v, want %v", effective, want)
	}
}

// A miss must not wait on another caller's in-flight resolution, and must
// not inherit that caller's cancellation.
func TestConcurrentMissesResolveIndependently(t *testing.T) {
	source := newStallingSource()
	gate := guard.NewAccessGate(source, scopeOpts()...)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	slowDone := make(chan error, 1)
	go func() {
		_, err := gate.EffectivePermissions(ctxA, "projects/report.txt")
		slowDone <- err
	}()

	// Wait until the slow resolution is parked inside the source.
	select {
	case <-source.started:
	case <-time.After(2 * time.Second):
		t.Fatal("slow resolution never reached the rule source")
	}

	// A second caller with a healthy context resolves the same path while
	// the first is still blocked.
	fastDone := make(chan error, 1)
	go func() {
		p, err := gate.EffectivePermissions(context.Background(), "projects/report.txt")
		if err == nil && p == acl.PermissionNone {
			err = errors.New("resolved to no permissions")
		}
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		if err != nil {
			t.Fatalf("concurrent miss failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent miss blocked behind the in-flight resolution")
	}

	// Cancelling the first caller fails only the first caller.
	cancelA()
	select {
	case err := <-slowDone:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("cancelled caller error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled resolution never returned")
	}

	p, err := gate.EffectivePermissions(context.Background(), "projects/report.txt")
	if err != nil {
		t.Fatalf("EffectivePermissions() after cancellation failed: %v", err)
	}
	if p == acl.PermissionNone {
		t.Error("cached permissions lost after an unrelated cancellation")
	}
}
