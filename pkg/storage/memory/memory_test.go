package memory

import (
	"testing"

	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/storage"
	"github.com/marmos91/aclgate/pkg/storage/storetest"
)

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) storage.Storage {
		return New()
	})
}

func TestSetPermissionsOverride(t *testing.T) {
	s := New()
	ctx := t.Context()

	if err := s.WriteFile(ctx, "locked.txt", []byte("x")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	perms, err := s.Permissions(ctx, "locked.txt")
	if err != nil {
		t.Fatalf("Permissions failed: %v", err)
	}
	if perms != acl.PermissionAll {
		t.Errorf("default permissions = %v, want all", perms)
	}

	s.SetPermissions("locked.txt", acl.PermissionRead)
	perms, err = s.Permissions(ctx, "locked.txt")
	if err != nil {
		t.Fatalf("Permissions failed: %v", err)
	}
	if perms != acl.PermissionRead {
		t.Errorf("overridden permissions = %v, want read", perms)
	}

	fi, err := s.Stat(ctx, "locked.txt")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if fi.Permissions != acl.PermissionRead {
		t.Errorf("Stat permissions = %v, want read", fi.Permissions)
	}
}

func TestRenameIntoSelfRejected(t *testing.T) {
	s := New()
	ctx := t.Context()

	if err := s.Mkdir(ctx, "parent"); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	if err := s.Rename(ctx, "parent", "parent/child"); err == nil {
		t.Error("rename of a directory into itself must fail")
	}
}

func TestFreeSpaceShrinksWithWrites(t *testing.T) {
	s := New()
	ctx := t.Context()

	before, err := s.FreeSpace(ctx)
	if err != nil {
		t.Fatalf("FreeSpace failed: %v", err)
	}
	if err := s.WriteFile(ctx, "big.bin", make([]byte, 4096)); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	after, err := s.FreeSpace(ctx)
	if err != nil {
		t.Fatalf("FreeSpace failed: %v", err)
	}
	if after >= before {
		t.Errorf("FreeSpace did not shrink: before=%d after=%d", before, after)
	}
}
