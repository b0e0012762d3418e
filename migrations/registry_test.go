package migrations_test

import (
	"context"
	"io/fs"
	"testing"

	"github.com/goliatone/go-identity-sync/migrations"
)

func TestFilesystems_ResolvesBothDialects(t *testing.T) {
	filesystems, err := migrations.Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected two dialect filesystems, got %d", len(filesystems))
	}
	dialects := map[string]bool{}
	for _, spec := range filesystems {
		dialects[spec.Dialect] = true
		matches, globErr := fs.Glob(spec.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", spec.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected up migrations for %s", spec.Dialect)
		}
	}
	if !dialects[migrations.DialectPostgres] || !dialects[migrations.DialectSQLite] {
		t.Fatalf("unexpected dialect set %v", dialects)
	}
}

func TestRegister_DefaultsToBothDialects(t *testing.T) {
	var registered []string
	reg, err := migrations.Register(context.Background(), func(_ context.Context, dialect string, label string, fsys fs.FS) error {
		if fsys == nil {
			t.Fatalf("nil filesystem for %s", dialect)
		}
		if label != "go-identity-sync" {
			t.Fatalf("unexpected source label %q", label)
		}
		registered = append(registered, dialect)
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(registered) != 2 {
		t.Fatalf("expected both dialects registered, got %v", registered)
	}
	if len(reg.Filesystems) != 2 {
		t.Fatalf("expected registration to carry both filesystems, got %d", len(reg.Filesystems))
	}
}

func TestRegister_ValidationTargetsFilter(t *testing.T) {
	var registered []string
	_, err := migrations.Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		registered = append(registered, dialect)
		return nil
	}, migrations.WithValidationTargets(" SQLite ", "sqlite"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(registered) != 1 || registered[0] != migrations.DialectSQLite {
		t.Fatalf("expected sqlite only, got %v", registered)
	}
}

func TestRegister_RequiresRegisterFunc(t *testing.T) {
	if _, err := migrations.Register(context.Background(), nil); err == nil {
		t.Fatalf("expected nil register function rejection")
	}
}
