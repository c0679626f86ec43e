//go:build integration

package catalog

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"testing"

	"PuertoComercio/pkg/kit"
)

func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := kit.OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS catalog_document`); err != nil {
		t.Fatalf("drop: %v", err)
	}

	s := NewPostgresStore(db)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestPostgresStore_Scenario(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgresStore(t)

	if _, err := s.Snapshot(ctx); !errors.Is(err, ErrNoCatalog) {
		t.Fatalf("snapshot before first access: %v", err)
	}

	a, err := s.Create(ctx, sample("A"))
	if err != nil || a.ID != 100 {
		t.Fatalf("A=%+v err=%v", a, err)
	}
	b, err := s.Create(ctx, sample("B"))
	if err != nil || b.ID != 101 {
		t.Fatalf("B=%+v err=%v", b, err)
	}

	if err := s.Delete(ctx, 100); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, 100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err=%v", err)
	}

	if _, err := s.Update(ctx, 101, sample("B2")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, 101)
	if err != nil || got.Nombre != "B2" || got.ID != 101 {
		t.Fatalf("got=%+v err=%v", got, err)
	}
}

func TestPostgresStore_ConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgresStore(t)

	const n = 20
	ids := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := s.Create(ctx, sample("p"))
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			ids[i] = p.ID
		}(i)
	}
	wg.Wait()

	sort.Ints(ids)
	for i, id := range ids {
		if id != InitialNextID+i {
			t.Fatalf("ids=%v", ids)
		}
	}
}
