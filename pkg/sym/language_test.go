package sym

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestParseLanguageIDValid(t *testing.T) {
	proc, be, bits, variant, err := ParseLanguageID("TOY:LE:16:default")
	if err != nil {
		t.Fatalf("ParseLanguageID: %v", err)
	}
	if proc != "TOY" || be || bits != 16 || variant != "default" {
		t.Fatalf("got (%q,%v,%d,%q)", proc, be, bits, variant)
	}
}

func TestParseLanguageIDBigEndian(t *testing.T) {
	_, be, _, _, err := ParseLanguageID("Z80:be:8:default")
	if err != nil {
		t.Fatalf("ParseLanguageID: %v", err)
	}
	if !be {
		t.Fatal("expected big-endian true for lowercase 'be'")
	}
}

func TestParseLanguageIDMalformed(t *testing.T) {
	if _, _, _, _, err := ParseLanguageID("TOY:LE:16"); err == nil {
		t.Fatal("expected error for too few fields")
	}
}

func TestParseLanguageIDBadEndian(t *testing.T) {
	if _, _, _, _, err := ParseLanguageID("TOY:MID:16:default"); err == nil {
		t.Fatal("expected error for invalid endianness token")
	}
}

func TestParseLanguageIDBadBits(t *testing.T) {
	if _, _, _, _, err := ParseLanguageID("TOY:LE:sixteen:default"); err == nil {
		t.Fatal("expected error for non-numeric bit width")
	}
}

func TestCatalogGetMiss(t *testing.T) {
	c := NewCatalog()
	if c.Get("TOY:LE:16:default") != nil {
		t.Fatal("expected nil on an empty catalog")
	}
}

func TestCatalogGetOrLoadCachesResult(t *testing.T) {
	c := NewCatalog()
	var calls int32
	load := func() (*Language, error) {
		atomic.AddInt32(&calls, 1)
		return &Language{ID: "TOY:LE:16:default"}, nil
	}

	l1, err := c.GetOrLoad("toy:le:16:default", load)
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	l2, err := c.GetOrLoad("TOY:LE:16:DEFAULT", load)
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if l1 != l2 {
		t.Fatal("expected the same cached Language regardless of id case")
	}
	if calls != 1 {
		t.Fatalf("load called %d times, want 1", calls)
	}
}

func TestCatalogGetOrLoadSingleLoadUnderConcurrency(t *testing.T) {
	c := NewCatalog()
	var calls int32
	var wg sync.WaitGroup
	results := make([]*Language, 20)

	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l, _ := c.GetOrLoad("TOY:LE:16:default", func() (*Language, error) {
				atomic.AddInt32(&calls, 1)
				return &Language{ID: "TOY:LE:16:default"}, nil
			})
			results[i] = l
		}(i)
	}
	wg.Wait()

	for i, l := range results {
		if l != results[0] {
			t.Fatalf("goroutine %d got a different Language instance", i)
		}
	}
	if calls != 1 {
		t.Fatalf("load called %d times under concurrency, want 1", calls)
	}
}

func TestCatalogGetOrLoadPropagatesError(t *testing.T) {
	c := NewCatalog()
	wantErr := errors.New("boom")
	_, err := c.GetOrLoad("TOY:LE:16:default", func() (*Language, error) {
		return nil, wantErr
	})
	if err != wantErr {
		t.Fatalf("GetOrLoad error = %v, want %v", err, wantErr)
	}
	if c.Get("TOY:LE:16:default") != nil {
		t.Fatal("a failed load should not populate the cache")
	}
}

func TestDefaultCatalogIsShared(t *testing.T) {
	if DefaultCatalog() != DefaultCatalog() {
		t.Fatal("DefaultCatalog should return the same instance")
	}
}
