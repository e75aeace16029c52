package targets

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hamed0406/netprobe/internal/domain"
)

func TestRegistry_AddRemoveBumpsVersionOnce(t *testing.T) {
	r := NewRegistry(State{})
	if r.Version() != 1 {
		t.Fatalf("want initial version 1, got %d", r.Version())
	}

	st, err := r.AddTCP(domain.TCPTarget{ID: "t1", Host: "127.0.0.1", Port: 9, IntervalSec: 1})
	if err != nil {
		t.Fatalf("AddTCP: %v", err)
	}
	if st.Version != 2 || len(st.TCP) != 1 {
		t.Fatalf("unexpected state after add: %+v", st)
	}

	if _, err := r.AddTCP(domain.TCPTarget{ID: "t1", Host: "127.0.0.2", Port: 9, IntervalSec: 1}); !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
	if r.Version() != 2 {
		t.Fatalf("failed mutation must not bump version, got %d", r.Version())
	}

	if _, err := r.Remove(domain.KindTCP, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := r.AddHTTP(domain.HTTPTarget{ID: "h", URL: "ftp://x"}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}

	st, err = r.Remove(domain.KindTCP, "t1")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if st.Version != 3 || len(st.TCP) != 0 {
		t.Fatalf("unexpected state after remove: %+v", st)
	}
}

func TestRegistry_SameIDAcrossKindsIsAllowed(t *testing.T) {
	r := NewRegistry(State{})
	if _, err := r.AddTCP(domain.TCPTarget{ID: "x", Host: "h"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AddDNS(domain.DNSTarget{ID: "x", FQDN: "example.com"}); err != nil {
		t.Fatalf("ids are unique per kind only: %v", err)
	}
	if got := len(r.Snapshot().Targets()); got != 2 {
		t.Fatalf("want 2 targets, got %d", got)
	}
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	r := NewRegistry(Defaults())
	snap := r.Snapshot()
	snap.DNS[0].Resolvers[0] = "9.9.9.9"
	snap.TCP = nil
	again := r.Snapshot()
	if again.DNS[0].Resolvers[0] != "1.1.1.1" || len(again.TCP) != 2 {
		t.Fatalf("registry state leaked through snapshot: %+v", again)
	}
}

func TestRegistry_ChangedSignals(t *testing.T) {
	r := NewRegistry(State{})
	select {
	case <-r.Changed():
		t.Fatal("no change yet")
	default:
	}
	_, _ = r.AddDNS(domain.DNSTarget{ID: "d", FQDN: "example.com"})
	_, _ = r.AddDNS(domain.DNSTarget{ID: "e", FQDN: "example.org"})
	select {
	case <-r.Changed():
	default:
		t.Fatal("expected a change signal")
	}
}

func TestRegistry_ConcurrentMutationsCountExactly(t *testing.T) {
	r := NewRegistry(State{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = r.AddTCP(domain.TCPTarget{ID: string(rune('A' + i)), Host: "h"})
		}(i)
	}
	wg.Wait()
	if r.Version() != 51 {
		t.Fatalf("want version 51, got %d", r.Version())
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "targets.yaml")
	doc := `
tcp:
  - id: local
    host: 127.0.0.1
    port: 9
    interval_sec: 1
dns:
  - id: ex
    fqdn: example.com
    record_type: aaaa
    resolvers: [1.1.1.1]
http:
  - id: web
    url: https://example.com
`
	if err := os.WriteFile(p, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if st.Version != 1 || len(st.TCP) != 1 || len(st.DNS) != 1 || len(st.HTTP) != 1 {
		t.Fatalf("unexpected state: %+v", st)
	}
	if st.DNS[0].RecordType != "AAAA" || st.HTTP[0].Method != "GET" || st.HTTP[0].IntervalSec != 5 {
		t.Fatalf("defaults not applied: %+v", st)
	}

	if def, err := LoadFile(""); err != nil || len(def.TCP) != 2 {
		t.Fatalf("empty path should give defaults: %+v %v", def, err)
	}
}

func TestParse_RejectsDuplicatesAndInvalid(t *testing.T) {
	doc := `
tcp:
  - {id: a, host: h}
  - {id: a, host: h2}
  - {id: b, host: h, interval_sec: 500}
`
	_, err := Parse([]byte(doc))
	if !errors.Is(err, ErrConflict) || !errors.Is(err, ErrInvalid) {
		t.Fatalf("want conflict and invalid errors, got %v", err)
	}
}
