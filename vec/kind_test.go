package vec

import (
	"testing"

	"github.com/viant/vecindex/vector"
)

func TestResolveKind(t *testing.T) {
	cases := []struct {
		kind   Kind
		metric vector.Metric
		docs   int
		dim    int
		want   Kind
	}{
		{KindAuto, vector.Cosine, 10, 2, KindBrute},
		{KindAuto, vector.Cosine, 3999, 64, KindBrute},
		{KindAuto, vector.Cosine, 4000, 64, KindCover},
		{KindAuto, vector.Cosine, 4000, 512, KindBrute},
		{KindAuto, vector.Euclidean, 100000, 128, KindCover},
		{KindAuto, vector.Dot, 100000, 128, KindBrute},
		{KindAuto, vector.Cosine, 100000, 32, KindBrute},
		{KindHNSW, vector.Cosine, 1, 1, KindHNSW},
		{KindCover, vector.Cosine, 1, 1, KindCover},
	}
	for _, tc := range cases {
		if got := ResolveKind(tc.kind, tc.metric, tc.docs, tc.dim); got != tc.want {
			t.Fatalf("ResolveKind(%s, %s, %d, %d) = %s, want %s", tc.kind, tc.metric, tc.docs, tc.dim, got, tc.want)
		}
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"": KindAuto, "HNSW": KindHNSW, " cover ": KindCover, "brute": KindBrute} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseKind("ivf"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestParseOptions(t *testing.T) {
	kind, opts := ParseOptions([]string{
		"index=hnsw",
		"hnsw_m=32",
		"hnsw_ef_search=128",
		"hnsw_ef_construction=bogus",
		"hnsw_seed=7",
		"cover_base=2",
		"cover_bound=level",
		"stale_reads=true",
		"garbage",
		"",
	})
	if kind != KindHNSW {
		t.Fatalf("kind = %s", kind)
	}
	if opts.HNSW.M != 32 || opts.HNSW.EfSearch != 128 || opts.HNSW.EfConstruction != 0 || opts.HNSW.Seed != 7 {
		t.Fatalf("hnsw config = %+v", opts.HNSW)
	}
	if len(opts.Cover) != 2 {
		t.Fatalf("cover options = %d, want 2", len(opts.Cover))
	}
	if !opts.AllowStaleReads {
		t.Fatal("stale reads not enabled")
	}
	if kind, _ := ParseOptions([]string{"index=unknown"}); kind != KindAuto {
		t.Fatalf("invalid kind must keep auto, got %s", kind)
	}
}
