package vec

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/viant/vecindex/index"
	"github.com/viant/vecindex/index/bruteforce"
	"github.com/viant/vecindex/index/cover"
	"github.com/viant/vecindex/index/hnsw"
	"github.com/viant/vecindex/vector"
)

// Kind selects the similarity structure of an index.
type Kind string

const (
	KindAuto  Kind = "auto"
	KindBrute Kind = "brute"
	KindCover Kind = "cover"
	KindHNSW  Kind = "hnsw"
)

const (
	autoCoverMinDocs            = 4000
	autoCoverMinDim             = 64
	autoCoverMinDensity float64 = 16
)

// ParseKind parses a kind name; the empty string means KindAuto.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindAuto, nil
	case KindAuto, KindBrute, KindCover, KindHNSW:
		return k, nil
	}
	return "", fmt.Errorf("vec: unknown index kind %q", s)
}

// ResolveKind maps KindAuto to a concrete kind for a collection of docs
// vectors of dimension dim. A cover tree is chosen once the collection is
// large and dense enough for pruning to pay off; the dot metric always
// resolves to brute force because it is not a distance.
func ResolveKind(k Kind, metric vector.Metric, docs, dim int) Kind {
	switch k {
	case KindBrute, KindCover, KindHNSW:
		return k
	}
	if metric == vector.Dot {
		return KindBrute
	}
	if docs >= autoCoverMinDocs && dim >= autoCoverMinDim {
		density := float64(docs) / float64(dim)
		if density >= autoCoverMinDensity {
			return KindCover
		}
	}
	return KindBrute
}

// Options tune an Index.
type Options struct {
	// AllowStaleReads serves searches from the last published structure
	// while a build is in progress.
	AllowStaleReads bool
	Cover           []cover.Option
	HNSW            hnsw.Config
	Logger          *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// newStructure creates an empty structure of a concrete kind.
func (o Options) newStructure(k Kind, metric vector.Metric) (index.Index, error) {
	switch k {
	case KindCover:
		return cover.New(metric, o.Cover...)
	case KindHNSW:
		return hnsw.New(metric, o.HNSW)
	case KindBrute:
		return bruteforce.New(metric)
	}
	return nil, fmt.Errorf("vec: cannot create structure of kind %q", k)
}

// ParseOptions interprets "key=value" index arguments as accepted in
// configuration files and on the command line:
//
//	index=auto|brute|cover|hnsw
//	cover_base=<float > 1>
//	cover_bound=node|level
//	hnsw_m=<int> hnsw_ef_construction=<int> hnsw_ef_search=<int> hnsw_seed=<int>
//	stale_reads=true|false
//
// Unknown keys and malformed values are ignored.
func ParseOptions(args []string) (Kind, Options) {
	kind := KindAuto
	var opts Options
	for _, raw := range args {
		a := strings.TrimSpace(raw)
		if a == "" {
			continue
		}
		parts := strings.SplitN(a, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		val := strings.TrimSpace(parts[1])
		switch key {
		case "index":
			if k, err := ParseKind(val); err == nil {
				kind = k
			}
		case "cover_base":
			if f, err := strconv.ParseFloat(val, 32); err == nil && f > 1 {
				opts.Cover = append(opts.Cover, cover.WithBase(float32(f)))
			}
		case "cover_bound":
			switch strings.ToLower(val) {
			case "level", "boundlevel":
				opts.Cover = append(opts.Cover, cover.WithBound(cover.BoundLevel))
			case "per_node", "pernode", "node":
				opts.Cover = append(opts.Cover, cover.WithBound(cover.BoundNode))
			}
		case "hnsw_m":
			if n, err := strconv.Atoi(val); err == nil && n > 1 {
				opts.HNSW.M = n
			}
		case "hnsw_ef_construction":
			if n, err := strconv.Atoi(val); err == nil && n > 0 {
				opts.HNSW.EfConstruction = n
			}
		case "hnsw_ef_search":
			if n, err := strconv.Atoi(val); err == nil && n > 0 {
				opts.HNSW.EfSearch = n
			}
		case "hnsw_seed":
			if n, err := strconv.ParseUint(val, 10, 64); err == nil {
				opts.HNSW.Seed = n
			}
		case "stale_reads":
			if b, err := strconv.ParseBool(val); err == nil {
				opts.AllowStaleReads = b
			}
		}
	}
	return kind, opts
}
