package sites

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JakeFAU/legal-notice-harvester/internal/harvest"
)

// Override replaces parts of a site's default configuration. Zero values keep
// the default.
type Override struct {
	BaseURL  string
	MaxPages int
}

type builder struct {
	defaults func() harvest.SiteConfig
	build    func(harvest.SiteConfig) harvest.Strategy
}

var builders = map[string]builder{
	AgoraRNID: {
		defaults: AgoraRNConfig,
		build:    func(cfg harvest.SiteConfig) harvest.Strategy { return NewAgoraRN(cfg) },
	},
	DiarioComercialID: {
		defaults: DiarioComercialConfig,
		build:    func(cfg harvest.SiteConfig) harvest.Strategy { return NewDiarioComercial(cfg) },
	},
	DiarioDoComercioID: {
		defaults: DiarioDoComercioConfig,
		build:    func(cfg harvest.SiteConfig) harvest.Strategy { return NewDiarioDoComercio(cfg) },
	},
}

// IDs lists the supported site IDs in sorted order.
func IDs() []string {
	ids := make([]string, 0, len(builders))
	for id := range builders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Known reports whether id names a supported site.
func Known(id string) bool {
	_, ok := builders[id]
	return ok
}

// Build returns a strategy for every supported site, sorted by ID, with
// overrides applied. Overrides for unknown sites are rejected.
func Build(overrides map[string]Override) ([]harvest.Strategy, error) {
	for id := range overrides {
		if !Known(id) {
			return nil, fmt.Errorf("override for unknown site %q", id)
		}
	}

	strategies := make([]harvest.Strategy, 0, len(builders))
	for _, id := range IDs() {
		b := builders[id]
		cfg := b.defaults()
		if o, ok := overrides[id]; ok {
			if base := strings.TrimSpace(o.BaseURL); base != "" {
				cfg.BaseURL = strings.TrimRight(base, "/")
			}
			if o.MaxPages > 0 {
				cfg.MaxPages = o.MaxPages
			}
		}
		strategies = append(strategies, b.build(cfg))
	}
	return strategies, nil
}
