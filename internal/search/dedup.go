package search

import (
	"github.com/robert-malhotra/stac-federator/internal/normalize"
	"github.com/robert-malhotra/stac-federator/internal/stac"
)

// Deduplicate folds items describing the same acquisition, as determined by
// normalize.Identity, into one. The item from the mission's authoritative
// provider is kept, otherwise the first seen; the kept item takes the
// position of the first occurrence. Discarded ids are listed in
// Properties.Duplicates and their hrefs appended to the matching band's
// AlternateHrefs.
func Deduplicate(items []*stac.Item, authority func(mission string) string) []*stac.Item {
	out := make([]*stac.Item, 0, len(items))
	seen := make(map[string]int)

	for _, item := range items {
		mission, key, ok := normalize.Identity(item)
		if !ok {
			out = append(out, item)
			continue
		}

		pos, dup := seen[key]
		if !dup {
			seen[key] = len(out)
			out = append(out, item)
			continue
		}

		kept := out[pos]
		auth := ""
		if authority != nil {
			auth = authority(mission)
		}
		if auth != "" && item.Properties.Provider == auth && kept.Properties.Provider != auth {
			merge(item, kept)
			out[pos] = item
		} else {
			merge(kept, item)
		}
	}

	return out
}

func merge(kept, dup *stac.Item) {
	kept.Properties.Duplicates = append(kept.Properties.Duplicates, dup.ID)
	kept.Properties.Duplicates = append(kept.Properties.Duplicates, dup.Properties.Duplicates...)

	for band, asset := range dup.Assets {
		target, ok := kept.Assets[band]
		if !ok || asset == nil || asset.Href == "" {
			continue
		}
		target.AlternateHrefs = append(target.AlternateHrefs, stac.AlternateHref{
			Provider: dup.Properties.Provider,
			SceneID:  dup.ID,
			Href:     asset.Href,
		})
		target.AlternateHrefs = append(target.AlternateHrefs, asset.AlternateHrefs...)
	}
}
