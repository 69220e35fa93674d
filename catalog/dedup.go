package catalog

import (
	"context"
	"strconv"
	"strings"

	"github.com/cropsense/s2-biophys/catalog/entities"
	"github.com/cropsense/s2-biophys/service/log"
)

// Deduplicator collapses a raw inventory into one canonical acquisition per
// take. It runs once per search, on the raw result, before anything is fetched.
type Deduplicator interface {
	Deduplicate(ctx context.Context, acquisitions []*entities.Acquisition) []*entities.Acquisition
}

// BaselineDeduplicator removes acquisitions that appear twice in the inventory.
// A reprocessing of a take is published under a new identifier where only the
// processing sequence changes. When searching for data, all processings are
// found, even though they are the same take. This routine groups them and
// keeps the one with the highest sequence, in the slot of the group's first
// appearance; the first one found wins ties.
// Credit: OpenSarToolkit
type BaselineDeduplicator struct{}

func (BaselineDeduplicator) Deduplicate(ctx context.Context, acquisitions []*entities.Acquisition) []*entities.Acquisition {
	type slot struct {
		index    int
		baseline int
	}
	groups := map[string]slot{}

	j := 0
	for _, acq := range acquisitions {
		key, baseline := groupingKey(ctx, acq.SourceID)
		if g, ok := groups[key]; !ok {
			acquisitions[j] = acq
			groups[key] = slot{j, baseline}
			j++
		} else if baseline > g.baseline {
			acquisitions[g.index] = acq
			groups[key] = slot{g.index, baseline}
		}
	}

	return acquisitions[0:j]
}

// groupingKey splits the identifier on "_". Tokens 0, 1, 2 and the last one
// identify the take, token 3 is the processing sequence. An identifier whose
// sequence does not parse keeps its record with sequence 0: it survives when
// alone in its group and loses to any well-formed duplicate.
func groupingKey(ctx context.Context, sourceID string) (string, int) {
	tokens := strings.Split(sourceID, "_")
	if len(tokens) < 4 {
		log.Logger(ctx).Sugar().Debugf("deduplicate: %s has no positional tokens, kept as its own group", sourceID)
		return sourceID, 0
	}
	baseline, err := strconv.Atoi(tokens[3])
	if err != nil {
		log.Logger(ctx).Sugar().Debugf("deduplicate: %s has no processing sequence, defaults to 0", sourceID)
		baseline = 0
	}
	return strings.Join([]string{tokens[0], tokens[1], tokens[2], tokens[len(tokens)-1]}, "_"), baseline
}
