package catalog

import (
	"context"
	"testing"

	"github.com/cropsense/s2-biophys/catalog/entities"
)

func acquisitionList(sourceIDs ...string) []*entities.Acquisition {
	acquisitions := make([]*entities.Acquisition, len(sourceIDs))
	for i, sourceID := range sourceIDs {
		acquisitions[i] = &entities.Acquisition{SourceID: sourceID}
		acquisitions[i].AutoFill()
	}
	return acquisitions
}

func checkSourceIDs(t *testing.T, acquisitions []*entities.Acquisition, expected []string) {
	t.Helper()
	if len(acquisitions) != len(expected) {
		t.Fatalf("expecting %d, found %d acquisitions", len(expected), len(acquisitions))
	}
	for i, acq := range acquisitions {
		if acq.SourceID != expected[i] {
			t.Errorf("expecting acquisition %s found %s", expected[i], acq.SourceID)
		}
	}
}

func TestDeduplicate(t *testing.T) {
	ctx := context.Background()
	dedup := BaselineDeduplicator{}

	acquisitions := dedup.Deduplicate(ctx, acquisitionList(
		"S2B_32TNS_20200101_0_L2A",
		"S2A_32TNS_20200103_0_L2A",
		"S2B_32TNS_20200101_3_L2A",
		"S2B_32TNS_20200101_1_L2A",
		"S2B_31TGM_20200101_0_L2A",
	))

	// one acquisition per take, the highest sequence, in first-appearance order
	checkSourceIDs(t, acquisitions, []string{
		"S2B_32TNS_20200101_3_L2A",
		"S2A_32TNS_20200103_0_L2A",
		"S2B_31TGM_20200101_0_L2A",
	})

	// running it again changes nothing
	checkSourceIDs(t, dedup.Deduplicate(ctx, acquisitions), []string{
		"S2B_32TNS_20200101_3_L2A",
		"S2A_32TNS_20200103_0_L2A",
		"S2B_31TGM_20200101_0_L2A",
	})
}

func TestDeduplicateTies(t *testing.T) {
	ctx := context.Background()
	dedup := BaselineDeduplicator{}

	first := &entities.Acquisition{SourceID: "S2B_32TNS_20200101_2_L2A", CloudCover: 1}
	second := &entities.Acquisition{SourceID: "S2B_32TNS_20200101_2_L2A", CloudCover: 2}

	acquisitions := dedup.Deduplicate(ctx, []*entities.Acquisition{first, second})
	if len(acquisitions) != 1 {
		t.Fatalf("expecting 1, found %d acquisitions", len(acquisitions))
	}
	if acquisitions[0] != first {
		t.Errorf("expecting the first acquisition to win the tie")
	}
}

func TestDeduplicateMalformed(t *testing.T) {
	ctx := context.Background()
	dedup := BaselineDeduplicator{}

	// an unparsable sequence keeps its record when alone in its group
	acquisitions := dedup.Deduplicate(ctx, acquisitionList("S2B_32TNS_20200101_NRT_L2A", "SENTINEL2"))
	checkSourceIDs(t, acquisitions, []string{"S2B_32TNS_20200101_NRT_L2A", "SENTINEL2"})

	// and loses to any well-formed duplicate
	acquisitions = dedup.Deduplicate(ctx, acquisitionList(
		"S2B_32TNS_20200101_NRT_L2A",
		"S2B_32TNS_20200101_1_L2A",
	))
	checkSourceIDs(t, acquisitions, []string{"S2B_32TNS_20200101_1_L2A"})
}
