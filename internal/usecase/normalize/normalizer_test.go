package normalize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"aidjobs-crawler/internal/domain/entity"
)

func TestNormalizer_Apply(t *testing.T) {
	n := NewNormalizer(NewCache(nil))
	job := &entity.Job{}

	raw := Raw{
		Country:      "Kenya",
		Level:        "Senior Level",
		Modality:     "Work From Home",
		Tags:         []string{"child protection", "underwater basket weaving"},
		Benefits:     []string{"relocation"},
		Donors:       []string{"USAID"},
		DurationText: "12 month renewable contract",
	}

	n.Apply(context.Background(), raw, job)

	assert.Equal(t, "KE", job.CountryISO2)
	assert.Equal(t, "senior", job.Level)
	assert.Equal(t, "remote", job.Modality)
	assert.True(t, job.Remote)
	assert.Contains(t, job.Tags, "protection")
	assert.Contains(t, job.Benefits, "relocation")
	require_ := 12
	if assert.NotNil(t, job.ContractMonths) {
		assert.Equal(t, require_, *job.ContractMonths)
	}

	var gotUnknownTag, gotUnknownDonor bool
	for _, u := range job.RawMetadata.Unknown {
		if u.Field == "tags" && u.Value == "underwater basket weaving" {
			gotUnknownTag = true
		}
		if u.Field == "donors" && u.Value == "USAID" {
			gotUnknownDonor = true
		}
	}
	assert.True(t, gotUnknownTag, "expected unmatched tag to be captured as unknown")
	assert.True(t, gotUnknownDonor, "expected unmatched donor to be captured as unknown")
}
