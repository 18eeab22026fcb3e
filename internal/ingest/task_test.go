package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercadototal/cvm-ingest/internal/catalog"
)

func TestParseTask(t *testing.T) {
	for _, task := range Tasks() {
		got, err := ParseTask(" " + string(task) + " ")
		require.NoError(t, err)
		assert.Equal(t, task, got)
	}

	_, err := ParseTask("weekly")
	assert.True(t, errors.Is(err, ErrInvalidOptions))
}

func TestTaskKinds(t *testing.T) {
	assert.Equal(t, []string{catalog.DFP, catalog.ITR}, HistoricalFinancials.Kinds())
	assert.Equal(t, []string{catalog.FRE}, HistoricalReferenceForm.Kinds())
	assert.Len(t, DailyUpdate.Kinds(), 9)
	assert.Equal(t, DailyUpdate.Kinds(), CompanyDeepDive.Kinds())

	kinds := DailyUpdate.Kinds()
	kinds[0] = "mutated"
	assert.Equal(t, catalog.DFP, DailyUpdate.Kinds()[0])

	assert.True(t, DailyUpdate.extractsInsiders())
	assert.False(t, HistoricalFinancials.extractsInsiders())
}

func TestSummaryTotals(t *testing.T) {
	s := &Summary{}
	assert.Zero(t, s.Failed())
	read, written, rejected := s.Totals()
	assert.Zero(t, read+written+rejected)
}
