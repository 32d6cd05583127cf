// internal/model/models_test.go
package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverity_Rank(t *testing.T) {
	assert.Less(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Less(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Less(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.Equal(t, len(Severities), Severity("info").Rank())
}

func TestSeverityCounts(t *testing.T) {
	var c SeverityCounts
	for _, s := range []Severity{SeverityCritical, SeverityMedium, SeverityMedium, "info"} {
		c.Add(s)
	}

	assert.Equal(t, 1, c.Get(SeverityCritical))
	assert.Equal(t, 2, c.Get(SeverityMedium))
	assert.Equal(t, 3, c.Total())
	assert.True(t, c.NeedsAttention())
	assert.False(t, SeverityCounts{Low: 4}.NeedsAttention())
}
