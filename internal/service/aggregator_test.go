package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trackboard/trackboard/internal/domain"
	"github.com/trackboard/trackboard/internal/service"
)

func TestWeightedAverage(t *testing.T) {
	// Two tasks at 80% x2.0 and 20% x1.0: (160+20)/3 = 60.0
	assert.Equal(t, 60.0, service.WeightedAverage(80*2+20*1, 3))

	// Single decimal rounding
	assert.Equal(t, 33.3, service.WeightedAverage(100, 3))
	assert.Equal(t, 66.7, service.WeightedAverage(200, 3))
}

func TestWeightedAverage_EmptySet(t *testing.T) {
	assert.Equal(t, 0.0, service.WeightedAverage(0, 0))
	assert.Equal(t, 0.0, service.WeightedAverage(100, 0))
	assert.Equal(t, 0.0, service.WeightedAverage(100, -1))
}

func TestReportActivityScore(t *testing.T) {
	assert.Equal(t, 0.0, service.ReportActivityScore(0))
	assert.Equal(t, 40.0, service.ReportActivityScore(4))
	assert.Equal(t, 100.0, service.ReportActivityScore(10))

	// Saturates instead of growing past 100
	assert.Equal(t, 100.0, service.ReportActivityScore(25))
}

func TestMeanKPIAchievement(t *testing.T) {
	kpis := []*domain.KPI{
		{Target: 100, Actual: 50},  // 50
		{Target: 100, Actual: 150}, // capped at 100
		{Target: 0, Actual: 10},    // zero target scores 0
	}
	assert.Equal(t, 50.0, service.MeanKPIAchievement(kpis))
}

func TestMeanKPIAchievement_Empty(t *testing.T) {
	assert.Equal(t, 0.0, service.MeanKPIAchievement(nil))
	assert.Equal(t, 0.0, service.MeanKPIAchievement([]*domain.KPI{}))
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 33.33, service.Round2(100.0/3))
	assert.Equal(t, 66.67, service.Round2(200.0/3))
	assert.Equal(t, 33.3, service.Round1(100.0/3))
	assert.Equal(t, 0.0, service.Round2(0))
}

// The four signal weights must stay a convex combination so an all-100 track
// scores exactly 100.
func TestSignalWeightsSumToOne(t *testing.T) {
	all100 := 100*0.4 + 100*0.1 + 100*0.3 + 100*0.2
	assert.Equal(t, 100.0, service.Round2(all100))
}
