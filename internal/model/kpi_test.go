package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyRoughness(t *testing.T) {
	iri, ok := KPIByCode(KPIRoughness)
	require.True(t, ok)

	tests := []struct {
		value float64
		want  ConditionClass
	}{
		{0.0, VeryGood},
		{1.49, VeryGood},
		{1.5, Good},
		{2.49, Good},
		{2.5, Fair},
		{3.5, Poor},
		{4.99, Poor},
		{5.0, VeryPoor},
		{12.0, VeryPoor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, iri.Classify(tt.value), "IRI %v", tt.value)
	}
}

func TestClassifySkidInverted(t *testing.T) {
	skid, ok := KPIByCode(KPISkid)
	require.True(t, ok)

	// Higher skid resistance is better, so the comparison inverts.
	tests := []struct {
		value float64
		want  ConditionClass
	}{
		{0.60, VeryGood},
		{0.50, VeryGood},
		{0.49, Good},
		{0.45, Good},
		{0.44, Fair},
		{0.40, Fair},
		{0.39, Poor},
		{0.35, Poor},
		{0.34, VeryPoor},
		{0.10, VeryPoor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, skid.Classify(tt.value), "SKID %v", tt.value)
	}
}

func TestClassBoundsAscending(t *testing.T) {
	rut, _ := KPIByCode(KPIRutDepth)

	min, max, hasMin, hasMax := rut.ClassBounds(VeryGood)
	assert.False(t, hasMin)
	assert.True(t, hasMax)
	assert.Equal(t, 5.0, max)
	_ = min

	min, max, hasMin, hasMax = rut.ClassBounds(Fair)
	assert.True(t, hasMin)
	assert.True(t, hasMax)
	assert.Equal(t, 10.0, min)
	assert.Equal(t, 15.0, max)

	_, _, hasMin, hasMax = rut.ClassBounds(VeryPoor)
	assert.True(t, hasMin)
	assert.False(t, hasMax)
}

func TestClassBoundsDescending(t *testing.T) {
	skid, _ := KPIByCode(KPISkid)

	min, max, hasMin, hasMax := skid.ClassBounds(VeryGood)
	assert.True(t, hasMin)
	assert.False(t, hasMax)
	assert.Equal(t, 0.50, min)
	_ = max

	min, max, hasMin, hasMax = skid.ClassBounds(Poor)
	assert.True(t, hasMin)
	assert.True(t, hasMax)
	assert.Equal(t, 0.35, min)
	assert.Equal(t, 0.40, max)
}

func TestClassifyTextureInverted(t *testing.T) {
	tex, ok := KPIByCode(KPITexture)
	require.True(t, ok)

	// Texture depth works like skid resistance: a worn, polished surface
	// has low texture, so low values are the bad end.
	tests := []struct {
		value float64
		want  ConditionClass
	}{
		{1.5, VeryGood},
		{1.1, VeryGood},
		{1.0, Good},
		{0.8, Fair},
		{0.6, Poor},
		{0.4, VeryPoor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tex.Classify(tt.value), "TEX %v", tt.value)
	}
}

func TestKPIDirections(t *testing.T) {
	inverted := map[string]bool{KPISkid: true, KPITexture: true}
	for _, info := range AllKPIs() {
		assert.Equal(t, inverted[info.Code], info.HigherIsBetter, info.Code)
	}
}

func TestClassifyKPIUnknownCode(t *testing.T) {
	_, err := ClassifyKPI("BOGUS", 1.0)
	assert.Error(t, err)
}

func TestAllKPIsOrderAndRegistry(t *testing.T) {
	kpis := AllKPIs()
	require.Len(t, kpis, 5)
	assert.Equal(t, KPIRoughness, kpis[0].Code)
	assert.Equal(t, KPICracking, kpis[4].Code)
	for _, k := range kpis {
		assert.NotEmpty(t, k.Name)
		assert.NotEmpty(t, k.Unit)
	}
}
