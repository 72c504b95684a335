package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterKeyStableUnderReordering(t *testing.T) {
	a := Filter{Authorities: []string{"TRF", "MCR"}, Routes: []string{"A56"}, Year: 2024}
	b := Filter{Authorities: []string{"MCR", "TRF"}, Routes: []string{"A56"}, Year: 2024}
	assert.Equal(t, a.Key(), b.Key())
}

func TestFilterKeyDistinguishesSelections(t *testing.T) {
	a := Filter{Authorities: []string{"TRF"}}
	b := Filter{Routes: []string{"TRF"}}
	assert.NotEqual(t, a.Key(), b.Key(), "authority and route selections must not collide")

	c := Filter{Year: 2023}
	d := Filter{Year: 2024}
	assert.NotEqual(t, c.Key(), d.Key())
}

func TestFilterIsZero(t *testing.T) {
	assert.True(t, Filter{}.IsZero())
	assert.False(t, Filter{Year: 2024}.IsZero())
	assert.False(t, Filter{Subgroups: []string{"CW1"}}.IsZero())
}

func TestFilterWithYear(t *testing.T) {
	f := Filter{Authorities: []string{"TRF"}}
	g := f.WithYear(2022)
	assert.Equal(t, 2022, g.Year)
	assert.Equal(t, 0, f.Year, "original filter must be unchanged")
	assert.Equal(t, f.Authorities, g.Authorities)
}
