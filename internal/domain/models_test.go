package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategory_Unit(t *testing.T) {
	for _, c := range Categories {
		want := UnitTonne
		if c == Gold {
			want = UnitKilogram
		}
		assert.Equal(t, want, c.Unit(), string(c))
	}
}

func TestCategory_Group(t *testing.T) {
	tests := []struct {
		category Category
		expected Group
	}{
		{Limestone, GroupIndustrial},
		{Gypsum, GroupIndustrial},
		{Silica, GroupIndustrial},
		{Dolomite, GroupIndustrial},
		{Copper, GroupMetallic},
		{Chromite, GroupMetallic},
		{Manganese, GroupMetallic},
		{Gold, GroupPrecious},
		{Category("Lithium"), GroupPrecious},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.category.Group())
		})
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" limestone ")
	require.NoError(t, err)
	assert.Equal(t, Limestone, c)

	_, err = ParseCategory("unobtainium")
	assert.Error(t, err)
}

func TestCategorySet_Has(t *testing.T) {
	set := CategorySet{Copper, Gold}

	assert.True(t, set.Has(Copper))
	assert.True(t, set.Has(Gold))
	assert.False(t, set.Has(Gypsum))
	assert.False(t, CategorySet(nil).Has(Copper))
}

func TestValidity(t *testing.T) {
	assert.True(t, StatusClosed.Valid())
	assert.False(t, Status("mothballed").Valid())
	assert.True(t, BandYellow.Valid())
	assert.False(t, Band("blue").Valid())
	assert.True(t, Dolomite.Valid())
	assert.False(t, Category("copper").Valid())
}
