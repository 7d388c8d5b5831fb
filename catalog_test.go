package iec104

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	require.NoError(t, c.Validate())
	assert.Same(t, c, DefaultCatalog())

	def, ok := c.Lookup(MMeTf1)
	require.True(t, ok)
	assert.Equal(t, "M_ME_TF_1", def.Name)
	assert.Equal(t, 12, def.ElementLength)
	assert.Equal(t, []string{FieldFloat, FieldQuality, FieldCP56Time}, def.Format)

	//返回副本,不影响目录
	def.Format[0] = "changed"
	def, _ = c.Lookup(MMeTf1)
	assert.Equal(t, FieldFloat, def.Format[0])

	n, ok := c.ElementLength(FieldCP56Time)
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = c.Lookup(200)
	assert.False(t, ok)

	ids := c.TypeIDs()
	assert.Contains(t, ids, uint8(CIcNa1))
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i])
	}
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, []string{"IEEE STD 754", "QDS", "CP56Time2a"}, ParseFormat("IEEE STD 754 + QDS+CP56Time2a"))
	assert.Equal(t, []string{"SIQ"}, ParseFormat(" SIQ "))
	assert.Empty(t, ParseFormat(""))
}

func TestNewCatalogValidation(t *testing.T) {
	lengths := map[string]int{"SIQ": 1, FieldFloat: 4, FieldQuality: 1}
	tests := []struct {
		name    string
		types   []TypeDef
		lengths map[string]int
		wantErr bool
	}{
		{"Valid", []TypeDef{{ID: 1, ElementLength: 1, Format: []string{"SIQ"}}}, lengths, false},
		{"NoFormat", []TypeDef{{ID: 120, ElementLength: 9}}, lengths, false},
		{"UnknownFieldNotChecked", []TypeDef{{ID: 2, ElementLength: 3, Format: []string{"SIQ", "XYZ"}}}, lengths, false},
		{"SumMismatch", []TypeDef{{ID: 13, ElementLength: 6, Format: []string{FieldFloat, FieldQuality}}}, lengths, true},
		{"ZeroElementLength", []TypeDef{{ID: 1, ElementLength: 0}}, lengths, true},
		{"ZeroFieldLength", nil, map[string]int{"SIQ": 0}, true},
		{"Duplicate", []TypeDef{{ID: 1, ElementLength: 1}, {ID: 1, ElementLength: 1}}, lengths, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.types, tt.lengths)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog(strings.NewReader(`
element_lengths:
  SIQ: 1
types:
  - type: 1
    name: M_SP_NA_1
    elements_len: 1
    format: SIQ
`))
	require.NoError(t, err)
	assert.Equal(t, []uint8{1}, c.TypeIDs())

	tests := []struct {
		name string
		yaml string
	}{
		{"BadYAML", "types: [\n"},
		{"TypeOutOfRange", "types:\n  - type: 300\n    elements_len: 1\n"},
		{"TypeZero", "types:\n  - type: 0\n    elements_len: 1\n"},
		{"SumMismatch", "element_lengths:\n  SIQ: 1\ntypes:\n  - type: 1\n    elements_len: 2\n    format: SIQ\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCatalog(strings.NewReader(tt.yaml))
			assert.Error(t, err)
		})
	}
}
