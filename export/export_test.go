package export

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/zms-erp/ledgertree/hierarchy"
	"github.com/zms-erp/ledgertree/models"
)

func TestWriteTree(t *testing.T) {
	def := models.DefaultCategories[0]
	roots, _ := hierarchy.BuildHierarchy([]models.Account{
		{ID: "1", ListID: "10", Description: "Cash"},
		{ID: "2", ListID: "10.1", Description: "Petty Cash", ParentAccountID: models.StringPtr("1")},
		{ID: "3", ListID: "11", Description: "Bank"},
	})
	roots = hierarchy.WithCategoryHeader(roots, def)

	var buf bytes.Buffer
	require.NoError(t, WriteTree(&buf, def, roots))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(SheetName(def))
	require.NoError(t, err)
	got = trimRows(got)
	want := [][]string{
		Columns,
		{"1", "Assets", "0"},
		{"10", "    Cash", "1"},
		{"10.1", "        Petty Cash", "2", "1"},
		{"11", "    Bank", "1"},
	}
	assert.Equal(t, want, got)
}

func TestWriteEmptyTree(t *testing.T) {
	def := models.CategoryDef{Category: models.CategoryRevenue}
	var buf bytes.Buffer
	require.NoError(t, WriteTree(&buf, def, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows("revenue")
	require.NoError(t, err)
	got = trimRows(got)
	assert.Equal(t, [][]string{Columns}, got)
}

func TestSheetName(t *testing.T) {
	tests := []struct {
		name string
		def  models.CategoryDef
		want string
	}{
		{"label", models.CategoryDef{Category: models.CategoryAssets, HeaderLabel: "Assets"}, "Assets"},
		{"falls back to category", models.CategoryDef{Category: models.CategoryRevenue}, "revenue"},
		{"invalid characters", models.CategoryDef{HeaderLabel: "Assets: Fixed/Current [IFRS]?"}, "Assets  Fixed Current (IFRS)"},
		{"only invalid characters", models.CategoryDef{Category: models.CategoryCapital, HeaderLabel: "*?"}, "capital"},
		{"multibyte label is cut by character", models.CategoryDef{HeaderLabel: strings.Repeat("é", 40)}, strings.Repeat("é", 31)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SheetName(tt.def)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, utf8.RuneCountInString(got), 31)
		})
	}
}

func TestWriteTreeWithUnsafeLabel(t *testing.T) {
	def := models.CategoryDef{
		Category:     models.CategoryLiabilities,
		HeaderListID: "2",
		HeaderLabel:  "Liabilities / Обязательства: долгосрочные и краткосрочные",
	}
	var buf bytes.Buffer
	require.NoError(t, WriteTree(&buf, def, hierarchy.WithCategoryHeader(nil, def)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetName(def)}, f.GetSheetList())
}

// trimRows drops trailing empty cells so rows compare by content
func trimRows(rows [][]string) [][]string {
	for i, r := range rows {
		for len(r) > 0 && r[len(r)-1] == "" {
			r = r[:len(r)-1]
		}
		rows[i] = r
	}
	return rows
}
