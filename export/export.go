// Package export writes category trees as Excel workbooks.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/zms-erp/ledgertree/models"
)

// Columns of the exported sheet
var Columns = []string{"List ID", "Description", "Level", "Parent ID"}

const indent = "    "

// WriteTree writes roots in pre-order to a single-sheet workbook named after
// the category. Descriptions are indented by depth.
func WriteTree(w io.Writer, def models.CategoryDef, roots []*models.Node) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName(def)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, col := range Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "D1", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "B", 60); err != nil {
		return err
	}

	row := 2
	for _, r := range rows(roots) {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		values := []any{
			r.node.ListID,
			strings.Repeat(indent, r.level) + r.node.Description,
			r.level,
			r.node.ParentID(),
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("writing row %d: %w", row, err)
		}
		row++
	}

	return f.Write(w)
}

// maxSheetName is the Excel limit on sheet name length, in characters
const maxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(
	":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")",
)

// SheetName returns the sheet name used for a category. Characters Excel
// rejects are replaced and the name is cut to 31 characters.
func SheetName(def models.CategoryDef) string {
	name := strings.TrimSpace(sheetNameReplacer.Replace(def.HeaderLabel))
	name = strings.Trim(name, "'")
	if name == "" {
		name = string(def.Category)
	}
	if runes := []rune(name); len(runes) > maxSheetName {
		name = strings.TrimSpace(string(runes[:maxSheetName]))
	}
	return name
}

type row struct {
	node  *models.Node
	level int
}

// rows walks the trees in pre-order without recursion
func rows(roots []*models.Node) []row {
	var out []row
	stack := make([]row, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, row{node: roots[i]})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, top)
		for i := len(top.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, row{node: top.node.Children[i], level: top.level + 1})
		}
	}
	return out
}
