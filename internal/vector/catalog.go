package vector

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// Expected catalog spreadsheet columns, matched case-insensitively after
// trimming. Only the title is mandatory.
var catalogColumns = map[string]string{
	"collateral title": "title",
	"link":             "link",
	"industry":         "industry",
	"business topics":  "business_topics",
	"other notes":      "other_notes",
}

// ReadCatalog parses the marketing collateral workbook into materials. The
// first row is the header; rows without a title are skipped.
func ReadCatalog(path string) ([]Material, error) {
	wb, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vector: open catalog %s", path)
	}
	if len(wb.Sheets) == 0 {
		return nil, eris.New("vector: catalog workbook has no sheets")
	}
	sheet := wb.Sheets[0]
	if len(sheet.Rows) < 2 {
		return nil, eris.New("vector: catalog sheet has no data rows")
	}

	// Map header text to column position.
	cols := make(map[string]int)
	for idx, cell := range sheet.Rows[0].Cells {
		name := strings.ToLower(strings.TrimSpace(cell.String()))
		if key, ok := catalogColumns[name]; ok {
			cols[key] = idx
		}
	}
	if _, ok := cols["title"]; !ok {
		return nil, eris.New("vector: catalog sheet is missing the Collateral Title column")
	}

	cellAt := func(row *xlsx.Row, key string) string {
		idx, ok := cols[key]
		if !ok || idx >= len(row.Cells) {
			return ""
		}
		return strings.TrimSpace(row.Cells[idx].String())
	}

	var materials []Material
	for rowIdx, row := range sheet.Rows[1:] {
		title := cellAt(row, "title")
		if title == "" {
			continue
		}
		materials = append(materials, Material{
			ID:             fmt.Sprintf("mat_%d", rowIdx),
			Title:          title,
			Link:           cellAt(row, "link"),
			Industry:       cellAt(row, "industry"),
			BusinessTopics: cellAt(row, "business_topics"),
			OtherNotes:     cellAt(row, "other_notes"),
		})
	}
	if len(materials) == 0 {
		return nil, eris.New("vector: no usable rows in catalog sheet")
	}
	zap.L().Info("marketing catalog read",
		zap.String("path", path), zap.Int("materials", len(materials)))
	return materials, nil
}
