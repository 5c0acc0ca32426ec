package testing

import (
	"sort"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/aristath/hxzfactors/internal/domain"
)

// WorkbookSheets names the sheets WriteWorkbook creates, one per dataset
var WorkbookSheets = map[domain.Dataset]string{
	domain.DatasetPrices:    "prices",
	domain.DatasetDividends: "dividends",
	domain.DatasetAssets:    "assets",
	domain.DatasetROE:       "roe",
	domain.DatasetMarketCap: "marketcap",
}

// WriteWorkbook saves inputs as an .xlsx workbook in the layout the loader
// reads: identifiers in column A, ISO dates in row 1, absent values blank.
// Every security of a dataset must share the same observation dates.
func WriteWorkbook(t *testing.T, path string, in domain.Inputs) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for k, d := range domain.AllDatasets {
		sheet := WorkbookSheets[d]
		if k == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				t.Fatalf("Failed to rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			t.Fatalf("Failed to add sheet %s: %v", sheet, err)
		}

		series := in.Series(d)
		ids := series.Securities()
		sort.Strings(ids)
		if len(ids) == 0 {
			continue
		}

		header := []interface{}{"Ticker"}
		for _, obs := range series[ids[0]] {
			header = append(header, obs.Date.Format("2006-01-02"))
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			t.Fatalf("Failed to write header of %s: %v", sheet, err)
		}

		for r, id := range ids {
			row := []interface{}{id}
			for _, obs := range series[id] {
				if v, ok := obs.Value.Get(); ok {
					row = append(row, v)
				} else {
					row = append(row, "")
				}
			}
			cell, _ := excelize.CoordinatesToCellName(1, r+2)
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				t.Fatalf("Failed to write row %s of %s: %v", id, sheet, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		t.Fatalf("Failed to save workbook %s: %v", path, err)
	}
}
