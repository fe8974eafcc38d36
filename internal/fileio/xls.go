package fileio

import (
	"bytes"
	"errors"
	"io"

	xls "github.com/extrame/xls"
)

// rowAt returns row i or nil when the sheet has no record for it;
// WorkSheet.Row dereferences the missing row instead of returning nil.
func rowAt(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// computeMaxCols scans every row for the rightmost non-empty cell; Row.LastCol
// is unreliable for sheets exported by older office suites.
func computeMaxCols(sheet *xls.WorkSheet) int {
	const maxScanCols = 256
	maxCols := 0
	for i := 0; i <= int(sheet.MaxRow); i++ {
		r := rowAt(sheet, i)
		if r == nil {
			continue
		}
		for j := maxCols; j < maxScanCols; j++ {
			if normalizeCell(r.Col(j)) != "" {
				maxCols = j + 1
			}
		}
	}
	if maxCols == 0 {
		maxCols = 1
	}
	return maxCols
}

func readXLS(r io.Reader, headerRow int) ([]map[string]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	// the charset only matters for pre-BIFF8 workbooks
	var wb *xls.WorkBook
	var lastErr error
	for _, ch := range []string{"utf-8", "shift_jis", "windows-1251"} {
		wb, err = xls.OpenReader(bytes.NewReader(b), ch)
		if err == nil && wb != nil {
			break
		}
		lastErr = err
	}
	if wb == nil {
		if lastErr == nil {
			lastErr = errors.New("xls: failed to open workbook")
		}
		return nil, lastErr
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}

	maxCols := computeMaxCols(sheet)
	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		cols := make([]string, maxCols)
		if row := rowAt(sheet, i); row != nil {
			for j := range cols {
				cols[j] = row.Col(j)
			}
		}
		rows = append(rows, cols)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowsToMaps(rows, pickHeader(rows, headerRow), headerRow), nil
}
