// Package export renders grading results into files a teacher can take away
// from the kiosk: a CSV for the school's spreadsheet workflow and a printable
// PDF score sheet.
package export

// Table is the ordered tabular content shared by every export format.
type Table struct {
	Headers []string
	Rows    []map[string]string
}

func (t Table) record(row map[string]string) []string {
	record := make([]string, len(t.Headers))
	for i, header := range t.Headers {
		record[i] = row[header]
	}
	return record
}
