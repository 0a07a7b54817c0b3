package ingest

// ToTable turns a raw matrix into a rectangular table. When declared is
// non-nil the parser already named the fields and every raw row is data;
// otherwise the first row is run through LooksLikeHeaderRow to decide whether
// it labels the columns. Width mismatches never fail: extra cells are dropped
// and missing ones become "".
func ToTable(raw [][]any, declared []string) *TableResult {
	rows := make([][]string, len(raw))
	for i, r := range raw {
		rows[i] = normalizeRow(r)
	}
	return buildTable(rows, declared)
}

// buildTable is ToTable over already normalized cells.
func buildTable(rows [][]string, declared []string) *TableResult {
	var columns []string
	data := rows

	switch {
	case declared != nil:
		columns = labelColumns(declared)
	case len(rows) == 0:
		columns = []string{}
	case looksLikeHeader(rows[0]):
		columns = labelColumns(rows[0])
		data = rows[1:]
	default:
		columns = make([]string, len(rows[0]))
		for i := range columns {
			columns[i] = syntheticColumn(i)
		}
	}

	tableRows := make([]TableRow, 0, len(data))
	for _, r := range data {
		tableRows = append(tableRows, toTableRow(columns, r))
	}

	t := &TableResult{
		Columns:  columns,
		Rows:     tableRows,
		Warnings: []string{},
	}
	t.TextColumn, _ = DetectTextColumn(columns, tableRows)
	return t
}

// labelColumns normalizes header cells, naming blank ones by 1-based position.
func labelColumns(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		c = NormalizeCell(c)
		if c == "" {
			c = syntheticColumn(i)
		}
		out[i] = c
	}
	return out
}

func toTableRow(columns, cells []string) TableRow {
	row := make(TableRow, len(columns))
	for i, name := range columns {
		if i < len(cells) {
			row[name] = cells[i]
		} else {
			row[name] = ""
		}
	}
	return row
}
