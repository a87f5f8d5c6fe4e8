package bank

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Statement exports arrive with bank-specific headers, frequently French.
var headerAliases = map[string]string{
	"date":           "date",
	"date_operation": "date",
	"value_date":     "value_date",
	"date_valeur":    "value_date",
	"label":          "label",
	"libelle":        "label",
	"description":    "label",
	"amount":         "amount",
	"montant":        "amount",
	"reference":      "bank_reference",
	"bank_reference": "bank_reference",
	"direction":      "direction",
	"sens":           "direction",
}

// ParseStatementCSV reads a bank statement export into raw import rows. The
// first record is treated as a header; unknown columns are ignored. Rows with
// the wrong field count are returned as rejections rather than failing the
// whole file.
func ParseStatementCSV(r io.Reader) ([]RawRow, []RowRejection, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("bank: read csv header: %w", err)
	}

	fields := make(map[int]string, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if canonical, ok := headerAliases[key]; ok {
			fields[i] = canonical
		}
	}
	if !hasField(fields, "date") || !hasField(fields, "label") || !hasField(fields, "amount") {
		return nil, nil, errors.New("bank: csv header must include date, label and amount columns")
	}

	var rows []RawRow
	var rejections []RowRejection
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rejections = append(rejections, RowRejection{Line: line, Reason: "unparseable csv record"})
			continue
		}
		if len(record) != len(header) {
			rejections = append(rejections, RowRejection{Line: line, Reason: "wrong field count"})
			continue
		}

		var row RawRow
		for i, value := range record {
			value = strings.TrimSpace(value)
			switch fields[i] {
			case "date":
				row.Date = value
			case "value_date":
				row.ValueDate = value
			case "label":
				row.Label = value
			case "amount":
				row.Amount = value
			case "bank_reference":
				row.BankReference = value
			case "direction":
				row.Direction = strings.ToLower(value)
			}
		}
		rows = append(rows, row)
	}

	return rows, rejections, nil
}

func hasField(fields map[int]string, name string) bool {
	for _, canonical := range fields {
		if canonical == name {
			return true
		}
	}
	return false
}
