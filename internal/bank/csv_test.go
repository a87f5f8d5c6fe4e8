package bank

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatementCSVWithFrenchHeaders(t *testing.T) {
	input := strings.Join([]string{
		"Date_Operation;Libelle;Montant",
		"",
	}, "\n")
	// semicolon files are not comma CSV; header detection must fail cleanly
	_, _, err := ParseStatementCSV(strings.NewReader(input))
	require.Error(t, err)

	commaInput := strings.Join([]string{
		"date_operation,libelle,montant,sens",
		"2024-03-15,VIR CIMENTS DU MAROC,15000.00,credit",
		"16/03/2024,CHQ ATLAS TRANSPORT,-8200.50,debit",
	}, "\n")

	rows, rejections, err := ParseStatementCSV(strings.NewReader(commaInput))
	require.NoError(t, err)
	assert.Empty(t, rejections)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-03-15", rows[0].Date)
	assert.Equal(t, "VIR CIMENTS DU MAROC", rows[0].Label)
	assert.Equal(t, "15000.00", rows[0].Amount)
	assert.Equal(t, "credit", rows[0].Direction)
	assert.Equal(t, "debit", rows[1].Direction)
}

func TestParseStatementCSVIgnoresUnknownColumns(t *testing.T) {
	input := strings.Join([]string{
		"date,label,amount,agence,reference",
		"2024-03-15,VIR TEST,100.00,CASA-02,OP-991",
	}, "\n")

	rows, rejections, err := ParseStatementCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, rejections)
	require.Len(t, rows, 1)
	assert.Equal(t, "OP-991", rows[0].BankReference)
}

func TestParseStatementCSVRejectsRowsWithWrongFieldCount(t *testing.T) {
	input := strings.Join([]string{
		"date,label,amount",
		"2024-03-15,VIR OK,100.00",
		"2024-03-16,MISSING AMOUNT",
		"2024-03-17,VIR OK TOO,200.00",
	}, "\n")

	rows, rejections, err := ParseStatementCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Len(t, rejections, 1)
	assert.Equal(t, 3, rejections[0].Line)
	assert.Equal(t, "wrong field count", rejections[0].Reason)
}

func TestParseStatementCSVRequiresCoreColumns(t *testing.T) {
	input := "date,label\n2024-03-15,VIR SANS MONTANT\n"
	_, _, err := ParseStatementCSV(strings.NewReader(input))
	require.Error(t, err)
}
