package spreadsheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadCSVKeepsLineNumbers(t *testing.T) {
	input := "\xef\xbb\xbfStudent ID,Full Name,Area\nSE001, An ,Hanoi\n,,\nSE002,Binh\n"

	rows, err := Read("students.CSV", strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "An", rows[0].Values["Full Name"])
	assert.Equal(t, "SE001", rows[0].Values["Student ID"])
	assert.Equal(t, 4, rows[1].Line)
	_, hasArea := rows[1].Values["Area"]
	assert.False(t, hasArea)
}

func TestReadXLSXUsesFirstSheet(t *testing.T) {
	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	require.NoError(t, book.SetSheetRow(sheet, "A1", &[]interface{}{"studentId", "fullName"}))
	require.NoError(t, book.SetSheetRow(sheet, "A2", &[]interface{}{"SE001", "Nguyen Van An"}))
	require.NoError(t, book.SetSheetRow(sheet, "A3", &[]interface{}{"SE002", "Tran Thi Binh"}))

	var buf bytes.Buffer
	require.NoError(t, book.Write(&buf))

	rows, err := Read("students.xlsx", &buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 3, rows[1].Line)
	assert.Equal(t, "Tran Thi Binh", rows[1].Values["fullName"])
}

func TestReadRejectsUnknownExtension(t *testing.T) {
	_, err := Read("students.pdf", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadHeaderOnly(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("studentId,fullName\n"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}
