package document

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinRows(t *testing.T) {
	run := func(s string) pdf.Text { return pdf.Text{S: s} }

	tests := []struct {
		name string
		rows pdf.Rows
		want string
	}{
		{
			name: "runs joined per row",
			rows: pdf.Rows{
				{Position: 700, Content: pdf.TextHorizontal{run("231001"), run("[쉐어엑스]허스키폭스"), run("1,000,000")}},
				{Position: 680, Content: pdf.TextHorizontal{run("합계"), run("1,000,000")}},
			},
			want: "231001 [쉐어엑스]허스키폭스 1,000,000\n합계 1,000,000",
		},
		{
			name: "whitespace runs dropped",
			rows: pdf.Rows{
				{Position: 700, Content: pdf.TextHorizontal{run(" 213930 "), run(""), run("  "), run("500,000")}},
			},
			want: "213930 500,000",
		},
		{
			name: "empty rows skipped",
			rows: pdf.Rows{
				{Position: 700, Content: pdf.TextHorizontal{run("유니온 정산")}},
				{Position: 690, Content: pdf.TextHorizontal{run(" ")}},
				{Position: 680},
				{Position: 670, Content: pdf.TextHorizontal{run("R/S 75%")}},
			},
			want: "유니온 정산\nR/S 75%",
		},
		{
			name: "no rows",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, joinRows(tt.rows))
		})
	}
}

// writePDF writes a single-page PDF with one text run per cell, each row on
// its own baseline.
func writePDF(t *testing.T, rows ...[]string) string {
	t.Helper()

	var content bytes.Buffer
	content.WriteString("BT\n/F1 10 Tf\n")
	for i, row := range rows {
		for j, cell := range row {
			fmt.Fprintf(&content, "1 0 0 1 %d %d Tm (%s) Tj\n", 72+j*120, 720-i*20, cell)
		}
	}
	content.WriteString("ET\n")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(t.TempDir(), "statement.pdf")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o644))
	return path
}

func TestLoadPDF(t *testing.T) {
	path := writePDF(t,
		[]string{"SETTLEMENT"},
		[]string{"231001", "Typography", "10,396,350", "396,350", "10,000,000", "7,500,000"},
		[]string{"235522", "-", "-", "-", "-"},
	)

	doc, err := LoadPDF(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 1, doc.PageCount())
	assert.Equal(t, "statement.pdf", doc.Name())
	assert.Equal(t,
		"SETTLEMENT\n231001 Typography 10,396,350 396,350 10,000,000 7,500,000\n235522 - - - -",
		doc.FirstPage())

	loaded, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, doc.Pages, loaded.Pages)
}

func TestLoadPDF_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadPDF(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"))
		assert.Error(t, err)
	})

	t.Run("not a pdf", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "notes.pdf")
		require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("plain text\n"), 20), 0o644))
		_, err := LoadPDF(context.Background(), path)
		assert.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := LoadPDF(ctx, writePDF(t, []string{"213930"}))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
