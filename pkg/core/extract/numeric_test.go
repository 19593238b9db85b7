package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanNumeric(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{"1,377,321", 1377321, true},
		{"₩8,028,348", 8028348, true},
		{"75%", 75, true},
		{"-", 0, false},
		{"—", 0, false},
		{"", 0, false},
		{"\u202d1,000\u202c", 1000, true},
		{"-12.5", -12.5, true},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := CleanNumeric(tt.raw)
		assert.Equal(t, tt.wantOK, ok, "CleanNumeric(%q)", tt.raw)
		assert.Equal(t, tt.want, got, "CleanNumeric(%q)", tt.raw)
	}
}

func TestTokenizer_FromRight(t *testing.T) {
	tests := []struct {
		name string
		tok  Tokenizer
		line string
		want []float64
	}{
		{
			name: "plain columns",
			tok:  StrictTokenizer,
			line: "213930 [쉐어엑스]UI 실무 1,500,000 500,000 1,000,000 700,000",
			want: []float64{1500000, 500000, 1000000, 700000},
		},
		{
			name: "fused tail is captured once",
			tok:  StrictTokenizer,
			line: "231001 타이포그래피 입문10,396,350 396,350 10,000,000 7,500,000",
			want: []float64{10396350, 396350, 10000000, 7500000},
		},
		{
			name: "strict tail needs three characters",
			tok:  StrictTokenizer,
			line: "240001 강의2 300 400",
			want: []float64{300, 400},
		},
		{
			name: "print view reads percent as ratio",
			tok:  PrintTokenizer,
			line: "2510_강의명 1,384,000 0 100,000 284,000 70% 700,000",
			want: []float64{1384000, 0, 100000, 284000, 0.7, 700000},
		},
		{
			name: "loose tail in print view",
			tok:  PrintTokenizer,
			line: "2510_강의2 100",
			want: []float64{2, 100},
		},
		{
			name: "digits inside the label are ignored",
			tok:  StrictTokenizer,
			line: "213930 포토샵 2024 마스터 1,000 2,000 3,000",
			want: []float64{1000, 2000, 3000},
		},
		{
			name: "no numbers",
			tok:  StrictTokenizer,
			line: "플러스엑스 정산 내역",
			want: []float64{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.tok.FromRight(tt.line)
			assert.InDeltaSlice(t, tt.want, got, 1e-9)
			assert.Len(t, got, len(tt.want))
		})
	}
}
