package period

import (
	"testing"

	"golang.org/x/text/unicode/norm"
)

func TestFromFilename(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantKind Kind
		want     string
	}{
		{"quarter Q", "/data/[패스트캠퍼스] Share X 정산서 - 2024년 4Q.pdf", Quarterly, "2024-Q4"},
		{"quarter 분기", "Share X 정산서 - 2025년 3분기.pdf", Quarterly, "2025-Q3"},
		{"month", "Share X 정산서 - 2024년 10월.pdf", Monthly, "2024-10"},
		{"single digit month", "정산서 2025년 1월.pdf", Monthly, "2025-01"},
		{"decomposed hangul", norm.NFD.String("정산서 - 2024년 4분기.pdf"), Quarterly, "2024-Q4"},
		{"unknown", "statement.pdf", Unknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, got := FromFilename(tt.path)
			if kind != tt.wantKind || got != tt.want {
				t.Errorf("FromFilename(%q) = (%s, %q), want (%s, %q)", tt.path, kind, got, tt.wantKind, tt.want)
			}
		})
	}
}

func TestQuarterMonths(t *testing.T) {
	got, err := QuarterMonths("2024-Q4")
	if err != nil {
		t.Fatalf("QuarterMonths: %v", err)
	}
	want := []string{"2024-10", "2024-11", "2024-12"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("month[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if _, err := QuarterMonths("2024-Q5"); err == nil {
		t.Error("expected error for Q5")
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"2024-Q4": "2024-10",
		"2025-Q1": "2025-01",
		"2025-Q3": "2025-07",
		"2024-10": "2024-10",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMonthFromText(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"정산월 2024년 10월 작성", "2024-10", true},
		{"24.10_정산(실비)", "2024-10", true},
		{"2024. 4Q", "", false},
		{"24.13", "", false},
	}
	for _, tt := range tests {
		got, ok := MonthFromText(tt.text)
		if got != tt.want || ok != tt.ok {
			t.Errorf("MonthFromText(%q) = (%q, %v), want (%q, %v)", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMonthValueAndQuarterOf(t *testing.T) {
	for _, in := range []string{"2024-10", "2024.10", "2024년 10월", "2024-10-31T00:00:00"} {
		got, ok := MonthValue(in)
		if !ok || got != "2024-10" {
			t.Errorf("MonthValue(%q) = (%q, %v)", in, got, ok)
		}
	}

	q, err := QuarterOf("2024-11")
	if err != nil || q != "2024-Q4" {
		t.Errorf("QuarterOf(2024-11) = %q, %v", q, err)
	}
}
