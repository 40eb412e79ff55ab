package extract

import "testing"

func float(v float64) *float64 { return &v }

func TestScoreAllSections(t *testing.T) {
	data := fabricatedData()
	if got := Score(data, ScoringPresence); got != 75 {
		t.Fatalf("Score = %d, want 75", got)
	}
	if got := Score(data, ScoringLegacy); got != 75 {
		t.Fatalf("legacy Score = %d, want 75", got)
	}
}

func TestScoreZeroContractValue(t *testing.T) {
	data := &ExtractedData{
		PartyIdentification: PartyIdentification{Parties: []string{"Acme Corp."}},
		FinancialDetails:    FinancialDetails{TotalContractValue: float(0)},
		PaymentStructure:    PaymentStructure{PaymentTerms: "Net 30"},
	}

	// 旧実装では 0 が「無し」扱いになる
	if got := Score(data, ScoringLegacy); got != 45 {
		t.Fatalf("legacy Score = %d, want 45", got)
	}
	if got := Score(data, ScoringPresence); got != 75 {
		t.Fatalf("presence Score = %d, want 75", got)
	}
}

func TestScoreMissingSections(t *testing.T) {
	cases := []struct {
		name string
		data *ExtractedData
		want int
	}{
		{name: "nil", data: nil, want: 0},
		{name: "empty", data: &ExtractedData{}, want: 0},
		{name: "value only", data: &ExtractedData{FinancialDetails: FinancialDetails{TotalContractValue: float(10)}}, want: 30},
		{name: "empty parties", data: &ExtractedData{
			PartyIdentification: PartyIdentification{Parties: []string{}},
			PaymentStructure:    PaymentStructure{PaymentTerms: "Net 60"},
		}, want: 20},
		{name: "signatories do not count", data: &ExtractedData{
			PartyIdentification: PartyIdentification{Signatories: []string{"John Doe"}},
		}, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.data, ScoringPresence); got != tc.want {
				t.Fatalf("Score = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestParseScoringMode(t *testing.T) {
	if m, err := ParseScoringMode(""); err != nil || m != ScoringPresence {
		t.Fatalf("ParseScoringMode(\"\") = %q, %v", m, err)
	}
	if m, err := ParseScoringMode("legacy"); err != nil || m != ScoringLegacy {
		t.Fatalf("ParseScoringMode(legacy) = %q, %v", m, err)
	}
	if _, err := ParseScoringMode("truthy"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
