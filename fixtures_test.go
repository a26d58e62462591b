package featuremill

import (
	"context"
	"testing"
	"time"
)

// retailEntitySet builds the shared three-level fixture:
// members (target) -> transactions (timed) -> logs (timed).
func retailEntitySet(t *testing.T) *EntitySet {
	t.Helper()
	es := NewEntitySet("retail")

	_, err := es.DeclareTable(TableSpec{
		Name:       "members",
		PrimaryKey: "msno",
	}, []Row{
		{"msno": "M1", "city": "bos", "age": 34.0, "joined": date(2016, 1, 10)},
		{"msno": "M2", "city": "nyc", "age": 28.0, "joined": date(2016, 6, 5)},
		{"msno": "M3", "city": "bos", "age": 45.0, "joined": date(2017, 1, 20)},
	})
	if err != nil {
		t.Fatalf("declare members: %v", err)
	}

	_, err = es.DeclareTable(TableSpec{
		Name:       "transactions",
		PrimaryKey: "transaction_id",
		TimeIndex:  "transaction_date",
	}, []Row{
		{"transaction_id": 1, "msno": "M1", "transaction_date": date(2017, 1, 1), "amount": 10.0, "method": "card", "success": true},
		{"transaction_id": 2, "msno": "M1", "transaction_date": date(2017, 3, 1), "amount": 20.0, "method": "cash", "success": true},
		{"transaction_id": 3, "msno": "M2", "transaction_date": date(2017, 1, 15), "amount": 5.0, "method": "card", "success": false},
		{"transaction_id": 4, "msno": "M2", "transaction_date": date(2017, 2, 1), "amount": 7.5, "method": "card", "success": true},
		{"transaction_id": 5, "msno": "M3", "transaction_date": date(2017, 1, 25), "amount": 12.0, "method": "cash", "success": true},
	})
	if err != nil {
		t.Fatalf("declare transactions: %v", err)
	}

	_, err = es.DeclareTable(TableSpec{
		Name:       "logs",
		PrimaryKey: "log_id",
		TimeIndex:  "log_time",
	}, []Row{
		{"log_id": 1, "transaction_id": 1, "log_time": date(2017, 1, 1).Add(time.Hour), "duration": 30.0},
		{"log_id": 2, "transaction_id": 1, "log_time": date(2017, 1, 2), "duration": 45.0},
		{"log_id": 3, "transaction_id": 2, "log_time": date(2017, 3, 2), "duration": 60.0},
		{"log_id": 4, "transaction_id": 3, "log_time": date(2017, 1, 16), "duration": 15.0},
	})
	if err != nil {
		t.Fatalf("declare logs: %v", err)
	}

	if err := es.AddRelationship("members", "msno", "transactions", "msno"); err != nil {
		t.Fatalf("relate members->transactions: %v", err)
	}
	if err := es.AddRelationship("transactions", "transaction_id", "logs", "transaction_id"); err != nil {
		t.Fatalf("relate transactions->logs: %v", err)
	}
	return es
}

// retailMatrix synthesizes and calculates over the retail fixture.
func retailMatrix(t *testing.T, entries []CutoffTimeEntry, opts CalcOptions) (*FeatureMatrix, []FeatureDefinition) {
	t.Helper()
	es := retailEntitySet(t)
	defs, err := Synthesize(es, "members", SynthesisOptions{MaxDepth: 2})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	calc, err := NewCalculator(es, "members", defs, opts)
	if err != nil {
		t.Fatalf("new calculator: %v", err)
	}
	matrix, err := calc.Run(context.Background(), entries)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return matrix, defs
}

// cell returns the named feature value of a matrix row.
func cell(t *testing.T, m *FeatureMatrix, rowIdx int, column string) any {
	t.Helper()
	for i, col := range m.Columns {
		if col == column {
			return m.Rows[rowIdx].Values[i]
		}
	}
	t.Fatalf("matrix has no column %q (columns: %v)", column, m.Columns)
	return nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
