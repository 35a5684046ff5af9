package testutil

import (
	"testing"
)

func TestMarshalNormalized(t *testing.T) {
	type doc struct {
		RunID string  `json:"runId"`
		Risk  float64 `json:"risk"`
		Zero  float64 `json:"zero"`
		Name  string  `json:"name"`
	}

	got := string(MarshalNormalized(t, doc{RunID: "7f3c", Risk: 0.1 * 3, Zero: -0.0000000001, Name: "a"}))
	want := `{
  "name": "a",
  "risk": 0.3,
  "runId": "<volatile>",
  "zero": 0
}
`
	if got != want {
		t.Errorf("MarshalNormalized() = %s, want %s", got, want)
	}
}

func TestShouldTestFixture(t *testing.T) {
	orig := *fixtureFilter
	defer func() { *fixtureFilter = orig }()

	*fixtureFilter = ""
	if !ShouldTestFixture("anything") {
		t.Error("empty filter should select every fixture")
	}

	*fixtureFilter = "shared-line, safe-collapse"
	if !ShouldTestFixture("safe-collapse") || ShouldTestFixture("other") {
		t.Error("filter should select listed fixtures only")
	}
}

func TestLoadFixture(t *testing.T) {
	fixture := LoadFixture(t, "shared-line")

	if fixture.History.Path != "src/shared.go" || len(fixture.History.History) != 3 {
		t.Fatalf("fixture = %+v", fixture.History)
	}
	if fixture.History.History[1].Author != "bob" {
		t.Errorf("second author = %q, want bob", fixture.History.History[1].Author)
	}

	oracle := fixture.Oracle(t)
	if !oracle.IsDeparted("carol") {
		t.Error("carol should be departed")
	}
	if got := oracle.Threshold(); got != 0.125 {
		t.Errorf("Threshold() = %v, want 0.125", got)
	}
}
