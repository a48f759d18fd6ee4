package country

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultSnapshot(t *testing.T) {
	s := Default("alice", "Chancellor")

	if got := s[KeyName]; got != "Aliceland" {
		t.Fatalf("name = %v, want Aliceland", got)
	}
	if treasury, _ := s.Number(KeyEconomy, "treasury"); treasury != 1000 {
		t.Fatalf("treasury = %v, want 1000", treasury)
	}
	if citizens, _ := s.Number(KeyPopulation, "citizens"); citizens != 1000000 {
		t.Fatalf("citizens = %v, want 1000000", citizens)
	}
	if diff := cmp.Diff([]string{InitialLogEntry}, s.Log()); diff != "" {
		t.Fatalf("log mismatch (-want +got):\n%s", diff)
	}
	if v := Violations(s); len(v) != 0 {
		t.Fatalf("default state violates domains: %v", v)
	}
	leader := s.Section(KeyLeader)
	if leader["name"] != "alice" || leader["role"] != "Chancellor" {
		t.Fatalf("unexpected leader %v", leader)
	}
}

func TestDefaultName(t *testing.T) {
	tests := map[string]string{
		"alice":   "Aliceland",
		"  bob  ": "Bobland",
		"émile":   "Émileland",
		"x.y_z":   "X.y_zland",
		"":        "Nowhereland",
	}
	for in, want := range tests {
		if got := DefaultName(in); got != want {
			t.Errorf("DefaultName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := Default("alice", "President")
	clone := original.Clone()

	clone.Section(KeyEconomy)["treasury"] = 1.0
	clone.Section(KeyDiplomacy)["alliances"] = append(clone.Section(KeyDiplomacy)["alliances"].([]any), "Zed")
	AppendLog(clone, "changed")

	if treasury, _ := original.Number(KeyEconomy, "treasury"); treasury != 1000 {
		t.Fatalf("original treasury mutated to %v", treasury)
	}
	if n := len(original.Section(KeyDiplomacy)["alliances"].([]any)); n != 0 {
		t.Fatalf("original alliances mutated, len %d", n)
	}
	if n := len(original.Log()); n != 1 {
		t.Fatalf("original log mutated, len %d", n)
	}
}

func TestMarshalUnmarshalPreservesDocument(t *testing.T) {
	original := Default("alice", "President")
	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(original, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalEmptyAndInvalid(t *testing.T) {
	s, err := Unmarshal(nil)
	if err != nil || len(s) != 0 {
		t.Fatalf("expected empty state, got %v, %v", s, err)
	}
	if _, err := Unmarshal([]byte("[1,2]")); err == nil {
		t.Fatal("expected error for non-object document")
	}
}
