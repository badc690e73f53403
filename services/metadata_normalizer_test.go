package services

import "testing"

func TestNormalizeMetadataMapsAliases(t *testing.T) {
	raw := map[string]interface{}{
		"ESTRUTURA": "AT-230",
		"VÃO (M)":   412.5,
		"SUBTRECHO": "T2",
	}
	got := NormalizeMetadata(raw)

	if got["towerType"] != "AT-230" {
		t.Errorf("towerType = %v, want AT-230", got["towerType"])
	}
	if got["goForward"] != 412.5 {
		t.Errorf("goForward = %v, want 412.5", got["goForward"])
	}
	if got["trecho"] != "T2" {
		t.Errorf("trecho = %v, want T2", got["trecho"])
	}
	// Raw keys survive next to the canonical ones.
	if got["ESTRUTURA"] != "AT-230" {
		t.Error("raw key dropped during normalization")
	}
}

func TestNormalizeMetadataCaseInsensitive(t *testing.T) {
	got := NormalizeMetadata(map[string]interface{}{"estrutura": "EL-138"})
	if got["towerType"] != "EL-138" {
		t.Errorf("towerType = %v, want EL-138", got["towerType"])
	}
}

func TestNormalizeMetadataNeverOverwritesPopulated(t *testing.T) {
	raw := map[string]interface{}{
		"towerType": "already-set",
		"ESTRUTURA": "other-value",
	}
	got := NormalizeMetadata(raw)
	if got["towerType"] != "already-set" {
		t.Errorf("towerType = %v, populated canonical key must win", got["towerType"])
	}
}

func TestNormalizeMetadataEmptyCanonicalGetsFilled(t *testing.T) {
	raw := map[string]interface{}{
		"towerType": "",
		"TIPO":      "estaiada",
	}
	got := NormalizeMetadata(raw)
	if got["towerType"] != "estaiada" {
		t.Errorf("towerType = %v, empty string counts as unpopulated", got["towerType"])
	}
}

func TestNormalizeMetadataIdempotent(t *testing.T) {
	raw := map[string]interface{}{"FUNÇÃO": "suspensão"}
	once := NormalizeMetadata(raw)
	twice := NormalizeMetadata(once)
	if twice["towerType"] != once["towerType"] {
		t.Errorf("normalization not idempotent: %v vs %v", once["towerType"], twice["towerType"])
	}
	if len(twice) != len(once) {
		t.Errorf("second pass changed key count: %d vs %d", len(once), len(twice))
	}
}

func TestNormalizeMetadataNil(t *testing.T) {
	if got := NormalizeMetadata(nil); got != nil {
		t.Errorf("NormalizeMetadata(nil) = %v, want nil", got)
	}
}
