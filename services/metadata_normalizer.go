package services

import "strings"

// metadataAliases maps the canonical metadata key to the header variants that
// heterogeneous import sources used for it. Matching is case-insensitive and
// the first alias present in the raw metadata wins.
var metadataAliases = map[string][]string{
	"towerType":            {"towerType", "tower_type", "ESTRUTURA", "FUNÇÃO", "FUNCAO", "TIPO", "TIPO DE TORRE"},
	"foundationType":       {"foundationType", "foundation_type", "FUNDAÇÃO", "FUNDACAO", "TIPO FUNDAÇÃO"},
	"goForward":            {"goForward", "go_forward", "spanLength", "VÃO (M)", "VAO (M)", "VÃO", "VAO"},
	"totalConcreto":        {"totalConcreto", "total_concreto", "concreteVolume", "VOL (M3)", "VOLUME (M3)", "CONCRETO"},
	"pesoArmacao":          {"pesoArmacao", "peso_armacao", "steelWeight", "AÇO (KG)", "ACO (KG)", "ARMAÇÃO"},
	"pesoEstrutura":        {"pesoEstrutura", "peso_estrutura", "structureWeight", "TORRE (T)", "PESO TORRE"},
	"trecho":               {"trecho", "SUBTRECHO", "TRECHO"},
	"tramoLancamento":      {"tramoLancamento", "tramo_lancamento", "TRAMO", "TRAMO DE LANÇAMENTO"},
	"tipificacaoEstrutura": {"tipificacaoEstrutura", "tipificacao_estrutura", "TIPIFICAÇÃO", "TIPIFICACAO"},
	"objectSeq":            {"objectSeq", "object_seq", "sequence", "SEQ", "SEQUÊNCIA", "SEQUENCIA"},
	"finalStartDate":       {"finalStartDate", "final_start_date", "DATA INÍCIO", "DATA INICIO"},
	"finalEndDate":         {"finalEndDate", "final_end_date", "DATA FIM", "DATA TÉRMINO", "DATA TERMINO"},
}

// NormalizeMetadata maps raw import header names onto canonical field names.
// Canonical keys already populated with a non-empty value are never
// overwritten, and unmatched raw keys are preserved as-is so nothing from the
// source payload is lost.
func NormalizeMetadata(raw map[string]interface{}) map[string]interface{} {
	if raw == nil {
		return nil
	}

	lowered := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		lowered[strings.ToLower(strings.TrimSpace(k))] = v
	}

	normalized := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		normalized[k] = v
	}

	for canonical, aliases := range metadataAliases {
		if populated(normalized[canonical]) {
			continue
		}
		for _, alias := range aliases {
			v, ok := lowered[strings.ToLower(alias)]
			if ok && populated(v) {
				normalized[canonical] = v
				break
			}
		}
	}
	return normalized
}

func populated(v interface{}) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}
