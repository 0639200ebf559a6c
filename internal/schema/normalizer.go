package schema

// Normalize forces the record's nested regions into the fixed shape: absent
// or null sub-objects become all-null structs, a missing budget-source list
// becomes an empty list. Runs on every surviving record before it reaches the
// writer; this is what keeps every output partition schema-identical.
// Idempotent: normalizing an already-normalized record changes nothing.
func Normalize(r *Record) {
	if r.UnidadeOrgao == nil {
		r.UnidadeOrgao = &OrgUnit{}
	}
	if r.OrgaoEntidade == nil {
		r.OrgaoEntidade = &Organization{}
	}
	if r.AmparoLegal == nil {
		r.AmparoLegal = &LegalBasis{}
	}
	if r.UnidadeSubRogada == nil {
		r.UnidadeSubRogada = &OrgUnit{}
	}
	if r.OrgaoSubRogado == nil {
		r.OrgaoSubRogado = &Organization{}
	}
	if r.FontesOrcamentarias == nil {
		r.FontesOrcamentarias = []BudgetSource{}
	}
}
