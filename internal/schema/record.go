// Package schema models PNCP contratação records with a fixed field shape so
// that every written parquet partition carries an identical schema, no matter
// which sub-objects the source API omitted or null'd for a given record.
package schema

import "encoding/json"

// OrgUnit is the administrative unit attached to a contratação
// (unidadeOrgao / unidadeSubRogada in the API).
type OrgUnit struct {
	CodigoIBGE    *int64  `json:"codigoIbge" parquet:"codigoIbge,optional"`
	CodigoUnidade *string `json:"codigoUnidade" parquet:"codigoUnidade,optional"`
	MunicipioNome *string `json:"municipioNome" parquet:"municipioNome,optional"`
	NomeUnidade   *string `json:"nomeUnidade" parquet:"nomeUnidade,optional"`
	UFNome        *string `json:"ufNome" parquet:"ufNome,optional"`
	UFSigla       *string `json:"ufSigla" parquet:"ufSigla,optional"`
}

// Organization is the contracting body (orgaoEntidade / orgaoSubRogado).
type Organization struct {
	CNPJ        *string `json:"cnpj" parquet:"cnpj,optional"`
	EsferaID    *string `json:"esferaId" parquet:"esferaId,optional"`
	PoderID     *string `json:"poderId" parquet:"poderId,optional"`
	RazaoSocial *string `json:"razaoSocial" parquet:"razaoSocial,optional"`
}

// LegalBasis is the amparoLegal sub-object.
type LegalBasis struct {
	Codigo    *int64  `json:"codigo" parquet:"codigo,optional"`
	Descricao *string `json:"descricao" parquet:"descricao,optional"`
	Nome      *string `json:"nome" parquet:"nome,optional"`
}

// BudgetSource is one element of fontesOrcamentarias.
type BudgetSource struct {
	Codigo       *int64  `json:"codigo" parquet:"codigo,optional"`
	DataInclusao *string `json:"dataInclusao" parquet:"dataInclusao,optional"`
	Descricao    *string `json:"descricao" parquet:"descricao,optional"`
	Nome         *string `json:"nome" parquet:"nome,optional"`
}

// Record is a contratação from /v1/contratacoes/publicacao plus the filter
// decision, domain labels, and write-time control columns. Every leaf is
// nullable; Normalize guarantees the nested regions are always present.
type Record struct {
	NumeroControlePNCP *string  `json:"numeroControlePNCP" parquet:"numeroControlePNCP,optional"`
	AnoCompra          *int64   `json:"anoCompra" parquet:"anoCompra,optional"`
	SequencialCompra   *int64   `json:"sequencialCompra" parquet:"sequencialCompra,optional"`
	NumeroCompra       *string  `json:"numeroCompra" parquet:"numeroCompra,optional"`
	Processo           *string  `json:"processo" parquet:"processo,optional"`
	ObjetoCompra       string   `json:"objetoCompra" parquet:"objetoCompra"`
	ValorTotalEstimado *float64 `json:"valorTotalEstimado" parquet:"valorTotalEstimado,optional"`
	ValorHomologado    *float64 `json:"valorTotalHomologado" parquet:"valorTotalHomologado,optional"`
	SRP                *bool    `json:"srp" parquet:"srp,optional"`

	ModalidadeID              *int64 `json:"modalidadeId" parquet:"modalidadeId,optional"`
	SituacaoCompraID          *int64 `json:"situacaoCompraId" parquet:"situacaoCompraId,optional"`
	ModoDisputaID             *int64 `json:"modoDisputaId" parquet:"modoDisputaId,optional"`
	CriterioJulgamentoID      *int64 `json:"criterioJulgamentoId" parquet:"criterioJulgamentoId,optional"`
	InstrumentoConvocatorioID *int64 `json:"instrumentoConvocatorioId" parquet:"instrumentoConvocatorioId,optional"`

	DataPublicacaoPNCP       *string `json:"dataPublicacaoPncp" parquet:"dataPublicacaoPncp,optional"`
	DataAberturaProposta     *string `json:"dataAberturaProposta" parquet:"dataAberturaProposta,optional"`
	DataEncerramentoProposta *string `json:"dataEncerramentoProposta" parquet:"dataEncerramentoProposta,optional"`
	InformacaoComplementar   *string `json:"informacaoComplementar" parquet:"informacaoComplementar,optional"`
	LinkSistemaOrigem        *string `json:"linkSistemaOrigem" parquet:"linkSistemaOrigem,optional"`
	UsuarioNome              *string `json:"usuarioNome" parquet:"usuarioNome,optional"`

	UnidadeOrgao         *OrgUnit       `json:"unidadeOrgao" parquet:"unidadeOrgao,optional"`
	OrgaoEntidade        *Organization  `json:"orgaoEntidade" parquet:"orgaoEntidade,optional"`
	AmparoLegal          *LegalBasis    `json:"amparoLegal" parquet:"amparoLegal,optional"`
	UnidadeSubRogada     *OrgUnit       `json:"unidadeSubRogada" parquet:"unidadeSubRogada,optional"`
	OrgaoSubRogado       *Organization  `json:"orgaoSubRogado" parquet:"orgaoSubRogado,optional"`
	FontesOrcamentarias  []BudgetSource `json:"fontesOrcamentarias" parquet:"fontesOrcamentarias,list"`

	// Filter decision, attached once and never mutated afterward.
	FiltroAplicado     bool   `json:"filtro_aplicado" parquet:"filtro_aplicado"`
	FiltroMotivo       string `json:"filtro_motivo" parquet:"filtro_motivo"`
	FiltroGrupoMatched string `json:"filtro_grupo_matched" parquet:"filtro_grupo_matched"`
	FiltroTermoMatched string `json:"filtro_termo_matched" parquet:"filtro_termo_matched"`
	FiltroCriterio     string `json:"filtro_criterio" parquet:"filtro_criterio"`

	// Domain-table labels.
	ModalidadeNome         string `json:"modalidade_nome_dominio" parquet:"modalidade_nome_dominio"`
	SituacaoCompraNome     string `json:"situacao_compra_nome_dominio" parquet:"situacao_compra_nome_dominio"`
	ModoDisputaNome        string `json:"modo_disputa_nome_dominio" parquet:"modo_disputa_nome_dominio"`
	CriterioJulgamentoNome string `json:"criterio_julgamento_nome_dominio" parquet:"criterio_julgamento_nome_dominio"`
	EsferaNome             string `json:"esfera_nome_dominio" parquet:"esfera_nome_dominio"`
	PoderNome              string `json:"poder_nome_dominio" parquet:"poder_nome_dominio"`

	// Control columns stamped by the writer.
	ExtractionDate string `json:"extraction_date" parquet:"extraction_date"`
	DataPublicacao string `json:"data_publicacao" parquet:"data_publicacao"`
}

// The API occasionally returns a scalar or malformed value where a nested
// object is expected. These records must still flow through the pipeline, so
// nested decoding degrades to an all-null struct instead of failing the page.

func (o *OrgUnit) UnmarshalJSON(b []byte) error {
	type plain OrgUnit
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		*o = OrgUnit{}
		return nil
	}
	*o = OrgUnit(p)
	return nil
}

func (o *Organization) UnmarshalJSON(b []byte) error {
	type plain Organization
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		*o = Organization{}
		return nil
	}
	*o = Organization(p)
	return nil
}

func (l *LegalBasis) UnmarshalJSON(b []byte) error {
	type plain LegalBasis
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		*l = LegalBasis{}
		return nil
	}
	*l = LegalBasis(p)
	return nil
}

func (s *BudgetSource) UnmarshalJSON(b []byte) error {
	type plain BudgetSource
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		*s = BudgetSource{}
		return nil
	}
	*s = BudgetSource(p)
	return nil
}
