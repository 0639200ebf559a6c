// Package domain holds the PNCP domain lookup tables published at
// https://pncp.gov.br/app/entidades-dominio. Pure code→label maps.
package domain

import (
	"fmt"
	"sort"
)

type modalidade struct {
	Nome  string
	Ativa bool
}

var modalidades = map[int]modalidade{
	1:  {"Leilão - Eletrônico", true},
	2:  {"Diálogo Competitivo", true},
	3:  {"Concurso", true},
	4:  {"Concorrência - Eletrônica", true},
	5:  {"Concorrência - Presencial", true},
	6:  {"Pregão - Eletrônico", true},
	7:  {"Pregão - Presencial", true},
	8:  {"Dispensa", true},
	9:  {"Inexigibilidade", true},
	10: {"Manifestação de Interesse", true},
	11: {"Pré-qualificação", true},
	12: {"Credenciamento", true},
	13: {"Leilão - Presencial", true},
}

var situacoesCompra = map[int]string{
	1: "Divulgada no PNCP",
	2: "Em Andamento",
	3: "Anulada",
	4: "Cancelada",
	5: "Concluída",
	6: "Suspensa",
}

var modosDisputa = map[int]string{
	1: "Aberto",
	2: "Fechado",
	3: "Aberto-Fechado",
	4: "Fechado-Aberto",
}

var criteriosJulgamento = map[int]string{
	1: "Menor preço",
	2: "Maior desconto",
	3: "Melhor técnica",
	4: "Técnica e preço",
	5: "Maior lance",
	6: "Maior oferta",
}

var instrumentosConvocatorios = map[int]string{
	1: "Edital",
	2: "Aviso de Contratação Direta",
	3: "Ato que autoriza a Contratação Direta",
	4: "Edital de Chamamento Público",
}

var esferas = map[string]string{
	"F": "Federal",
	"E": "Estadual",
	"M": "Municipal",
}

var poderes = map[string]string{
	"E": "Executivo",
	"L": "Legislativo",
	"J": "Judiciário",
	"N": "Não Especificado",
}

// ModalidadeNome returns the contracting-modality label for a code.
func ModalidadeNome(codigo int) string {
	if m, ok := modalidades[codigo]; ok {
		return m.Nome
	}
	return fmt.Sprintf("Modalidade %d", codigo)
}

// ModalidadesAtivas returns the active modality codes in ascending order.
// This list drives which categories are harvested per date.
func ModalidadesAtivas() []int {
	codigos := make([]int, 0, len(modalidades))
	for codigo, m := range modalidades {
		if m.Ativa {
			codigos = append(codigos, codigo)
		}
	}
	sort.Ints(codigos)
	return codigos
}

// SituacaoCompraNome returns the purchase-status label for a code.
func SituacaoCompraNome(codigo int) string {
	if nome, ok := situacoesCompra[codigo]; ok {
		return nome
	}
	return fmt.Sprintf("Situação %d", codigo)
}

// ModoDisputaNome returns the dispute-mode label for a code.
func ModoDisputaNome(codigo int) string {
	if nome, ok := modosDisputa[codigo]; ok {
		return nome
	}
	return fmt.Sprintf("Modo %d", codigo)
}

// CriterioJulgamentoNome returns the judgment-criterion label for a code.
func CriterioJulgamentoNome(codigo int) string {
	if nome, ok := criteriosJulgamento[codigo]; ok {
		return nome
	}
	return fmt.Sprintf("Critério %d", codigo)
}

// InstrumentoConvocatorioNome returns the call-instrument label for a code.
func InstrumentoConvocatorioNome(codigo int) string {
	if nome, ok := instrumentosConvocatorios[codigo]; ok {
		return nome
	}
	return fmt.Sprintf("Instrumento %d", codigo)
}

// EsferaNome returns the government-sphere label for a letter code.
func EsferaNome(codigo string) string {
	if nome, ok := esferas[codigo]; ok {
		return nome
	}
	return fmt.Sprintf("Esfera %s", codigo)
}

// PoderNome returns the government-branch label for a letter code.
func PoderNome(codigo string) string {
	if nome, ok := poderes[codigo]; ok {
		return nome
	}
	return fmt.Sprintf("Poder %s", codigo)
}
