package oracle

import (
	"fmt"
	"strings"
)

// PromptBuilder renders the Stage 2 prompts. When Stage 1 matched a group,
// the prompt is narrowed to that category with its term list as examples;
// without context, a generic multi-category prompt is used.
type PromptBuilder struct {
	groups map[string][]string
}

// NewPromptBuilder keeps the group dictionary for example terms.
func NewPromptBuilder(groups map[string][]string) *PromptBuilder {
	return &PromptBuilder{groups: groups}
}

// Contextual returns the prompt for one objective. group/term come from the
// Stage 1 decision and may be empty.
func (b *PromptBuilder) Contextual(objective, group, term string) string {
	terms, ok := b.groups[group]
	if group == "" || !ok {
		return b.generic(objective)
	}

	examples := "termos relacionados"
	if len(terms) > 0 {
		examples = strings.Join(terms, ", ")
	}

	return fmt.Sprintf(`Você é um especialista em categorização de materiais de escritório e educacionais.

CONTEXTO DA ANÁLISE PRÉVIA:
A Etapa 1 (filtro por palavras-chave) detectou que este objeto de compra está relacionado à categoria "%[1]s".
Termo específico detectado: "%[2]s"

CATEGORIA DETECTADA: %[1]s
EXEMPLOS DESTA CATEGORIA: %[3]s

OBJETO DE COMPRA A VALIDAR:
"%[4]s"

TAREFA:
Confirme se o objeto de compra realmente pertence à categoria "%[1]s" considerando:
1. O contexto completo do objeto (não apenas palavras isoladas)
2. Se o uso principal se alinha com a categoria detectada
3. Os exemplos específicos desta categoria listados acima

INSTRUÇÕES:
- APROVAR: Se o objeto principal realmente se enquadra na categoria %[1]s
- REJEITAR: Se o objeto não se enquadra adequadamente (falso positivo da Etapa 1)
- Considere sinônimos e variações dos termos
- Ignore serviços complementares (instalação, manutenção, etc.)

FORMATO DA RESPOSTA:
DECISAO: [APROVAR/REJEITAR]
CATEGORIA: %[1]s
CONFIANCA: [0-100]%%
JUSTIFICATIVA: [breve explicação da decisão]`, group, term, examples, objective)
}

func (b *PromptBuilder) generic(objective string) string {
	return fmt.Sprintf(`Você é um especialista em análise de licitações públicas.

OBJETO DE COMPRA:
"%s"

CATEGORIAS ALVO:
- Materiais de escritório (canetas, papel, grampeadores, etc.)
- Materiais educacionais (lápis de cor, cadernos, livros didáticos, etc.)
- Materiais de informática básicos (mouse, teclado, pen drive, etc.)
- Acessórios escolares (mochilas, estojos, lancheiras, etc.)
- Materiais de arte e criatividade (tintas, pincéis, massa de modelar, etc.)

TAREFA:
Determine se o objeto de compra se refere principalmente aos materiais listados acima.

FORMATO DA RESPOSTA:
DECISAO: [APROVAR/REJEITAR]
CATEGORIA: [categoria mais específica, se aplicável]
CONFIANCA: [0-100]%%
JUSTIFICATIVA: [breve explicação da decisão]`, objective)
}
