package id

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type Generator struct{}

func New() *Generator {
	return &Generator{}
}

func (g *Generator) generate(prefix string) string {
	id, err := gonanoid.New(21)
	if err != nil {
		return prefix + "_fallback"
	}
	return prefix + "_" + id
}

func (g *Generator) GenerateTurnID() string {
	return g.generate("trn")
}

func (g *Generator) GenerateMemoryID() string {
	return g.generate("mem")
}

func (g *Generator) GenerateClusterID() string {
	return g.generate("cls")
}

func (g *Generator) GeneratePlanID() string {
	return g.generate("pln")
}

func (g *Generator) GenerateCitationID() string {
	return g.generate("cit")
}

func (g *Generator) GenerateAuditID() string {
	return g.generate("aud")
}

func (g *Generator) GenerateConfirmationToken() string {
	return g.generate("cfm")
}
