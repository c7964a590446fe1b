package domain

// ---------------- Operadores ----------------

type Operator string

const (
	OpEq     Operator = "="
	OpNeq    Operator = "<>"
	OpGt     Operator = ">"
	OpGte    Operator = ">="
	OpLt     Operator = "<"
	OpLte    Operator = "<="
	OpIsNull Operator = "IS NULL"
)

// Criterion describe una condición neutral de filtrado sobre una columna.
// Con OpIsNull el valor se ignora.
type Criterion struct {
	Field string
	Op    Operator
	Value interface{}
}

// Criteria permite transformar filtros de dominio a condiciones neutrales.
type Criteria interface {
	ToConditions() []Criterion
}

// CriteriaFunc adapta una función al contrato Criteria.
type CriteriaFunc func() []Criterion

func (f CriteriaFunc) ToConditions() []Criterion { return f() }

// CompositeCriteria agrupa criterios. Los repositorios SQL sólo combinan con AND.
type CompositeCriteria struct {
	Criterias []Criteria
}

func (c CompositeCriteria) ToConditions() []Criterion {
	var all []Criterion
	for _, crit := range c.Criterias {
		if crit == nil {
			continue
		}
		all = append(all, crit.ToConditions()...)
	}
	return all
}

// And crea un CompositeCriteria con todos los criterios recibidos.
func And(criterias ...Criteria) CompositeCriteria {
	return CompositeCriteria{Criterias: criterias}
}

// Eq es un atajo para una igualdad simple.
func Eq(field string, value interface{}) Criteria {
	return CriteriaFunc(func() []Criterion {
		return []Criterion{{Field: field, Op: OpEq, Value: value}}
	})
}

// NotDeleted filtra los agregados borrados lógicamente.
func NotDeleted() Criteria {
	return CriteriaFunc(func() []Criterion {
		return []Criterion{{Field: "deleted_at", Op: OpIsNull}}
	})
}
