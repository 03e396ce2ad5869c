package registry

import (
	"regexp"
	"slices"
	"strings"
)

var (
	codePattern = regexp.MustCompile(`^[A-Z]{1,3}$`)
	namePattern = regexp.MustCompile(`^\w+$`)
)

// Registry is the resolved, read-only view of all entity declarations. Build it once with New and pass it
// to the indexer and the query engine.
type Registry struct {
	entities    map[string]Declaration
	entityTypes []string

	termNamesByCode map[string]string
	termsByName     map[string]TermMapping
	valuesBySlot    map[int]ValueMapping
	valuesByName    map[string]ValueMapping
}

func New(declarations ...Declaration) (*Registry, error) {
	if len(declarations) == 0 {
		return nil, configErrorf("no entity types declared")
	}

	r := &Registry{
		entities:        make(map[string]Declaration, len(declarations)),
		termNamesByCode: map[string]string{},
		termsByName:     map[string]TermMapping{},
		valuesBySlot:    map[int]ValueMapping{},
		valuesByName:    map[string]ValueMapping{},
	}

	for _, declaration := range declarations {
		if err := r.add(declaration); err != nil {
			return nil, err
		}
	}

	for _, entityType := range r.entityTypes {
		if err := r.validateReferences(r.entities[entityType]); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Registry) add(declaration Declaration) error {
	entityType := declaration.EntityType
	if entityType == "" || strings.ContainsAny(entityType, "- \t\n:") {
		return configErrorf("invalid entity type name %q", entityType)
	}
	if _, ok := r.entities[entityType]; ok {
		return configErrorf("entity type %q declared twice", entityType)
	}

	for _, term := range declaration.Terms {
		if err := r.addTerm(entityType, term); err != nil {
			return err
		}
	}

	for _, value := range declaration.Values {
		if err := r.addValue(entityType, value); err != nil {
			return err
		}
	}

	for _, text := range declaration.Texts {
		if text == "" {
			return configErrorf("empty text field on %s", entityType)
		}
	}

	r.entities[entityType] = declaration
	r.entityTypes = append(r.entityTypes, entityType)

	return nil
}

func (r *Registry) addTerm(entityType string, term TermMapping) error {
	if !codePattern.MatchString(term.Code) {
		return configErrorf("use up to 3 single capital letters for term code, got %q on %s", term.Code, entityType)
	}
	if term.Code == CodeModel || term.Code == CodeModelID {
		return configErrorf("%s and %s are reserved for use as the model/id term", CodeModel, CodeModelID)
	}
	if term.Code == CodeStemmed {
		return configErrorf("%s is reserved for stemming terms", CodeStemmed)
	}
	if !namePattern.MatchString(term.Name) {
		return configErrorf("invalid term prefix name %q on %s", term.Name, entityType)
	}
	if term.Name == NameModel || term.Name == NameModelID {
		return configErrorf("%s and %s are reserved for use as the model/id prefixes", NameModel, NameModelID)
	}
	if term.Field == "" {
		return configErrorf("term %q on %s has no source field", term.Name, entityType)
	}

	if name, ok := r.termNamesByCode[term.Code]; ok && name != term.Name {
		return configErrorf("already have code '%s' in another entity type but with different prefix '%s'", term.Code, name)
	}
	if existing, ok := r.termsByName[term.Name]; ok && existing.Code != term.Code {
		return configErrorf("prefix '%s' already maps to code '%s', cannot map it to '%s'", term.Name, existing.Code, term.Code)
	}
	if _, ok := r.valuesByName[term.Name]; ok {
		return configErrorf("prefix '%s' is already used as a value name", term.Name)
	}

	r.termNamesByCode[term.Code] = term.Name
	r.termsByName[term.Name] = TermMapping{Code: term.Code, Name: term.Name}

	return nil
}

func (r *Registry) addValue(entityType string, value ValueMapping) error {
	if value.Slot < 0 {
		return configErrorf("value slot for '%s' on %s must not be negative", value.Name, entityType)
	}
	switch value.Type {
	case ValueTypeDate, ValueTypeString, ValueTypeNumber:
	default:
		return configErrorf("unknown value type '%s'", value.Type)
	}
	if !namePattern.MatchString(value.Name) || value.Name == NameModel || value.Name == NameModelID {
		return configErrorf("invalid value name %q on %s", value.Name, entityType)
	}
	if value.Field == "" {
		return configErrorf("value %q on %s has no source field", value.Name, entityType)
	}

	if existing, ok := r.valuesBySlot[value.Slot]; ok {
		if existing.Name != value.Name {
			return configErrorf("already have value index '%d' in another entity type but with different prefix '%s'", value.Slot, existing.Name)
		}
		if existing.Type != value.Type {
			return configErrorf("value index '%d' is declared as both %s and %s", value.Slot, existing.Type, value.Type)
		}
	}
	if existing, ok := r.valuesByName[value.Name]; ok && existing.Slot != value.Slot {
		return configErrorf("value name '%s' already maps to slot %d, cannot map it to %d", value.Name, existing.Slot, value.Slot)
	}
	if _, ok := r.termsByName[value.Name]; ok {
		return configErrorf("value name '%s' is already used as a term prefix", value.Name)
	}

	resolved := ValueMapping{Slot: value.Slot, Name: value.Name, Type: value.Type}
	r.valuesBySlot[value.Slot] = resolved
	r.valuesByName[value.Name] = resolved

	return nil
}

func (r *Registry) validateReferences(declaration Declaration) error {
	for _, eager := range declaration.EagerLoad {
		if eager.Field == "" || eager.As == "" {
			return configErrorf("eager load on %s needs both field and as", declaration.EntityType)
		}
		if _, ok := r.entities[eager.EntityType]; !ok {
			return configErrorf("eager load '%s' on %s refers to unknown entity type %q", eager.As, declaration.EntityType, eager.EntityType)
		}
	}

	for _, relation := range declaration.Relations {
		child, ok := r.entities[relation.EntityType]
		if !ok {
			return configErrorf("relation '%s' on %s refers to unknown entity type %q", relation.Name, declaration.EntityType, relation.EntityType)
		}
		if !slices.ContainsFunc(child.Terms, func(term TermMapping) bool { return term.Name == relation.Term }) {
			return configErrorf("relation '%s' on %s needs %s to declare the term prefix '%s'", relation.Name, declaration.EntityType, relation.EntityType, relation.Term)
		}
	}

	return nil
}

// Entity returns the declaration of entityType.
func (r *Registry) Entity(entityType string) (Declaration, error) {
	declaration, ok := r.entities[entityType]
	if !ok {
		return Declaration{}, configErrorf("entity type %q is not registered", entityType)
	}

	return declaration, nil
}

// EntityTypes returns the registered entity types in declaration order.
func (r *Registry) EntityTypes() []string {
	return slices.Clone(r.entityTypes)
}

// Slot resolves a sortable/collapsible value name to its slot.
func (r *Registry) Slot(name string) (ValueMapping, error) {
	value, ok := r.valuesByName[name]
	if !ok {
		return ValueMapping{}, configErrorf("couldn't find prefix '%s'", name)
	}

	return value, nil
}

// TermCode resolves a term prefix name to its code.
func (r *Registry) TermCode(name string) (string, bool) {
	term, ok := r.termsByName[name]
	return term.Code, ok
}

// Values returns every distinct value slot across all entity types.
func (r *Registry) Values() []ValueMapping {
	values := make([]ValueMapping, 0, len(r.valuesBySlot))
	for _, value := range r.valuesBySlot {
		values = append(values, value)
	}
	slices.SortFunc(values, func(a, b ValueMapping) int { return a.Slot - b.Slot })

	return values
}

// TermCodes returns every distinct term prefix code across all entity types.
func (r *Registry) TermCodes() []string {
	codes := make([]string, 0, len(r.termNamesByCode))
	for code := range r.termNamesByCode {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	return codes
}

// Relation returns the relation declared on ownerType under name.
func (r *Registry) Relation(ownerType string, name string) (Relation, error) {
	declaration, err := r.Entity(ownerType)
	if err != nil {
		return Relation{}, err
	}

	for _, relation := range declaration.Relations {
		if relation.Name == name {
			return relation, nil
		}
	}

	return Relation{}, configErrorf("%s has no relation '%s'", ownerType, name)
}
