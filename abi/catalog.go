package abi

import "fmt"

// TypeCatalog maps struct names to their definitions and resolves flat
// widths for fixed-size types.
type TypeCatalog struct {
	structs map[string]*Struct
	widths  map[string]int
}

// ExtractTypes builds the catalog from an ABI's struct entries. When the
// same name is declared more than once the last declaration wins, and the
// name is reported in the returned slice so callers can log it.
func ExtractTypes(a *ABI) (*TypeCatalog, []string) {
	cat := &TypeCatalog{
		structs: make(map[string]*Struct),
		widths:  make(map[string]int),
	}
	var duplicates []string
	for _, st := range a.Structs() {
		if _, seen := cat.structs[st.Name]; seen {
			duplicates = append(duplicates, st.Name)
		}
		cat.structs[st.Name] = st
	}
	return cat, duplicates
}

// Struct returns the definition registered under name.
func (c *TypeCatalog) Struct(name string) (*Struct, bool) {
	st, ok := c.structs[name]
	return st, ok
}

// Len returns the number of registered struct definitions.
func (c *TypeCatalog) Len() int {
	return len(c.structs)
}

// WidthOf returns the number of felts a value of the given spec occupies
// when flattened. Arrays have no fixed width and yield ErrUnsizedType;
// undeclared structs yield UnknownStructError; cyclic struct definitions
// yield ErrStructCycle.
func (c *TypeCatalog) WidthOf(spec TypeSpec) (int, error) {
	return c.widthOf(spec, make(map[string]bool))
}

func (c *TypeCatalog) widthOf(spec TypeSpec, visiting map[string]bool) (int, error) {
	switch {
	case spec.IsFelt():
		return 1, nil
	case spec.IsArray():
		return 0, ErrUnsizedType
	}

	name := spec.StructName()
	if width, ok := c.widths[name]; ok {
		return width, nil
	}
	if visiting[name] {
		return 0, fmt.Errorf("%w: %s", ErrStructCycle, name)
	}

	st, ok := c.structs[name]
	if !ok {
		return 0, &UnknownStructError{Name: name}
	}

	visiting[name] = true
	total := 0
	for _, member := range st.Members {
		memberSpec, err := ParseType(member.Type)
		if err != nil {
			return 0, err
		}
		width, err := c.widthOf(memberSpec, visiting)
		if err != nil {
			return 0, err
		}
		total += width
	}
	delete(visiting, name)

	c.widths[name] = total
	return total, nil
}
