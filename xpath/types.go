package xpath

import (
	"strings"

	"github.com/midbel/xq/xml"
)

type Occurrence int8

const (
	OccursOne Occurrence = iota
	OccursOptional
	OccursMany
	OccursOneOrMore
	OccursEmpty
)

func (o Occurrence) String() string {
	switch o {
	case OccursOptional:
		return "?"
	case OccursMany:
		return "*"
	case OccursOneOrMore:
		return "+"
	default:
		return ""
	}
}

func (o Occurrence) allowsEmpty() bool {
	return o == OccursOptional || o == OccursMany || o == OccursEmpty
}

func (o Occurrence) allowsMany() bool {
	return o == OccursMany || o == OccursOneOrMore
}

type SequenceType struct {
	Item       ItemType
	Occurrence Occurrence
}

func (s SequenceType) String() string {
	if s.Occurrence == OccursEmpty {
		return "empty-sequence()"
	}
	if s.Item == nil {
		return "item()*"
	}
	str := s.Item.String()
	if _, ok := s.Item.(FunctionTest); ok && s.Occurrence != OccursOne {
		str = "(" + str + ")"
	}
	return str + s.Occurrence.String()
}

var (
	anyItems      = SequenceType{Item: AnyItem{}, Occurrence: OccursMany}
	emptySequence = SequenceType{Occurrence: OccursEmpty}
)

func atomicOf(local string, occ Occurrence) SequenceType {
	return SequenceType{
		Item:       AtomicType{Name: xml.ExpandedName(local, "xs", xml.NamespaceXS)},
		Occurrence: occ,
	}
}

type ItemType interface {
	String() string
	itemType()
}

type AnyItem struct{}

func (AnyItem) String() string { return "item()" }
func (AnyItem) itemType()      {}

type AtomicType struct {
	Name xml.QName
}

func (a AtomicType) String() string {
	return a.Name.QualifiedName()
}

func (AtomicType) itemType() {}

type FunctionTest struct {
	Any         bool
	Annotations []Annotation
	Params      []SequenceType
	Return      SequenceType
}

func (f FunctionTest) String() string {
	if f.Any {
		return "function(*)"
	}
	var parts []string
	for _, p := range f.Params {
		parts = append(parts, p.String())
	}
	return "function(" + strings.Join(parts, ", ") + ") as " + f.Return.String()
}

func (FunctionTest) itemType() {}

type MapTest struct {
	Any   bool
	Key   AtomicType
	Value SequenceType
}

func (m MapTest) String() string {
	if m.Any {
		return "map(*)"
	}
	return "map(" + m.Key.String() + ", " + m.Value.String() + ")"
}

func (MapTest) itemType() {}

type ArrayTest struct {
	Any    bool
	Member SequenceType
}

func (a ArrayTest) String() string {
	if a.Any {
		return "array(*)"
	}
	return "array(" + a.Member.String() + ")"
}

func (ArrayTest) itemType() {}

// NodeTest is the test of an axis step.
type NodeTest interface {
	String() string
	nodeTest()
}

// NameTest matches nodes by name. "*" sets both wildcards, "p:*" only
// AnyLocal and "*:n" only AnyNamespace.
type NameTest struct {
	Name         xml.QName
	AnyNamespace bool
	AnyLocal     bool
}

func (n NameTest) String() string {
	switch {
	case n.AnyNamespace && n.AnyLocal:
		return "*"
	case n.AnyNamespace:
		return "*:" + n.Name.Name
	case n.AnyLocal:
		return n.Name.Space + ":*"
	default:
		return n.Name.QualifiedName()
	}
}

func (NameTest) nodeTest() {}

func (n NameTest) Match(name xml.QName) bool {
	if !n.AnyNamespace && n.Name.Uri != name.Uri {
		return false
	}
	return n.AnyLocal || n.Name.Name == name.Name
}

// KindTest is both a node test and an item type.
type KindTest struct {
	Kind     xml.NodeType
	Name     *NameTest
	TypeName xml.QName
	Nillable bool
	Schema   bool
	Target   string
	Inner    *KindTest
}

func (k KindTest) String() string {
	var str strings.Builder
	if k.Schema {
		str.WriteString("schema-")
	}
	str.WriteString(k.Kind.String())
	str.WriteString("(")
	switch {
	case k.Inner != nil:
		str.WriteString(k.Inner.String())
	case k.Target != "":
		str.WriteString(k.Target)
	case k.Name != nil:
		str.WriteString(k.Name.String())
		if !k.TypeName.Zero() {
			str.WriteString(", ")
			str.WriteString(k.TypeName.QualifiedName())
			if k.Nillable {
				str.WriteString("?")
			}
		}
	}
	str.WriteString(")")
	return str.String()
}

func (KindTest) nodeTest() {}
func (KindTest) itemType() {}

type typeFamily int8

const (
	familyNone typeFamily = iota
	familyAny
	familyUntyped
	familyString
	familyNumeric
	familyBoolean
	familyTime
	familyDuration
	familyURI
	familyQName
	familyBinary
)

var atomicTypes = map[string]typeFamily{
	"anyAtomicType":      familyAny,
	"untypedAtomic":      familyUntyped,
	"string":             familyString,
	"normalizedString":   familyString,
	"token":              familyString,
	"language":           familyString,
	"NMTOKEN":            familyString,
	"Name":               familyString,
	"NCName":             familyString,
	"ID":                 familyString,
	"IDREF":              familyString,
	"ENTITY":             familyString,
	"decimal":            familyNumeric,
	"integer":            familyNumeric,
	"nonPositiveInteger": familyNumeric,
	"negativeInteger":    familyNumeric,
	"long":               familyNumeric,
	"int":                familyNumeric,
	"short":              familyNumeric,
	"byte":               familyNumeric,
	"nonNegativeInteger": familyNumeric,
	"unsignedLong":       familyNumeric,
	"unsignedInt":        familyNumeric,
	"unsignedShort":      familyNumeric,
	"unsignedByte":       familyNumeric,
	"positiveInteger":    familyNumeric,
	"float":              familyNumeric,
	"double":             familyNumeric,
	"boolean":            familyBoolean,
	"date":               familyTime,
	"dateTime":           familyTime,
	"dateTimeStamp":      familyTime,
	"time":               familyTime,
	"gYear":              familyTime,
	"gYearMonth":         familyTime,
	"gMonth":             familyTime,
	"gMonthDay":          familyTime,
	"gDay":               familyTime,
	"duration":           familyDuration,
	"dayTimeDuration":    familyDuration,
	"yearMonthDuration":  familyDuration,
	"anyURI":             familyURI,
	"QName":              familyQName,
	"NOTATION":           familyQName,
	"base64Binary":       familyBinary,
	"hexBinary":          familyBinary,
}

func isAtomicType(name xml.QName) bool {
	if name.Uri != xml.NamespaceXS {
		return false
	}
	_, ok := atomicTypes[name.Name]
	return ok
}

// isAbstractType reports the atomic types that can not be the target of a
// cast.
func isAbstractType(name xml.QName) bool {
	return name.Uri == xml.NamespaceXS && (name.Name == "anyAtomicType" || name.Name == "NOTATION")
}

func familyOf(name xml.QName) typeFamily {
	if name.Uri != xml.NamespaceXS {
		return familyNone
	}
	return atomicTypes[name.Name]
}

// compatibleAtomic reports whether a value of the given actual type can be
// passed where the expected type is required, taking promotion into
// account.
func compatibleAtomic(actual, expected xml.QName) bool {
	var (
		a = familyOf(actual)
		e = familyOf(expected)
	)
	switch {
	case a == familyNone || e == familyNone:
		return true
	case a == familyAny || e == familyAny || a == familyUntyped:
		return true
	case a == familyURI && e == familyString:
		return true
	default:
		return a == e
	}
}
