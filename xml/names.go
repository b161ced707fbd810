package xml

import (
	"errors"
	"fmt"
	"strings"
)

const (
	NamespaceXML    = "http://www.w3.org/XML/1998/namespace"
	NamespaceXMLNS  = "http://www.w3.org/2000/xmlns/"
	NamespaceXS     = "http://www.w3.org/2001/XMLSchema"
	NamespaceXSI    = "http://www.w3.org/2001/XMLSchema-instance"
	NamespaceFN     = "http://www.w3.org/2005/xpath-functions"
	NamespaceMath   = "http://www.w3.org/2005/xpath-functions/math"
	NamespaceMap    = "http://www.w3.org/2005/xpath-functions/map"
	NamespaceArray  = "http://www.w3.org/2005/xpath-functions/array"
	NamespaceErr    = "http://www.w3.org/2005/xqt-errors"
	NamespaceLocal  = "http://www.w3.org/2005/xquery-local-functions"
	NamespaceOutput = "http://www.w3.org/2010/xslt-xquery-serialization"
	NamespaceXQuery = "http://www.w3.org/2012/xquery"
	NamespaceOption = "http://www.w3.org/2011/xquery-options"
	NamespaceXQ     = "http://midbel.org/xq"
)

var ErrName = errors.New("invalid name")

type NodeType int16

const (
	TypeDocument NodeType = 1 << iota
	TypeElement
	TypeComment
	TypeAttribute
	TypeInstruction
	TypeText
	TypeNamespace
)

const TypeNode = TypeDocument | TypeElement | TypeComment | TypeAttribute | TypeInstruction | TypeText | TypeNamespace

func (n NodeType) String() string {
	switch n {
	default:
		return "<>"
	case TypeDocument:
		return "document-node"
	case TypeElement:
		return "element"
	case TypeComment:
		return "comment"
	case TypeAttribute:
		return "attribute"
	case TypeInstruction:
		return "processing-instruction"
	case TypeText:
		return "text"
	case TypeNamespace:
		return "namespace-node"
	case TypeNode:
		return "node"
	}
}

type QName struct {
	Uri   string
	Space string
	Name  string
}

// ParseName splits a lexical QName into its prefix and local part. The
// namespace URI is left empty: binding the prefix is the caller's business.
func ParseName(name string) (QName, error) {
	var (
		qn QName
		ok bool
	)
	if strings.HasPrefix(name, "Q{") {
		uri, local, ok := strings.Cut(name[2:], "}")
		if !ok || local == "" {
			return qn, fmt.Errorf("%s: %w", name, ErrName)
		}
		return ExpandedName(local, "", uri), nil
	}
	qn.Space, qn.Name, ok = strings.Cut(name, ":")
	if !ok {
		qn.Name, qn.Space = qn.Space, ""
	}
	if ok && (qn.Space == "" || qn.Name == "") {
		return qn, fmt.Errorf("%s: %w", name, ErrName)
	}
	return qn, nil
}

func ExpandedName(name, space, uri string) QName {
	return QName{
		Name:  name,
		Space: space,
		Uri:   uri,
	}
}

func LocalName(name string) QName {
	return ExpandedName(name, "", "")
}

func QualifiedName(name, space string) QName {
	return ExpandedName(name, space, "")
}

func (q QName) Zero() bool {
	return q.Space == "" && q.Name == "" && q.Uri == ""
}

// Equal compares expanded names: the prefix is irrelevant.
func (q QName) Equal(other QName) bool {
	return q.Uri == other.Uri && q.Name == other.Name
}

func (q QName) LocalName() string {
	return q.Name
}

func (q QName) ExpandedName() string {
	if q.Uri == "" {
		return q.LocalName()
	}
	return fmt.Sprintf("Q{%s}%s", q.Uri, q.Name)
}

func (q QName) QualifiedName() string {
	if q.Space == "" {
		return q.LocalName()
	}
	return fmt.Sprintf("%s:%s", q.Space, q.Name)
}

func (q QName) String() string {
	return q.QualifiedName()
}
