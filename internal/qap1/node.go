package qap1

// Bool is one element of an XT_BOOL/XT_ARRAY_BOOL body: {false, true, NA}.
type Bool uint8

const (
	BoolFalse Bool = 0
	BoolTrue  Bool = 1
	BoolNA    Bool = 2
)

// Node is one element of the value-tree grammar carried by DT_SEXP (spec
// §3 "Typed value tree"). Only the fields relevant to Type are populated.
type Node struct {
	Type NodeType
	Attr *Node

	Ints     []int32
	Doubles  []float64
	Bools    []Bool
	Str      string
	Strs     []string
	Raw      []byte
	Children []*Node
	Unknown  uint32
}

// NewNull returns an XT_NULL node.
func NewNull() *Node { return &Node{Type: XtNull} }

// NewInts returns an XT_ARRAY_INT node.
func NewInts(v ...int32) *Node { return &Node{Type: XtArrayInt, Ints: v} }

// NewDoubles returns an XT_ARRAY_DOUBLE node.
func NewDoubles(v ...float64) *Node { return &Node{Type: XtArrayDouble, Doubles: v} }

// NewBoolScalar returns a bare XT_BOOL node.
func NewBoolScalar(b Bool) *Node { return &Node{Type: XtBool, Bools: []Bool{b}} }

// NewBoolArray returns an XT_ARRAY_BOOL node, regardless of length —
// unlike strings, bool vectors have no length-1 collapse (spec §3).
func NewBoolArray(v ...Bool) *Node { return &Node{Type: XtArrayBool, Bools: v} }

// NewString returns a bare XT_STR node.
func NewString(s string) *Node { return &Node{Type: XtStr, Str: s} }

// NewStringVector returns an XT_ARRAY_STR node, except that a length-1
// vector is transparently collapsed into a bare XT_STR, matching spec §3.
func NewStringVector(v []string) *Node {
	if len(v) == 1 {
		return NewString(v[0])
	}
	return &Node{Type: XtArrayStr, Strs: v}
}

// NewRaw returns an XT_RAW node.
func NewRaw(b []byte) *Node { return &Node{Type: XtRaw, Raw: b} }

// NewVector returns an XT_VECTOR node wrapping children in order.
func NewVector(children ...*Node) *Node { return &Node{Type: XtVector, Children: children} }

// NewList returns an XT_LIST node with its three children in order: head,
// tail, tag.
func NewList(head, tail, tag *Node) *Node {
	return &Node{Type: XtList, Children: []*Node{head, tail, tag}}
}

// NewLang returns an XT_LANG node with its three children in order: head,
// tail, tag.
func NewLang(head, tail, tag *Node) *Node {
	return &Node{Type: XtLang, Children: []*Node{head, tail, tag}}
}

// NewClosure returns an XT_CLOS node with its two children: formals, body.
func NewClosure(formals, body *Node) *Node {
	return &Node{Type: XtClos, Children: []*Node{formals, body}}
}

// NewSymbol returns an XT_SYM node wrapping its print-name.
func NewSymbol(name string) *Node {
	return &Node{Type: XtSym, Children: []*Node{NewString(name)}}
}

// NewUnknown returns an XT_UNKNOWN fallback node carrying an
// encoder-unrecognized type code.
func NewUnknown(code uint32) *Node { return &Node{Type: XtUnknown, Unknown: code} }

// WithAttr sets the node's attribute list and returns the node, for
// chaining at construction time.
func (n *Node) WithAttr(attr *Node) *Node {
	n.Attr = attr
	return n
}

// effectiveType returns the type actually written to the wire, applying
// the length-1 string vector collapse even if a Node was built by hand
// rather than through NewStringVector.
func (n *Node) effectiveType() NodeType {
	if n.Type == XtArrayStr && len(n.Strs) == 1 {
		return XtStr
	}
	return n.Type
}
