package pyvalue

// BinOp names a Python binary arithmetic/bitwise operator.
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	TrueDiv
	FloorDiv
	Mod
	Pow
	LShift
	RShift
	BitAnd
	BitOr
	BitXor
	MatMul
)

// UnaryOp names a Python unary operator.
type UnaryOp int

const (
	Neg UnaryOp = iota
	Pos
	Invert
	Not
)

// CompareOp names a Python comparison or membership operator.
type CompareOp int

const (
	Lt CompareOp = iota
	Le
	Eq
	Ne
	Gt
	Ge
	Is
	IsNot
	In
	NotIn
)

type kindPair struct {
	a, b Kind
}

// numericTower orders the kinds that participate in arithmetic promotion.
// Bool < Integer < Float < Complex, matching Python's numeric promotion
// rules (bool is a subtype of int).
var numericTower = map[Kind]int{
	KindBool:    0,
	KindInteger: 1,
	KindFloat:   2,
	KindComplex: 3,
}

func isNumeric(k Kind) bool {
	_, ok := numericTower[k]
	return ok
}

func promote(a, b Kind) Kind {
	ra, ok := numericTower[a]
	if !ok {
		return KindAny
	}
	rb, ok := numericTower[b]
	if !ok {
		return KindAny
	}
	if ra >= rb {
		if a == KindBool {
			return KindInteger
		}
		return a
	}
	if b == KindBool {
		return KindInteger
	}
	return b
}

// binaryOverrides lists result kinds for combinations that don't follow
// plain numeric promotion: string/bytes concatenation and repetition,
// container concatenation, and true division (which always widens to
// Float for two numeric operands, even Integer/Integer).
var binaryOverrides = map[BinOp]map[kindPair]Kind{
	Add: {
		{KindStr, KindStr}:             KindStr,
		{KindBytes, KindBytes}:         KindBytes,
		{KindBytearray, KindBytearray}: KindBytearray,
		{KindList, KindList}:           KindList,
		{KindTuple, KindTuple}:         KindTuple,
	},
	Mul: {
		{KindStr, KindInteger}:       KindStr,
		{KindInteger, KindStr}:       KindStr,
		{KindList, KindInteger}:      KindList,
		{KindInteger, KindList}:      KindList,
		{KindTuple, KindInteger}:     KindTuple,
		{KindInteger, KindTuple}:     KindTuple,
		{KindBytes, KindInteger}:     KindBytes,
		{KindInteger, KindBytes}:     KindBytes,
		{KindBytearray, KindInteger}: KindBytearray,
		{KindInteger, KindBytearray}: KindBytearray,
	},
	BitOr: {
		{KindDict, KindDict}: KindDict,
		{KindSet, KindSet}:   KindSet,
	},
	BitAnd: {
		{KindSet, KindSet}: KindSet,
	},
	BitXor: {
		{KindSet, KindSet}: KindSet,
	},
}

// BinaryResultKind computes the abstract result kind of `a op b`. It falls
// back to Any whenever either operand is Any, or the combination's
// semantics are user-overridable and not one of the closed set of
// built-in combinations this lattice tracks.
func BinaryResultKind(op BinOp, a, b Kind) Kind {
	if a == KindAny || b == KindAny {
		return KindAny
	}
	if overrides, ok := binaryOverrides[op]; ok {
		if k, ok := overrides[kindPair{a, b}]; ok {
			return k
		}
	}
	if op == TrueDiv {
		if isNumeric(a) && isNumeric(b) {
			return KindFloat
		}
		return KindAny
	}
	switch op {
	case Add, Sub, Mul, FloorDiv, Mod, Pow, LShift, RShift, BitAnd, BitOr, BitXor:
		if isNumeric(a) && isNumeric(b) {
			return promote(a, b)
		}
	case MatMul:
		return KindAny
	}
	return KindAny
}

// UnaryResultKind computes the abstract result kind of `op a`.
func UnaryResultKind(op UnaryOp, a Kind) Kind {
	if a == KindAny {
		return KindAny
	}
	switch op {
	case Not:
		return KindBool
	case Invert:
		if a == KindInteger || a == KindBool {
			return KindInteger
		}
		return KindAny
	case Neg, Pos:
		if isNumeric(a) {
			if a == KindBool {
				return KindInteger
			}
			return a
		}
		return KindAny
	}
	return KindAny
}

// CompareResultKind computes the abstract result kind of a comparison.
// Rich comparisons can in principle return any type, but the lattice only
// tracks the built-in kinds that always yield Bool; anything involving Any
// stays Any.
func CompareResultKind(op CompareOp, a, b Kind) Kind {
	if a == KindAny || b == KindAny {
		return KindAny
	}
	switch op {
	case Is, IsNot, In, NotIn:
		return KindBool
	default:
		return KindBool
	}
}

// ContainsResultKind computes the result kind of a `in`/`not in` test;
// always Bool for the closed lattice's built-in containers.
func ContainsResultKind(container, _ Kind) Kind {
	if container == KindAny {
		return KindAny
	}
	return KindBool
}

// subscriptTable maps (container kind, index kind) to the element kind
// BINARY_SUBSCR produces.
var subscriptTable = map[kindPair]Kind{
	{KindList, KindInteger}:      KindAny,
	{KindList, KindSlice}:        KindList,
	{KindTuple, KindInteger}:     KindAny,
	{KindTuple, KindSlice}:       KindTuple,
	{KindStr, KindInteger}:       KindStr,
	{KindStr, KindSlice}:         KindStr,
	{KindBytes, KindInteger}:     KindInteger,
	{KindBytes, KindSlice}:       KindBytes,
	{KindBytearray, KindInteger}: KindInteger,
	{KindBytearray, KindSlice}:   KindBytearray,
	{KindDict, KindAny}:          KindAny,
}

// SubscriptResultKind computes the result kind of `container[index]`.
func SubscriptResultKind(container, index Kind) Kind {
	if container == KindAny || index == KindAny {
		return KindAny
	}
	if container == KindDict {
		return KindAny
	}
	if k, ok := subscriptTable[kindPair{container, index}]; ok {
		return k
	}
	return KindAny
}

// iterElementTable maps an iterable's kind to the kind its iterator
// yields. Kinds absent from the table (e.g. Dict, whose default iterator
// yields keys of unknowable kind) yield Any.
var iterElementTable = map[Kind]Kind{
	KindStr:       KindStr,
	KindBytes:     KindInteger,
	KindBytearray: KindInteger,
}

// IterResultKind computes the kind FOR_ITER pushes when iterating a value
// of kind container.
func IterResultKind(container Kind) Kind {
	if container == KindAny {
		return KindAny
	}
	if k, ok := iterElementTable[container]; ok {
		return k
	}
	return KindAny
}

// CallResultKind computes the result kind of calling a value of kind
// callee. Only Function calls are tracked to Any (the analyser does not
// attempt interprocedural inference); everything else is Any too, since a
// callable's return kind is never knowable from its own kind alone.
func CallResultKind(_ Kind) Kind {
	return KindAny
}

// Merge implements the lattice join used when two control-flow paths
// disagree on a stack slot or local's kind: merge(a,b) = a when a == b;
// otherwise the kind-wise join, falling back to Any when the pair has no
// sensible common supertype. Undefined is the identity element.
func Merge(a, b Kind) Kind {
	if a == b {
		return a
	}
	if a == KindUndefined {
		return b
	}
	if b == KindUndefined {
		return a
	}
	if isNumeric(a) && isNumeric(b) {
		return promote(a, b)
	}
	return KindAny
}
