// Package jitrt is the runtime helper token registry (spec §6): the set of
// native helper functions the compiled IL calls out to for operations that
// are not worth inlining (true division's int/float coercion rules,
// container construction, iteration protocol, import machinery) or that a
// native backend cannot express directly (raising a Python exception type).
package jitrt

import "fmt"

// Token is a stable ID for one runtime helper. It converts explicitly to
// ilgen.Token wherever a token reaches an emitter: in Registry.Populate
// and at each of the driver's EmitCall sites.
type Token int

//nolint:revive
const (
	TrueDivide Token = iota
	UnicodeConcat
	BuildList
	BuildTuple
	BuildSet
	BuildDict
	Subscript
	GetIter
	IterNext
	ImportFrom
	RaiseAssertionError
	UnpackSequence
	UnpackEx
	BuildSlice
	SliceSubscript
	DictMerge
	BytearrayGetItem
	CallFunction
	GetGlobal
	SetGlobal
	GetAttr
	SetAttr
	MakeFunction
	Import
	RichCompare
	Contains
	Is
	PowerOp
	BoxValue
	UnboxValue
	BinaryOp
	tokenCount
)

var tokenNames = [...]string{
	TrueDivide:          "TrueDivide",
	UnicodeConcat:       "UnicodeConcat",
	BuildList:           "BuildList",
	BuildTuple:          "BuildTuple",
	BuildSet:            "BuildSet",
	BuildDict:           "BuildDict",
	Subscript:           "Subscript",
	GetIter:             "GetIter",
	IterNext:            "IterNext",
	ImportFrom:          "ImportFrom",
	RaiseAssertionError: "RaiseAssertionError",
	UnpackSequence:      "UnpackSequence",
	UnpackEx:            "UnpackEx",
	BuildSlice:          "BuildSlice",
	SliceSubscript:      "SliceSubscript",
	DictMerge:           "DictMerge",
	BytearrayGetItem:    "BytearrayGetItem",
	CallFunction:        "CallFunction",
	GetGlobal:           "GetGlobal",
	SetGlobal:           "SetGlobal",
	GetAttr:             "GetAttr",
	SetAttr:             "SetAttr",
	MakeFunction:        "MakeFunction",
	Import:              "Import",
	RichCompare:         "RichCompare",
	Contains:            "Contains",
	Is:                  "Is",
	PowerOp:             "PowerOp",
	BoxValue:            "BoxValue",
	UnboxValue:          "UnboxValue",
	BinaryOp:            "BinaryOp",
}

func (t Token) String() string {
	if int(t) < 0 || int(t) >= len(tokenNames) || tokenNames[t] == "" {
		return fmt.Sprintf("Token<%d>", int(t))
	}
	return tokenNames[t]
}
