package arm64

import (
	"fmt"

	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/arm64"

	"github.com/lumevm/lume/vm/ir"
	"github.com/lumevm/lume/vm/object"
)

// Condition is a processor condition code as produced by a compare. The
// comparison emitters return one; their callers either branch on it or
// materialize a boolean from it, which is what lets a comparison fuse with
// the branch that consumes it.
type Condition byte

const (
	condInvalid Condition = iota
	condEQ
	condNE
	condLT // signed <
	condLE
	condGT
	condGE
	condLO // unsigned <
	condLS
	condHI
	condHS
	condVS // overflow
	condVC
	condMI
	condPL
)

var conditionNames = [...]string{
	condEQ: "eq", condNE: "ne",
	condLT: "lt", condLE: "le", condGT: "gt", condGE: "ge",
	condLO: "lo", condLS: "ls", condHI: "hi", condHS: "hs",
	condVS: "vs", condVC: "vc", condMI: "mi", condPL: "pl",
}

func (c Condition) String() string {
	if int(c) < len(conditionNames) && conditionNames[c] != "" {
		return conditionNames[c]
	}
	return fmt.Sprintf("cond(%d)", byte(c))
}

// Negate returns the condition true exactly when c is false. Branching to
// the false successor on Negate(c) is how a fused branch falls through to
// the true successor.
func (c Condition) Negate() Condition {
	switch c {
	case condEQ:
		return condNE
	case condNE:
		return condEQ
	case condLT:
		return condGE
	case condLE:
		return condGT
	case condGT:
		return condLE
	case condGE:
		return condLT
	case condLO:
		return condHS
	case condLS:
		return condHI
	case condHI:
		return condLS
	case condHS:
		return condLO
	case condVS:
		return condVC
	case condVC:
		return condVS
	case condMI:
		return condPL
	case condPL:
		return condMI
	}
	panic(fmt.Sprintf("BUG: negate of %s", c))
}

// Flip returns the condition equivalent to c with the compare operands
// swapped. Needed when a commuted compare form is cheaper, e.g. comparing a
// register against a constant that must be the immediate.
func (c Condition) Flip() Condition {
	switch c {
	case condEQ, condNE:
		return c
	case condLT:
		return condGT
	case condLE:
		return condGE
	case condGT:
		return condLT
	case condGE:
		return condLE
	case condLO:
		return condHI
	case condLS:
		return condHS
	case condHI:
		return condLO
	case condHS:
		return condLS
	}
	panic(fmt.Sprintf("BUG: flip of %s", c))
}

// branchOp maps a condition to its conditional branch opcode.
func (c Condition) branchOp() obj.As {
	switch c {
	case condEQ:
		return arm64.ABEQ
	case condNE:
		return arm64.ABNE
	case condLT:
		return arm64.ABLT
	case condLE:
		return arm64.ABLE
	case condGT:
		return arm64.ABGT
	case condGE:
		return arm64.ABGE
	case condLO:
		return arm64.ABLO
	case condLS:
		return arm64.ABLS
	case condHI:
		return arm64.ABHI
	case condHS:
		return arm64.ABHS
	case condVS:
		return arm64.ABVS
	case condVC:
		return arm64.ABVC
	case condMI:
		return arm64.ABMI
	case condPL:
		return arm64.ABPL
	}
	panic(fmt.Sprintf("BUG: branch on %s", c))
}

// smiCondition maps a comparison token to the condition for a signed
// integer compare.
func smiCondition(t ir.Token) (Condition, error) {
	switch t {
	case ir.TokenEQ, ir.TokenEQStrict:
		return condEQ, nil
	case ir.TokenNE, ir.TokenNEStrict:
		return condNE, nil
	case ir.TokenLT:
		return condLT, nil
	case ir.TokenGT:
		return condGT, nil
	case ir.TokenLE:
		return condLE, nil
	case ir.TokenGE:
		return condGE, nil
	}
	return condInvalid, fmt.Errorf("BUG: %s is not a comparison token", t)
}

// doubleCondition maps a comparison token to the condition for a floating
// compare. NaN operands are handled separately by the caller.
func doubleCondition(t ir.Token) (Condition, error) {
	switch t {
	case ir.TokenEQ:
		return condEQ, nil
	case ir.TokenNE:
		return condNE, nil
	case ir.TokenLT:
		return condLT, nil
	case ir.TokenGT:
		return condGT, nil
	case ir.TokenLE:
		return condLE, nil
	case ir.TokenGE:
		return condGE, nil
	}
	return condInvalid, fmt.Errorf("BUG: %s is not a double comparison token", t)
}

// conditionForCID picks the integer or floating mapping for a comparison
// over operands of a known class.
func conditionForCID(t ir.Token, cid object.ClassID) (Condition, error) {
	if cid == object.DoubleCID {
		return doubleCondition(t)
	}
	return smiCondition(t)
}
