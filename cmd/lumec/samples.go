package main

import (
	"github.com/lumevm/lume/vm/ir"
	"github.com/lumevm/lume/vm/object"
)

// samples are small hand-built flow graphs, each exercising one corner of the
// backend. They are shaped like optimizer output but carry no real data flow;
// the point is the emitted code, not a runnable program.
var samples = map[string]func() *ir.Graph{
	"smi-arith":    smiArithSample,
	"branchy":      branchSample,
	"double-math":  doubleMathSample,
	"array-access": arraySample,
	"objects":      objectsSample,
	"calls":        callsSample,
}

func smiConst(v int64) ir.Operand {
	ref := object.NewSmi(v)
	return ir.Operand{CID: object.SmiCID, Constant: &ref}
}

func smiRange(min, max int64) ir.Operand {
	return ir.Operand{CID: object.SmiCID, Range: ir.NewRange(min, max)}
}

func smiArithSample() *ir.Graph {
	return &ir.Graph{Blocks: []*ir.Block{{
		ID: 0,
		Instrs: []ir.Instr{
			&ir.CheckStackOverflow{Base: ir.Base{Deopt: 1}},
			&ir.Constant{Value: object.NewSmi(41)},
			&ir.BinarySmiOp{Base: ir.Base{Deopt: 2}, Op: ir.TokenADD, Right: smiConst(1)},
			&ir.BinarySmiOp{Base: ir.Base{Deopt: 3}, Op: ir.TokenMUL},
			&ir.BinarySmiOp{Base: ir.Base{Deopt: 4}, Op: ir.TokenTRUNCDIV, Right: smiConst(8)},
			&ir.BinarySmiOp{Base: ir.Base{Deopt: 5}, Op: ir.TokenMOD,
				Left: smiRange(0, 1000), Right: smiRange(1, 100)},
			&ir.UnarySmiOp{Base: ir.Base{Deopt: 6}, Op: ir.TokenNegate},
			&ir.Return{},
		},
	}}}
}

func branchSample() *ir.Graph {
	return &ir.Graph{Function: object.Ref(0x501), Blocks: []*ir.Block{
		{ID: 0, Instrs: []ir.Instr{
			&ir.CheckStackOverflow{Base: ir.Base{Deopt: 1}, LoopDepth: 1},
			&ir.Branch{
				Comparison:  &ir.RelationalOp{Op: ir.TokenLT, OperandCID: object.SmiCID},
				TrueTarget:  1,
				FalseTarget: 2,
			},
		}},
		{ID: 1, Instrs: []ir.Instr{
			&ir.IfThenElse{
				Comparison: &ir.TestSmi{Op: ir.TokenEQ, Right: smiConst(2)},
				TrueValue:  1,
				FalseValue: 0,
			},
			&ir.Goto{Target: 2},
		}},
		{ID: 2, Instrs: []ir.Instr{
			&ir.BooleanNegate{},
			&ir.Return{},
		}},
	}}
}

func doubleMathSample() *ir.Graph {
	return &ir.Graph{Blocks: []*ir.Block{{
		ID: 0,
		Instrs: []ir.Instr{
			&ir.CheckEitherNonSmi{Base: ir.Base{Deopt: 1}},
			&ir.UnboxDouble{Base: ir.Base{Deopt: 2}, Value: ir.Operand{CID: object.DynamicCID}},
			&ir.UnboxedConstant{Value: 2.5},
			&ir.BinaryDoubleOp{Op: ir.TokenMUL},
			&ir.BoxDouble{},
			&ir.DoubleToSmi{Base: ir.Base{Deopt: 3}},
			&ir.Return{},
		},
	}}}
}

func arraySample() *ir.Graph {
	return &ir.Graph{Blocks: []*ir.Block{{
		ID: 0,
		Instrs: []ir.Instr{
			&ir.CheckArrayBound{Base: ir.Base{Deopt: 1}},
			&ir.LoadIndexed{ElementCID: object.OneByteStringCID},
			&ir.StoreIndexed{
				Base:       ir.Base{Deopt: 2},
				ElementCID: object.TypedDataUint8ClampedArrayCID,
				Value:      smiRange(-10, 300),
			},
			&ir.LoadField{OffsetInBytes: object.ArrayLengthOffset},
			&ir.LoadClassID{},
			&ir.Return{},
		},
	}}}
}

func objectsSample() *ir.Graph {
	guarded := &ir.Field{
		Ref:               object.Ref(0x401),
		GuardedCID:        object.DoubleCID,
		GuardedListLength: object.GuardedListLengthUnknown,
	}
	return &ir.Graph{Blocks: []*ir.Block{{
		ID: 0,
		Instrs: []ir.Instr{
			&ir.AllocateObject{Base: ir.Base{Deopt: 1}, CID: object.ContextCID},
			&ir.StoreInstanceField{
				OffsetInBytes: object.WordSize,
				Value:         ir.Operand{CID: object.DynamicCID},
			},
			&ir.GuardField{
				Base:  ir.Base{Deopt: 2},
				Value: ir.Operand{CID: object.DynamicCID},
				Field: guarded,
			},
			&ir.LoadStaticField{},
			&ir.StoreStaticField{Field: guarded},
			&ir.Return{},
		},
	}}}
}

func callsSample() *ir.Graph {
	return &ir.Graph{Blocks: []*ir.Block{{
		ID: 0,
		Instrs: []ir.Instr{
			&ir.PushArgument{Value: smiConst(2)},
			&ir.StaticCall{
				Base:           ir.Base{Deopt: 1},
				Function:       object.Ref(0x101),
				ArgCount:       1,
				ArgsDescriptor: object.Ref(0x201),
			},
			&ir.PushArgument{},
			&ir.PolymorphicInstanceCall{
				Base:           ir.Base{Deopt: 2},
				ArgCount:       1,
				ArgsDescriptor: object.Ref(0x201),
				Targets: []ir.CallTarget{
					{CID: object.BoolCID, Target: object.Ref(0x301)},
					{CID: object.ArrayCID, Target: object.Ref(0x311)},
				},
			},
			&ir.AssertBoolean{Base: ir.Base{Deopt: 3}},
			&ir.Return{},
		},
	}}}
}
