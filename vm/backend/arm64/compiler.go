// Package arm64 emits AArch64 machine code for one IR flow graph. Each
// instruction kind has two entry points: a constraint declarator producing
// its location summary, and an emitter translating it into native code given
// the assigned locations. Out-of-line slow paths and deoptimization stubs
// are collected during emission and appended after the last block.
package arm64

import (
	"fmt"

	asm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/arm64"

	"github.com/lumevm/lume/vm/backend"
	"github.com/lumevm/lume/vm/buildoptions"
	"github.com/lumevm/lume/vm/ir"
	"github.com/lumevm/lume/vm/object"
)

// label is a forward-referenceable position in the instruction stream.
// Branches taken before the label is bound are patched when the bound
// position's first instruction is emitted.
type label struct {
	bound   bool
	anchor  *obj.Prog
	pending []*obj.Prog
}

// pendingDescriptor associates a not-yet-assembled instruction with the
// descriptor to record at its final code offset.
type pendingDescriptor struct {
	prog      *obj.Prog
	kind      backend.DescriptorKind
	deoptID   ir.DeoptID
	pos       ir.SourcePos
	afterCall bool
}

// deoptStub is one out-of-line bailout point shared by all the branches an
// instruction takes to it.
type deoptStub struct {
	label  *label
	id     ir.DeoptID
	reason backend.DeoptReason
}

// slowPath is an out-of-line continuation of some instruction's rare case,
// emitted after the main body so the hot path stays branch-free.
type slowPath interface {
	emit(c *Compiler) error
}

// Compiler emits code for one function.
type Compiler struct {
	cfg *backend.Config
	env backend.RuntimeEnv

	builder *asm.Builder

	// instructions is the emitted stream in order, kept for inspection.
	instructions []*obj.Prog

	// setBranchTargetOnNext holds local branches whose target is the next
	// emitted instruction.
	setBranchTargetOnNext []*obj.Prog

	// bindNext holds labels to anchor at the next emitted instruction.
	bindNext []*label

	blockLabels map[ir.BlockID]*label
	nextBlock   ir.BlockID

	// fn is the function object under compilation, read by tier-up checks.
	fn object.Ref

	slowPaths   []slowPath
	deoptStubs  []*deoptStub
	descriptors []pendingDescriptor

	// current is the instruction being emitted, consulted by shared macros
	// for its summary and deopt id.
	current ir.Instr
}

// NewCompiler returns a compiler for one function body.
func NewCompiler(cfg *backend.Config, env backend.RuntimeEnv) (*Compiler, error) {
	b, err := asm.NewBuilder("arm64", 1024)
	if err != nil {
		return nil, fmt.Errorf("initializing assembly builder: %w", err)
	}
	return &Compiler{
		cfg:         cfg,
		env:         env,
		builder:     b,
		blockLabels: map[ir.BlockID]*label{},
	}, nil
}

// Compile translates a fully scheduled flow graph into machine code. Every
// instruction must carry an allocated location summary; AssignLocations
// provides the baseline assignment when no register allocator ran.
func Compile(g *ir.Graph, cfg *backend.Config, env backend.RuntimeEnv) (*backend.CompiledFunction, error) {
	c, err := NewCompiler(cfg, env)
	if err != nil {
		return nil, err
	}
	return c.CompileGraph(g)
}

func (c *Compiler) CompileGraph(g *ir.Graph) (*backend.CompiledFunction, error) {
	c.fn = g.Function
	c.emitPrologue(g.SpillSlotCount)
	for i, blk := range g.Blocks {
		if i+1 < len(g.Blocks) {
			c.nextBlock = g.Blocks[i+1].ID
		} else {
			c.nextBlock = -1
		}
		c.bind(c.labelFor(blk.ID))
		for _, instr := range blk.Instrs {
			if err := c.emitInstr(instr); err != nil {
				return nil, err
			}
		}
	}
	if err := c.emitSlowPaths(); err != nil {
		return nil, err
	}
	if err := c.emitDeoptStubs(); err != nil {
		return nil, err
	}
	return c.finalize()
}

func (c *Compiler) emitInstr(instr ir.Instr) error {
	summary := instr.Locs()
	if summary == nil {
		return fmt.Errorf("BUG: %T reached emission without a location summary", instr)
	}
	summary.CheckAllocated()
	c.current = instr
	defer func() { c.current = nil }()

	switch v := instr.(type) {
	case *ir.Constant:
		return c.emitConstant(v)
	case *ir.UnboxedConstant:
		return c.emitUnboxedConstant(v)
	case *ir.BinarySmiOp:
		return c.emitBinarySmiOp(v)
	case *ir.UnarySmiOp:
		return c.emitUnarySmiOp(v)
	case *ir.TruncDivMod:
		return c.emitTruncDivMod(v)
	case *ir.BinaryDoubleOp:
		return c.emitBinaryDoubleOp(v)
	case *ir.EqualityCompare, *ir.RelationalOp, *ir.StrictCompare, *ir.TestSmi:
		return c.emitComparisonResult(v.(ir.ComparisonInstr))
	case *ir.Branch:
		return c.emitBranch(v)
	case *ir.IfThenElse:
		return c.emitIfThenElse(v)
	case *ir.BooleanNegate:
		return c.emitBooleanNegate(v)
	case *ir.CheckSmi:
		return c.emitCheckSmi(v)
	case *ir.CheckClass:
		return c.emitCheckClass(v)
	case *ir.CheckEitherNonSmi:
		return c.emitCheckEitherNonSmi(v)
	case *ir.CheckArrayBound:
		return c.emitCheckArrayBound(v)
	case *ir.CheckStackOverflow:
		return c.emitCheckStackOverflow(v)
	case *ir.LoadIndexed:
		return c.emitLoadIndexed(v)
	case *ir.StoreIndexed:
		return c.emitStoreIndexed(v)
	case *ir.LoadField:
		return c.emitLoadField(v)
	case *ir.StoreInstanceField:
		return c.emitStoreInstanceField(v)
	case *ir.GuardField:
		return c.emitGuardField(v)
	case *ir.LoadStaticField:
		return c.emitLoadStaticField(v)
	case *ir.StoreStaticField:
		return c.emitStoreStaticField(v)
	case *ir.LoadClassID:
		return c.emitLoadClassID(v)
	case *ir.LoadUntagged:
		return c.emitLoadUntagged(v)
	case *ir.BoxDouble:
		return c.emitBoxDouble(v)
	case *ir.UnboxDouble:
		return c.emitUnboxDouble(v)
	case *ir.SmiToDouble:
		return c.emitSmiToDouble(v)
	case *ir.DoubleToSmi:
		return c.emitDoubleToSmi(v)
	case *ir.PushArgument:
		return c.emitPushArgument(v)
	case *ir.StaticCall:
		return c.emitStaticCall(v)
	case *ir.ClosureCall:
		return c.emitClosureCall(v)
	case *ir.PolymorphicInstanceCall:
		return c.emitPolymorphicInstanceCall(v)
	case *ir.NativeCall:
		return c.emitNativeCall(v)
	case *ir.CreateArray:
		return c.emitCreateArray(v)
	case *ir.AllocateObject:
		return c.emitAllocateObject(v)
	case *ir.AssertBoolean:
		return c.emitAssertBoolean(v)
	case *ir.Goto:
		return c.emitGoto(v)
	case *ir.Return:
		return c.emitReturn(v)
	case *ir.Throw:
		return c.emitThrow(v)
	case *ir.ReThrow:
		return c.emitReThrow(v)
	default:
		return fmt.Errorf("unsupported instruction kind %d (%T) on arm64", instr.Kind(), instr)
	}
}

// Instructions returns the emitted stream, for inspection in tests.
func (c *Compiler) Instructions() []*obj.Prog { return c.instructions }

// newProg allocates an instruction without adding it to the stream.
func (c *Compiler) newProg() *obj.Prog {
	p := c.builder.NewProg()
	return p
}

// addInstruction appends p, resolving any branches and labels waiting on the
// next emitted instruction.
func (c *Compiler) addInstruction(p *obj.Prog) {
	c.instructions = append(c.instructions, p)
	c.builder.AddInstruction(p)
	for _, br := range c.setBranchTargetOnNext {
		br.To.SetTarget(p)
	}
	c.setBranchTargetOnNext = nil
	for _, l := range c.bindNext {
		l.bound = true
		l.anchor = p
		for _, br := range l.pending {
			br.To.SetTarget(p)
		}
		l.pending = nil
	}
	c.bindNext = nil
}

// newLabel returns a fresh unbound label.
func (c *Compiler) newLabel() *label { return &label{} }

// bind anchors l at the next emitted instruction.
func (c *Compiler) bind(l *label) {
	if buildoptions.IsDebugMode && l.bound {
		panic("BUG: label bound twice")
	}
	c.bindNext = append(c.bindNext, l)
}

func (c *Compiler) labelFor(id ir.BlockID) *label {
	l, ok := c.blockLabels[id]
	if !ok {
		l = c.newLabel()
		c.blockLabels[id] = l
	}
	return l
}

// branchToLabel emits a (possibly conditional) branch to l.
func (c *Compiler) branchToLabel(as obj.As, l *label) {
	p := c.newProg()
	p.As = as
	p.To.Type = obj.TYPE_BRANCH
	c.addInstruction(p)
	if l.bound {
		p.To.SetTarget(l.anchor)
	} else {
		l.pending = append(l.pending, p)
	}
}

// branchOverNext emits a branch whose target is resolved to the instruction
// following the code the caller is about to emit; the caller ends the window
// by emitting the target instruction.
func (c *Compiler) branchOverNext(as obj.As) *obj.Prog {
	p := c.newProg()
	p.As = as
	p.To.Type = obj.TYPE_BRANCH
	c.addInstruction(p)
	return p
}

// resolveAtNext patches br to target the next emitted instruction.
func (c *Compiler) resolveAtNext(br *obj.Prog) {
	c.setBranchTargetOnNext = append(c.setBranchTargetOnNext, br)
}

// Basic moves.

func (c *Compiler) movConst(v int64, reg int16) {
	p := c.newProg()
	p.As = arm64.AMOVD
	p.From.Type = obj.TYPE_CONST
	p.From.Offset = v
	p.To.Type = obj.TYPE_REG
	p.To.Reg = reg
	c.addInstruction(p)
}

func (c *Compiler) movReg(src, dst int16) {
	if src == dst {
		return
	}
	p := c.newProg()
	p.As = arm64.AMOVD
	p.From.Type = obj.TYPE_REG
	p.From.Reg = src
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	c.addInstruction(p)
}

func (c *Compiler) movFPUReg(src, dst int16) {
	if src == dst {
		return
	}
	p := c.newProg()
	p.As = arm64.AFMOVD
	p.From.Type = obj.TYPE_REG
	p.From.Reg = src
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	c.addInstruction(p)
}

// load emits `dst = width([base+offset])` with the given move width.
func (c *Compiler) load(as obj.As, base int16, offset int64, dst int16) {
	p := c.newProg()
	p.As = as
	p.From.Type = obj.TYPE_MEM
	p.From.Reg = base
	p.From.Offset = offset
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	c.addInstruction(p)
}

// store emits `width([base+offset]) = src`.
func (c *Compiler) store(as obj.As, src int16, base int16, offset int64) {
	p := c.newProg()
	p.As = as
	p.From.Type = obj.TYPE_REG
	p.From.Reg = src
	p.To.Type = obj.TYPE_MEM
	p.To.Reg = base
	p.To.Offset = offset
	c.addInstruction(p)
}

// Arithmetic helpers. The AArch64 data-processing form is rd = rn OP rm;
// the assembler's operand order puts rm in From and rn in Reg.

func (c *Compiler) emitRRR(as obj.As, rm, rn, rd int16) {
	p := c.newProg()
	p.As = as
	p.From.Type = obj.TYPE_REG
	p.From.Reg = rm
	p.Reg = rn
	p.To.Type = obj.TYPE_REG
	p.To.Reg = rd
	c.addInstruction(p)
}

func (c *Compiler) emitConstRR(as obj.As, imm int64, rn, rd int16) {
	p := c.newProg()
	p.As = as
	p.From.Type = obj.TYPE_CONST
	p.From.Offset = imm
	p.Reg = rn
	p.To.Type = obj.TYPE_REG
	p.To.Reg = rd
	c.addInstruction(p)
}

func (c *Compiler) emitRR(as obj.As, rm, rd int16) {
	p := c.newProg()
	p.As = as
	p.From.Type = obj.TYPE_REG
	p.From.Reg = rm
	p.To.Type = obj.TYPE_REG
	p.To.Reg = rd
	c.addInstruction(p)
}

const (
	shiftLSL = 0
	shiftLSR = 1
	shiftASR = 2
)

// emitShiftedRegOp emits rd = rn OP (rm SHIFT amount) using the shifted
// register operand form.
func (c *Compiler) emitShiftedRegOp(as obj.As, rm int16, shiftType int64, amount int64, rn, rd int16) {
	p := c.newProg()
	p.As = as
	p.From.Type = obj.TYPE_SHIFT
	p.From.Offset = (int64(rm)&31)<<16 | shiftType<<22 | (amount&63)<<10
	p.Reg = rn
	p.To.Type = obj.TYPE_REG
	p.To.Reg = rd
	c.addInstruction(p)
}

// Flag-setting compares. Flags reflect rn - rm (or rn - imm).

func (c *Compiler) cmpRR(rm, rn int16) {
	p := c.newProg()
	p.As = arm64.ACMP
	p.From.Type = obj.TYPE_REG
	p.From.Reg = rm
	p.Reg = rn
	c.addInstruction(p)
}

func (c *Compiler) cmpConst(imm int64, rn int16) {
	if imm >= 0 && imm < 1<<12 {
		p := c.newProg()
		p.As = arm64.ACMP
		p.From.Type = obj.TYPE_CONST
		p.From.Offset = imm
		p.Reg = rn
		c.addInstruction(p)
		return
	}
	c.movConst(imm, tmpRegister)
	c.cmpRR(tmpRegister, rn)
}

// cmpShifted compares rn against rm shifted by amount.
func (c *Compiler) cmpShifted(rm int16, shiftType, amount int64, rn int16) {
	p := c.newProg()
	p.As = arm64.ACMP
	p.From.Type = obj.TYPE_SHIFT
	p.From.Offset = (int64(rm)&31)<<16 | shiftType<<22 | (amount&63)<<10
	p.Reg = rn
	c.addInstruction(p)
}

func (c *Compiler) tstConst(imm int64, rn int16) {
	p := c.newProg()
	p.As = arm64.ATST
	p.From.Type = obj.TYPE_CONST
	p.From.Offset = imm
	p.Reg = rn
	c.addInstruction(p)
}

func (c *Compiler) tstRR(rm, rn int16) {
	p := c.newProg()
	p.As = arm64.ATST
	p.From.Type = obj.TYPE_REG
	p.From.Reg = rm
	p.Reg = rn
	c.addInstruction(p)
}

func (c *Compiler) fcmpd(fm, fn int16) {
	p := c.newProg()
	p.As = arm64.AFCMPD
	p.From.Type = obj.TYPE_REG
	p.From.Reg = fm
	p.Reg = fn
	c.addInstruction(p)
}

// Stack operations. Each push keeps 16-byte alignment by consuming a full
// quadword pair slot.

func (c *Compiler) push(reg int16) {
	p := c.newProg()
	p.As = arm64.AMOVD
	p.From.Type = obj.TYPE_REG
	p.From.Reg = reg
	p.To.Type = obj.TYPE_MEM
	p.To.Reg = stackPointerRegister
	p.To.Offset = -16
	p.Scond = arm64.C_XPRE
	c.addInstruction(p)
}

func (c *Compiler) pop(reg int16) {
	p := c.newProg()
	p.As = arm64.AMOVD
	p.From.Type = obj.TYPE_MEM
	p.From.Reg = stackPointerRegister
	p.From.Offset = 16
	p.Scond = arm64.C_XPOST
	p.To.Type = obj.TYPE_REG
	p.To.Reg = reg
	c.addInstruction(p)
}

func (c *Compiler) pushFPU(reg int16) {
	p := c.newProg()
	p.As = arm64.AFMOVD
	p.From.Type = obj.TYPE_REG
	p.From.Reg = reg
	p.To.Type = obj.TYPE_MEM
	p.To.Reg = stackPointerRegister
	p.To.Offset = -16
	p.Scond = arm64.C_XPRE
	c.addInstruction(p)
}

func (c *Compiler) popFPU(reg int16) {
	p := c.newProg()
	p.As = arm64.AFMOVD
	p.From.Type = obj.TYPE_MEM
	p.From.Reg = stackPointerRegister
	p.From.Offset = 16
	p.Scond = arm64.C_XPOST
	p.To.Type = obj.TYPE_REG
	p.To.Reg = reg
	c.addInstruction(p)
}

// Frame layout: [FP] holds the caller's frame pointer, [FP+8] the return
// address, and spill slot i lives at [FP - 8*(i+1)].

func (c *Compiler) emitPrologue(spillSlots int32) {
	p := c.newProg()
	p.As = arm64.AMOVD
	p.From.Type = obj.TYPE_REG
	p.From.Reg = framePointerRegister
	p.To.Type = obj.TYPE_MEM
	p.To.Reg = stackPointerRegister
	p.To.Offset = -16
	p.Scond = arm64.C_XPRE
	c.addInstruction(p)
	c.store(arm64.AMOVD, linkRegister, stackPointerRegister, 8)
	c.movReg(stackPointerRegister, framePointerRegister)
	if spillSlots > 0 {
		frame := int64(spillSlots) * 8
		frame = (frame + 15) &^ 15
		c.emitConstRR(arm64.ASUB, frame, stackPointerRegister, stackPointerRegister)
	}
}

func (c *Compiler) emitEpilogue() {
	c.movReg(framePointerRegister, stackPointerRegister)
	c.load(arm64.AMOVD, stackPointerRegister, 8, linkRegister)
	p := c.newProg()
	p.As = arm64.AMOVD
	p.From.Type = obj.TYPE_MEM
	p.From.Reg = stackPointerRegister
	p.From.Offset = 16
	p.Scond = arm64.C_XPOST
	p.To.Type = obj.TYPE_REG
	p.To.Reg = framePointerRegister
	c.addInstruction(p)
	ret := c.newProg()
	ret.As = obj.ARET
	c.addInstruction(ret)
}

// spillSlotOffset is the FP-relative byte offset of spill slot i.
func spillSlotOffset(i int32) int64 { return -8 * int64(i+1) }

// Calls.

// callEntry calls a runtime entry and records the descriptor at the return
// address.
func (c *Compiler) callEntry(e backend.RuntimeEntry, kind backend.DescriptorKind, deoptID ir.DeoptID, pos ir.SourcePos) {
	c.callAddress(c.env.EntryAddress(e), kind, deoptID, pos)
}

func (c *Compiler) callAddress(addr int64, kind backend.DescriptorKind, deoptID ir.DeoptID, pos ir.SourcePos) {
	c.movConst(addr, tmpRegister)
	c.callRegister(tmpRegister, kind, deoptID, pos)
}

func (c *Compiler) callRegister(reg int16, kind backend.DescriptorKind, deoptID ir.DeoptID, pos ir.SourcePos) {
	p := c.newProg()
	p.As = obj.ACALL
	p.To.Type = obj.TYPE_MEM
	p.To.Reg = reg
	c.addInstruction(p)
	// The descriptor names the continuation environment: execution resumes
	// after the call, not at it. Deopt stubs keep the environment they
	// bail out of.
	id := deoptID
	if id != ir.NoDeoptID && kind != backend.DescDeopt {
		id = id.After()
	}
	c.descriptors = append(c.descriptors, pendingDescriptor{
		prog: p, kind: kind, deoptID: id, pos: pos, afterCall: true,
	})
}

// recordDescriptorHere attaches a descriptor to the next emitted instruction.
func (c *Compiler) recordDescriptorAt(p *obj.Prog, kind backend.DescriptorKind, deoptID ir.DeoptID, pos ir.SourcePos) {
	c.descriptors = append(c.descriptors, pendingDescriptor{
		prog: p, kind: kind, deoptID: deoptID, pos: pos,
	})
}

// Deoptimization.

// deoptLabel returns the label of the bailout stub for the current
// instruction with the given reason, creating the stub on first use.
func (c *Compiler) deoptLabel(reason backend.DeoptReason) *label {
	id := ir.NoDeoptID
	if c.current != nil {
		id = c.current.DeoptID()
	}
	for _, s := range c.deoptStubs {
		if s.id == id && s.reason == reason {
			return s.label
		}
	}
	s := &deoptStub{label: c.newLabel(), id: id, reason: reason}
	c.deoptStubs = append(c.deoptStubs, s)
	return s.label
}

// deoptIf branches to the bailout stub when cond holds.
func (c *Compiler) deoptIf(cond Condition, reason backend.DeoptReason) {
	c.branchToLabel(cond.branchOp(), c.deoptLabel(reason))
}

func (c *Compiler) emitDeoptStubs() error {
	for _, s := range c.deoptStubs {
		c.bind(s.label)
		// The deopt entry reads the environment id from the result
		// register; everything else is reconstructed from the frame.
		c.movConst(int64(s.id), resultRegister)
		c.callEntry(backend.EntryDeoptimize, backend.DescDeopt, s.id, ir.NoSourcePos)
		// Unreachable: the runtime rewrites the frame and resumes in
		// unoptimized code.
		brk := c.newProg()
		brk.As = obj.AUNDEF
		c.addInstruction(brk)
	}
	return nil
}

func (c *Compiler) emitSlowPaths() error {
	// Slow paths may enqueue further slow paths (a box inside a slow path).
	for i := 0; i < len(c.slowPaths); i++ {
		if err := c.slowPaths[i].emit(c); err != nil {
			return err
		}
	}
	return nil
}

// Shared macros.

// materializeRef loads a tagged reference into reg.
func (c *Compiler) materializeRef(ref object.Ref, reg int16) {
	c.movConst(int64(ref.Raw()), reg)
}

// loadBool loads the canonical true or false object.
func (c *Compiler) loadBool(v bool, reg int16) {
	if v {
		c.materializeRef(c.env.TrueRef(), reg)
	} else {
		c.materializeRef(c.env.FalseRef(), reg)
	}
}

// loadClassIDOf loads the untagged class id of the object in objReg. The
// object must not be a smi.
func (c *Compiler) loadClassIDOf(objReg, dst int16) {
	// Class id sits in the low halfword of the header, one word before the
	// tagged pointer's payload.
	c.load(arm64.AMOVHU, objReg, object.HeaderClassIDOffset-object.HeapTag, dst)
}

// compareClassID loads the value's class id and compares it against cid,
// treating smis via the tag bit: if the value may be a smi the caller must
// test the tag first.
func (c *Compiler) compareClassID(objReg int16, cid object.ClassID, scratch int16) {
	c.loadClassIDOf(objReg, scratch)
	c.cmpConst(int64(cid), scratch)
}

// emitWriteBarrier records a stored reference with the collector. The
// barrier entry takes the object and value in the two scratch registers and
// preserves everything else. When canBeSmi, smi values skip the call.
func (c *Compiler) emitWriteBarrier(objReg, valueReg int16, canBeSmi bool) {
	var skip *obj.Prog
	if canBeSmi {
		c.tstConst(object.SmiTagMask, valueReg)
		skip = c.branchOverNext(arm64.ABEQ)
	}
	c.movReg(objReg, writeBarrierObjectRegister)
	c.movReg(valueReg, writeBarrierValueRegister)
	c.callEntry(backend.EntryWriteBarrier, backend.DescRuntimeCall, ir.NoDeoptID, ir.NoSourcePos)
	if skip != nil {
		c.resolveAtNext(skip)
		nop := c.newProg()
		nop.As = obj.ANOP
		c.addInstruction(nop)
	}
}

// tryAllocate attempts an inline new-space allocation of a fixed-size
// instance, leaving the tagged result in resultReg and branching to fail
// when the region is exhausted. temp is clobbered.
func (c *Compiler) tryAllocate(cid object.ClassID, size int64, resultReg, temp int16, fail *label) {
	c.movConst(c.env.TopAddress(), tmpRegister)
	c.load(arm64.AMOVD, tmpRegister, 0, resultReg)
	c.emitConstRR(arm64.AADD, size, resultReg, temp)
	c.movConst(c.env.EndAddress(), tmp2Register)
	c.load(arm64.AMOVD, tmp2Register, 0, tmp2Register)
	c.cmpRR(tmp2Register, temp)
	c.branchToLabel(condHI.branchOp(), fail)
	c.store(arm64.AMOVD, temp, tmpRegister, 0)
	c.emitConstRR(arm64.AADD, object.HeapTag, resultReg, resultReg)
	c.movConst(int64(object.HeaderWord(cid, size)), tmp2Register)
	c.store(arm64.AMOVD, tmp2Register, resultReg, object.HeaderClassIDOffset-object.HeapTag)
}

// finalize assembles the stream and resolves descriptor offsets.
func (c *Compiler) finalize() (*backend.CompiledFunction, error) {
	code := c.builder.Assemble()
	out := &backend.CompiledFunction{Code: code}
	for _, d := range c.descriptors {
		off := int(d.prog.Pc)
		if d.afterCall {
			off += 4
		}
		out.Descriptors = append(out.Descriptors, backend.PCDescriptor{
			Offset: off, Kind: d.kind, DeoptID: d.deoptID, Pos: d.pos,
		})
	}
	for _, s := range c.deoptStubs {
		off := 0
		if s.label.anchor != nil {
			off = int(s.label.anchor.Pc)
		}
		out.DeoptStubs = append(out.DeoptStubs, backend.DeoptStubDescriptor{
			Offset: off, DeoptID: s.id, Reason: s.reason,
		})
	}
	return out, nil
}
