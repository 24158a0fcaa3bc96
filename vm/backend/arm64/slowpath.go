package arm64

import (
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/arm64"

	"github.com/lumevm/lume/vm/backend"
	"github.com/lumevm/lume/vm/ir"
	"github.com/lumevm/lume/vm/location"
)

// saveLiveRegisters spills the registers the allocator marked live across a
// slow-path call. The instruction's own output is excluded by the caller
// via the summary's live set.
func (c *Compiler) saveLiveRegisters(s *location.Summary) {
	live := s.LiveRegisters()
	for _, r := range live.CPURegisters() {
		c.push(r)
	}
	for _, r := range live.FPURegisters() {
		c.pushFPU(r)
	}
}

func (c *Compiler) restoreLiveRegisters(s *location.Summary) {
	live := s.LiveRegisters()
	fpu := live.FPURegisters()
	for i := len(fpu) - 1; i >= 0; i-- {
		c.popFPU(fpu[i])
	}
	cpu := live.CPURegisters()
	for i := len(cpu) - 1; i >= 0; i-- {
		c.pop(cpu[i])
	}
}

// boxDoubleSlowPath allocates the double box through the runtime when the
// inline allocation region is exhausted.
type boxDoubleSlowPath struct {
	summary *location.Summary
	out     int16
	entry   *label
	exit    *label
	pos     ir.SourcePos
}

func (p *boxDoubleSlowPath) emit(c *Compiler) error {
	c.bind(p.entry)
	c.saveLiveRegisters(p.summary)
	c.callEntry(backend.EntryAllocateDouble, backend.DescRuntimeCall, ir.NoDeoptID, p.pos)
	c.movReg(resultRegister, p.out)
	c.restoreLiveRegisters(p.summary)
	c.branchToLabel(obj.AJMP, p.exit)
	return nil
}

// stackOverflowSlowPath calls the runtime's stack check, which raises the
// stack overflow error, services pending interrupts, or requests on-stack
// replacement of a hot loop.
type stackOverflowSlowPath struct {
	instr   *ir.CheckStackOverflow
	summary *location.Summary
	entry   *label
	exit    *label
}

func (p *stackOverflowSlowPath) emit(c *Compiler) error {
	c.bind(p.entry)
	c.saveLiveRegisters(p.summary)
	c.callEntry(backend.EntryStackOverflow, backend.DescRuntimeCall, p.instr.DeoptID(), p.instr.Pos())

	if c.cfg.UseOSR && !c.cfg.Optimizing && p.instr.LoopDepth > 0 {
		// The runtime flags the frame when this loop should tier up.
		noOSR := c.newLabel()
		c.movConst(c.env.StackOverflowFlagsAddress(), tmpRegister)
		c.load(arm64.AMOVD, tmpRegister, 0, tmpRegister)
		c.cmpConst(0, tmpRegister)
		c.branchToLabel(condEQ.branchOp(), noOSR)
		osr := c.newProg()
		osr.As = obj.ANOP
		c.addInstruction(osr)
		c.recordDescriptorAt(osr, backend.DescOSREntry, p.instr.DeoptID(), p.instr.Pos())
		c.callEntry(backend.EntryOptimize, backend.DescRuntimeCall, p.instr.DeoptID(), p.instr.Pos())
		c.bind(noOSR)
	}

	c.restoreLiveRegisters(p.summary)
	c.branchToLabel(obj.AJMP, p.exit)
	return nil
}
