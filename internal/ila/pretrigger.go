package ila

// delayEntry is one pipeline stage: a sample word plus the enable level
// that accompanied it, so gating decisions stay attached to the data they
// were made against.
type delayEntry struct {
	word   uint64
	enable bool
}

// delayPipeline shifts the sample stream backward in time by the
// configured pretrigger depth before it reaches the buffer writer. The
// structure depends on the depth:
//
//	0:  a single register, so the writer sees the previous tick's inputs.
//	1:  a two-register chain, one cycle of history plus resynchronization.
//	>1: a two-register synchronizer feeding a bounded queue of capacity
//	    pretrigger+1. Entries are pushed unconditionally while the queue
//	    fills (the enable bit rides along), tracked by a counter that
//	    saturates at pretrigger-1; once filled, push and pop proceed in
//	    lock-step one-for-one.
//
// Net effect: the pipeline output on any tick is the entry shifted in
// pretrigger+1 ticks earlier, so buffer address 0 holds the sample taken
// pretrigger cycles before the trigger was observed.
type delayPipeline struct {
	pretrigger int

	// pretrigger <= 1
	regs []delayEntry

	// pretrigger >= 2
	sync0, sync1 delayEntry
	queue        []delayEntry
	fill         int
}

func newDelayPipeline(pretrigger int) *delayPipeline {
	p := &delayPipeline{pretrigger: pretrigger}
	if pretrigger <= 1 {
		p.regs = make([]delayEntry, pretrigger+1)
	} else {
		p.queue = make([]delayEntry, 0, pretrigger+1)
	}
	return p
}

// output returns the delayed entry for the current tick. Until the queue
// has filled, the output is the zero entry; callers are expected to let
// the pipeline warm up for at least pretrigger+1 ticks before triggering.
func (p *delayPipeline) output() delayEntry {
	if p.pretrigger <= 1 {
		return p.regs[len(p.regs)-1]
	}
	if !p.filled() {
		return delayEntry{}
	}
	return p.queue[0]
}

// shift advances the pipeline by one tick, taking in this tick's inputs.
func (p *delayPipeline) shift(e delayEntry) {
	if p.pretrigger <= 1 {
		copy(p.regs[1:], p.regs[:len(p.regs)-1])
		p.regs[0] = e
		return
	}

	if p.filled() {
		// Lock-step: drop the entry just presented by output.
		copy(p.queue, p.queue[1:])
		p.queue = p.queue[:len(p.queue)-1]
	}
	p.queue = append(p.queue, p.sync1)
	p.sync1 = p.sync0
	p.sync0 = e

	if p.fill < p.pretrigger-1 {
		p.fill++
	}
}

func (p *delayPipeline) filled() bool {
	return p.fill >= p.pretrigger-1
}
