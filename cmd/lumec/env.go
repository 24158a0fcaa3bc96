package main

import (
	"github.com/lumevm/lume/vm/backend"
	"github.com/lumevm/lume/vm/object"
)

// devEnv is a stand-in runtime for offline inspection: entry points and
// canonical objects get fixed recognizable addresses so they are easy to spot
// in the dump. Code linked against it is not runnable.
type devEnv struct{}

func (devEnv) EntryAddress(e backend.RuntimeEntry) int64      { return 0x7000_0000 + int64(e)*0x100 }
func (devEnv) AllocationStubAddress(cid object.ClassID) int64 { return 0x7100_0000 + int64(cid)*0x100 }
func (devEnv) CallTargetAddress(fn object.Ref) int64          { return 0x7200_0000 + fn.Raw() }
func (devEnv) NativeEntryAddress(name string) int64           { return 0x7500_0000 + int64(len(name))*0x10 }

func (devEnv) StackLimitAddress() int64         { return 0x7300_0000 }
func (devEnv) StackOverflowFlagsAddress() int64 { return 0x7300_0008 }
func (devEnv) TopAddress() int64                { return 0x7300_0010 }
func (devEnv) EndAddress() int64                { return 0x7300_0018 }

func (devEnv) TrueRef() object.Ref  { return object.Ref(0x7400_0001) }
func (devEnv) FalseRef() object.Ref { return object.Ref(0x7400_0011) }
func (devEnv) NullRef() object.Ref  { return object.Ref(0x7400_0021) }
