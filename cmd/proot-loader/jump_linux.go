package main

// jump switches to the freshly built stack and transfers control to the
// mapped image's entry point. It never returns.
//
//go:noescape
func jump(entry, sp uintptr)
