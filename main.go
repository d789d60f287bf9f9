package main

import "C"
import (
	"os"
	"unsafe"

	"github.com/denoland/deno-sub011/cmd/deno"
)

const runtimeVersion = "0.1.0"

func main() {
	os.Exit(deno.RunWithArgs(os.Args[1:], runtimeVersion))
}

//export nativeRunWithArgs
func nativeRunWithArgs(argc C.int, argv **C.char) C.uint {
	arglen := int(argc)
	args := make([]string, arglen)
	for i, arg := range unsafe.Slice(argv, arglen) {
		args[i] = C.GoString(arg)
	}
	exitCode := deno.RunWithArgs(args, runtimeVersion)
	return C.uint(exitCode)
}
