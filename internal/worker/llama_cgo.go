//go:build llama

package worker

// Link against libllama from ./bin and find it next to the binary at runtime.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"
