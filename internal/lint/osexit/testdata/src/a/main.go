package main

import (
	"fmt"
	"os"
	sys "os"
)

func main() {
	fmt.Println("start")
	defer fmt.Println("deferred")

	if len(os.Args) > 3 {
		os.Exit(2) // want "direct call os.Exit is not allowed in main function"
	}
	func() {
		sys.Exit(1) // want "direct call os.Exit is not allowed in main function"
	}()
	os.Exit(0) // want "direct call os.Exit is not allowed in main function"
}

func helper() {
	os.Exit(1)
}

type runner struct{}

func (runner) main() {
	os.Exit(1)
}
