package main

import "fmt"

type fakeOS struct{}

func (fakeOS) Exit(int) {}

func main() {
	os := fakeOS{}
	os.Exit(1)
	fmt.Println("done")
}
