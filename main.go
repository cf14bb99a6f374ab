// The main package for the pharmacrawl executable.
package main

import (
	"github.com/JakeFAU/pharma-price-crawler/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
