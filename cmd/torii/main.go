// Torii is the command-line interface for the torii lifecycle runtime. It
// can run a demo scenario and inspect recorded journals.
package main

func main() {
	Execute()
}
