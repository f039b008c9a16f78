// Command arstage runs the AR interaction and animation-orchestration engine
// against a simulated host.
package main

func main() {
	Execute()
}
