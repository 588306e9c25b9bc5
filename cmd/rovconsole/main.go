// Command rovconsole is the operator console for a tethered ROV.
package main

func main() {
	execute()
}
