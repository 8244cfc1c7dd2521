// Command hybridnet runs hybrid wired/wireless network scenarios and
// summarizes their flow statistics.
package main

import "github.com/sarchlab/hybridnet/hybridnet/cmd"

func main() {
	cmd.Execute()
}
