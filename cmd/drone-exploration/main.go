package main

import (
	"fmt"
	"os"

	// Import to register the simulation
	_ "github.com/picogrid/swarm-exploration/cmd/drone-exploration/simulation"
)

func main() {
	fmt.Println("Drone exploration simulation registered. Use 'swarm-sim run' to execute.")
	os.Exit(0)
}
